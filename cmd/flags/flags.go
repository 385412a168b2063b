package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/common"
)

// SetupLogger builds the process logger from the shared logging flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var EnclaveIDFlag = &cli.StringFlag{
	Name:     "enclave-id",
	Required: true,
	Usage:    "full enclave identifier, e.g. i-0123456789abcdef0-enc0123456789abcdef",
}

var MemorySizeFlag = &cli.Uint64Flag{
	Name:  "memory-mib",
	Value: 64,
	Usage: "memory per region in MiB, must be a multiple of the 2 MiB huge page size",
}

var RegionCountFlag = &cli.IntFlag{
	Name:  "region-count",
	Value: 1,
	Usage: "number of memory regions to register with the enclave slot",
}

var DevicePathFlag = &cli.StringFlag{
	Name:  "device-path",
	Value: "/dev/nitro_enclaves",
	Usage: "path of the Nitro Enclaves device",
}

var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "enclave-proc",
	Usage: "add 'service' tag to logs",
}
