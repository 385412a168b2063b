package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/cmd/flags"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/enclaveproc"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/metrics"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/nitrodev"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/resourcemanager"
)

var appFlags = []cli.Flag{
	flags.EnclaveIDFlag,
	flags.MemorySizeFlag,
	flags.RegionCountFlag,
	flags.DevicePathFlag,
	flags.MetricsAddrFlag,
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:   "enclave-proc",
		Usage:  "Manage the lifecycle of one Nitro Enclave and its control socket",
		Flags:  appFlags,
		Action: runEnclaveProc,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runEnclaveProc(cCtx *cli.Context) error {
	enclaveID := cCtx.String(flags.EnclaveIDFlag.Name)
	memoryMiB := cCtx.Uint64(flags.MemorySizeFlag.Name)
	regionCount := cCtx.Int(flags.RegionCountFlag.Name)
	devicePath := cCtx.String(flags.DevicePathFlag.Name)
	metricsAddr := cCtx.String(flags.MetricsAddrFlag.Name)

	logger := flags.SetupLogger(cCtx).With("enclave_id", enclaveID)

	metricsSrv, err := metrics.New(logger, metricsAddr)
	if err != nil {
		logger.Error("Failed to create metrics server", "err", err)
		return err
	}
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.Error("Metrics server failed", "err", err)
		}
	}()

	// Control channel: derive the path, bind the listener, then start the
	// removal watcher. The watcher requires the socket file to exist, so
	// the bind must come first.
	socket, err := enclaveproc.NewControlSocket(enclaveID, logger)
	if err != nil {
		logger.Error("Failed to create control socket", "err", err)
		return err
	}

	listener, err := net.Listen("unix", socket.Path())
	if err != nil {
		logger.Error("Failed to bind control socket", "path", socket.Path(), "err", err)
		return err
	}
	logger.Info("Control socket bound", "path", socket.Path())

	if err := socket.StartMonitoring(); err != nil {
		listener.Close()
		logger.Error("Failed to start socket monitoring", "err", err)
		return err
	}

	// Command dispatch over the socket lives elsewhere; this process only
	// keeps the endpoint alive, accepting and dropping connections.
	go acceptLoop(listener, logger)

	// Hardware resources: open the driver, allocate the slot, register
	// memory.
	driver := nitrodev.NewDriverForPath(devicePath, logger)
	manager, err := resourcemanager.OpenManager(driver, logger)
	if err != nil {
		logger.Error("Failed to open enclave device", "err", err)
		shutdownSocket(socket, listener)
		return err
	}
	defer manager.Close()

	enclave, err := manager.ProvisionEnclave(memoryMiB*1024*1024, regionCount)
	if err != nil {
		logger.Error("Failed to provision enclave", "err", err)
		shutdownSocket(socket, listener)
		return err
	}

	logger.Info("Enclave provisioned",
		"regions", regionCount,
		"region_mib", memoryMiB)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	sig := <-exit
	logger.Info("Shutting down", "signal", sig.String())

	// Shutdown order: release the hardware slot, close the control channel
	// (flag, unlink, watcher join), then drain the metrics server.
	enclave.Release()
	shutdownSocket(socket, listener)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown failed", "err", err)
	}

	return nil
}

// shutdownSocket tears the control channel down in the order the watcher
// protocol requires: Close sets the remove-requested flag before unlinking,
// so it must run before the listener's own close, which would otherwise
// unlink the socket file and look like an external removal.
func shutdownSocket(socket *enclaveproc.ControlSocket, listener net.Listener) {
	socket.Close()
	listener.Close()
}

func acceptLoop(listener net.Listener, logger *slog.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		logger.Debug("Dropping control connection; dispatch is not handled here")
		conn.Close()
	}
}
