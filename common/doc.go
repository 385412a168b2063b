// Package common provides shared plumbing used by every binary and package in
// the enclave control plane: structured logger setup, control socket path
// derivation, and the process exit code contract.
//
// # Logging
//
// All components log through log/slog. SetupLogger builds the process-wide
// logger from LoggingOpts (text or JSON handler, debug level, service and
// version tags), matching the flags exposed by the binaries in cmd/.
//
// # Socket Paths
//
// SocketPath maps an enclave identifier of the form "i-<instance>-enc<hex>"
// to the Unix socket path used as that enclave's control endpoint. The
// mapping is deterministic and collision-free across concurrently running
// enclaves, since the <hex> token is unique per enclave slot.
//
// # Exit Codes
//
// Integrity failures (a lost control channel, a failed socket unlink, a
// failed hardware slot release) cannot be recovered from and terminate the
// process. ExitCodeSocketRemoved is reserved for the single case where the
// control socket was deleted by an external actor; no other code path exits
// with it, so supervising processes can tell it apart.
package common
