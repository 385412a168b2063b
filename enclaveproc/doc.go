// Package enclaveproc manages the control channel of a running enclave
// process: a Unix socket on the filesystem whose path is derived from the
// enclave identifier, plus a background watcher that monitors the socket
// file for removal.
//
// The watcher's job is to tell intentional socket removal apart from
// external destruction. The owner sets a shared flag strictly before
// unlinking the socket, so when the watcher observes the file disappear it
// can consult the flag: set means the owner is shutting down and the watcher
// exits gracefully; unset means an external actor destroyed the channel, in
// which case there is no longer any way for a controller to reach this
// process and the only safe reaction is to terminate it immediately with the
// distinguished status common.ExitCodeSocketRemoved.
//
// Binding a listener on the socket path is the caller's responsibility and
// must happen before monitoring starts; this package watches the path, it
// never binds it.
package enclaveproc
