package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultSocketDir holds the control sockets of all running enclave
	// processes on this host.
	DefaultSocketDir = "/run/nitro_enclaves"

	// SocketDirEnv overrides DefaultSocketDir when set. Used by tests and
	// non-root deployments.
	SocketDirEnv = "NITRO_CLI_SOCKETS_PATH"

	// enclaveIDSeparator splits the instance token from the enclave slot
	// token in a full enclave identifier ("i-<instance>-enc<hex>").
	enclaveIDSeparator = "-enc"
)

// SocketDir returns the directory holding enclave control sockets.
func SocketDir() string {
	if dir := os.Getenv(SocketDirEnv); dir != "" {
		return dir
	}
	return DefaultSocketDir
}

// SocketPath derives the control socket path for the given enclave
// identifier. The same identifier always maps to the same path, and distinct
// enclaves map to distinct paths, since the slot token after "-enc" is unique
// per enclave. Returns an error for identifiers that do not carry a slot
// token.
func SocketPath(enclaveID string) (string, error) {
	idx := strings.LastIndex(enclaveID, enclaveIDSeparator)
	if idx < 0 {
		return "", fmt.Errorf("malformed enclave ID %q: missing %q token", enclaveID, enclaveIDSeparator)
	}

	slotID := enclaveID[idx+len(enclaveIDSeparator):]
	if slotID == "" || strings.ContainsRune(slotID, os.PathSeparator) {
		return "", fmt.Errorf("malformed enclave ID %q: invalid slot token %q", enclaveID, slotID)
	}

	return filepath.Join(SocketDir(), slotID+".sock"), nil
}
