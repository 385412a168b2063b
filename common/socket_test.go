package common

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SocketDirEnv, dir)

	path, err := SocketPath("i-0000000000000000-enc0123456789012345")
	require.NoError(t, err, "Well-formed enclave ID should derive a path")
	assert.Equal(t, filepath.Join(dir, "0123456789012345.sock"), path)

	// Same ID always maps to the same path.
	again, err := SocketPath("i-0000000000000000-enc0123456789012345")
	require.NoError(t, err)
	assert.Equal(t, path, again, "Derivation should be stable")

	// Distinct enclaves map to distinct paths.
	other, err := SocketPath("i-0000000000000000-encfedcba9876543210")
	require.NoError(t, err)
	assert.NotEqual(t, path, other, "Distinct slot tokens should not collide")
}

func TestSocketPathMalformedID(t *testing.T) {
	for _, id := range []string{
		"",
		"i-0000000000000000",
		"i-0000000000000000-enc",
		"i-0000000000000000-enc../escape",
	} {
		_, err := SocketPath(id)
		assert.Error(t, err, "ID %q should be rejected", id)
	}
}

func TestSocketDirDefault(t *testing.T) {
	t.Setenv(SocketDirEnv, "")
	assert.Equal(t, DefaultSocketDir, SocketDir())

	t.Setenv(SocketDirEnv, "/tmp/sockets")
	assert.Equal(t, "/tmp/sockets", SocketDir())
}

func TestFatalInvokesExitHook(t *testing.T) {
	var gotCode int
	prev := ExitProcess
	ExitProcess = func(code int) { gotCode = code }
	t.Cleanup(func() { ExitProcess = prev })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	Fatal(log, ExitCodeFatal, "boom", "key", "value")
	assert.Equal(t, ExitCodeFatal, gotCode)

	Fatal(nil, ExitCodeSocketRemoved, "no logger")
	assert.Equal(t, ExitCodeSocketRemoved, gotCode)
}
