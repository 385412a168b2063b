package enclaveproc

import (
	"io"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/common"
)

const dummyEnclaveID = "i-0000000000000000-enc0123456789012345"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExit reroutes process termination requests into a channel for the
// duration of the test.
func stubExit(t *testing.T) chan int {
	t.Helper()

	codes := make(chan int, 4)
	prev := common.ExitProcess
	common.ExitProcess = func(code int) { codes <- code }
	t.Cleanup(func() { common.ExitProcess = prev })
	return codes
}

// newBoundSocket creates a ControlSocket in a temp socket directory and
// binds a Unix listener on its path.
func newBoundSocket(t *testing.T) (*ControlSocket, net.Listener) {
	t.Helper()

	t.Setenv(common.SocketDirEnv, t.TempDir())

	socket, err := NewControlSocket(dummyEnclaveID, testLogger())
	require.NoError(t, err, "Socket creation should succeed")

	listener, err := net.Listen("unix", socket.Path())
	require.NoError(t, err, "Binding the control socket should succeed")
	return socket, listener
}

func TestNewControlSocket(t *testing.T) {
	t.Setenv(common.SocketDirEnv, t.TempDir())

	socket, err := NewControlSocket(dummyEnclaveID, testLogger())
	require.NoError(t, err)
	assert.True(t, strings.Contains(socket.Path(), "0123456789012345"),
		"Path should carry the enclave slot token")
	assert.Nil(t, socket.monitorDone, "No watcher should be running yet")
	assert.False(t, socket.requestedRemove.Load(), "Flag should start false")
}

func TestNewControlSocketMalformedID(t *testing.T) {
	_, err := NewControlSocket("not-an-enclave-id", testLogger())
	assert.Error(t, err, "ID without a slot token should be rejected")
}

func TestStartMonitoringRequiresBoundSocket(t *testing.T) {
	t.Setenv(common.SocketDirEnv, t.TempDir())

	socket, err := NewControlSocket(dummyEnclaveID, testLogger())
	require.NoError(t, err)

	err = socket.StartMonitoring()
	assert.Error(t, err, "Monitoring an unbound socket path should fail")
}

func TestStartMonitoringTwice(t *testing.T) {
	socket, listener := newBoundSocket(t)
	defer listener.Close()

	require.NoError(t, socket.StartMonitoring())
	err := socket.StartMonitoring()
	assert.ErrorIs(t, err, ErrAlreadyMonitoring)

	socket.Close()
}

// External removal of the socket file must leave the flag false and
// terminate the process with the distinguished status.
func TestExternalRemovalTerminatesProcess(t *testing.T) {
	codes := stubExit(t)
	socket, listener := newBoundSocket(t)
	defer listener.Close()

	require.NoError(t, socket.StartMonitoring())

	require.NoError(t, os.Remove(socket.Path()))

	select {
	case code := <-codes:
		assert.Equal(t, common.ExitCodeSocketRemoved, code,
			"External removal should use the distinguished exit status")
	case <-time.After(time.Second):
		t.Fatal("Watcher did not react to the external removal")
	}

	assert.False(t, socket.requestedRemove.Load(),
		"Flag must remain false when removal was not requested")

	// The watcher already returned; Close only needs to settle the flag.
	socket.Close()
	assert.True(t, socket.requestedRemove.Load())
}

// An attribute-only change that does not remove the file must not produce a
// state transition.
func TestAttributeChangeIsNotRemoval(t *testing.T) {
	codes := stubExit(t)
	socket, listener := newBoundSocket(t)
	defer listener.Close()

	require.NoError(t, socket.StartMonitoring())

	require.NoError(t, os.Chmod(socket.Path(), 0o700))

	select {
	case code := <-codes:
		t.Fatalf("Watcher exited with %d on an attribute-only change", code)
	case <-time.After(300 * time.Millisecond):
	}

	select {
	case <-socket.monitorDone:
		t.Fatal("Watcher terminated on an attribute-only change")
	default:
	}

	socket.Close()
	assert.True(t, socket.requestedRemove.Load())
}

func TestGracefulClose(t *testing.T) {
	codes := stubExit(t)

	goroutinesBefore := runtime.NumGoroutine()

	socket, listener := newBoundSocket(t)
	defer listener.Close()

	require.NoError(t, socket.StartMonitoring())
	socket.Close()

	assert.True(t, socket.requestedRemove.Load(), "Close should set the flag")
	assert.Nil(t, socket.monitorDone, "Close should reap the watcher")

	_, err := os.Stat(socket.Path())
	assert.True(t, os.IsNotExist(err), "Socket file should be unlinked")

	assert.Empty(t, codes, "Graceful close must not request termination")

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= goroutinesBefore
	}, time.Second, 10*time.Millisecond,
		"Goroutine count should return to the pre-monitoring level")
}

func TestCloseWithoutMonitoring(t *testing.T) {
	socket, listener := newBoundSocket(t)
	defer listener.Close()

	socket.Close()
	assert.True(t, socket.requestedRemove.Load())
	_, err := os.Stat(socket.Path())
	assert.True(t, os.IsNotExist(err))
}

// End-to-end: create, bind, monitor, close, all within a bounded time.
func TestSocketLifecycleEndToEnd(t *testing.T) {
	socket, listener := newBoundSocket(t)
	defer listener.Close()

	require.NoError(t, socket.StartMonitoring())

	start := time.Now()
	socket.Close()
	elapsed := time.Since(start)

	assert.True(t, socket.requestedRemove.Load())
	assert.Less(t, elapsed, time.Second, "Close should join the watcher promptly")
}
