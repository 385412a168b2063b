package enclaveproc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/common"
)

// ErrAlreadyMonitoring is returned when StartMonitoring is called while a
// watcher is already active for the socket.
var ErrAlreadyMonitoring = errors.New("control socket is already being monitored")

// ControlSocket owns the control endpoint of one enclave process. It holds
// unlink rights over the socket path and, once monitoring starts, ownership
// of the watcher goroutine. At most one watcher is active per socket.
type ControlSocket struct {
	socketPath string

	// requestedRemove is shared with the watcher. The owner stores true
	// strictly before unlinking the socket; the watcher only ever reads it.
	requestedRemove *atomic.Bool

	// monitorDone is closed by the watcher goroutine on exit. Nil while no
	// watcher is running.
	monitorDone chan struct{}

	log *slog.Logger
}

// NewControlSocket derives the control socket path for the given enclave
// identifier. No filesystem object is created; binding a listener on Path()
// is the caller's responsibility.
func NewControlSocket(enclaveID string, log *slog.Logger) (*ControlSocket, error) {
	socketPath, err := common.SocketPath(enclaveID)
	if err != nil {
		return nil, err
	}

	return &ControlSocket{
		socketPath:      socketPath,
		requestedRemove: atomic.NewBool(false),
		log:             log,
	}, nil
}

// Path returns the endpoint location on the filesystem.
func (s *ControlSocket) Path() string {
	return s.socketPath
}

// StartMonitoring registers a filesystem watch on the socket path and spawns
// the background removal watcher. The socket file must already exist, i.e.
// the listener must be bound first.
func (s *ControlSocket) StartMonitoring() error {
	if s.monitorDone != nil {
		return ErrAlreadyMonitoring
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher for %s: %w", s.socketPath, err)
	}

	// Chmod covers IN_ATTRIB (inode link count changes), Remove covers
	// IN_DELETE_SELF. Both fire through the default fsnotify watch.
	if err := watcher.Add(s.socketPath); err != nil {
		watcher.Close()
		return fmt.Errorf("could not watch %s: %w", s.socketPath, err)
	}

	observer := &socketObserver{
		path:            s.socketPath,
		requestedRemove: s.requestedRemove,
		log:             s.log,
	}

	done := make(chan struct{})
	s.monitorDone = done
	go func() {
		defer close(done)
		defer watcher.Close()
		socketRemovalListener(observer, watcher)
	}()

	return nil
}

// Close shuts the control channel down: it marks the removal as requested,
// unlinks the socket file if it still exists, and waits for the watcher to
// terminate. The flag is stored strictly before the unlink, so the watcher,
// which may observe the unlink instantly, always sees a consistent value.
// A failed unlink is unrecoverable: the channel cannot be considered closed
// while a stale endpoint is still present.
func (s *ControlSocket) Close() {
	s.requestedRemove.Store(true)

	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			common.Fatal(s.log, common.ExitCodeFatal, "Failed to remove control socket",
				slog.String("path", s.socketPath), "err", err)
			return
		}
	}

	if s.monitorDone != nil {
		<-s.monitorDone
		s.monitorDone = nil
	}
}
