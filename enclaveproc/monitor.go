package enclaveproc

import (
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/common"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/metrics"
)

// socketObserver is the narrowed view of a ControlSocket handed to the
// watcher goroutine: the path and the shared flag, nothing else. It holds no
// unlink rights and no watcher ownership.
type socketObserver struct {
	path            string
	requestedRemove *atomic.Bool
	log             *slog.Logger
}

// socketRemovalListener watches one socket path until it is removed from the
// filesystem. Intentional removal (flag set by the owner before the unlink)
// ends the loop gracefully. External removal means no controller can reach
// this process anymore; continuing to run would silently strand the enclave,
// so the process terminates immediately with the distinguished status.
// A failure of the notification stream itself is fatal for the same reason:
// the watcher is a safety net, and an unreliable safety net must not run
// silently.
func socketRemovalListener(obs *socketObserver, watcher *fsnotify.Watcher) {
	obs.log.Debug("Control socket watcher started", slog.String("path", obs.path))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				common.Fatal(obs.log, common.ExitCodeFatal, "Control socket event stream closed unexpectedly",
					slog.String("path", obs.path))
				return
			}

			metrics.SocketWatchEvents.Inc()

			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Chmod) {
				continue
			}

			// Attribute events also fire for changes that do not remove the
			// file (e.g. permission changes). Only an actually absent path
			// counts as a removal.
			if pathExists(obs.path) {
				continue
			}

			if obs.requestedRemove.Load() {
				obs.log.Debug("Control socket has deleted itself", slog.String("path", obs.path))
				return
			}

			metrics.SocketExternalRemovals.Inc()
			obs.log.Warn("Control socket was deleted externally", slog.String("path", obs.path))
			common.ExitProcess(common.ExitCodeSocketRemoved)
			return

		case err, ok := <-watcher.Errors:
			if !ok {
				common.Fatal(obs.log, common.ExitCodeFatal, "Control socket error stream closed unexpectedly",
					slog.String("path", obs.path))
				return
			}
			common.Fatal(obs.log, common.ExitCodeFatal, "Control socket watch failed",
				slog.String("path", obs.path), "err", err)
			return
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
