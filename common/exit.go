package common

import (
	"log/slog"
	"os"
)

const (
	// ExitCodeFatal is the generic status for unrecoverable failures: a
	// broken notification stream, a failed socket unlink, a failed hardware
	// slot release.
	ExitCodeFatal = 1

	// ExitCodeSocketRemoved is the distinguished status used when the
	// control socket was deleted by an actor other than its owner. Reserved
	// for that single case.
	ExitCodeSocketRemoved = 56
)

// ExitProcess terminates the current process. It is a variable so tests can
// intercept termination requests; production code never reassigns it.
var ExitProcess = os.Exit

// Fatal logs msg at error level and terminates the process with the given
// status. It never returns in production. Test code that replaces
// ExitProcess must not rely on Fatal panicking; callers return immediately
// after invoking it.
func Fatal(log *slog.Logger, code int, msg string, args ...any) {
	if log != nil {
		log.Error(msg, args...)
	}
	ExitProcess(code)
}
