// package shared defines helpers used across every package: the process
// logger, id generation, configuration, and the sqlite handle.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger builds the process logger writing to w, defaulting to
// [os.Stderr]. Timestamps and caller reporting are on; the level starts at
// info and is raised through [SetLogLevel].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Prefix:          "cardsync",
	})
}

// WithLogger derives a child [log.Logger] carrying the given key-value pairs
// on every entry, used for per-card context during a sync run.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel adjusts the logger's minimum level; the --verbose flag drops
// it to debug.
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a new v4 [uuid.UUID] string, used for sync run ids.
func GenerateID() string {
	return uuid.New().String()
}
