package testutil

import (
	"sync"

	"github.com/hupe1980/personasim/logging"
)

// LogEntry is one record captured by RecordingLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger captures log entries for assertions. Children created
// with With share the parent's entries.
type RecordingLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	ctx     []any
}

var _ logging.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.ctx...), args...)
	*l.entries = append(*l.entries, LogEntry{Level: level, Msg: msg, Args: all})
}

// Debug implements logging.Logger.
func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Info implements logging.Logger.
func (l *RecordingLogger) Info(msg string, args ...any) { l.record("info", msg, args) }

// Warn implements logging.Logger.
func (l *RecordingLogger) Warn(msg string, args ...any) { l.record("warn", msg, args) }

// Error implements logging.Logger.
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// With implements logging.Logger.
func (l *RecordingLogger) With(args ...any) logging.Logger {
	return &RecordingLogger{mu: l.mu, entries: l.entries, ctx: append(append([]any{}, l.ctx...), args...)}
}

// Entries returns a copy of the captured entries.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(*l.entries))
	copy(out, *l.entries)
	return out
}

// Messages returns the captured messages at level.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}
