package engine

import (
	"log/slog"
	"sync"
)

// ErrorLog collects human-readable diagnostics produced while programs run:
// parse failures, quota overruns and recovered panics. The log is cleared
// with the store at the start of every frame, so it only ever describes the
// frame in progress.
type ErrorLog interface {
	LogError(msg string)
	LogErrors(msgs []string)
	Errors() []string
	ClearErrors()
}

// DiagLog is the default ErrorLog. Every entry is mirrored to slog at warn
// level.
//
// Thread-safety: DiagLog is safe for concurrent use; program units log
// parse errors from their own goroutines.
type DiagLog struct {
	mu      sync.Mutex
	entries []string
	logger  *slog.Logger
}

// NewDiagLog creates an empty log mirroring to logger (slog.Default if nil).
func NewDiagLog(logger *slog.Logger) *DiagLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagLog{logger: logger}
}

// LogError appends one entry.
func (l *DiagLog) LogError(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
	l.logger.Warn("program error", "error", msg)
}

// LogErrors appends entries in order.
func (l *DiagLog) LogErrors(msgs []string) {
	for _, m := range msgs {
		l.LogError(m)
	}
}

// Errors returns a copy of the entries in the order they were logged.
func (l *DiagLog) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// ClearErrors drops all entries.
func (l *DiagLog) ClearErrors() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
