// Package logging implements the daemon's own operational logger over
// one or more logging.Writer sinks: a MultiLogger fans events out to
// every configured writer, best-effort per writer.
package logging

import (
	"sync"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
)

// MultiLogger dispatches every Event to all of its writers.
type MultiLogger struct {
	mu      sync.RWMutex
	writers []logging.Writer
}

// New constructs a MultiLogger over writers.
//
// Params:
//   - writers: the sinks every logged event is dispatched to.
//
// Returns:
//   - *MultiLogger: the constructed logger.
func New(writers ...logging.Writer) *MultiLogger {
	return &MultiLogger{writers: writers}
}

// log builds an Event and dispatches it to every writer, best-effort.
//
// Params:
//   - level: the event's severity level.
//   - component: the subsystem the event originates from.
//   - message: the human-readable event message.
//   - fields: structured key/value context attached to the event.
func (l *MultiLogger) log(level logging.Level, component, message string, fields map[string]any) {
	e := logging.NewEvent(level, component, message, fields)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, w := range l.writers {
		_ = w.Write(e) // best-effort: one writer's failure never blocks another
	}
}

func (l *MultiLogger) Debug(component, message string, fields map[string]any) {
	l.log(logging.LevelDebug, component, message, fields)
}

func (l *MultiLogger) Info(component, message string, fields map[string]any) {
	l.log(logging.LevelInfo, component, message, fields)
}

func (l *MultiLogger) Warn(component, message string, fields map[string]any) {
	l.log(logging.LevelWarn, component, message, fields)
}

func (l *MultiLogger) Error(component, message string, fields map[string]any) {
	l.log(logging.LevelError, component, message, fields)
}

// Close closes every writer, returning the first error encountered.
//
// Returns:
//   - error: nil if every writer closed cleanly, the first error otherwise.
func (l *MultiLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ logging.Logger = (*MultiLogger)(nil)
