package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
)

// ANSI color codes, one per level.
const (
	colorReset = "\033[0m"
	colorDebug = "\033[36m"
	colorInfo  = "\033[32m"
	colorWarn  = "\033[33m"
	colorError = "\033[31m"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConsoleWriter writes human-readable lines to stdout/stderr: debug/info
// to stdout, warn/error to stderr, colorized when the target is a
// terminal.
type ConsoleWriter struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	color  bool
}

// NewConsoleWriter builds a ConsoleWriter over the real stdout/stderr,
// auto-detecting color support.
//
// Returns:
//   - *ConsoleWriter: the constructed writer.
func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{
		stdout: os.Stdout,
		stderr: os.Stderr,
		color:  isTerminal(os.Stdout),
	}
}

// Write formats and writes e to stdout or stderr depending on level.
//
// Params:
//   - e: the event to write.
//
// Returns:
//   - error: the underlying write error, if any.
func (w *ConsoleWriter) Write(e logging.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.stdout
	if e.Level >= logging.LevelWarn {
		out = w.stderr
	}

	line := formatLine(e)
	if w.color {
		line = colorize(e.Level, line)
	}
	_, err := fmt.Fprintln(out, line)
	return err
}

// Close is a no-op: stdout/stderr are never owned by this writer.
//
// Returns:
//   - error: always nil.
func (w *ConsoleWriter) Close() error { return nil }

// formatLine renders e as a single human-readable line.
//
// Params:
//   - e: the event to render.
//
// Returns:
//   - string: the rendered line.
func formatLine(e logging.Event) string {
	component := e.Component
	if component == "" {
		component = "daemon"
	}
	line := fmt.Sprintf("%s [%s] %s: %s", e.Timestamp.Format(timeFormat), e.Level, component, e.Message)
	for k, v := range e.Fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	return line
}

// colorize wraps line in the ANSI color matching level, or returns it
// unchanged for an unrecognized level.
//
// Params:
//   - level: the event's severity level.
//   - line: the already-formatted line to colorize.
//
// Returns:
//   - string: the colorized (or unchanged) line.
func colorize(level logging.Level, line string) string {
	var color string
	switch level {
	case logging.LevelDebug:
		color = colorDebug
	case logging.LevelInfo:
		color = colorInfo
	case logging.LevelWarn:
		color = colorWarn
	case logging.LevelError:
		color = colorError
	default:
		return line
	}
	return color + line + colorReset
}

// isTerminal reports whether f is attached to a terminal.
//
// Params:
//   - f: the file to check.
//
// Returns:
//   - bool: true if f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var _ logging.Writer = (*ConsoleWriter)(nil)
