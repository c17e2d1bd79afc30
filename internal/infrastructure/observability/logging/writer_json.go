package logging

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
)

// jsonLine is the on-wire shape of one JSON log writer line.
type jsonLine struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// JSONWriter writes newline-delimited JSON log lines to an io.Writer
// (typically a rotated file), for machine consumption.
type JSONWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

// NewJSONWriter wraps out.
//
// Params:
//   - out: the sink each encoded line is written to.
//
// Returns:
//   - *JSONWriter: the constructed writer.
func NewJSONWriter(out io.WriteCloser) *JSONWriter {
	return &JSONWriter{out: out, enc: json.NewEncoder(out)}
}

// Write encodes e as one JSON line.
//
// Params:
//   - e: the event to encode.
//
// Returns:
//   - error: the underlying encode/write error, if any.
func (w *JSONWriter) Write(e logging.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(jsonLine{
		Time:      e.Timestamp.Format(timeFormat),
		Level:     e.Level.String(),
		Component: e.Component,
		Message:   e.Message,
		Fields:    e.Fields,
	})
}

// Close closes the underlying sink.
//
// Returns:
//   - error: the underlying close error, if any.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}

var _ logging.Writer = (*JSONWriter)(nil)
