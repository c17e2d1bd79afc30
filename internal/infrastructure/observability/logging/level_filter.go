package logging

import "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"

// LevelFilter wraps a Writer, dropping events below threshold; this is
// what makes config.log_level control the whole daemon's verbosity
// without every writer re-implementing the check.
type LevelFilter struct {
	threshold logging.Level
	next      logging.Writer
}

// NewLevelFilter wraps next so only events at or above threshold pass.
//
// Params:
//   - threshold: the minimum level that passes through to next.
//   - next: the wrapped writer.
//
// Returns:
//   - *LevelFilter: the constructed filter.
func NewLevelFilter(threshold logging.Level, next logging.Writer) *LevelFilter {
	return &LevelFilter{threshold: threshold, next: next}
}

// Write forwards e to the wrapped writer if it meets the threshold.
//
// Params:
//   - e: the event to filter and forward.
//
// Returns:
//   - error: nil if e was dropped or the wrapped write succeeded, the wrapped error otherwise.
func (f *LevelFilter) Write(e logging.Event) error {
	if e.Level < f.threshold {
		return nil
	}
	return f.next.Write(e)
}

// Close closes the wrapped writer.
//
// Returns:
//   - error: the wrapped writer's close error.
func (f *LevelFilter) Close() error { return f.next.Close() }

var _ logging.Writer = (*LevelFilter)(nil)
