// Package hotreload watches the daemon's config file and custom-profile
// file for external edits and debounces them into reload callbacks. The
// containing directory is watched rather than the file itself, since
// editors commonly replace files via rename.
package hotreload

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
)

// debounce is the quiet period after a write event before the reload
// callback fires.
const debounce = 300 * time.Millisecond

// Watcher multiplexes fsnotify events for one or more watched files onto
// per-file debounced reload callbacks.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   logging.Logger
	onChange map[string]func()
	stop     chan struct{}
}

// New constructs a Watcher. Call Watch for each file you want observed,
// then Run to start the event loop.
//
// Params:
//   - logger: the logger watch errors are reported to.
//
// Returns:
//   - *Watcher: the constructed, unstarted watcher.
//   - error: nil on success, an fsnotify setup error otherwise.
func New(logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		logger:   logger,
		onChange: make(map[string]func()),
		stop:     make(chan struct{}),
	}, nil
}

// Watch registers path (its containing directory is actually watched) so
// that a write to it invokes onChange after the debounce window.
//
// Params:
//   - path: the file to observe.
//   - onChange: the callback invoked after the debounce window.
//
// Returns:
//   - error: nil on success, the underlying fsnotify.Add error otherwise.
func (w *Watcher) Watch(path string, onChange func()) error {
	dir := filepath.Dir(path)
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.onChange[filepath.Clean(path)] = onChange
	return nil
}

// Run processes fsnotify events until Stop is called. Intended to be run
// in its own goroutine.
func (w *Watcher) Run() {
	timers := make(map[string]*time.Timer)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			onChange, watched := w.onChange[path]
			if !watched {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounce, onChange)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("hotreload", "watcher error", map[string]any{"error": err.Error()})
		case <-w.stop:
			return
		}
	}
}

// Stop ends the event loop and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.fsw.Close()
}
