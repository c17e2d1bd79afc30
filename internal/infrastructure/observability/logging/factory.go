package logging

import (
	"os"
	"path/filepath"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
)

// NewDaemonLogger constructs the daemon's own logger: console output always on,
// plus a level-filtered JSON file under dataDir/daemon.log so
// structured logging holds even when stdout is not captured by the
// process supervisor running mgmtd itself.
//
// Params:
//   - dataDir: the directory daemon.log is written under; skipped entirely if empty.
//   - level: the minimum level passed by both writers.
//
// Returns:
//   - logging.Logger: the constructed logger.
//   - error: always nil; reserved for future writer construction failures.
func NewDaemonLogger(dataDir string, level logging.Level) (logging.Logger, error) {
	writers := []logging.Writer{NewLevelFilter(level, NewConsoleWriter())}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o750); err == nil {
			if f, err := os.OpenFile(filepath.Join(dataDir, "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
				writers = append(writers, NewLevelFilter(level, NewJSONWriter(f)))
			}
		}
	}

	return New(writers...), nil
}
