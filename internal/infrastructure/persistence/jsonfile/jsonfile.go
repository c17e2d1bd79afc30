// Package jsonfile provides the atomic temp+rename JSON persistence
// primitive shared by every persisted artifact (power_profiles.json,
// metrics_hourly.json, metrics_daily.json).
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// dirPerm and filePerm match the daemon's log-writer permissions.
const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o600
)

// Load reads and unmarshals path into v. A missing file leaves v
// untouched and returns nil: callers treat "no file yet" as empty state,
// never as an error. A corrupt file returns an error so callers can log
// it and still fall back to empty state themselves.
//
// Params:
//   - path: the JSON file to read.
//   - v: the destination the file is unmarshaled into.
//
// Returns:
//   - error: nil on success or a missing file, a read/parse error otherwise.
func Load(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is daemon-owned, not user input
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: parsing %s: %w", path, err)
	}
	return nil
}

// Save marshals v and writes it to path atomically: write to a sibling
// temp file, fsync, then rename over the destination. A reader never
// observes a partially-written file.
//
// Params:
//   - path: the destination JSON file.
//   - v: the value to marshal and persist.
//
// Returns:
//   - error: nil on success, a marshal/write/rename error otherwise.
func Save(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("jsonfile: creating dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshaling %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: writing temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: syncing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("jsonfile: chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("jsonfile: renaming into %s: %w", path, err)
	}
	return nil
}
