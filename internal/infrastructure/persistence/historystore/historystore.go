// Package historystore adapts jsonfile to the aggregator.Store contract,
// persisting the hourly and daily bucket maps as two JSON files under
// the daemon's data directory.
package historystore

import (
	"context"
	"path/filepath"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/history"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/jsonfile"
)

// Hourly and Daily name the two persisted artifacts within the data dir.
const (
	HourlyFile = "metrics_hourly.json"
	DailyFile  = "metrics_daily.json"
)

// Store implements aggregator.Store over two JSON files.
type Store struct {
	hourlyPath string
	dailyPath  string
}

// New constructs a Store rooted at dataDir.
//
// Params:
//   - dataDir: the directory both JSON artifacts are stored under.
//
// Returns:
//   - *Store: the constructed store.
func New(dataDir string) *Store {
	return &Store{
		hourlyPath: filepath.Join(dataDir, HourlyFile),
		dailyPath:  filepath.Join(dataDir, DailyFile),
	}
}

// LoadHourly reads the persisted hourly bucket map. Missing/corrupt
// files yield empty state; a corrupt file also returns its parse error.
//
// Params:
//   - ctx: unused; present to satisfy aggregator.Store.
//
// Returns:
//   - map[string]history.HourlyBucket: the loaded bucket map, or empty on a missing/corrupt file.
//   - error: nil on success or a missing file, a read/parse error otherwise.
func (s *Store) LoadHourly(ctx context.Context) (map[string]history.HourlyBucket, error) {
	out := make(map[string]history.HourlyBucket)
	if err := jsonfile.Load(s.hourlyPath, &out); err != nil {
		return map[string]history.HourlyBucket{}, err
	}
	return out, nil
}

// SaveHourly atomically persists the hourly bucket map.
//
// Params:
//   - ctx: unused; present to satisfy aggregator.Store.
//   - buckets: the hourly bucket map to persist.
//
// Returns:
//   - error: nil on success, a write error otherwise.
func (s *Store) SaveHourly(ctx context.Context, buckets map[string]history.HourlyBucket) error {
	return jsonfile.Save(s.hourlyPath, buckets)
}

// LoadDaily reads the persisted daily bucket map. Missing/corrupt files
// yield empty state; a corrupt file also returns its parse error.
//
// Params:
//   - ctx: unused; present to satisfy aggregator.Store.
//
// Returns:
//   - map[string]history.DailyBucket: the loaded bucket map, or empty on a missing/corrupt file.
//   - error: nil on success or a missing file, a read/parse error otherwise.
func (s *Store) LoadDaily(ctx context.Context) (map[string]history.DailyBucket, error) {
	out := make(map[string]history.DailyBucket)
	if err := jsonfile.Load(s.dailyPath, &out); err != nil {
		return map[string]history.DailyBucket{}, err
	}
	return out, nil
}

// SaveDaily atomically persists the daily bucket map.
//
// Params:
//   - ctx: unused; present to satisfy aggregator.Store.
//   - buckets: the daily bucket map to persist.
//
// Returns:
//   - error: nil on success, a write error otherwise.
func (s *Store) SaveDaily(ctx context.Context, buckets map[string]history.DailyBucket) error {
	return jsonfile.Save(s.dailyPath, buckets)
}
