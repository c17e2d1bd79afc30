// Package profilestore adapts jsonfile to the profiles.Store contract,
// persisting only custom power profiles to data/power_profiles.json.
// Builtins are never written: they are baked into code.
package profilestore

import (
	"context"
	"path/filepath"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/jsonfile"
)

// FileName is the persisted artifact's name within the daemon's data
// directory.
const FileName = "power_profiles.json"

// entryDTO is the on-disk shape for one custom profile:
// {name, description, thresholds:{warm,cool,cold,dormant}, enabled}.
type entryDTO struct {
	DisplayName string                 `json:"name"`
	Description string                 `json:"description"`
	Thresholds  thresholdsDTO          `json:"thresholds"`
	Enabled     bool                   `json:"enabled"`
}

type thresholdsDTO struct {
	Warm    int64 `json:"warm"`
	Cool    int64 `json:"cool"`
	Cold    int64 `json:"cold"`
	Dormant int64 `json:"dormant"`
}

// Store implements profiles.Store over a single JSON file.
type Store struct {
	path string
}

// New constructs a Store rooted at dataDir/power_profiles.json.
//
// Params:
//   - dataDir: the directory the profile file is stored under.
//
// Returns:
//   - *Store: the constructed store.
func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, FileName)}
}

// Load reads the persisted custom-profile map. A missing file yields an
// empty map, not an error.
//
// Params:
//   - ctx: unused; present to satisfy profiles.Store.
//
// Returns:
//   - map[string]profile.Profile: the loaded custom profiles, or empty on a missing file.
//   - error: nil on success or a missing file, a read/parse error otherwise.
func (s *Store) Load(ctx context.Context) (map[string]profile.Profile, error) {
	var dto map[string]entryDTO
	if err := jsonfile.Load(s.path, &dto); err != nil {
		return map[string]profile.Profile{}, err
	}
	out := make(map[string]profile.Profile, len(dto))
	for id, e := range dto {
		out[id] = profile.Profile{
			ID:          id,
			DisplayName: e.DisplayName,
			Description: e.Description,
			Enabled:     e.Enabled,
			Builtin:     false,
			Thresholds: thresholdsFromDTO(e.Thresholds),
		}
	}
	return out, nil
}

// Save atomically persists the custom-profile map.
//
// Params:
//   - ctx: unused; present to satisfy profiles.Store.
//   - custom: the custom profile map to persist.
//
// Returns:
//   - error: nil on success, a marshal/write error otherwise.
func (s *Store) Save(ctx context.Context, custom map[string]profile.Profile) error {
	dto := make(map[string]entryDTO, len(custom))
	for id, p := range custom {
		dto[id] = entryDTO{
			DisplayName: p.DisplayName,
			Description: p.Description,
			Enabled:     p.Enabled,
			Thresholds: thresholdsDTO{
				Warm:    p.Thresholds.WarmSeconds,
				Cool:    p.Thresholds.CoolSeconds,
				Cold:    p.Thresholds.ColdSeconds,
				Dormant: p.Thresholds.DormantSeconds,
			},
		}
	}
	return jsonfile.Save(s.path, dto)
}

// thresholdsFromDTO converts the on-disk threshold shape to the domain type.
//
// Params:
//   - d: the decoded threshold DTO.
//
// Returns:
//   - tier.Thresholds: the equivalent domain thresholds.
func thresholdsFromDTO(d thresholdsDTO) tier.Thresholds {
	return tier.Thresholds{
		WarmSeconds:    d.Warm,
		CoolSeconds:    d.Cool,
		ColdSeconds:    d.Cold,
		DormantSeconds: d.Dormant,
	}
}
