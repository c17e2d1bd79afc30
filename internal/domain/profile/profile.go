// Package profile defines power profiles: named bundles of idle-tier
// thresholds plus an enabled flag. Builtin profiles are immutable; custom
// profiles are created, updated, duplicated, and deleted by operators and
// persist to disk.
package profile

import (
	"errors"
	"fmt"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// BalancedID is the canonical fallback profile id. Deleting the active
// custom profile reverts the active profile to this one.
const BalancedID = "balanced"

// Profile is a named threshold bundle.
type Profile struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Thresholds  tier.Thresholds `json:"thresholds"`
	Enabled     bool            `json:"enabled"`
	Builtin     bool            `json:"builtin"`
}

var (
	// ErrBuiltinImmutable is returned when a caller tries to modify or
	// delete a builtin profile.
	ErrBuiltinImmutable = errors.New("profile: builtin profiles are immutable")
	// ErrNotFound is returned when a profile id does not exist.
	ErrNotFound = errors.New("profile: not found")
	// ErrAlreadyExists is returned when creating a profile with a
	// duplicate id.
	ErrAlreadyExists = errors.New("profile: already exists")
)

// Builtins returns the canonical builtin profile set, keyed by id. The
// returned map is freshly constructed on each call so callers may mutate
// their copy freely; the values described here are the spec's canonical
// thresholds and must never themselves be edited or persisted.
//
// Returns:
//   - map[string]Profile: a fresh copy of the builtin profiles, keyed by id.
func Builtins() map[string]Profile {
	return map[string]Profile{
		"performance": {
			ID:          "performance",
			DisplayName: "Performance",
			Description: "Never idle, always ready. Maximum responsiveness, highest power draw.",
			Thresholds:  tier.Thresholds{WarmSeconds: 1 << 30, CoolSeconds: 1<<30 + 1, ColdSeconds: 1<<30 + 2, DormantSeconds: 1<<30 + 3},
			Enabled:     false,
			Builtin:     true,
		},
		"balanced": {
			ID:          "balanced",
			DisplayName: "Balanced",
			Description: "Default settings. A good balance of responsiveness and power saving.",
			Thresholds:  tier.Thresholds{WarmSeconds: 30, CoolSeconds: 300, ColdSeconds: 1800, DormantSeconds: 7200},
			Enabled:     true,
			Builtin:     true,
		},
		"power_saver": {
			ID:          "power_saver",
			DisplayName: "Power Saver",
			Description: "Aggressive power saving. Longer wake times but much lower idle power.",
			Thresholds:  tier.Thresholds{WarmSeconds: 10, CoolSeconds: 60, ColdSeconds: 300, DormantSeconds: 1800},
			Enabled:     true,
			Builtin:     true,
		},
		"development": {
			ID:          "development",
			DisplayName: "Development",
			Description: "Short idle windows suited to iterative local development.",
			Thresholds:  tier.Thresholds{WarmSeconds: 60, CoolSeconds: 180, ColdSeconds: 600, DormantSeconds: 3600},
			Enabled:     true,
			Builtin:     true,
		},
		"presentation": {
			ID:          "presentation",
			DisplayName: "Presentation",
			Description: "Long idle windows so a demo never unloads mid-pause.",
			Thresholds:  tier.Thresholds{WarmSeconds: 300, CoolSeconds: 900, ColdSeconds: 3600, DormantSeconds: 7200},
			Enabled:     true,
			Builtin:     true,
		},
	}
}

// Validate checks the profile's id, display name, and thresholds.
//
// Returns:
//   - error: nil if the profile is well-formed, a descriptive error otherwise.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile: id must not be empty")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("profile: display_name must not be empty")
	}
	return p.Thresholds.Validate()
}

// Duplicate returns a copy of p under a new id, always non-builtin
// regardless of p's own builtin flag: duplicating a builtin profile
// produces an editable custom one.
//
// Params:
//   - newID: the id assigned to the duplicate.
//   - newDisplayName: the display name assigned to the duplicate.
//
// Returns:
//   - Profile: the duplicated, non-builtin profile.
func (p Profile) Duplicate(newID, newDisplayName string) Profile {
	dup := p
	dup.ID = newID
	dup.DisplayName = newDisplayName
	dup.Builtin = false
	return dup
}
