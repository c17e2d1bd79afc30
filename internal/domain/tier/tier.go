// Package tier defines the energy-tier enumeration and the threshold
// table used to schedule transitions between tiers as activity ceases.
package tier

import "fmt"

// Tier is an ordered energy state. Lower values are more active; higher
// values are deeper idle states. Comparisons use the underlying int so
// ACTIVE < WARM < COOL < COLD < DORMANT holds by construction.
type Tier int

const (
	// Active is full operation: all services hot.
	Active Tier = iota
	// Warm reduces polling while keeping models resident.
	Warm
	// Cool unloads the TTS model.
	Cool
	// Cold unloads TTS and LLM runtime models.
	Cold
	// Dormant keeps only the management daemon itself running.
	Dormant
)

// String returns the lower-case tier name used in JSON payloads and logs.
//
// Returns:
//   - string: the tier's lower-case name, or "unknown".
func (t Tier) String() string {
	switch t {
	case Active:
		return "active"
	case Warm:
		return "warm"
	case Cool:
		return "cool"
	case Cold:
		return "cold"
	case Dormant:
		return "dormant"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the tier as its string name.
//
// Returns:
//   - []byte: the tier's name as a quoted JSON string.
//   - error: always nil.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// MarshalText renders the tier as its string name, used when Tier is a
// map key (e.g. per-tier dwell-time tables) since encoding/json consults
// encoding.TextMarshaler for map keys rather than json.Marshaler.
//
// Returns:
//   - []byte: the tier's name.
//   - error: always nil.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name back into its Tier value.
//
// Params:
//   - b: the tier name to parse.
//
// Returns:
//   - error: nil on success, error if b is not a known tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, ok := ParseTier(string(b))
	if !ok {
		return fmt.Errorf("tier: unknown tier %q", b)
	}
	*t = parsed
	return nil
}

// ParseTier maps a tier name back to its Tier value.
//
// Params:
//   - s: the tier name to parse.
//
// Returns:
//   - Tier: the parsed tier, or Active if ok is false.
//   - bool: true if s was a known tier name.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "active":
		return Active, true
	case "warm":
		return Warm, true
	case "cool":
		return Cool, true
	case "cold":
		return Cold, true
	case "dormant":
		return Dormant, true
	default:
		return Active, false
	}
}

// Deeper reports whether t is strictly deeper (more idle) than other.
//
// Params:
//   - other: the tier to compare against.
//
// Returns:
//   - bool: true if t is deeper than other.
func (t Tier) Deeper(other Tier) bool {
	return t > other
}
