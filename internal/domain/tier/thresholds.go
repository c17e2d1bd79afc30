package tier

import (
	"errors"
	"fmt"
	"time"
)

// disabledSeconds is the sentinel "never" threshold. A threshold this
// large or larger is treated as infinite for tier-selection purposes.
const disabledSeconds = 1 << 30

// Thresholds maps the four deeper tiers to seconds-since-last-activity.
// Active has no threshold: it is the state the machine returns to on any
// activity trigger, never one it is scheduled into by elapsed time.
type Thresholds struct {
	WarmSeconds    int64 `json:"warm"`
	CoolSeconds    int64 `json:"cool"`
	ColdSeconds    int64 `json:"cold"`
	DormantSeconds int64 `json:"dormant"`
}

// ErrNotMonotonic is returned when thresholds are not strictly increasing
// by tier level.
var ErrNotMonotonic = errors.New("tier: thresholds must be strictly increasing by tier level")

// Validate enforces the strictly-increasing invariant. Disabled
// (effectively infinite) thresholds are permitted per tier and are
// treated as always-larger than any finite value before them, so a
// shallower tier may be disabled while a deeper one is not only if the
// deeper one is also disabled; any other combination still must satisfy
// strict ordering among the finite members.
//
// Returns:
//   - error: nil if the thresholds strictly increase by tier, ErrNotMonotonic otherwise.
func (t Thresholds) Validate() error {
	vals := []int64{t.WarmSeconds, t.CoolSeconds, t.ColdSeconds, t.DormantSeconds}
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return fmt.Errorf("%w: %v", ErrNotMonotonic, vals)
		}
	}
	return nil
}

// Disabled reports whether the whole profile never idles: every
// threshold is at or beyond the sentinel.
//
// Returns:
//   - bool: true if every threshold is at or beyond the disabled sentinel.
func (t Thresholds) Disabled() bool {
	return t.WarmSeconds >= disabledSeconds
}

// TierFor returns the deepest tier whose threshold is at most idle.
// Monotone by construction: for any idle < idle',
// TierFor(idle) <= TierFor(idle').
//
// Params:
//   - idle: the duration since last activity.
//
// Returns:
//   - Tier: the deepest tier whose threshold has elapsed.
func (t Thresholds) TierFor(idle time.Duration) Tier {
	s := int64(idle / time.Second)
	switch {
	case s >= t.DormantSeconds:
		return Dormant
	case s >= t.ColdSeconds:
		return Cold
	case s >= t.CoolSeconds:
		return Cool
	case s >= t.WarmSeconds:
		return Warm
	default:
		return Active
	}
}
