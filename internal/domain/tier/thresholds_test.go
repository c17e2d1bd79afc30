package tier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

func balanced() tier.Thresholds {
	return tier.Thresholds{WarmSeconds: 30, CoolSeconds: 300, ColdSeconds: 1800, DormantSeconds: 7200}
}

// For any idle < idle', TierFor(idle) <= TierFor(idle').
func TestTierFor_Monotonic(t *testing.T) {
	th := balanced()
	samples := []int64{0, 1, 29, 30, 31, 299, 300, 301, 1799, 1800, 1801, 7199, 7200, 7201, 100000}

	for i := 1; i < len(samples); i++ {
		a := th.TierFor(time.Duration(samples[i-1]) * time.Second)
		b := th.TierFor(time.Duration(samples[i]) * time.Second)
		assert.LessOrEqualf(t, a, b, "TierFor(%d)=%v must be <= TierFor(%d)=%v", samples[i-1], a, samples[i], b)
	}
}

func TestTierFor_BoundaryValues(t *testing.T) {
	th := balanced()
	assert.Equal(t, tier.Active, th.TierFor(29*time.Second))
	assert.Equal(t, tier.Warm, th.TierFor(30*time.Second))
	assert.Equal(t, tier.Warm, th.TierFor(299*time.Second))
	assert.Equal(t, tier.Cool, th.TierFor(300*time.Second))
	assert.Equal(t, tier.Cool, th.TierFor(1799*time.Second))
	assert.Equal(t, tier.Cold, th.TierFor(1800*time.Second))
	assert.Equal(t, tier.Cold, th.TierFor(7199*time.Second))
	assert.Equal(t, tier.Dormant, th.TierFor(7200*time.Second))
}

func TestValidate_RejectsNonMonotonic(t *testing.T) {
	th := tier.Thresholds{WarmSeconds: 10, CoolSeconds: 10, ColdSeconds: 20, DormantSeconds: 30}
	assert.ErrorIs(t, th.Validate(), tier.ErrNotMonotonic)

	th2 := tier.Thresholds{WarmSeconds: 30, CoolSeconds: 20, ColdSeconds: 40, DormantSeconds: 50}
	assert.ErrorIs(t, th2.Validate(), tier.ErrNotMonotonic)
}

func TestValidate_AcceptsStrictlyIncreasing(t *testing.T) {
	assert.NoError(t, balanced().Validate())
}

func TestDisabled_PerformanceProfileNeverIdles(t *testing.T) {
	th := tier.Thresholds{WarmSeconds: 1 << 30, CoolSeconds: 1<<30 + 1, ColdSeconds: 1<<30 + 2, DormantSeconds: 1<<30 + 3}
	assert.True(t, th.Disabled())
	assert.Equal(t, tier.Active, th.TierFor(365*24*time.Hour))
}

func TestParseTier_RoundTrip(t *testing.T) {
	for _, tr := range []tier.Tier{tier.Active, tier.Warm, tier.Cool, tier.Cold, tier.Dormant} {
		parsed, ok := tier.ParseTier(tr.String())
		assert.True(t, ok)
		assert.Equal(t, tr, parsed)
	}
	_, ok := tier.ParseTier("bogus")
	assert.False(t, ok)
}
