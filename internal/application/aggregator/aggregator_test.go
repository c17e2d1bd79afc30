package aggregator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/aggregator"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/history"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// memStore is an in-memory Store stub for tests.
type memStore struct {
	hourly map[string]history.HourlyBucket
	daily  map[string]history.DailyBucket
}

func newMemStore() *memStore {
	return &memStore{hourly: map[string]history.HourlyBucket{}, daily: map[string]history.DailyBucket{}}
}

func (s *memStore) LoadHourly(context.Context) (map[string]history.HourlyBucket, error) {
	return map[string]history.HourlyBucket{}, nil
}
func (s *memStore) SaveHourly(_ context.Context, b map[string]history.HourlyBucket) error {
	s.hourly = b
	return nil
}
func (s *memStore) LoadDaily(context.Context) (map[string]history.DailyBucket, error) {
	return map[string]history.DailyBucket{}, nil
}
func (s *memStore) SaveDaily(_ context.Context, b map[string]history.DailyBucket) error {
	s.daily = b
	return nil
}

// Hour rollover must finalize the prior hour's bucket without losing or
// double-counting samples.
func TestProperty_HourRollover(t *testing.T) {
	store := newMemStore()
	agg := aggregator.New(context.Background(), store)

	t1 := time.Date(2026, 1, 1, 14, 59, 55, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)

	agg.AddSample(resource.PowerSample{At: t1}, tier.Active, nil, 0)
	agg.AddSample(resource.PowerSample{At: t2}, tier.Active, nil, 0) // triggers rollover of the 14:00 hour

	hourly := agg.HourlySince(time.Time{})
	require.Len(t, hourly, 1, "only the finalized 14:00 hour should appear before shutdown finalizes the rest")
	assert.Equal(t, 1, hourly[0].SampleCount)
	assert.Equal(t, "2026-01-01T14", hourly[0].HourKey)

	agg.Shutdown(context.Background())
	hourly = agg.HourlySince(time.Time{})
	require.Len(t, hourly, 2)
	assert.Equal(t, "2026-01-01T14", hourly[0].HourKey)
	assert.Equal(t, "2026-01-01T15", hourly[1].HourKey)

	total := 0
	for _, h := range hourly {
		total += h.SampleCount
	}
	assert.Equal(t, 2, total)

	daily := agg.DailySince(time.Time{})
	require.Len(t, daily, 1)
	assert.Equal(t, 2, daily[0].SampleCount)
}

// Daily buckets must be a deterministic, idempotent function of the
// hourly buckets they're derived from.
func TestProperty_DailyDeterministic(t *testing.T) {
	store := newMemStore()
	agg := aggregator.New(context.Background(), store)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		agg.AddSample(resource.PowerSample{
			At: base.Add(time.Duration(i) * time.Hour), CPUUsagePct: float64(i * 10), ThermalLevel: i,
		}, tier.Active, nil, i)
	}
	agg.Shutdown(context.Background())

	first := agg.DailySince(time.Time{})
	second := agg.DailySince(time.Time{})
	require.Len(t, first, 1)
	assert.Equal(t, first, second, "recomputation must be idempotent")
	assert.Equal(t, 5, first[0].SampleCount)
	assert.True(t, first[0].ThermalEventsCount >= 1)
}

// The gap between two samples is credited to the tier carried by the
// later (inbound) sample, so a mid-hour tier change attributes the
// just-elapsed seconds to the tier the daemon transitioned into.
func TestDwellCreditsInboundSampleTier(t *testing.T) {
	store := newMemStore()
	agg := aggregator.New(context.Background(), store)

	t0 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	agg.AddSample(resource.PowerSample{At: t0}, tier.Active, nil, 0)
	agg.AddSample(resource.PowerSample{At: t0.Add(5 * time.Second)}, tier.Warm, nil, 0)
	agg.AddSample(resource.PowerSample{At: t0.Add(15 * time.Second)}, tier.Warm, nil, 0)
	agg.Shutdown(context.Background())

	hourly := agg.HourlySince(time.Time{})
	require.Len(t, hourly, 1)
	dwell := hourly[0].TierDwellSeconds
	assert.Zero(t, dwell[tier.Active])
	assert.Equal(t, 15.0, dwell[tier.Warm])
}

func TestSummary_TodayYesterdayWeek(t *testing.T) {
	store := newMemStore()
	agg := aggregator.New(context.Background(), store)

	yesterday := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	agg.AddSample(resource.PowerSample{At: yesterday}, tier.Active, nil, 1)
	agg.AddSample(resource.PowerSample{At: today}, tier.Active, nil, 0) // rolls the 23:00 hour over
	agg.Shutdown(context.Background())

	sum := agg.Summary(today)
	require.NotNil(t, sum.Today)
	assert.Equal(t, "2026-03-02", sum.Today.DateKey)
	require.NotNil(t, sum.Yesterday)
	assert.Equal(t, "2026-03-01", sum.Yesterday.DateKey)
	assert.Equal(t, 2, sum.WeekSampleCount)
	assert.Equal(t, 1, sum.WeekActiveHours)
}
