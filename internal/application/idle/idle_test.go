package idle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/idle"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// fakeClock is a manually-advanced clock for deterministic idle tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newBalancedMachine(t *testing.T) (*idle.Machine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := idle.New(profile.Builtins()["balanced"], idle.WithClock(clk))
	return m, clk
}

// Balanced profile, no activity for 31s, should reach Warm via a timeout
// trigger.
func TestWarmAfter31SecondsIdle(t *testing.T) {
	m, clk := newBalancedMachine(t)
	clk.advance(31 * time.Second)

	require.NoError(t, advanceTick(m, clk))

	assert.Equal(t, tier.Warm, m.CurrentTier())
	hist := m.History()
	require.Len(t, hist, 1)
	assert.Equal(t, tier.Active, hist[0].From)
	assert.Equal(t, tier.Warm, hist[0].To)
	assert.Equal(t, tier.TriggerTimeout, hist[0].Trigger)
}

// From Cold, RecordActivity(request) should jump to Active immediately,
// triggering exactly one TTS pre-warm and no LLM load call.
func TestActivityWakesFromCold(t *testing.T) {
	var ttsLoads int32
	var llmUnloads int32

	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := idle.New(profile.Builtins()["balanced"],
		idle.WithClock(clk),
		idle.WithTTSCallbacks(
			idle.UnloaderFunc(func(ctx context.Context) error { return nil }),
			idle.LoaderFunc(func(ctx context.Context) error {
				atomic.AddInt32(&ttsLoads, 1)
				return nil
			}),
		),
		idle.WithLLMUnload(idle.UnloaderFunc(func(ctx context.Context) error {
			atomic.AddInt32(&llmUnloads, 1)
			return nil
		})),
	)

	m.ForceTier(tier.Cold)
	require.Equal(t, tier.Cold, m.CurrentTier())
	unloadsAfterForce := atomic.LoadInt32(&llmUnloads)

	m.RecordActivity(idle.ActivityRequest)
	assert.Equal(t, tier.Active, m.CurrentTier())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ttsLoads) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, unloadsAfterForce, atomic.LoadInt32(&llmUnloads), "leaving Cold must not re-trigger an LLM unload")
}

// Custom profile with 5/10/15/20s thresholds.
func TestCustomProfileThresholds(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	custom := profile.Profile{
		ID: "lab", DisplayName: "lab", Enabled: true,
		Thresholds: mustThresholds(t, 5, 10, 15, 20),
	}
	m := idle.New(custom, idle.WithClock(clk))

	clk.advance(16 * time.Second)
	require.NoError(t, advanceTick(m, clk))
	assert.Equal(t, tier.Cold, m.CurrentTier())

	clk.advance(5 * time.Second) // total 21s
	require.NoError(t, advanceTick(m, clk))
	assert.Equal(t, tier.Dormant, m.CurrentTier())

	m.RecordActivity(idle.ActivityRequest)
	assert.Equal(t, tier.Active, m.CurrentTier())
}

// Deeper idle durations must never resolve to a shallower tier.
func TestProperty_TierThresholdMonotonicity(t *testing.T) {
	th := profile.Builtins()["balanced"].Thresholds
	prev := tier.Active
	for _, s := range []int64{0, 5, 29, 30, 120, 299, 300, 1000, 1799, 1800, 7199, 7200, 99999} {
		got := th.TierFor(time.Duration(s) * time.Second)
		assert.GreaterOrEqual(t, int(got), int(prev))
		prev = got
	}
}

// An active keep-awake override must dominate over timer transitions.
func TestProperty_KeepAwakeDominance(t *testing.T) {
	m, clk := newBalancedMachine(t)
	m.KeepAwake(time.Hour)

	clk.advance(30 * time.Minute) // would otherwise reach Cold
	require.NoError(t, advanceTick(m, clk))
	assert.Equal(t, tier.Active, m.CurrentTier(), "keep-awake must suppress timer transitions")

	clk.advance(2 * time.Hour) // keep-awake expired, timer resumes
	require.NoError(t, advanceTick(m, clk))
	assert.Equal(t, tier.Dormant, m.CurrentTier(), "an expired keep-awake no longer suppresses the timer")
}

// mustThresholds builds a validated Thresholds value or fails the test.
func mustThresholds(t *testing.T, warm, cool, cold, dormant int64) tier.Thresholds {
	t.Helper()
	th := tier.Thresholds{WarmSeconds: warm, CoolSeconds: cool, ColdSeconds: cold, DormantSeconds: dormant}
	require.NoError(t, th.Validate())
	return th
}

// advanceTick drives one synchronous tick evaluation, the same check the
// 10s background ticker performs, without waiting on a real timer.
func advanceTick(m *idle.Machine, clk *fakeClock) error {
	m.Tick(clk.now)
	return nil
}
