package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeHostProbe struct{ sample resource.PowerSample }

func (f fakeHostProbe) Sample(ctx context.Context) resource.PowerSample { return f.sample }

type fakeServiceProbe struct{ samples map[string]resource.ProcessSample }

func (f fakeServiceProbe) SampleService(ctx context.Context, id string) (resource.ProcessSample, bool) {
	s, ok := f.samples[id]
	return s, ok
}

func TestTotalActivityCountSumsAcrossServices(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := monitor.New(fakeHostProbe{}, fakeServiceProbe{}, func() []string { return nil }, monitor.WithClock(clk))

	m.RecordServiceActivity("tts", "request")
	m.RecordServiceActivity("tts", "request")
	m.RecordServiceActivity("llm", "request")

	assert.Equal(t, 3, m.TotalActivityCount())

	clk.now = clk.now.Add(6 * time.Minute)
	assert.Equal(t, 0, m.TotalActivityCount())
}

func TestSnapshotCurrentReturnsLatestSamples(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	host := fakeHostProbe{sample: resource.PowerSample{At: clk.now, CPUUsagePct: 42}}
	services := fakeServiceProbe{samples: map[string]resource.ProcessSample{
		"tts": {At: clk.now, ServiceID: "tts", CPUPct: 12.5},
	}}

	m := monitor.New(host, services, func() []string { return []string{"tts"} }, monitor.WithClock(clk))

	// Run schedules ticks relative to the fake clock's fixed timestamp, so
	// against the real wall clock the first deadline has already passed
	// and the tick fires immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.Run(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.SnapshotCurrent().Power.At.Equal(clk.now)
	}, 200*time.Millisecond, 5*time.Millisecond)

	snap := m.SnapshotCurrent()
	assert.Equal(t, 42.0, snap.Power.CPUUsagePct)
	require.Contains(t, snap.Services, "tts")
	assert.Equal(t, 12.5, snap.Services["tts"].CPUPct)
}
