// Package monitor implements the resource monitor: periodic
// sampling of host power/thermal/CPU and per-service process metrics,
// kept as a bounded rolling history.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
)

// DefaultCapacity is ~1h of history at the default 5s cadence.
const DefaultCapacity = 720

// DefaultInterval is the default sampling tick cadence.
const DefaultInterval = 5 * time.Second

// summaryWindow is the number of trailing samples averaged by Summary()
// (the final 12 samples ~= 60s at a 5s cadence).
const summaryWindow = 12

// activityWindow is the rolling window used for recent request counts.
const activityWindow = 5 * time.Minute

// HostProbe collects one host-level PowerSample. Implementations never
// return an error for an individual field: missing measurements are
// encoded as the sample's neutral zero value.
type HostProbe interface {
	Sample(ctx context.Context) resource.PowerSample
}

// ServiceProcessProbe resolves and samples one supervised service's
// process, returning ok=false if no PID could be resolved this tick.
type ServiceProcessProbe interface {
	SampleService(ctx context.Context, serviceID string) (resource.ProcessSample, bool)
}

// Monitor owns the rolling PowerSample/ProcessSample histories and the
// per-service 5-minute activity counters used by the dashboard.
type Monitor struct {
	mu sync.RWMutex

	clock    shared.Nower
	host     HostProbe
	services ServiceProcessProbe
	serviceIDs func() []string

	powerHistory   *shared.Ring[resource.PowerSample]
	processHistory map[string]*shared.Ring[resource.ProcessSample]

	activity map[string][]time.Time // serviceID -> recent activity timestamps

	publisher event.Publisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Monitor at construction time.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(m *Monitor) { m.clock = c } }

// WithPublisher wires the broadcaster for per-tick events.
func WithPublisher(p event.Publisher) Option { return func(m *Monitor) { m.publisher = p } }

// New constructs a Monitor. serviceIDs returns the current set of
// supervised service ids on each tick, so services added after startup
// are picked up without reconstructing the monitor.
//
// Params:
//   - host: the host-level power/thermal/CPU probe.
//   - services: the per-service process probe.
//   - serviceIDs: returns the current set of supervised service ids.
//   - opts: construction-time options.
//
// Returns:
//   - *Monitor: the constructed, idle monitor.
func New(host HostProbe, services ServiceProcessProbe, serviceIDs func() []string, opts ...Option) *Monitor {
	m := &Monitor{
		clock:          shared.DefaultClock,
		host:           host,
		services:       services,
		serviceIDs:     serviceIDs,
		powerHistory:   shared.NewRing[resource.PowerSample](DefaultCapacity),
		processHistory: make(map[string]*shared.Ring[resource.ProcessSample]),
		activity:       make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordServiceActivity logs a timestamped activity event for a service,
// used to compute rolling 5-minute request counts. Called from HTTP
// handlers on the hot path, so it must stay allocation-light and never
// block.
//
// Params:
//   - serviceID: the service the activity belongs to.
//   - kind: the kind of activity observed.
func (m *Monitor) RecordServiceActivity(serviceID string, kind string) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	times := append(m.activity[serviceID], now)
	cutoff := now.Add(-activityWindow)
	trimmed := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	m.activity[serviceID] = trimmed
}

// RequestCount5m returns the number of activity events recorded for a
// service within the trailing 5 minutes.
//
// Params:
//   - serviceID: the service to count activity for.
//
// Returns:
//   - int: the number of activity events within the trailing 5 minutes.
func (m *Monitor) RequestCount5m(serviceID string) int {
	now := m.clock.Now()
	cutoff := now.Add(-activityWindow)
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.activity[serviceID] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// TotalActivityCount sums RequestCount5m across every currently
// monitored service, used as the aggregator's per-sample
// request_activity figure.
//
// Returns:
//   - int: the summed activity count across every monitored service.
func (m *Monitor) TotalActivityCount() int {
	now := m.clock.Now()
	cutoff := now.Add(-activityWindow)
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, times := range m.activity {
		for _, t := range times {
			if t.After(cutoff) {
				total++
			}
		}
	}
	return total
}

// Snapshot is the current tick plus the latest per-service sample.
type Snapshot struct {
	Power    resource.PowerSample             `json:"power"`
	Services map[string]resource.ProcessSample `json:"services"`
}

// SnapshotCurrent returns the most recent sample plus per-service
// aggregate.
//
// Returns:
//   - Snapshot: the current tick plus the latest per-service sample.
func (m *Monitor) SnapshotCurrent() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Snapshot{Services: make(map[string]resource.ProcessSample, len(m.processHistory))}
	if items := m.powerHistory.ItemsNewestFirst(); len(items) > 0 {
		out.Power = items[0]
	}
	for id, ring := range m.processHistory {
		if items := ring.ItemsNewestFirst(); len(items) > 0 {
			out.Services[id] = items[0]
		}
	}
	return out
}

// Summary is a derived view: the current tick plus averages over the
// trailing ~60s window.
type Summary struct {
	Current           resource.PowerSample `json:"current"`
	AvgPackagePowerW  float64              `json:"avg_package_power_w"`
	AvgBatteryPowerW  float64              `json:"avg_battery_power_w"`
	AvgServiceCPUPct  map[string]float64   `json:"avg_service_cpu_pct"`
}

// Summary computes Current plus the trailing-window averages.
//
// Returns:
//   - Summary: the current tick plus averages over the trailing ~60s window.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	powerItems := m.powerHistory.ItemsNewestFirst()
	out := Summary{AvgServiceCPUPct: make(map[string]float64)}
	n := len(powerItems)
	if n == 0 {
		return out
	}
	out.Current = powerItems[0]
	window := powerItems
	if n > summaryWindow {
		window = powerItems[:summaryWindow]
	}
	var sumPkg, sumBatt float64
	for _, s := range window {
		sumPkg += s.PackagePowerW
		sumBatt += s.BatteryPowerW
	}
	out.AvgPackagePowerW = sumPkg / float64(len(window))
	out.AvgBatteryPowerW = sumBatt / float64(len(window))

	for id, ring := range m.processHistory {
		items := ring.ItemsNewestFirst()
		if len(items) > summaryWindow {
			items = items[:summaryWindow]
		}
		if len(items) == 0 {
			continue
		}
		var sum float64
		for _, s := range items {
			sum += s.CPUPct
		}
		out.AvgServiceCPUPct[id] = sum / float64(len(items))
	}
	return out
}

// History is the most recent limit power and process samples.
type History struct {
	Power    []resource.PowerSample              `json:"power"`
	Services map[string][]resource.ProcessSample `json:"services"`
}

// History returns the most recent limit samples of each kind, newest
// first.
//
// Params:
//   - limit: the maximum number of samples per kind, or 0 for no limit.
//
// Returns:
//   - History: the most recent limit samples, newest first.
func (m *Monitor) History(limit int) History {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := History{Services: make(map[string][]resource.ProcessSample, len(m.processHistory))}
	power := m.powerHistory.ItemsNewestFirst()
	out.Power = clampSlice(power, limit)
	for id, ring := range m.processHistory {
		out.Services[id] = clampSlice(ring.ItemsNewestFirst(), limit)
	}
	return out
}

// clampSlice returns items truncated to limit, or items unchanged if limit
// is non-positive or already satisfied.
//
// Params:
//   - items: the slice to clamp.
//   - limit: the maximum length, or 0 for no limit.
//
// Returns:
//   - []T: the clamped slice.
func clampSlice[T any](items []T, limit int) []T {
	if limit > 0 && limit < len(items) {
		return items[:limit]
	}
	return items
}

// tick runs one sampling round: host probe, then per-service probes,
// appended to their respective rolling histories. Any individual probe
// failure yields neutral values for that field and never aborts the
// tick; this function itself therefore never returns an error.
//
// The host sample's PackagePowerW is the sum of each sampled service's
// EstimatedPowerW for this tick, so it is filled in here rather than by
// the host probe, which has no view of per-service CPU.
//
// Params:
//   - ctx: governs the host and per-service probe calls.
func (m *Monitor) tick(ctx context.Context) {
	sample := m.host.Sample(ctx)

	m.mu.Lock()
	ids := append([]string(nil), m.serviceIDs()...)
	m.mu.Unlock()

	var totalServicePowerW float64
	for _, id := range ids {
		ps, ok := m.services.SampleService(ctx, id)
		if !ok {
			continue
		}
		totalServicePowerW += ps.EstimatedPowerW()

		m.mu.Lock()
		ring, exists := m.processHistory[id]
		if !exists {
			ring = shared.NewRing[resource.ProcessSample](DefaultCapacity)
			m.processHistory[id] = ring
		}
		ring.Push(ps)
		m.mu.Unlock()
	}
	sample.PackagePowerW = totalServicePowerW

	m.mu.Lock()
	m.powerHistory.Push(sample)
	m.mu.Unlock()

	if m.publisher != nil {
		m.publisher.Publish(event.New(event.TypeMetrics, sample, sample.At))
	}
}

// Run starts the skew-free 5s sampling loop: each deadline is computed
// from the previous one plus the interval rather than from "now", so
// slow ticks do not accumulate drift.
//
// Params:
//   - ctx: cancelling ctx stops the loop.
func (m *Monitor) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		next := m.clock.Now()
		for {
			next = next.Add(DefaultInterval)
			delay := time.Until(next)
			if delay < 0 {
				delay = 0
			}
			timer := time.NewTimer(delay)
			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				m.tick(runCtx)
			}
		}
	}()
}

// Stop cancels the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
