// Package aggregator implements the metrics history aggregator:
// streaming roll-up of resource-monitor samples into hourly and daily
// buckets, with durable persistence.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/history"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// flushInterval is the background persistence cadence.
const flushInterval = 5 * time.Minute

const hourKeyLayout = "2006-01-02T15"
const dateKeyLayout = "2006-01-02"

// Store persists the hourly and daily bucket maps. Implementations must
// write atomically (temp file + rename); corrupt or missing files are
// expected to yield an empty map rather than an error.
type Store interface {
	LoadHourly(ctx context.Context) (map[string]history.HourlyBucket, error)
	SaveHourly(ctx context.Context, buckets map[string]history.HourlyBucket) error
	LoadDaily(ctx context.Context) (map[string]history.DailyBucket, error)
	SaveDaily(ctx context.Context, buckets map[string]history.DailyBucket) error
}

// ErrorLogger receives non-fatal persistence errors.
type ErrorLogger func(context string, err error)

// Aggregator owns the current in-progress hour and the finalized
// hourly/daily bucket maps.
type Aggregator struct {
	mu sync.Mutex

	clock shared.Nower
	store Store
	errLog ErrorLogger

	currentHourKey string
	current        *hourAccumulator

	hourly map[string]history.HourlyBucket
	daily  map[string]history.DailyBucket

	dirty bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Aggregator at construction time.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(a *Aggregator) { a.clock = c } }

// WithErrorLogger wires a sink for persistence errors.
func WithErrorLogger(l ErrorLogger) Option { return func(a *Aggregator) { a.errLog = l } }

// New constructs an Aggregator and loads any previously persisted
// buckets from store. A load failure (missing or corrupt file) yields
// empty state rather than an error.
//
// Params:
//   - ctx: governs the initial bucket load.
//   - store: the persistence backend.
//   - opts: construction-time options.
//
// Returns:
//   - *Aggregator: the constructed aggregator, with any persisted buckets loaded.
func New(ctx context.Context, store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		clock:  shared.DefaultClock,
		store:  store,
		hourly: make(map[string]history.HourlyBucket),
		daily:  make(map[string]history.DailyBucket),
	}
	for _, opt := range opts {
		opt(a)
	}
	if hourly, err := store.LoadHourly(ctx); err == nil {
		a.hourly = hourly
	}
	if daily, err := store.LoadDaily(ctx); err == nil {
		a.daily = daily
	}
	return a
}

// AddSample folds one sample into the current hour, finalizing and
// rotating the accumulator if the sample's hour differs from the
// in-progress one.
//
// Params:
//   - s: the power sample to fold in.
//   - currentTier: the idle tier active at the sample's timestamp.
//   - serviceCPU: per-service CPU percentage for this sample.
//   - requestActivity: the request activity count for this sample.
func (a *Aggregator) AddSample(s resource.PowerSample, currentTier tier.Tier, serviceCPU map[string]float64, requestActivity int) {
	hourKey := s.At.UTC().Truncate(time.Hour).Format(hourKeyLayout)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		a.currentHourKey = hourKey
		a.current = newHourAccumulator(hourKey)
	} else if hourKey != a.currentHourKey {
		a.finalizeLocked()
		a.currentHourKey = hourKey
		a.current = newHourAccumulator(hourKey)
	}
	a.current.addSample(s, currentTier, serviceCPU, requestActivity)
}

// finalizeLocked finalizes the in-progress accumulator into an immutable
// HourlyBucket, then recomputes the DailyBucket for the affected date.
// Callers must hold mu.
func (a *Aggregator) finalizeLocked() {
	if a.current == nil || a.current.sampleCount == 0 {
		return
	}
	bucket := a.current.finalize()
	a.hourly[bucket.HourKey] = bucket
	a.dirty = true

	datePrefix := bucket.HourKey[:len(dateKeyLayout)]
	a.daily[datePrefix] = recomputeDaily(datePrefix, a.hourly)
}

// recomputeDaily derives a DailyBucket deterministically from every
// HourlyBucket sharing datePrefix: recomputation must be idempotent
// regardless of call order.
//
// Params:
//   - datePrefix: the date key hourly buckets are filtered by.
//   - hourly: the full set of finalized hourly buckets.
//
// Returns:
//   - history.DailyBucket: the recomputed daily bucket for datePrefix.
func recomputeDaily(datePrefix string, hourly map[string]history.HourlyBucket) history.DailyBucket {
	var keys []string
	for k := range hourly {
		if len(k) >= len(datePrefix) && k[:len(datePrefix)] == datePrefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	d := history.DailyBucket{
		DateKey:        datePrefix,
		TierDwellHours: make(map[tier.Tier]float64),
	}
	var sumCPUTemp, sumCPUUsage, sumPackagePower float64
	for _, k := range keys {
		h := hourly[k]
		d.SampleCount += h.SampleCount
		sumCPUTemp += h.AvgCPUTempC * float64(h.SampleCount)
		sumCPUUsage += h.AvgCPUUsagePct * float64(h.SampleCount)
		sumPackagePower += h.AvgPackagePowerW * float64(h.SampleCount)
		if h.MaxCPUTempC > d.MaxCPUTempC {
			d.MaxCPUTempC = h.MaxCPUTempC
		}
		if h.MaxCPUUsagePct > d.MaxCPUUsagePct {
			d.MaxCPUUsagePct = h.MaxCPUUsagePct
		}
		if h.MaxPackagePowerW > d.MaxPackagePowerW {
			d.MaxPackagePowerW = h.MaxPackagePowerW
		}
		if h.MaxThermalLevel > 1 {
			d.ThermalEventsCount++
		}
		if h.RequestActivity > 0 {
			d.ActiveHours++
		}
		for t, secs := range h.TierDwellSeconds {
			d.TierDwellHours[t] += secs / 3600.0
		}
	}
	if d.SampleCount > 0 {
		n := float64(d.SampleCount)
		d.AvgCPUTempC = round2(sumCPUTemp / n)
		d.AvgCPUUsagePct = round2(sumCPUUsage / n)
		d.AvgPackagePowerW = round2(sumPackagePower / n)
	}
	return d
}

// HourlySince returns every finalized hourly bucket at or after cutoff,
// ordered by hour key ascending.
//
// Params:
//   - cutoff: the earliest hour key to include.
//
// Returns:
//   - []history.HourlyBucket: matching buckets, ascending by hour key.
func (a *Aggregator) HourlySince(cutoff time.Time) []history.HourlyBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoffKey := cutoff.UTC().Format(hourKeyLayout)
	var keys []string
	for k := range a.hourly {
		if k >= cutoffKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]history.HourlyBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.hourly[k])
	}
	return out
}

// DailySince returns every daily bucket at or after cutoff, ordered by
// date key ascending.
//
// Params:
//   - cutoff: the earliest date key to include.
//
// Returns:
//   - []history.DailyBucket: matching buckets, ascending by date key.
func (a *Aggregator) DailySince(cutoff time.Time) []history.DailyBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoffKey := cutoff.UTC().Format(dateKeyLayout)
	var keys []string
	for k := range a.daily {
		if k >= cutoffKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]history.DailyBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.daily[k])
	}
	return out
}

// SummaryView is the today/yesterday/this-week roll-up exposed by the
// history query endpoints.
type SummaryView struct {
	Today     *history.DailyBucket `json:"today,omitempty"`
	Yesterday *history.DailyBucket `json:"yesterday,omitempty"`

	WeekSampleCount   int `json:"week_sample_count"`
	WeekThermalEvents int `json:"week_thermal_events"`
	WeekActiveHours   int `json:"week_active_hours"`
}

// Summary derives the today/yesterday/this-week view from the finalized
// daily buckets. The in-progress hour is not included until it
// finalizes, matching the rest of the query surface.
//
// Params:
//   - now: the instant "today" is evaluated against.
//
// Returns:
//   - SummaryView: the derived roll-up.
func (a *Aggregator) Summary(now time.Time) SummaryView {
	a.mu.Lock()
	defer a.mu.Unlock()

	todayKey := now.UTC().Format(dateKeyLayout)
	yesterdayKey := now.UTC().AddDate(0, 0, -1).Format(dateKeyLayout)
	weekCutoff := now.UTC().AddDate(0, 0, -7).Format(dateKeyLayout)

	var out SummaryView
	if d, ok := a.daily[todayKey]; ok {
		out.Today = &d
	}
	if d, ok := a.daily[yesterdayKey]; ok {
		out.Yesterday = &d
	}
	for k, d := range a.daily {
		if k >= weekCutoff {
			out.WeekSampleCount += d.SampleCount
			out.WeekThermalEvents += d.ThermalEventsCount
			out.WeekActiveHours += d.ActiveHours
		}
	}
	return out
}

// flush persists both maps if dirty since the last flush.
//
// Params:
//   - ctx: governs the persistence calls.
func (a *Aggregator) flush(ctx context.Context) {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	hourlyCopy := make(map[string]history.HourlyBucket, len(a.hourly))
	for k, v := range a.hourly {
		hourlyCopy[k] = v
	}
	dailyCopy := make(map[string]history.DailyBucket, len(a.daily))
	for k, v := range a.daily {
		dailyCopy[k] = v
	}
	a.dirty = false
	a.mu.Unlock()

	if err := a.store.SaveHourly(ctx, hourlyCopy); err != nil {
		a.logErr("aggregator.flush.hourly", err)
	}
	if err := a.store.SaveDaily(ctx, dailyCopy); err != nil {
		a.logErr("aggregator.flush.daily", err)
	}
}

// logErr forwards a non-fatal persistence error to the wired error logger, if any.
//
// Params:
//   - context: a short label identifying the failing operation.
//   - err: the error to report.
func (a *Aggregator) logErr(context string, err error) {
	if a.errLog != nil {
		a.errLog(context, err)
	}
}

// Run starts the 5-minute background flush loop.
//
// Params:
//   - ctx: cancelling ctx stops the loop.
func (a *Aggregator) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				a.flush(runCtx)
			}
		}
	}()
}

// Shutdown finalizes the current hour and performs a final flush. Call
// this once, during graceful daemon shutdown.
//
// Params:
//   - ctx: governs the final flush.
func (a *Aggregator) Shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	a.finalizeLocked()
	a.mu.Unlock()

	a.flush(ctx)
}
