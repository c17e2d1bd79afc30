package aggregator

import (
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/history"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// hourAccumulator holds the running sums for the in-progress hour. Fields
// are only divided into averages at finalize: rounding and division are
// cosmetic operations applied once, never to the running sums
// themselves.
type hourAccumulator struct {
	hourKey string

	sampleCount int

	sumCPUTemp, maxCPUTemp           float64
	sumCPUUsage, maxCPUUsage         float64
	sumBatteryPowerW, maxBatteryPowerW float64
	sumPackagePowerW, maxPackagePowerW float64
	maxThermalLevel                  int
	requestActivity                  int

	sumServiceCPU map[string]float64
	maxServiceCPU map[string]float64
	countServiceCPU map[string]int

	tierDwellSeconds map[tier.Tier]float64

	lastSampleAt   time.Time
	haveLastSample bool
}

// newHourAccumulator constructs an empty accumulator for the given hour.
//
// Params:
//   - hourKey: the accumulator's UTC hour key.
//
// Returns:
//   - *hourAccumulator: the empty accumulator.
func newHourAccumulator(hourKey string) *hourAccumulator {
	return &hourAccumulator{
		hourKey:          hourKey,
		sumServiceCPU:    make(map[string]float64),
		maxServiceCPU:    make(map[string]float64),
		countServiceCPU:  make(map[string]int),
		tierDwellSeconds: make(map[tier.Tier]float64),
	}
}

// addSample folds one PowerSample (plus the current tier at sample time)
// into the running sums, crediting the seconds elapsed since the
// previous sample as dwell time on the inbound sample's tier.
//
// Params:
//   - s: the power sample to fold in.
//   - currentTier: the idle tier active at the sample's timestamp.
//   - serviceCPU: per-service CPU percentage for this sample.
//   - requestActivity: the request activity count for this sample.
func (a *hourAccumulator) addSample(s resource.PowerSample, currentTier tier.Tier, serviceCPU map[string]float64, requestActivity int) {
	if a.haveLastSample {
		a.tierDwellSeconds[currentTier] += s.At.Sub(a.lastSampleAt).Seconds()
	}
	a.lastSampleAt = s.At
	a.haveLastSample = true

	a.sampleCount++
	a.sumCPUTemp += s.CPUTempC
	a.sumCPUUsage += s.CPUUsagePct
	a.sumBatteryPowerW += s.BatteryPowerW
	a.sumPackagePowerW += s.PackagePowerW
	a.requestActivity += requestActivity

	if s.CPUTempC > a.maxCPUTemp {
		a.maxCPUTemp = s.CPUTempC
	}
	if s.CPUUsagePct > a.maxCPUUsage {
		a.maxCPUUsage = s.CPUUsagePct
	}
	if s.BatteryPowerW > a.maxBatteryPowerW {
		a.maxBatteryPowerW = s.BatteryPowerW
	}
	if s.PackagePowerW > a.maxPackagePowerW {
		a.maxPackagePowerW = s.PackagePowerW
	}
	if s.ThermalLevel > a.maxThermalLevel {
		a.maxThermalLevel = s.ThermalLevel
	}

	for id, cpu := range serviceCPU {
		a.sumServiceCPU[id] += cpu
		a.countServiceCPU[id]++
		if cpu > a.maxServiceCPU[id] {
			a.maxServiceCPU[id] = cpu
		}
	}
}

// finalize divides sums into averages and produces the immutable bucket.
//
// Returns:
//   - history.HourlyBucket: the finalized, immutable hourly bucket.
func (a *hourAccumulator) finalize() history.HourlyBucket {
	b := history.HourlyBucket{
		HourKey:         a.hourKey,
		SampleCount:     a.sampleCount,
		MaxCPUTempC:     round2(a.maxCPUTemp),
		MaxCPUUsagePct:  round2(a.maxCPUUsage),
		MaxBatteryPowerW: round2(a.maxBatteryPowerW),
		MaxPackagePowerW: round2(a.maxPackagePowerW),
		MaxThermalLevel: a.maxThermalLevel,
		RequestActivity: a.requestActivity,
		ServiceCPUAvg:   make(map[string]float64, len(a.sumServiceCPU)),
		ServiceCPUMax:   make(map[string]float64, len(a.maxServiceCPU)),
		TierDwellSeconds: cloneTierMap(a.tierDwellSeconds),
	}
	if a.sampleCount > 0 {
		n := float64(a.sampleCount)
		b.AvgCPUTempC = round2(a.sumCPUTemp / n)
		b.AvgCPUUsagePct = round2(a.sumCPUUsage / n)
		b.AvgBatteryPowerW = round2(a.sumBatteryPowerW / n)
		b.AvgPackagePowerW = round2(a.sumPackagePowerW / n)
	}
	for id, sum := range a.sumServiceCPU {
		if count := a.countServiceCPU[id]; count > 0 {
			b.ServiceCPUAvg[id] = round2(sum / float64(count))
		}
	}
	for id, max := range a.maxServiceCPU {
		b.ServiceCPUMax[id] = round2(max)
	}
	return b
}

// round2 rounds f to two decimal places.
//
// Params:
//   - f: the value to round.
//
// Returns:
//   - float64: f rounded to two decimal places.
func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// cloneTierMap returns a shallow copy of in.
//
// Params:
//   - in: the map to clone.
//
// Returns:
//   - map[tier.Tier]float64: an independent copy of in.
func cloneTierMap(in map[tier.Tier]float64) map[tier.Tier]float64 {
	out := make(map[tier.Tier]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
