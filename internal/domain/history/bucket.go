// Package history defines the hourly and daily aggregate buckets the
// metrics history aggregator rolls samples into.
package history

import "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"

// HourlyBucket is an immutable, finalized aggregate over one UTC hour of
// power samples. It is immutable once finalized: no field is touched
// again after finalize() produces it.
type HourlyBucket struct {
	HourKey          string             `json:"hour_key"`
	SampleCount      int                `json:"sample_count"`
	AvgCPUTempC      float64            `json:"avg_cpu_temp_c"`
	MaxCPUTempC      float64            `json:"max_cpu_temp_c"`
	AvgCPUUsagePct   float64            `json:"avg_cpu_usage_pct"`
	MaxCPUUsagePct   float64            `json:"max_cpu_usage_pct"`
	AvgBatteryPowerW float64            `json:"avg_battery_power_w"`
	MaxBatteryPowerW float64            `json:"max_battery_power_w"`
	AvgPackagePowerW float64            `json:"avg_package_power_w"`
	MaxPackagePowerW float64            `json:"max_package_power_w"`
	MaxThermalLevel  int                `json:"max_thermal_level"`
	RequestActivity  int                `json:"request_activity"`
	ServiceCPUAvg    map[string]float64 `json:"service_cpu_avg,omitempty"`
	ServiceCPUMax    map[string]float64 `json:"service_cpu_max,omitempty"`
	TierDwellSeconds map[tier.Tier]float64 `json:"tier_dwell_seconds,omitempty"`
}

// DailyBucket is derived deterministically from the set of HourlyBuckets
// sharing its date prefix. Recomputing it from the same hourly set must
// be idempotent and byte-identical modulo field ordering.
type DailyBucket struct {
	DateKey            string             `json:"date_key"`
	SampleCount        int                `json:"sample_count"`
	AvgCPUTempC        float64            `json:"avg_cpu_temp_c"`
	MaxCPUTempC        float64            `json:"max_cpu_temp_c"`
	AvgCPUUsagePct     float64            `json:"avg_cpu_usage_pct"`
	MaxCPUUsagePct     float64            `json:"max_cpu_usage_pct"`
	AvgPackagePowerW   float64            `json:"avg_package_power_w"`
	MaxPackagePowerW   float64            `json:"max_package_power_w"`
	ThermalEventsCount int                `json:"thermal_events_count"`
	ActiveHours        int                `json:"active_hours"`
	TierDwellHours     map[tier.Tier]float64 `json:"tier_dwell_hours,omitempty"`
}
