//go:build darwin

// Package darwin implements monitor.HostProbe on macOS by shelling out
// to sysctl, ps, pmset, and ioreg rather than going through cgo/Mach
// calls.
package darwin

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
)

// Probe implements monitor.HostProbe over macOS command-line tools.
type Probe struct {
	runner commandRunner
}

// New constructs a Probe that shells out to the real OS commands.
//
// Returns:
//   - *Probe: the constructed probe.
func New() *Probe {
	return &Probe{runner: execRunner{}}
}

// commandRunner abstracts os/exec for testability.
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// Output runs name with args and returns its combined stdout.
//
// Params:
//   - ctx: governs the subprocess lifetime.
//   - name: the command to run.
//   - args: the command's arguments.
//
// Returns:
//   - []byte: the command's stdout.
//   - error: nil on success, the exec error otherwise.
func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Sample implements the per-tick sampling algorithm. No subquery failure
// aborts the tick: each step leaves its field at the PowerSample zero
// value on error.
//
// Params:
//   - ctx: governs every underlying subprocess call.
//
// Returns:
//   - resource.PowerSample: the sampled host power/thermal/CPU/battery reading.
func (p *Probe) Sample(ctx context.Context) resource.PowerSample {
	s := resource.PowerSample{At: time.Now()}

	if level, ok := p.thermalLevel(ctx); ok {
		s.ThermalLevel = level
		s.ThermalTier = resource.ThermalTierFromLevel(level)
	} else {
		s.ThermalTier = resource.ThermalTierFromLevel(0)
	}

	s.CPUUsagePct = p.cpuUsageSum(ctx)

	pct, charging, ok := p.batteryState(ctx)
	if ok {
		s.BatteryPct = pct
		s.BatteryCharging = charging
	}
	if watts, ok := p.batteryPowerW(ctx); ok {
		s.BatteryPowerW = watts
	}

	return s
}

// thermalLevel reads sysctl machdep.xcpm.thermal_level (0..3).
//
// Params:
//   - ctx: governs the subprocess call.
//
// Returns:
//   - int: the thermal level, valid only if the bool return is true.
//   - bool: true if the level was read successfully.
func (p *Probe) thermalLevel(ctx context.Context) (int, bool) {
	out, err := p.runner.Output(ctx, "sysctl", "-n", "machdep.xcpm.thermal_level")
	if err != nil {
		return 0, false
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, false
	}
	return level, true
}

// cpuUsageSum sums the %CPU column across every visible process.
//
// Params:
//   - ctx: governs the subprocess call.
//
// Returns:
//   - float64: the summed CPU usage percent, or 0 on a probe failure.
func (p *Probe) cpuUsageSum(ctx context.Context) float64 {
	out, err := p.runner.Output(ctx, "ps", "-axo", "%cpu=")
	if err != nil {
		return 0
	}
	var total float64
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total
}

var pmsetBatteryPct = regexp.MustCompile(`(\d+)%`)

// batteryState parses `pmset -g batt` for the integer battery percent and
// charging state.
//
// Params:
//   - ctx: governs the subprocess call.
//
// Returns:
//   - pct: the battery percent, valid only if ok is true.
//   - charging: true if the battery is currently charging, valid only if ok is true.
//   - ok: true if the battery state was read successfully.
func (p *Probe) batteryState(ctx context.Context) (pct float64, charging bool, ok bool) {
	out, err := p.runner.Output(ctx, "pmset", "-g", "batt")
	if err != nil {
		return 0, false, false
	}
	text := string(out)
	m := pmsetBatteryPct.FindStringSubmatch(text)
	if m == nil {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false, false
	}
	charging = strings.Contains(text, "charging") || strings.Contains(text, "AC Power")
	return v, charging, true
}

var (
	amperageLine = regexp.MustCompile(`"Amperage"\s*=\s*(-?\d+)`)
	voltageLine  = regexp.MustCompile(`"Voltage"\s*=\s*(-?\d+)`)
)

// batteryPowerW derives instantaneous battery power from the IO
// registry's signed amperage and voltage: the registry reports amperage
// as an unsigned 64-bit field encoding a two's-complement signed value,
// so any reading above 2^63 is negative.
//
// Params:
//   - ctx: governs the subprocess call.
//
// Returns:
//   - float64: the battery power in watts, valid only if the bool return is true.
//   - bool: true if both amperage and voltage were read successfully.
func (p *Probe) batteryPowerW(ctx context.Context) (float64, bool) {
	out, err := p.runner.Output(ctx, "ioreg", "-rn", "AppleSmartBattery")
	if err != nil {
		return 0, false
	}
	text := string(out)

	am := amperageLine.FindStringSubmatch(text)
	vm := voltageLine.FindStringSubmatch(text)
	if am == nil || vm == nil {
		return 0, false
	}

	voltage, err := strconv.ParseInt(vm[1], 10, 64)
	if err != nil {
		return 0, false
	}

	// ioreg usually prints the amperage as the raw unsigned register
	// value (a discharge shows up as a huge number above 2^63), but some
	// OS versions render it already signed.
	var amps int64
	if strings.HasPrefix(am[1], "-") {
		amps, err = strconv.ParseInt(am[1], 10, 64)
	} else {
		var raw uint64
		raw, err = strconv.ParseUint(am[1], 10, 64)
		amps = signExtend64(raw)
	}
	if err != nil {
		return 0, false
	}
	wattsMilli := float64(amps) * float64(voltage)
	watts := wattsMilli / 1_000_000 // mA * mV -> microwatts
	if watts < 0 {
		watts = -watts
	}
	return watts, true
}

// signExtend64 interprets a uint64 bit pattern as a two's-complement
// int64, sign-extending values above 2^63.
//
// Params:
//   - raw: the raw unsigned bit pattern.
//
// Returns:
//   - int64: the signed interpretation of raw.
func signExtend64(raw uint64) int64 {
	return int64(raw)
}
