//go:build !darwin

// Package scratch implements monitor.HostProbe as a neutral no-op for
// platforms without the macOS-specific sysctl/pmset/ioreg tooling.
package scratch

import (
	"context"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
)

// Probe implements monitor.HostProbe with every measurement left at its
// neutral zero value: a missing measurement is never treated as an
// error.
type Probe struct{}

// New constructs a no-op Probe.
//
// Returns:
//   - *Probe: the constructed probe.
func New() *Probe { return &Probe{} }

// Sample returns a PowerSample with only the timestamp and thermal tier
// populated.
//
// Returns:
//   - resource.PowerSample: a sample with only timestamp and thermal tier set.
func (p *Probe) Sample(_ context.Context) resource.PowerSample {
	return resource.PowerSample{
		At:          time.Now(),
		ThermalTier: resource.ThermalTierFromLevel(0),
	}
}
