//go:build !darwin

package bootstrap

import (
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/probe/host/scratch"
)

// newHostProbe selects the neutral-value fallback probe off macOS.
//
// Returns:
//   - monitor.HostProbe: the scratch fallback probe.
func newHostProbe() monitor.HostProbe {
	return scratch.New()
}
