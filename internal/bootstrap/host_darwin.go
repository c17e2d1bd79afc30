//go:build darwin

package bootstrap

import (
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/probe/host/darwin"
)

// newHostProbe selects the darwin host probe on macOS builds.
//
// Returns:
//   - monitor.HostProbe: the darwin host probe.
func newHostProbe() monitor.HostProbe {
	return darwin.New()
}
