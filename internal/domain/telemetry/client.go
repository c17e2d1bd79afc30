package telemetry

import "time"

// ClientStatus derives from how recently a client was last seen.
type ClientStatus string

const (
	ClientOnline  ClientStatus = "online"
	ClientIdle    ClientStatus = "idle"
	ClientOffline ClientStatus = "offline"
)

// onlineWindow and idleWindow are the thresholds used by DeriveStatus:
// online up to 60s since last_seen, idle up to 300s, offline beyond.
const (
	onlineWindow = 60 * time.Second
	idleWindow   = 300 * time.Second
)

// RemoteClient is a mobile client device known to the daemon, upserted on
// every log/metric submission or explicit heartbeat.
type RemoteClient struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name,omitempty"`
	DeviceModel string       `json:"device_model,omitempty"`
	OSVersion   string       `json:"os_version,omitempty"`
	AppVersion  string       `json:"app_version,omitempty"`
	IP          string       `json:"ip,omitempty"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
	Status      ClientStatus `json:"status"`
	TotalSessions int        `json:"total_sessions"`
	TotalLogs     int        `json:"total_logs"`
}

// DeriveStatus computes the client's status from now minus LastSeen.
//
// Params:
//   - lastSeen: the client's last-seen timestamp.
//   - now: the current time.
//
// Returns:
//   - ClientStatus: online, idle, or offline depending on elapsed time.
func DeriveStatus(lastSeen, now time.Time) ClientStatus {
	idle := now.Sub(lastSeen)
	switch {
	case idle <= onlineWindow:
		return ClientOnline
	case idle <= idleWindow:
		return ClientIdle
	default:
		return ClientOffline
	}
}

// RefreshStatus recomputes and stores Status from the given now.
//
// Params:
//   - now: the current time.
func (c *RemoteClient) RefreshStatus(now time.Time) {
	c.Status = DeriveStatus(c.LastSeen, now)
}
