// Package event defines the typed broadcast envelope fanned out to
// WebSocket subscribers.
package event

import "time"

// Type identifies the kind of payload an Event carries.
type Type string

// The full set of broadcastable event types.
const (
	TypeLog                   Type = "log"
	TypeMetrics               Type = "metrics"
	TypeClientUpdate          Type = "client_update"
	TypeServiceUpdate         Type = "service_update"
	TypeServerAdded           Type = "server_added"
	TypeServerDeleted         Type = "server_deleted"
	TypeLogsCleared           Type = "logs_cleared"
	TypeCurriculumUpdated     Type = "curriculum_updated"
	TypeConnected             Type = "connected"
	TypeConnectionEstablished Type = "connection_established"
	TypePong                  Type = "pong"
)

// Event is the envelope broadcast to every connected WebSocket peer.
type Event struct {
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// New constructs an Event stamped with the given wall-clock time.
//
// Params:
//   - t: the event's type.
//   - data: the event's payload.
//   - at: the timestamp the event is stamped with.
//
// Returns:
//   - Event: the constructed envelope.
func New(t Type, data any, at time.Time) Event {
	return Event{Type: t, Data: data, Timestamp: at}
}
