package httpapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
)

// writeDeadline bounds a single WebSocket send: the broadcaster never
// blocks a producer for more than one failed send per peer.
const writeDeadline = 5 * time.Second

// wsPeer adapts a golang.org/x/net/websocket connection to
// broadcast.Peer. Sends are serialized under mu since the broadcaster
// may call Send concurrently with this handler's own greeting write.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send implements broadcast.Peer, JSON-encoding e to the peer's
// connection under a write deadline.
//
// Params:
//   - e: the event to send.
//
// Returns:
//   - error: nil on success, a write-deadline/encode error otherwise.
func (p *wsPeer) Send(e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return websocket.JSON.Send(p.conn, e)
}

// inboundMessage is the small peer-to-server protocol: a bare ping,
// plus any per-feature subscribe message this daemon is free to ignore
// (the broadcaster fans every event out to every peer).
type inboundMessage struct {
	Type string `json:"type"`
}

// handleWS upgrades the connection, registers the peer, sends the
// one-shot connected greeting, then services inbound pings until the
// peer disconnects.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		peer := &wsPeer{conn: conn}
		s.Broadcast.Register(peer)
		defer s.Broadcast.Unregister(peer)

		now := s.Clock.Now()
		_ = peer.Send(event.New(event.TypeConnected, s.connectionSnapshot(), now))
		_ = peer.Send(event.New(event.TypeConnectionEstablished, s.connectionSnapshot(), now))

		for {
			var msg inboundMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				_ = peer.Send(event.New(event.TypePong, nil, s.Clock.Now()))
			}
		}
	}).ServeHTTP(w, r)
}

// connectionSnapshot is the summary-counters payload carried on the
// one-shot connected/connection_established greeting.
//
// Returns:
//   - map[string]any: the counters/client/peer/idle-tier snapshot.
func (s *server) connectionSnapshot() map[string]any {
	snap := map[string]any{
		"counters":     s.Ingest.Counters(),
		"client_count": len(s.Ingest.Clients()),
		"peer_count":   s.Broadcast.PeerCount(),
	}
	if s.Idle != nil {
		snap["idle_tier"] = s.Idle.CurrentTier().String()
	}
	return snap
}
