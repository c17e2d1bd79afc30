// Package broadcast manages the set of
// connected WebSocket subscribers, and the fan-out of typed events from
// every other subsystem to that set without ever blocking a producer.
package broadcast

import (
	"sync"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
)

// Peer is one connected WebSocket subscriber. Implementations wrap a
// single connection; Send must not block indefinitely (the HTTP/WS
// frontend owns the actual write deadline).
type Peer interface {
	// Send writes one event to the peer, returning an error if the send
	// failed (closed connection, write timeout, …).
	Send(e event.Event) error
}

// FailureSink is notified whenever a peer's send fails, so the ingest
// counters can track broadcast_failures_total. Optional.
type FailureSink interface {
	RecordBroadcastFailure()
}

// Broadcaster owns the live peer set. All producers reach it only
// through the event.Publisher interface; no producer holds a direct
// reference to the peer set.
type Broadcaster struct {
	mu    sync.RWMutex
	peers map[Peer]struct{}

	clock   shared.Nower
	onFail  FailureSink
}

// Option configures a Broadcaster at construction time.
type Option func(*Broadcaster)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(b *Broadcaster) { b.clock = c } }

// WithFailureSink wires a counter sink for dropped sends.
func WithFailureSink(s FailureSink) Option { return func(b *Broadcaster) { b.onFail = s } }

// New constructs an empty Broadcaster.
//
// Params:
//   - opts: construction-time options.
//
// Returns:
//   - *Broadcaster: the constructed, peer-less broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		peers: make(map[Peer]struct{}),
		clock: shared.DefaultClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a peer to the live set. The caller (the WS handler) is
// responsible for sending the one-shot connected/connection_established
// greeting before or immediately after Register: the broadcaster itself
// carries no per-connection handshake state.
//
// Params:
//   - p: the peer to register.
func (b *Broadcaster) Register(p Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers[p] = struct{}{}
}

// Unregister removes a peer, idempotent if it was already removed.
//
// Params:
//   - p: the peer to remove.
func (b *Broadcaster) Unregister(p Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.peers, p)
}

// PeerCount reports the number of currently connected peers, used by
// /api/stats and the Prometheus exporter.
//
// Returns:
//   - int: the current peer count.
func (b *Broadcaster) PeerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// Publish implements event.Publisher. If there are no peers, it returns
// immediately without constructing anything. Otherwise it attempts a
// send to every peer and evicts any peer whose send failed before the
// next broadcast, so one dead subscriber never stalls the rest.
//
// Params:
//   - e: the event to fan out.
func (b *Broadcaster) Publish(e event.Event) {
	b.mu.RLock()
	if len(b.peers) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]Peer, 0, len(b.peers))
	for p := range b.peers {
		targets = append(targets, p)
	}
	b.mu.RUnlock()

	var failed []Peer
	for _, p := range targets {
		if err := p.Send(e); err != nil {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		return
	}

	b.mu.Lock()
	for _, p := range failed {
		delete(b.peers, p)
	}
	b.mu.Unlock()

	if b.onFail != nil {
		for range failed {
			b.onFail.RecordBroadcastFailure()
		}
	}
}
