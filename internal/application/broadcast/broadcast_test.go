package broadcast_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/broadcast"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
)

type fakePeer struct {
	mu      sync.Mutex
	fail    bool
	received []event.Event
}

func (p *fakePeer) Send(e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("send failed")
	}
	p.received = append(p.received, e)
	return nil
}

func (p *fakePeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

type countingSink struct {
	mu    sync.Mutex
	count int
}

func (s *countingSink) RecordBroadcastFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
}

func TestPublishNoPeersIsCheapNoop(t *testing.T) {
	b := broadcast.New()
	assert.NotPanics(t, func() { b.Publish(event.New(event.TypeLog, nil, time.Now())) })
}

// A subscriber whose send fails is removed before the next broadcast;
// other peers still receive the event.
func TestBroadcastIsolatesFailingPeer(t *testing.T) {
	good := &fakePeer{}
	bad := &fakePeer{fail: true}
	sink := &countingSink{}

	b := broadcast.New(broadcast.WithFailureSink(sink))
	b.Register(good)
	b.Register(bad)

	b.Publish(event.New(event.TypeLog, "one", time.Now()))
	assert.Equal(t, 1, good.count())
	assert.Equal(t, 1, sink.count)
	assert.Equal(t, 1, b.PeerCount())

	b.Publish(event.New(event.TypeLog, "two", time.Now()))
	assert.Equal(t, 2, good.count())
	assert.Equal(t, 1, sink.count, "bad peer must not be re-sent to after eviction")
}

func TestUnregisterRemovesPeer(t *testing.T) {
	p := &fakePeer{}
	b := broadcast.New()
	b.Register(p)
	require.Equal(t, 1, b.PeerCount())

	b.Unregister(p)
	assert.Equal(t, 0, b.PeerCount())

	b.Publish(event.New(event.TypeLog, "x", time.Now()))
	assert.Equal(t, 0, p.count())
}
