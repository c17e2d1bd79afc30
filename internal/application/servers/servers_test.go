package servers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/servers"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/upstream"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeProber struct {
	mu      sync.Mutex
	healthy map[string]bool
	errs    map[string]error
}

func newFakeProber() *fakeProber {
	return &fakeProber{healthy: map[string]bool{}, errs: map[string]error{}}
}

func (p *fakeProber) Probe(ctx context.Context, url string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy[url], p.errs[url]
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capturingPublisher) Publish(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturingPublisher) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func TestAdd_RejectsDuplicateID(t *testing.T) {
	reg := servers.New(newFakeProber())
	_, err := reg.Add(upstream.Server{ID: "llm", Name: "LLM", URL: "http://127.0.0.1:11434"})
	require.NoError(t, err)

	_, err = reg.Add(upstream.Server{ID: "llm", Name: "dup", URL: "http://x"})
	assert.ErrorIs(t, err, upstream.ErrAlreadyExists)
}

func TestAdd_EmitsServerAdded(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	pub := &capturingPublisher{}
	reg := servers.New(newFakeProber(), servers.WithClock(clk), servers.WithPublisher(pub))

	_, err := reg.Add(upstream.Server{ID: "llm", Name: "LLM", URL: "http://127.0.0.1:11434"})
	require.NoError(t, err)

	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeServerAdded, events[0].Type)
}

func TestRemove_UnknownIDFails(t *testing.T) {
	reg := servers.New(newFakeProber())
	err := reg.Remove("nope")
	assert.ErrorIs(t, err, upstream.ErrNotFound)
}

func TestRemove_EmitsServerDeletedAndDropsFromList(t *testing.T) {
	pub := &capturingPublisher{}
	reg := servers.New(newFakeProber(), servers.WithPublisher(pub))
	_, err := reg.Add(upstream.Server{ID: "llm", Name: "LLM", URL: "http://x"})
	require.NoError(t, err)

	require.NoError(t, reg.Remove("llm"))
	assert.Empty(t, reg.List())

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeServerDeleted, events[1].Type)
}

func TestList_PreservesRegistrationOrder(t *testing.T) {
	reg := servers.New(newFakeProber())
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		_, err := reg.Add(upstream.Server{ID: id, Name: id, URL: "http://" + id})
		require.NoError(t, err)
	}

	got := reg.List()
	require.Len(t, got, 3)
	for i, id := range ids {
		assert.Equal(t, id, got[i].ID)
	}
}

func TestProbeAll_ReturnsStatusesInRegistrationOrderRegardlessOfCompletion(t *testing.T) {
	prober := newFakeProber()
	reg := servers.New(prober)

	_, err := reg.Add(upstream.Server{ID: "up", Name: "up", URL: "http://up"})
	require.NoError(t, err)
	_, err = reg.Add(upstream.Server{ID: "down", Name: "down", URL: "http://down"})
	require.NoError(t, err)

	prober.mu.Lock()
	prober.healthy["http://up"] = true
	prober.healthy["http://down"] = false
	prober.errs["http://down"] = errors.New("connection refused")
	prober.mu.Unlock()

	statuses := reg.ProbeAll(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "up", statuses[0].Server.ID)
	assert.True(t, statuses[0].Healthy)
	assert.Empty(t, statuses[0].Error)

	assert.Equal(t, "down", statuses[1].Server.ID)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, "connection refused", statuses[1].Error)
}
