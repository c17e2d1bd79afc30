// Package servers implements the upstream server registry: add/remove
// entries by hand, and probe every entry concurrently for the dashboard's
// "is it up" view.
package servers

import (
	"context"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/upstream"
)

// probeTimeout bounds a single upstream probe; callers of ProbeAll wait
// on the slowest of N, so each probe gets its own 5s deadline.
const probeTimeout = 5 * time.Second

// Prober checks one upstream URL's liveness.
type Prober interface {
	Probe(ctx context.Context, url string) (healthy bool, err error)
}

// Registry owns the set of registered upstream servers.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]upstream.Server
	order  []string

	clock  shared.Nower
	prober Prober
	pub    event.Publisher
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(r *Registry) { r.clock = c } }

// WithPublisher wires the broadcaster for server_added/server_deleted events.
func WithPublisher(p event.Publisher) Option { return func(r *Registry) { r.pub = p } }

// New constructs an empty Registry.
//
// Params:
//   - prober: the liveness checker used by ProbeAll.
//   - opts: construction-time options.
//
// Returns:
//   - *Registry: the constructed, empty registry.
func New(prober Prober, opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]upstream.Server),
		clock:  shared.DefaultClock,
		prober: prober,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a new upstream server, broadcasting server_added.
//
// Params:
//   - s: the server to register.
//
// Returns:
//   - upstream.Server: the registered server.
//   - error: nil on success, upstream.ErrAlreadyExists otherwise.
func (r *Registry) Add(s upstream.Server) (upstream.Server, error) {
	r.mu.Lock()
	if _, exists := r.byID[s.ID]; exists {
		r.mu.Unlock()
		return upstream.Server{}, upstream.ErrAlreadyExists
	}
	r.byID[s.ID] = s
	r.order = append(r.order, s.ID)
	pub := r.pub
	now := r.clock.Now()
	r.mu.Unlock()

	if pub != nil {
		pub.Publish(event.New(event.TypeServerAdded, s, now))
	}
	return s, nil
}

// Remove deletes a registered server, broadcasting server_deleted.
//
// Params:
//   - id: the server id to remove.
//
// Returns:
//   - error: nil on success, upstream.ErrNotFound otherwise.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, exists := r.byID[id]; !exists {
		r.mu.Unlock()
		return upstream.ErrNotFound
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	pub := r.pub
	now := r.clock.Now()
	r.mu.Unlock()

	if pub != nil {
		pub.Publish(event.New(event.TypeServerDeleted, map[string]string{"id": id}, now))
	}
	return nil
}

// List returns every registered server in registration order.
//
// Returns:
//   - []upstream.Server: every registered server, in registration order.
func (r *Registry) List() []upstream.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]upstream.Server, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ProbeAll probes every registered server concurrently and returns their
// statuses in registration order, regardless of probe completion order.
//
// Params:
//   - ctx: governs each server's probe call.
//
// Returns:
//   - []upstream.Status: each server's probe result, in registration order.
func (r *Registry) ProbeAll(ctx context.Context) []upstream.Status {
	servers := r.List()
	out := make([]upstream.Status, len(servers))

	var wg sync.WaitGroup
	for i, s := range servers {
		wg.Add(1)
		go func(i int, s upstream.Server) {
			defer wg.Done()
			out[i] = r.probeOne(ctx, s)
		}(i, s)
	}
	wg.Wait()
	return out
}

// probeOne probes a single server with a bounded timeout.
//
// Params:
//   - ctx: the parent context the probe timeout is derived from.
//   - s: the server to probe.
//
// Returns:
//   - upstream.Status: the probe result.
func (r *Registry) probeOne(ctx context.Context, s upstream.Server) upstream.Status {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := r.clock.Now()
	healthy, err := r.prober.Probe(probeCtx, s.URL)
	elapsed := r.clock.Now().Sub(start)

	status := upstream.Status{
		Server:         s,
		Healthy:        healthy,
		ResponseTimeMS: elapsed.Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
