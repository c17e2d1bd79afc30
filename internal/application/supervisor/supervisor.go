// Package supervisor implements the service supervisor: it owns the
// lifecycle of registered child processes, start, stop, restart,
// reconciliation against externally-started instances, and memory
// accounting.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/service"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
)

// Timing constants governing the start/stop/restart sequences.
const (
	healthGracePeriod   = 2 * time.Second
	sigtermGrace        = 1 * time.Second
	restartDelay        = 1 * time.Second
	restartWindow       = 5 * time.Minute
	maxRestartsInWindow = 3
	maxOutputBytes      = 500
)

// Errors returned by supervisor operations.
var (
	ErrUnknownService = fmt.Errorf("supervisor: unknown service")
	ErrAlreadyRunning = fmt.Errorf("supervisor: already running")
	ErrPortOccupied   = fmt.Errorf("supervisor: port already occupied")
)

// ProcessHandle is the live handle to a spawned child process.
type ProcessHandle interface {
	// Wait blocks until the process exits, returning its exit code.
	Wait(ctx context.Context) (exitCode int, err error)
	// Exited reports, without blocking, whether the process has already
	// exited, and its exit code if so.
	Exited() (exited bool, exitCode int)
	// RecentOutput returns up to the last maxOutputBytes of combined
	// stdout+stderr.
	RecentOutput() []byte
	// Signal sends the given signal (TERM or KILL) to the process.
	Signal(sig string) error
	// PID returns the OS process id.
	PID() int
}

// Executor spawns detached child processes from a service Spec.
type Executor interface {
	Spawn(ctx context.Context, spec service.Spec) (ProcessHandle, error)
}

// HealthChecker probes a service's health URL.
type HealthChecker interface {
	// Healthy reports whether url returned 200 within the given timeout.
	Healthy(ctx context.Context, url string, timeout time.Duration) bool
}

// PortResolver resolves the PID listening on a port, and kills processes
// listening on a port (used for cleaning up externally-started
// instances during Stop).
type PortResolver interface {
	PIDForPort(ctx context.Context, port int) (pid int, ok bool)
	KillListenersOnPort(ctx context.Context, port int) error
}

// MemoryUsage reports RSS/VSZ in KiB for a PID, used by the memory
// accounting operation.
type MemoryUsage interface {
	Usage(ctx context.Context, pid int) (rssKB, vszKB int64, ok bool)
}

// entry bundles a service's static spec with its mutable runtime state
// and live handle, each guarded individually so two services never
// contend on the same lock.
type entry struct {
	mu      sync.Mutex
	spec    service.Spec
	runtime service.Runtime
	handle  ProcessHandle
}

// Supervisor manages the full set of registered services.
type Supervisor struct {
	clock   shared.Nower
	exec    Executor
	health  HealthChecker
	ports   PortResolver
	memory  MemoryUsage
	pub     event.Publisher

	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(s *Supervisor) { s.clock = c } }

// WithPublisher wires the broadcaster for service_update events.
func WithPublisher(p event.Publisher) Option { return func(s *Supervisor) { s.pub = p } }

// WithMemoryUsage wires the memory-accounting probe.
func WithMemoryUsage(m MemoryUsage) Option { return func(s *Supervisor) { s.memory = m } }

// New constructs a Supervisor over the given static specs.
//
// Params:
//   - specs: the static service registrations to supervise.
//   - exec: the executor used to spawn child processes.
//   - health: the health checker used to probe service liveness.
//   - ports: the port resolver used for external-process detection and cleanup.
//   - opts: construction-time options.
//
// Returns:
//   - *Supervisor: the constructed supervisor, with every entry stopped.
func New(specs []service.Spec, exec Executor, health HealthChecker, ports PortResolver, opts ...Option) *Supervisor {
	s := &Supervisor{
		clock:   shared.DefaultClock,
		exec:    exec,
		health:  health,
		ports:   ports,
		entries: make(map[string]*entry, len(specs)),
	}
	for _, spec := range specs {
		s.entries[spec.ID] = &entry{spec: spec, runtime: service.NewRuntime()}
		s.order = append(s.order, spec.ID)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup resolves id to its entry.
//
// Params:
//   - id: the service id to resolve.
//
// Returns:
//   - *entry: the matching entry.
//   - error: nil on success, ErrUnknownService otherwise.
func (s *Supervisor) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownService
	}
	return e, nil
}

// Status is the read model returned by List and Get.
type Status struct {
	Spec    service.Spec    `json:"spec"`
	Runtime service.Runtime `json:"runtime"`
}

// Get returns the current status of one service.
//
// Params:
//   - id: the service id to look up.
//
// Returns:
//   - Status: the service's current status.
//   - error: nil on success, ErrUnknownService otherwise.
func (s *Supervisor) Get(id string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Spec: e.spec, Runtime: e.runtime}, nil
}

// List reconciles and returns every service's status, in registration
// order. Each GET of the list re-probes running services' health and
// demotes unhealthy ones to error.
//
// Params:
//   - ctx: governs each service's health reconciliation probe.
//
// Returns:
//   - []Status: every service's status, in registration order.
func (s *Supervisor) List(ctx context.Context) []Status {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			continue
		}
		if s.reconcileOne(ctx, e) {
			s.maybeAutoRestart(ctx, id, e)
		}
		e.mu.Lock()
		out = append(out, Status{Spec: e.spec, Runtime: e.runtime})
		e.mu.Unlock()
	}
	return out
}

// Snapshot returns every service's current status without probing
// health or mutating any state, for read paths (like a metrics scrape)
// that must never trigger reconciliation side effects.
//
// Returns:
//   - []Status: every service's last-known status, in registration order.
func (s *Supervisor) Snapshot() []Status {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		out = append(out, Status{Spec: e.spec, Runtime: e.runtime})
		e.mu.Unlock()
	}
	return out
}

// reconcileOne re-probes a running service's health and demotes it to
// error if unhealthy, reporting whether it just made that transition.
//
// Params:
//   - ctx: governs the health probe.
//   - e: the entry to reconcile.
//
// Returns:
//   - wentError: true if this call just transitioned e to error.
func (s *Supervisor) reconcileOne(ctx context.Context, e *entry) (wentError bool) {
	e.mu.Lock()
	if e.runtime.Status != service.StatusRunning {
		e.mu.Unlock()
		return false
	}
	healthURL, handle := e.spec.HealthURL, e.handle
	e.mu.Unlock()

	if healthURL == "" {
		return false
	}
	if s.health.Healthy(ctx, healthURL, healthGracePeriod) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime.Status != service.StatusRunning {
		return false
	}
	if handle != nil {
		if exited, code := handle.Exited(); exited {
			e.runtime.Status = service.StatusError
			e.runtime.LastError = fmt.Sprintf("process exited with code %d", code)
			e.runtime.PID = nil
			return true
		}
	}
	e.runtime.Status = service.StatusError
	e.runtime.LastError = "Health check failed"
	return true
}

// maybeAutoRestart implements the auto_restart policy: a service that
// just went to error and opts into auto_restart is restarted, up to
// maxRestartsInWindow times per restartWindow. A restart attempt beyond
// that budget leaves the service in error with a "giving up" message
// instead of spawning again.
//
// Params:
//   - ctx: governs the restart attempt, if one is made.
//   - id: the service id to consider restarting.
//   - e: the entry already observed to be in error.
func (s *Supervisor) maybeAutoRestart(ctx context.Context, id string, e *entry) {
	e.mu.Lock()
	if !e.spec.AutoRestart || e.runtime.Status != service.StatusError {
		e.mu.Unlock()
		return
	}
	allowed := e.runtime.RecordRestart(s.clock.Now(), restartWindow, maxRestartsInWindow)
	if !allowed {
		e.runtime.LastError = fmt.Sprintf("%s; giving up after %d restarts in %s", e.runtime.LastError, maxRestartsInWindow, restartWindow)
	}
	e.mu.Unlock()

	if !allowed {
		s.emit(id, service.StatusError)
		return
	}
	_ = s.Restart(ctx, id)
}

// MemoryTotals sums RSS/VSZ (KiB) across every owned running service.
//
// Params:
//   - ctx: governs each per-PID memory probe.
//
// Returns:
//   - rssKB: the summed resident set size across every owned running service.
//   - vszKB: the summed virtual size across every owned running service.
func (s *Supervisor) MemoryTotals(ctx context.Context) (rssKB, vszKB int64) {
	if s.memory == nil {
		return 0, 0
	}
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		pid := e.runtime.PID
		owned := e.runtime.Owned
		e.mu.Unlock()
		if pid == nil || !owned {
			continue
		}
		if rss, vsz, ok := s.memory.Usage(ctx, *pid); ok {
			rssKB += rss
			vszKB += vsz
		}
	}
	return rssKB, vszKB
}

// emit publishes a service_update event for id, if a publisher is wired.
//
// Params:
//   - id: the service id the update concerns.
//   - status: the service's new status.
func (s *Supervisor) emit(id string, status service.Status) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(event.New(event.TypeServiceUpdate, map[string]any{
		"service_id": id, "status": string(status),
	}, s.clock.Now()))
}

// Start requires the service to be stopped or errored and its health
// URL not currently serving, then spawns and waits out the 2s health
// grace period. The per-entry mutex held for the whole call is what
// makes two concurrent Start calls mutually exclusive: the second
// caller blocks until the first has already transitioned out of
// stopped/error and then observes ErrAlreadyRunning.
//
// Params:
//   - ctx: governs the health probe and spawn.
//   - id: the service id to start.
//
// Returns:
//   - error: nil if the service reached running or a recorded error
//     state, ErrUnknownService/ErrAlreadyRunning otherwise.
func (s *Supervisor) Start(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime.Status == service.StatusRunning || e.runtime.Status == service.StatusStarting {
		return fmt.Errorf("%w: service %q is already running", ErrAlreadyRunning, id)
	}
	if e.spec.HealthURL != "" && s.health.Healthy(ctx, e.spec.HealthURL, healthGracePeriod) {
		return fmt.Errorf("%w: service %q is already running", ErrAlreadyRunning, id)
	}

	e.runtime = service.NewRuntime()
	e.runtime.Status = service.StatusStarting
	s.emit(id, service.StatusStarting)

	handle, spawnErr := s.exec.Spawn(ctx, e.spec)
	if spawnErr != nil {
		e.runtime.Status = service.StatusError
		e.runtime.LastError = spawnErr.Error()
		s.emit(id, service.StatusError)
		return nil
	}
	e.handle = handle
	now := s.clock.Now()
	e.runtime.PID = intPtr(handle.PID())
	e.runtime.StartedAt = &now
	e.runtime.Owned = true

	if exited, code := s.waitHealthGrace(ctx, handle); exited {
		out := handle.RecentOutput()
		if len(out) > maxOutputBytes {
			out = out[len(out)-maxOutputBytes:]
		}
		e.runtime.Status = service.StatusError
		e.runtime.LastError = fmt.Sprintf("exited with code %d: %s", code, string(out))
		e.runtime.PID = nil
		s.emit(id, service.StatusError)
		return nil
	}

	e.runtime.Status = service.StatusRunning
	s.emit(id, service.StatusRunning)
	return nil
}

// waitHealthGrace blocks up to healthGracePeriod to see whether the
// freshly spawned process has already exited, waking early if it does.
//
// Params:
//   - ctx: governs the wait on the process handle.
//   - handle: the freshly spawned process handle to wait on.
//
// Returns:
//   - exited: true if the process had already exited by the end of the grace period.
//   - code: the process's exit code, valid only if exited is true.
func (s *Supervisor) waitHealthGrace(ctx context.Context, handle ProcessHandle) (exited bool, code int) {
	timer := time.NewTimer(healthGracePeriod)
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		_, _ = handle.Wait(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-timer.C:
	}
	return handle.Exited()
}

// Stop sends SIGTERM, waits a 1s grace period, then SIGKILL; it
// additionally sweeps any process listening on the service's port so an
// externally-started instance is cleaned up too. Stop is idempotent:
// calling it on an already-stopped service is a harmless no-op.
//
// Params:
//   - ctx: governs the port-listener sweep.
//   - id: the service id to stop.
//
// Returns:
//   - error: nil on success, ErrUnknownService otherwise.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		s.stopHandle(e.handle)
		e.handle = nil
	}
	if e.spec.Port != 0 {
		_ = s.ports.KillListenersOnPort(ctx, e.spec.Port)
	}

	e.runtime.Status = service.StatusStopped
	e.runtime.PID = nil
	e.runtime.StartedAt = nil
	e.runtime.Owned = false
	s.emit(id, service.StatusStopped)
	return nil
}

// stopHandle sends SIGTERM, waits sigtermGrace, then SIGKILL if the
// process is still alive.
//
// Params:
//   - handle: the process handle to terminate.
func (s *Supervisor) stopHandle(handle ProcessHandle) {
	_ = handle.Signal("TERM")
	if exited, _ := handle.Exited(); exited {
		return
	}
	timer := time.NewTimer(sigtermGrace)
	defer timer.Stop()
	<-timer.C
	if exited, _ := handle.Exited(); !exited {
		_ = handle.Signal("KILL")
	}
}

// Restart is stop, a 1s pause, then start.
//
// Params:
//   - ctx: governs the stop, the delay, and the subsequent start.
//   - id: the service id to restart.
//
// Returns:
//   - error: nil on success, the stop/start error otherwise.
func (s *Supervisor) Restart(ctx context.Context, id string) error {
	if err := s.Stop(ctx, id); err != nil {
		return err
	}
	timer := time.NewTimer(restartDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return s.Start(ctx, id)
}

// Outcome is one service's result from a bulk start-all/stop-all call.
type Outcome struct {
	ServiceID string `json:"service_id"`
	Error     string `json:"error,omitempty"`
}

// StartAll starts every registered service, collecting a per-service
// outcome rather than aborting on the first failure.
//
// Params:
//   - ctx: governs every underlying Start call.
//
// Returns:
//   - []Outcome: one outcome per registered service, in registration order.
func (s *Supervisor) StartAll(ctx context.Context) []Outcome {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		o := Outcome{ServiceID: id}
		if err := s.Start(ctx, id); err != nil {
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	return out
}

// StopAll stops every registered service, collecting a per-service
// outcome rather than aborting on the first failure.
//
// Params:
//   - ctx: governs every underlying Stop call.
//
// Returns:
//   - []Outcome: one outcome per registered service, in registration order.
func (s *Supervisor) StopAll(ctx context.Context) []Outcome {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		o := Outcome{ServiceID: id}
		if err := s.Stop(ctx, id); err != nil {
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	return out
}

// UpdateSpecs swaps the static service table after a config reload.
// Existing entries receive the new spec, which takes effect on the next
// start or restart: a running child is never force-killed by a reload.
// Services new to the config are registered stopped; services removed
// from the config are dropped only once they are stopped, so a live
// child keeps its supervision until an operator stops it.
//
// Params:
//   - specs: the reloaded static service registrations, in config order.
func (s *Supervisor) UpdateSpecs(specs []service.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]service.Spec, len(specs))
	order := make([]string, 0, len(specs))
	for _, sp := range specs {
		incoming[sp.ID] = sp
		order = append(order, sp.ID)
	}

	for id, sp := range incoming {
		if e, ok := s.entries[id]; ok {
			e.mu.Lock()
			e.spec = sp
			e.mu.Unlock()
			continue
		}
		s.entries[id] = &entry{spec: sp, runtime: service.NewRuntime()}
	}

	for id, e := range s.entries {
		if _, keep := incoming[id]; keep {
			continue
		}
		e.mu.Lock()
		stopped := e.runtime.Status == service.StatusStopped
		e.mu.Unlock()
		if stopped {
			delete(s.entries, id)
		} else {
			order = append(order, id)
		}
	}
	s.order = order
}

// DetectExisting runs once at startup: for every
// registered service still in its initial stopped state, probe the
// health URL and, if it already answers 200, adopt it as running without
// having spawned it ourselves.
//
// Params:
//   - ctx: governs each health probe and port lookup.
func (s *Supervisor) DetectExisting(ctx context.Context) {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if e.runtime.Status != service.StatusStopped || e.spec.HealthURL == "" {
			e.mu.Unlock()
			continue
		}
		healthURL, port := e.spec.HealthURL, e.spec.Port
		e.mu.Unlock()

		if !s.health.Healthy(ctx, healthURL, healthGracePeriod) {
			continue
		}

		now := s.clock.Now()
		var pid *int
		if port != 0 {
			if p, ok := s.ports.PIDForPort(ctx, port); ok {
				pid = intPtr(p)
			}
		}

		e.mu.Lock()
		if e.runtime.Status == service.StatusStopped {
			e.runtime.Status = service.StatusRunning
			e.runtime.StartedAt = &now
			e.runtime.PID = pid
			e.runtime.Owned = false
		}
		e.mu.Unlock()
		s.emit(id, service.StatusRunning)
	}
}

// intPtr returns a pointer to v.
//
// Params:
//   - v: the value to point to.
//
// Returns:
//   - *int: a pointer to a copy of v.
func intPtr(v int) *int { return &v }
