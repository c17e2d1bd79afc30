package supervisor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/service"
)

// fakeHandle is an in-memory ProcessHandle that never exits unless told to.
type fakeHandle struct {
	pid int

	mu      sync.Mutex
	exited  bool
	code    int
	waiters []chan struct{}
}

func newFakeHandle(pid int) *fakeHandle { return &fakeHandle{pid: pid} }

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	h.mu.Lock()
	if h.exited {
		code := h.code
		h.mu.Unlock()
		return code, nil
	}
	ch := make(chan struct{})
	h.waiters = append(h.waiters, ch)
	h.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, nil
}

func (h *fakeHandle) Exited() (bool, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited, h.code
}

func (h *fakeHandle) RecentOutput() []byte { return []byte("boom") }

func (h *fakeHandle) Signal(sig string) error {
	if sig == "KILL" || sig == "TERM" {
		h.mu.Lock()
		if !h.exited {
			h.exited = true
			for _, w := range h.waiters {
				close(w)
			}
			h.waiters = nil
		}
		h.mu.Unlock()
	}
	return nil
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) crash(code int) {
	h.mu.Lock()
	h.exited = true
	h.code = code
	for _, w := range h.waiters {
		close(w)
	}
	h.waiters = nil
	h.mu.Unlock()
}

// fakeExecutor spawns fakeHandles, counting how many times Spawn was
// actually invoked concurrently-guarded calls result in.
type fakeExecutor struct {
	mu      sync.Mutex
	spawns  int32
	nextPID int
	handles []*fakeHandle
	err     error
}

func (e *fakeExecutor) Spawn(ctx context.Context, spec service.Spec) (supervisor.ProcessHandle, error) {
	atomic.AddInt32(&e.spawns, 1)
	if e.err != nil {
		return nil, e.err
	}
	e.mu.Lock()
	e.nextPID++
	h := newFakeHandle(1000 + e.nextPID)
	e.handles = append(e.handles, h)
	e.mu.Unlock()
	return h, nil
}

// fakeHealth reports healthy for a fixed set of URLs.
type fakeHealth struct {
	mu      sync.Mutex
	healthy map[string]bool
}

func newFakeHealth() *fakeHealth { return &fakeHealth{healthy: map[string]bool{}} }

func (f *fakeHealth) Healthy(ctx context.Context, url string, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy[url]
}

func (f *fakeHealth) set(url string, v bool) {
	f.mu.Lock()
	f.healthy[url] = v
	f.mu.Unlock()
}

// fakePorts is a no-op PortResolver.
type fakePorts struct {
	pid int
	ok  bool
}

func (p *fakePorts) PIDForPort(ctx context.Context, port int) (int, bool) { return p.pid, p.ok }
func (p *fakePorts) KillListenersOnPort(ctx context.Context, port int) error { return nil }

func spec(id string) service.Spec {
	return service.Spec{
		ID:          id,
		DisplayName: id,
		Kind:        "tts",
		Command:     []string{"/bin/true"},
		Port:        9000,
		HealthURL:   "http://127.0.0.1:9000/health",
	}
}

func TestStart_TransitionsRunningAfterGrace(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})

	err := sv.Start(context.Background(), "tts")
	require.NoError(t, err)

	st, err := sv.Get("tts")
	require.NoError(t, err)
	assert.Equal(t, service.StatusRunning, st.Runtime.Status)
	require.NotNil(t, st.Runtime.PID)
}

func TestStart_AlreadyHealthyIsConflict(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	health.set("http://127.0.0.1:9000/health", true)
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})

	err := sv.Start(context.Background(), "tts")
	assert.ErrorIs(t, err, supervisor.ErrAlreadyRunning)
	assert.Equal(t, int32(0), exec.spawns)
}

// Two concurrent Start calls on the same service must result in at most
// one spawned process.
func TestStart_ConcurrentCallsAreMutuallyExclusive(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sv.Start(context.Background(), "tts")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), exec.spawns, "exactly one process must be spawned")
	// One call should succeed (nil) and one should have observed the
	// service already running/starting.
	var nilCount, conflictCount int
	for _, e := range errs {
		if e == nil {
			nilCount++
		} else {
			conflictCount++
		}
	}
	assert.Equal(t, 1, nilCount)
	assert.Equal(t, 1, conflictCount)
}

// crashingExecutor spawns a handle that is already-exited the moment
// Start's health grace check runs.
type crashingExecutor struct {
	code int
}

func (e *crashingExecutor) Spawn(ctx context.Context, spec service.Spec) (supervisor.ProcessHandle, error) {
	h := newFakeHandle(4242)
	h.crash(e.code)
	return h, nil
}

func TestStart_ChildExitsImmediatelyGoesToError(t *testing.T) {
	exec := &crashingExecutor{code: 7}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})

	err := sv.Start(context.Background(), "tts")
	require.NoError(t, err, "Start itself does not return an error on spawn failure")

	st, err := sv.Get("tts")
	require.NoError(t, err)
	assert.Equal(t, service.StatusError, st.Runtime.Status)
	assert.Contains(t, st.Runtime.LastError, "exited with code 7")
	assert.Nil(t, st.Runtime.PID)
}

func TestStop_IsIdempotent(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})

	require.NoError(t, sv.Stop(context.Background(), "tts"))
	require.NoError(t, sv.Stop(context.Background(), "tts"))

	st, err := sv.Get("tts")
	require.NoError(t, err)
	assert.Equal(t, service.StatusStopped, st.Runtime.Status)
}

func TestUnknownService_ReturnsError(t *testing.T) {
	sv := supervisor.New(nil, &fakeExecutor{}, newFakeHealth(), &fakePorts{})
	_, err := sv.Get("nope")
	assert.ErrorIs(t, err, supervisor.ErrUnknownService)

	err = sv.Start(context.Background(), "nope")
	assert.ErrorIs(t, err, supervisor.ErrUnknownService)
}

// DetectExisting adopts an externally-started service whose health URL
// already answers 200 at startup.
func TestDetectExisting_AdoptsExternallyRunningService(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	health.set("http://127.0.0.1:9000/health", true)
	ports := &fakePorts{pid: 555, ok: true}
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, ports)

	sv.DetectExisting(context.Background())

	st, err := sv.Get("tts")
	require.NoError(t, err)
	assert.Equal(t, service.StatusRunning, st.Runtime.Status)
	require.NotNil(t, st.Runtime.PID)
	assert.Equal(t, 555, *st.Runtime.PID)
	assert.NotNil(t, st.Runtime.StartedAt)
	assert.Equal(t, int32(0), exec.spawns, "detection must never spawn a process")
}

func TestDetectExisting_SkipsAlreadyKnownServices(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})
	require.NoError(t, sv.Start(context.Background(), "tts"))

	sv.DetectExisting(context.Background())

	assert.Equal(t, int32(1), exec.spawns)
}

func TestList_DemotesUnhealthyRunningServiceToError(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts")}, exec, health, &fakePorts{})
	require.NoError(t, sv.Start(context.Background(), "tts"))

	// Health now reports down and the process handle has exited.
	health.set("http://127.0.0.1:9000/health", false)
	exec.handles[0].crash(1)

	statuses := sv.List(context.Background())
	require.Len(t, statuses, 1)
	assert.Equal(t, service.StatusError, statuses[0].Runtime.Status)
}

// A config reload must swap specs in place, add new services stopped,
// and keep a running service supervised even when it vanished from the
// config.
func TestUpdateSpecs_SwapsTableWithoutKillingRunning(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("tts"), spec("stt")}, exec, health, &fakePorts{})
	require.NoError(t, sv.Start(context.Background(), "tts"))

	updatedTTS := spec("tts")
	updatedTTS.Command = []string{"/bin/echo", "v2"}
	sv.UpdateSpecs([]service.Spec{updatedTTS, spec("dashboard")})

	statuses := sv.Snapshot()
	byID := map[string]supervisor.Status{}
	for _, st := range statuses {
		byID[st.Spec.ID] = st
	}

	require.Contains(t, byID, "tts")
	assert.Equal(t, service.StatusRunning, byID["tts"].Runtime.Status, "reload must not kill a running child")
	assert.Equal(t, []string{"/bin/echo", "v2"}, byID["tts"].Spec.Command, "new spec applies for the next restart")

	require.Contains(t, byID, "dashboard")
	assert.Equal(t, service.StatusStopped, byID["dashboard"].Runtime.Status)

	assert.NotContains(t, byID, "stt", "a stopped service removed from the config is dropped")
}

func TestStartAll_CollectsPerServiceOutcomes(t *testing.T) {
	exec := &fakeExecutor{}
	health := newFakeHealth()
	sv := supervisor.New([]service.Spec{spec("a"), spec("b")}, exec, health, &fakePorts{})

	outcomes := sv.StartAll(context.Background())
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Empty(t, o.Error)
	}
}
