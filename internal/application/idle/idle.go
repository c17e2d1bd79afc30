// Package idle implements the idle state machine: it tracks a
// single energy tier for the whole daemon, transitions it in response to
// activity and elapsed time, and dispatches unload/pre-warm side effects
// on transitions.
package idle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// maxHistory bounds the transition history ring.
const maxHistory = 100

// tickInterval is the timer cadence evaluating elapsed idle time.
const tickInterval = 10 * time.Second

// ActivityKind distinguishes why activity was recorded, mirrored
// straight through to handlers for their own bookkeeping.
type ActivityKind string

const (
	ActivityRequest   ActivityKind = "request"
	ActivityInference ActivityKind = "inference"
)

// TransitionHandler reacts to a tier change. Implementations must not
// panic; any error is logged and swallowed so one handler's failure
// never blocks another's.
type TransitionHandler interface {
	OnTransition(from, to tier.Tier) error
}

// HandlerFunc adapts a function to a TransitionHandler.
type HandlerFunc func(from, to tier.Tier) error

// OnTransition implements TransitionHandler.
//
// Params:
//   - from: the tier being left.
//   - to: the tier being entered.
//
// Returns:
//   - error: nil on success, error on failure.
func (f HandlerFunc) OnTransition(from, to tier.Tier) error { return f(from, to) }

// Unloader unloads a model family; Loader pre-warms one. Both are
// pluggable so tests can inject stubs instead of hitting real upstream
// services.
type Unloader interface {
	Unload(ctx context.Context) error
}

// UnloaderFunc adapts a function to an Unloader.
type UnloaderFunc func(ctx context.Context) error

// Unload implements Unloader.
//
// Params:
//   - ctx: governs the unload call.
//
// Returns:
//   - error: nil on success, error on failure.
func (f UnloaderFunc) Unload(ctx context.Context) error { return f(ctx) }

// Loader pre-warms a model family asynchronously after leaving deep idle.
type Loader interface {
	Load(ctx context.Context) error
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context) error

// Load implements Loader.
//
// Params:
//   - ctx: governs the pre-warm call.
//
// Returns:
//   - error: nil on success, error on failure.
func (f LoaderFunc) Load(ctx context.Context) error { return f(ctx) }

// ErrorLogger receives non-fatal errors from unload/pre-warm callbacks
// and from handler panics-turned-errors. If nil, errors are discarded.
type ErrorLogger func(context string, err error)

// Machine is the idle state machine. All mutable state is guarded by mu
// so transitions are totally ordered: only one is ever in flight, and
// concurrent triggers serialize through the mutex with the
// later-observed target winning.
type Machine struct {
	mu sync.Mutex

	clock shared.Nower

	currentTier      tier.Tier
	lastActivityAt   time.Time
	lastActivityKind ActivityKind
	activeProfile    profile.Profile
	keepAwakeUntil   time.Time

	history []tier.Transition

	perTierHandlers map[tier.Tier][]TransitionHandler
	globalHandlers  []TransitionHandler

	ttsUnload Unloader
	ttsLoad   Loader
	llmUnload Unloader

	publisher event.Publisher
	errLog    ErrorLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithClock overrides the time source, for deterministic tests.
//
// Params:
//   - c: the clock to use.
//
// Returns:
//   - Option: an option applying the clock override.
func WithClock(c shared.Nower) Option {
	return func(m *Machine) { m.clock = c }
}

// WithPublisher wires the broadcaster so transitions emit service_update
// style events. Optional: a nil publisher is a valid, silent no-op.
//
// Params:
//   - p: the publisher transitions are broadcast through.
//
// Returns:
//   - Option: an option wiring the publisher.
func WithPublisher(p event.Publisher) Option {
	return func(m *Machine) { m.publisher = p }
}

// WithErrorLogger wires a sink for non-fatal unload/pre-warm/handler
// errors.
//
// Params:
//   - l: the error sink.
//
// Returns:
//   - Option: an option wiring the error sink.
func WithErrorLogger(l ErrorLogger) Option {
	return func(m *Machine) { m.errLog = l }
}

// WithTTSCallbacks registers the TTS unload/pre-warm callbacks.
//
// Params:
//   - unload: called to unload the TTS model.
//   - load: called to pre-warm the TTS model.
//
// Returns:
//   - Option: an option wiring both callbacks.
func WithTTSCallbacks(unload Unloader, load Loader) Option {
	return func(m *Machine) { m.ttsUnload = unload; m.ttsLoad = load }
}

// WithLLMUnload registers the LLM runtime unload callback. The LLM
// runtime is never pre-warmed: it loads lazily on first request.
//
// Params:
//   - unload: called to unload the LLM runtime.
//
// Returns:
//   - Option: an option wiring the callback.
func WithLLMUnload(unload Unloader) Option {
	return func(m *Machine) { m.llmUnload = unload }
}

// New constructs a Machine starting in Active with the given initial
// profile.
//
// Params:
//   - initial: the profile the machine starts active with.
//   - opts: construction-time options.
//
// Returns:
//   - *Machine: the constructed machine, in tier Active.
func New(initial profile.Profile, opts ...Option) *Machine {
	m := &Machine{
		clock:           shared.DefaultClock,
		currentTier:     tier.Active,
		activeProfile:   initial,
		perTierHandlers: make(map[tier.Tier][]TransitionHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivityAt = m.clock.Now()
	return m
}

// RegisterHandler adds a handler invoked whenever the tier transitions to
// exactly t.
//
// Params:
//   - t: the tier the handler fires on entry to.
//   - h: the handler to register.
func (m *Machine) RegisterHandler(t tier.Tier, h TransitionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perTierHandlers[t] = append(m.perTierHandlers[t], h)
}

// RegisterGlobalHandler adds a handler invoked on every transition,
// after any per-tier handlers for the new tier have run.
//
// Params:
//   - h: the handler to register.
func (m *Machine) RegisterGlobalHandler(h TransitionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalHandlers = append(m.globalHandlers, h)
}

// CurrentTier returns the tier the machine currently occupies.
//
// Returns:
//   - tier.Tier: the current tier.
func (m *Machine) CurrentTier() tier.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTier
}

// IdleDuration returns now - last_activity_t.
//
// Returns:
//   - time.Duration: the elapsed time since the last recorded activity.
func (m *Machine) IdleDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now().Sub(m.lastActivityAt)
}

// ActiveProfile returns the currently selected profile.
//
// Returns:
//   - profile.Profile: the active profile.
func (m *Machine) ActiveProfile() profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeProfile
}

// SetActiveProfile swaps the profile used for timer-driven decisions. It
// does not itself force a transition; the next tick (or activity call)
// evaluates the new thresholds.
//
// Params:
//   - p: the profile to activate.
func (m *Machine) SetActiveProfile(p profile.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeProfile = p
}

// History returns the bounded transition history, oldest first.
//
// Returns:
//   - []tier.Transition: the recorded transitions, oldest first.
func (m *Machine) History() []tier.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tier.Transition, len(m.history))
	copy(out, m.history)
	return out
}

// RecordActivity implements trigger 1: activity. It unconditionally
// bumps last_activity_t; if the tier is not already Active and the
// active profile is enabled, it schedules an immediate transition to
// Active with trigger "activity".
//
// Params:
//   - kind: the kind of activity observed.
func (m *Machine) RecordActivity(kind ActivityKind) {
	m.mu.Lock()
	now := m.clock.Now()
	m.lastActivityAt = now
	m.lastActivityKind = kind
	needsTransition := m.currentTier != tier.Active && m.activeProfile.Enabled
	m.mu.Unlock()

	if needsTransition {
		m.transition(tier.Active, tier.TriggerActivity, now)
	}
}

// KeepAwake forces Active and suppresses timer-driven transitions until
// now+duration.
//
// Params:
//   - duration: how long timer-driven transitions stay suppressed.
func (m *Machine) KeepAwake(duration time.Duration) {
	m.mu.Lock()
	now := m.clock.Now()
	m.keepAwakeUntil = now.Add(duration)
	m.mu.Unlock()
	m.transition(tier.Active, tier.TriggerManual, now)
}

// CancelKeepAwake clears any keep-awake override, letting the timer
// resume normal evaluation on its next tick.
func (m *Machine) CancelKeepAwake() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepAwakeUntil = time.Time{}
}

// ForceTier implements trigger 4: manual, unconditional override.
//
// Params:
//   - t: the tier to force.
func (m *Machine) ForceTier(t tier.Tier) {
	m.transition(t, tier.TriggerManual, m.clock.Now())
}

// evaluateTick implements trigger 2: timer. Returns the tier the machine
// should occupy right now, without side effects.
//
// Params:
//   - now: the instant the tick is evaluated at.
//
// Returns:
//   - target: the tier the machine should occupy.
//   - shouldTransition: true if target differs from the current tier.
func (m *Machine) evaluateTick(now time.Time) (target tier.Tier, shouldTransition bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeProfile.Enabled {
		return m.currentTier, false
	}
	if !m.keepAwakeUntil.IsZero() && m.keepAwakeUntil.After(now) {
		return m.currentTier, false
	}
	idle := now.Sub(m.lastActivityAt)
	target = m.activeProfile.Thresholds.TierFor(idle)
	return target, target != m.currentTier
}

// transition performs the full transition procedure: record history,
// swap current tier, run built-in side effects, then per-tier and
// global handlers. The tier swap itself always succeeds; side-effect and
// handler failures are logged and ignored.
//
// Params:
//   - to: the tier to transition to.
//   - trig: the trigger causing this transition.
//   - now: the instant the transition occurs.
func (m *Machine) transition(to tier.Tier, trig tier.Trigger, now time.Time) {
	m.mu.Lock()
	from := m.currentTier
	if from == to && trig != tier.TriggerManual {
		m.mu.Unlock()
		return
	}
	idle := now.Sub(m.lastActivityAt)
	m.history = append(m.history, tier.Transition{
		At: now, From: from, To: to, IdleSeconds: idle.Seconds(), Trigger: trig,
	})
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.currentTier = to
	tierHandlers := append([]TransitionHandler(nil), m.perTierHandlers[to]...)
	globalHandlers := append([]TransitionHandler(nil), m.globalHandlers...)
	publisher := m.publisher
	m.mu.Unlock()

	m.runBuiltinSideEffects(from, to)

	for _, h := range tierHandlers {
		m.safeInvoke(h, from, to)
	}
	for _, h := range globalHandlers {
		m.safeInvoke(h, from, to)
	}

	if publisher != nil {
		publisher.Publish(event.New(event.TypeServiceUpdate, map[string]any{
			"kind": "idle_tier", "from": from.String(), "to": to.String(), "trigger": trig,
		}, now))
	}
}

// safeInvoke runs a handler, turning a panic into a logged error so one
// handler's mistake never aborts the others.
//
// Params:
//   - h: the handler to invoke.
//   - from: the tier being left.
//   - to: the tier being entered.
func (m *Machine) safeInvoke(h TransitionHandler, from, to tier.Tier) {
	defer func() {
		if r := recover(); r != nil {
			m.logErr("idle.handler", fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := h.OnTransition(from, to); err != nil {
		m.logErr("idle.handler", err)
	}
}

// runBuiltinSideEffects implements the monotone-in-direction built-ins:
// entering Cool unloads TTS; entering Cold/Dormant additionally unloads
// the LLM runtime; leaving Cold/Dormant toward a shallower tier
// pre-warms TTS only.
//
// Params:
//   - from: the tier being left.
//   - to: the tier being entered.
func (m *Machine) runBuiltinSideEffects(from, to tier.Tier) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enteringDeeper := to > from
	leavingDeepTier := from >= tier.Cold && to < from

	if enteringDeeper && to == tier.Cool {
		m.runUnload(ctx, m.ttsUnload, "tts")
	}
	if enteringDeeper && (to == tier.Cold || to == tier.Dormant) {
		m.runUnload(ctx, m.ttsUnload, "tts")
		m.runUnload(ctx, m.llmUnload, "llm")
	}
	if leavingDeepTier {
		go m.runPreWarm(m.ttsLoad)
	}
}

// runUnload invokes u.Unload, logging any failure under a name-scoped context.
//
// Params:
//   - ctx: governs the unload call.
//   - u: the unloader to invoke, or nil for a no-op.
//   - name: a short label used in the logged error context.
func (m *Machine) runUnload(ctx context.Context, u Unloader, name string) {
	if u == nil {
		return
	}
	if err := u.Unload(ctx); err != nil {
		m.logErr("idle.unload."+name, err)
	}
}

// runPreWarm invokes l.Load with its own bounded timeout, logging any failure.
//
// Params:
//   - l: the loader to invoke, or nil for a no-op.
func (m *Machine) runPreWarm(l Loader) {
	if l == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Load(ctx); err != nil {
		m.logErr("idle.prewarm.tts", err)
	}
}

// logErr forwards a non-fatal error to the wired error logger, if any.
//
// Params:
//   - context: a short label identifying the failing operation.
//   - err: the error to report.
func (m *Machine) logErr(context string, err error) {
	if m.errLog != nil {
		m.errLog(context, err)
	}
}

// Tick evaluates trigger 2 (timer) for the given instant and, if the
// selected tier differs from the current one, performs the transition.
// Exported so tests can drive the timer's own decision logic with a fake
// clock instead of waiting on a real 10s ticker.
//
// Params:
//   - now: the instant the tick is evaluated at.
func (m *Machine) Tick(now time.Time) {
	if target, ok := m.evaluateTick(now); ok {
		m.transition(target, tier.TriggerTimeout, now)
	}
}

// Run starts the 10s timer loop. It returns immediately; call Stop (or
// cancel ctx) to terminate it. Run is idempotent only in the sense that
// calling it twice starts two loops: callers should call it once, as
// the bootstrap wiring does.
//
// Params:
//   - ctx: cancelling ctx stops the loop.
func (m *Machine) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Tick(m.clock.Now())
			}
		}
	}()
}

// Stop cancels the timer loop and waits for it to exit.
func (m *Machine) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
