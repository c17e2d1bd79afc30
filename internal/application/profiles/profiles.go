// Package profiles implements the power-profile CRUD operations:
// create, update, delete, duplicate, and activation, with the active
// selection wired into the idle state machine.
package profiles

import (
	"context"
	"fmt"
	"sync"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
)

// Store persists the custom profile set. Builtins are never written:
// only custom profiles round-trip through it. Implementations must write
// atomically (temp file + rename); a missing or corrupt file is expected
// to yield an empty map rather than an error.
type Store interface {
	Load(ctx context.Context) (map[string]profile.Profile, error)
	Save(ctx context.Context, custom map[string]profile.Profile) error
}

// ActiveProfileSink is the subset of idle.Machine this service drives:
// selecting a profile changes what the idle timer evaluates against.
type ActiveProfileSink interface {
	SetActiveProfile(p profile.Profile)
}

// Service owns the full profile table (builtin ∪ custom) and the
// currently active selection.
type Service struct {
	mu sync.RWMutex

	store Store
	idle  ActiveProfileSink
	pub   event.Publisher

	builtins map[string]profile.Profile
	custom   map[string]profile.Profile
	activeID string
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithPublisher wires the broadcaster for profile-change notifications.
func WithPublisher(p event.Publisher) Option { return func(s *Service) { s.pub = p } }

// New constructs a Service, loading any previously persisted custom
// profiles from store. Defaults to the balanced builtin as active.
//
// Params:
//   - ctx: governs the initial profile load.
//   - store: the custom-profile persistence backend.
//   - idleSink: the idle machine the active profile selection is pushed to.
//   - opts: construction-time options.
//
// Returns:
//   - *Service: the constructed service, with balanced active by default.
func New(ctx context.Context, store Store, idleSink ActiveProfileSink, opts ...Option) *Service {
	s := &Service{
		store:    store,
		idle:     idleSink,
		builtins: profile.Builtins(),
		custom:   make(map[string]profile.Profile),
		activeID: profile.BalancedID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if custom, err := store.Load(ctx); err == nil {
		s.custom = custom
	}
	return s
}

// lookupLocked resolves id against custom profiles then builtins. Callers
// must hold mu.
//
// Params:
//   - id: the profile id to resolve.
//
// Returns:
//   - profile.Profile: the matching profile.
//   - bool: true if id was found.
func (s *Service) lookupLocked(id string) (profile.Profile, bool) {
	if p, ok := s.custom[id]; ok {
		return p, true
	}
	p, ok := s.builtins[id]
	return p, ok
}

// List returns every profile, builtins first in a stable order followed
// by custom profiles.
//
// Returns:
//   - []profile.Profile: every profile, builtins first.
func (s *Service) List() []profile.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]profile.Profile, 0, len(s.builtins)+len(s.custom))
	for _, id := range []string{"performance", "balanced", "power_saver", "development", "presentation"} {
		if p, ok := s.builtins[id]; ok {
			out = append(out, p)
		}
	}
	for _, p := range s.custom {
		out = append(out, p)
	}
	return out
}

// Get returns one profile by id.
//
// Params:
//   - id: the profile id to look up.
//
// Returns:
//   - profile.Profile: the matching profile.
//   - error: nil on success, profile.ErrNotFound if id is unknown.
func (s *Service) Get(id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.lookupLocked(id)
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

// ActiveID returns the currently selected profile's id.
//
// Returns:
//   - string: the active profile's id.
func (s *Service) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Create adds a new custom profile and persists the custom set.
//
// Params:
//   - ctx: governs the persistence call.
//   - p: the profile to create.
//
// Returns:
//   - profile.Profile: the created, non-builtin profile.
//   - error: nil on success, a validation/persistence error otherwise.
func (s *Service) Create(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p.Builtin = false
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}

	s.mu.Lock()
	if _, exists := s.lookupLocked(p.ID); exists {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrAlreadyExists
	}
	s.custom[p.ID] = p
	snapshot := s.cloneCustomLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return profile.Profile{}, fmt.Errorf("profiles: persist create: %w", err)
	}
	return p, nil
}

// Update replaces a custom profile's fields. Builtin profiles may never
// be updated.
//
// Params:
//   - ctx: governs the persistence call.
//   - id: the custom profile id to update.
//   - p: the replacement field values.
//
// Returns:
//   - profile.Profile: the updated profile.
//   - error: nil on success, a validation/not-found/immutable/persistence error otherwise.
func (s *Service) Update(ctx context.Context, id string, p profile.Profile) (profile.Profile, error) {
	p.ID = id
	p.Builtin = false
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}

	s.mu.Lock()
	if _, ok := s.builtins[id]; ok {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrBuiltinImmutable
	}
	if _, ok := s.custom[id]; !ok {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrNotFound
	}
	s.custom[id] = p
	isActive := s.activeID == id
	snapshot := s.cloneCustomLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return profile.Profile{}, fmt.Errorf("profiles: persist update: %w", err)
	}
	if isActive && s.idle != nil {
		s.idle.SetActiveProfile(p)
	}
	return p, nil
}

// Duplicate copies any profile (builtin or custom) under a new id,
// always producing an editable custom profile.
//
// Params:
//   - ctx: governs the persistence call.
//   - sourceID: the profile id to copy from.
//   - newID: the id assigned to the duplicate.
//   - newDisplayName: the display name assigned to the duplicate.
//
// Returns:
//   - profile.Profile: the duplicated profile.
//   - error: nil on success, profile.ErrNotFound/ErrAlreadyExists/persistence error otherwise.
func (s *Service) Duplicate(ctx context.Context, sourceID, newID, newDisplayName string) (profile.Profile, error) {
	s.mu.Lock()
	src, ok := s.lookupLocked(sourceID)
	if !ok {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrNotFound
	}
	if _, exists := s.lookupLocked(newID); exists {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrAlreadyExists
	}
	dup := src.Duplicate(newID, newDisplayName)
	s.custom[newID] = dup
	snapshot := s.cloneCustomLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return profile.Profile{}, fmt.Errorf("profiles: persist duplicate: %w", err)
	}
	return dup, nil
}

// Delete removes a custom profile. Deleting the active custom profile
// reverts the active profile to the canonical balanced builtin.
//
// Params:
//   - ctx: governs the persistence call.
//   - id: the custom profile id to delete.
//
// Returns:
//   - error: nil on success, profile.ErrBuiltinImmutable/ErrNotFound/a persistence error otherwise.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.builtins[id]; ok {
		s.mu.Unlock()
		return profile.ErrBuiltinImmutable
	}
	if _, ok := s.custom[id]; !ok {
		s.mu.Unlock()
		return profile.ErrNotFound
	}
	delete(s.custom, id)
	reverted := s.activeID == id
	if reverted {
		s.activeID = profile.BalancedID
	}
	snapshot := s.cloneCustomLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("profiles: persist delete: %w", err)
	}
	if reverted && s.idle != nil {
		s.idle.SetActiveProfile(s.builtins[profile.BalancedID])
	}
	return nil
}

// Activate selects id as the active profile and pushes it to the idle
// state machine.
//
// Params:
//   - id: the profile id to activate.
//
// Returns:
//   - profile.Profile: the newly active profile.
//   - error: nil on success, profile.ErrNotFound otherwise.
func (s *Service) Activate(id string) (profile.Profile, error) {
	s.mu.Lock()
	p, ok := s.lookupLocked(id)
	if !ok {
		s.mu.Unlock()
		return profile.Profile{}, profile.ErrNotFound
	}
	s.activeID = id
	s.mu.Unlock()

	if s.idle != nil {
		s.idle.SetActiveProfile(p)
	}
	return p, nil
}

// Reload replaces the in-memory custom profile set from store, used by
// C9's config-directory watcher when power_profiles.json is edited by
// hand. A failed reload keeps the previous state.
//
// Params:
//   - ctx: governs the reload call.
//
// Returns:
//   - error: nil on success, the load error otherwise.
func (s *Service) Reload(ctx context.Context) error {
	custom, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.custom = custom
	if _, ok := s.lookupLocked(s.activeID); !ok {
		s.activeID = profile.BalancedID
	}
	active, _ := s.lookupLocked(s.activeID)
	s.mu.Unlock()

	// The active profile's thresholds may have been edited on disk;
	// re-push so the idle timer evaluates the fresh values.
	if s.idle != nil {
		s.idle.SetActiveProfile(active)
	}
	return nil
}

// cloneCustomLocked returns a shallow copy of the custom profile set.
// Callers must hold mu.
//
// Returns:
//   - map[string]profile.Profile: an independent copy of the custom set.
func (s *Service) cloneCustomLocked() map[string]profile.Profile {
	out := make(map[string]profile.Profile, len(s.custom))
	for k, v := range s.custom {
		out[k] = v
	}
	return out
}
