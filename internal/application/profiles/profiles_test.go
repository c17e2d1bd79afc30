package profiles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/profiles"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// memStore is an in-memory profiles.Store standing in for profilestore,
// used so persistence round-trips can be asserted without touching disk.
type memStore struct {
	saved map[string]profile.Profile
}

func (m *memStore) Load(ctx context.Context) (map[string]profile.Profile, error) {
	out := make(map[string]profile.Profile, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, custom map[string]profile.Profile) error {
	m.saved = make(map[string]profile.Profile, len(custom))
	for k, v := range custom {
		m.saved[k] = v
	}
	return nil
}

// fakeSink records the last profile pushed by Activate/Delete-revert.
type fakeSink struct {
	last profile.Profile
	n    int
}

func (f *fakeSink) SetActiveProfile(p profile.Profile) {
	f.last = p
	f.n++
}

func lab() profile.Profile {
	return profile.Profile{
		ID:          "lab",
		DisplayName: "Lab",
		Thresholds:  tier.Thresholds{WarmSeconds: 5, CoolSeconds: 10, ColdSeconds: 15, DormantSeconds: 20},
		Enabled:     true,
	}
}

func TestCreate_PersistsAndIsListable(t *testing.T) {
	store := &memStore{}
	sink := &fakeSink{}
	svc := profiles.New(context.Background(), store, sink)

	created, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)
	assert.False(t, created.Builtin)

	// "restart the daemon": a fresh Service reloading from the same store.
	svc2 := profiles.New(context.Background(), store, sink)
	got, err := svc2.Get("lab")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreate_DuplicateIDRejected(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})
	_, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), lab())
	assert.ErrorIs(t, err, profile.ErrAlreadyExists)
}

func TestUpdate_BuiltinIsImmutable(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})
	_, err := svc.Update(context.Background(), "balanced", lab())
	assert.ErrorIs(t, err, profile.ErrBuiltinImmutable)
}

func TestDelete_BuiltinIsImmutable(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})
	err := svc.Delete(context.Background(), "performance")
	assert.ErrorIs(t, err, profile.ErrBuiltinImmutable)
}

// Deleting the active custom profile reverts the active profile to
// balanced.
func TestDelete_ActiveCustomRevertsToBalanced(t *testing.T) {
	store := &memStore{}
	sink := &fakeSink{}
	svc := profiles.New(context.Background(), store, sink)

	_, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)
	_, err = svc.Activate("lab")
	require.NoError(t, err)
	require.Equal(t, "lab", svc.ActiveID())

	require.NoError(t, svc.Delete(context.Background(), "lab"))

	assert.Equal(t, profile.BalancedID, svc.ActiveID())
	assert.Equal(t, "balanced", sink.last.ID)

	_, err = svc.Get("lab")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestDelete_InactiveCustomDoesNotChangeActive(t *testing.T) {
	store := &memStore{}
	sink := &fakeSink{}
	svc := profiles.New(context.Background(), store, sink)

	_, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)
	require.Equal(t, profile.BalancedID, svc.ActiveID())

	require.NoError(t, svc.Delete(context.Background(), "lab"))
	assert.Equal(t, profile.BalancedID, svc.ActiveID())
	assert.Equal(t, 0, sink.n, "sink should not be touched when the deleted profile wasn't active")
}

func TestDuplicate_ProducesEditableCustomCopy(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})

	dup, err := svc.Duplicate(context.Background(), "balanced", "balanced-copy", "Balanced Copy")
	require.NoError(t, err)
	assert.False(t, dup.Builtin)
	assert.Equal(t, "balanced-copy", dup.ID)

	_, err = svc.Update(context.Background(), "balanced-copy", dup)
	assert.NoError(t, err, "a duplicate of a builtin must itself be mutable")
}

// An on-disk edit picked up by Reload must re-push the active profile's
// fresh thresholds, and revert to balanced if the active id vanished.
func TestReload_RefreshesActiveProfile(t *testing.T) {
	store := &memStore{}
	sink := &fakeSink{}
	svc := profiles.New(context.Background(), store, sink)

	_, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)
	_, err = svc.Activate("lab")
	require.NoError(t, err)

	// Simulate a hand edit on disk: warm threshold changed from 5 to 7.
	edited := lab()
	edited.Thresholds.WarmSeconds = 7
	store.saved["lab"] = edited

	require.NoError(t, svc.Reload(context.Background()))
	assert.Equal(t, int64(7), sink.last.Thresholds.WarmSeconds)

	// The active profile deleted out from under us reverts to balanced.
	delete(store.saved, "lab")
	require.NoError(t, svc.Reload(context.Background()))
	assert.Equal(t, profile.BalancedID, svc.ActiveID())
	assert.Equal(t, profile.BalancedID, sink.last.ID)
}

func TestActivate_UnknownIDFails(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})
	_, err := svc.Activate("nope")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestList_ContainsAllBuiltinsAndCustom(t *testing.T) {
	svc := profiles.New(context.Background(), &memStore{}, &fakeSink{})
	_, err := svc.Create(context.Background(), lab())
	require.NoError(t, err)

	list := svc.List()
	assert.Len(t, list, 6)
}
