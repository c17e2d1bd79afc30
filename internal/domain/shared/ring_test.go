package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
)

// After inserting N > capacity items, exactly capacity remain, and they
// are the most recent capacity by insertion order.
func TestRing_BoundAndRecency(t *testing.T) {
	const capacity = 5
	r := shared.NewRing[int](capacity)

	for i := 0; i < 12; i++ {
		r.Push(i)
	}

	assert.Equal(t, capacity, r.Len())
	assert.Equal(t, capacity, r.Cap())
	assert.Equal(t, []int{7, 8, 9, 10, 11}, r.Items())
}

func TestRing_ItemsNewestFirst(t *testing.T) {
	r := shared.NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4)

	assert.Equal(t, []int{4, 3, 2}, r.ItemsNewestFirst())
}

func TestRing_BelowCapacity(t *testing.T) {
	r := shared.NewRing[string](10)
	r.Push("a")
	r.Push("b")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Items())
}

func TestRing_Clear(t *testing.T) {
	r := shared.NewRing[int](4)
	r.Push(1)
	r.Push(2)
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	r.Push(9)
	assert.Equal(t, []int{9}, r.Items())
}

func TestNewRing_PanicsOnNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { shared.NewRing[int](0) })
	require.Panics(t, func() { shared.NewRing[int](-1) })
}
