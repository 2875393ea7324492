package queue

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeap_Order(t *testing.T) {
	pq := NewMin(4)
	pq.Push(Item{ID: 3, Dist: 1})
	pq.Push(Item{ID: 1, Dist: 2})
	pq.Push(Item{ID: 2, Dist: 1})
	pq.Push(Item{ID: 9, Dist: 0.5})

	var got []uint32
	for pq.Len() > 0 {
		it, ok := pq.Pop()
		require.True(t, ok)
		got = append(got, it.ID)
	}
	assert.Equal(t, []uint32{9, 2, 3, 1}, got)

	_, ok := pq.Pop()
	assert.False(t, ok)
	_, ok = pq.Top()
	assert.False(t, ok)
}

func TestMaxHeap_Bounded(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	items := make([]Item, 500)
	for i := range items {
		// Few distinct distances so ties are common.
		items[i] = Item{ID: uint32(i), Dist: float64(r.IntN(20))}
	}

	const k = 10
	pq := NewMax(k)
	for _, it := range items {
		pq.PushBounded(it, k)
	}
	require.Equal(t, k, pq.Len())

	got := slices.Clone(pq.Items())
	slices.SortFunc(got, cmpItems)

	want := slices.Clone(items)
	slices.SortFunc(want, cmpItems)
	assert.Equal(t, want[:k], got)
}

func TestPushBounded_ReplacesWorst(t *testing.T) {
	pq := NewMax(2)
	require.True(t, pq.PushBounded(Item{ID: 1, Dist: 1}, 2))
	require.True(t, pq.PushBounded(Item{ID: 2, Dist: 5}, 2))

	assert.False(t, pq.PushBounded(Item{ID: 3, Dist: 9}, 2), "farther item must be rejected")
	assert.False(t, pq.PushBounded(Item{ID: 4, Dist: 5}, 2), "equal distance, larger id")

	assert.True(t, pq.PushBounded(Item{ID: 0, Dist: 5}, 2), "equal distance, smaller id")
	top, _ := pq.Top()
	assert.Equal(t, Item{ID: 0, Dist: 5}, top)

	assert.True(t, pq.PushBounded(Item{ID: 7, Dist: 2}, 2))
	got := slices.Clone(pq.Items())
	slices.SortFunc(got, cmpItems)
	assert.Equal(t, []Item{{ID: 1, Dist: 1}, {ID: 7, Dist: 2}}, got)
}

func TestPushBounded_ZeroK(t *testing.T) {
	pq := NewMax(0)
	assert.False(t, pq.PushBounded(Item{ID: 1}, 0))
	assert.Zero(t, pq.Len())
}

func TestReset(t *testing.T) {
	pq := NewMin(2)
	pq.Push(Item{ID: 1})
	pq.Reset()
	assert.Zero(t, pq.Len())
}

func cmpItems(a, b Item) int {
	switch {
	case Before(a, b):
		return -1
	case Before(b, a):
		return 1
	default:
		return 0
	}
}
