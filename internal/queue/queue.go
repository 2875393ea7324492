// Package queue provides value-based binary heaps keyed by (distance, id)
// for best-first spatial search.
package queue

// Item is a heap entry. ID is a node id or a cell index.
type Item struct {
	ID   uint32
	Dist float64 // squared distance or lower bound
}

// Before reports whether a orders strictly before b under ascending
// (Dist, ID).
func Before(a, b Item) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.ID < b.ID
}

// PriorityQueue is a min- or max-heap of Items with deterministic ID
// tie-breaking.
type PriorityQueue struct {
	max   bool
	items []Item
}

// NewMin returns a heap whose top is the smallest (Dist, ID).
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax returns a heap whose top is the largest (Dist, ID).
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item.
func (pq *PriorityQueue) Push(it Item) {
	pq.items = append(pq.items, it)
	pq.up(len(pq.items) - 1)
}

// Pop removes and returns the top item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	top := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]
	if len(pq.items) > 1 {
		pq.down(0)
	}
	return top, true
}

// PushBounded inserts it into a heap holding at most k items. When the heap
// is full, it replaces the top only if it orders strictly before the top in
// the heap's ranking, so a max-heap keeps the k smallest items. It reports
// whether it was kept.
func (pq *PriorityQueue) PushBounded(it Item, k int) bool {
	if k <= 0 {
		return false
	}
	if len(pq.items) < k {
		pq.Push(it)
		return true
	}
	if !pq.less(pq.items[0], it) {
		return false
	}
	pq.items[0] = it
	pq.down(0)
	return true
}

// Reset empties the heap and keeps its storage.
func (pq *PriorityQueue) Reset() { pq.items = pq.items[:0] }

// Items returns the backing slice in heap order. It is invalidated by the next mutation.
func (pq *PriorityQueue) Items() []Item { return pq.items }

// less reports whether a belongs above b.
func (pq *PriorityQueue) less(a, b Item) bool {
	if pq.max {
		return Before(b, a)
	}
	return Before(a, b)
}

func (pq *PriorityQueue) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(pq.items[i], pq.items[p]) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) down(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(pq.items[r], pq.items[l]) {
			best = r
		}
		if !pq.less(pq.items[best], pq.items[i]) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
