package octree

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/lingodb/internal/queue"
	"github.com/hupe1980/lingodb/model"
)

// Positions resolves a zero-based node index to its position.
type Positions interface {
	Position(index int) model.Coordinate
}

// Tree is a read-only view over a serialized octree section.
type Tree struct {
	data     []byte
	cells    []byte
	leaves   []byte
	bounds   Bounds
	nCells   int
	nLeafIDs int
	cfg      Config
	// boxes[i] is the cube of cell i, derived once at open.
	boxes []Bounds
}

// Open validates section data for a file with nodeCount nodes.
func Open(data []byte, nodeCount uint32) (*Tree, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("octree section of %d bytes: %w", len(data), model.ErrTruncated)
	}
	t := &Tree{data: data}
	lo := [3]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(data[hdrMinX:])),
		math.Float64frombits(binary.LittleEndian.Uint64(data[hdrMinY:])),
		math.Float64frombits(binary.LittleEndian.Uint64(data[hdrMinZ:])),
	}
	size := math.Float64frombits(binary.LittleEndian.Uint64(data[hdrSize:]))
	for _, v := range [4]float64{lo[0], lo[1], lo[2], size} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("octree root cube not finite: %w", model.ErrInvalidFormat)
		}
	}
	if size <= 0 {
		return nil, fmt.Errorf("octree root size %g: %w", size, model.ErrInvalidFormat)
	}
	t.bounds = cube(lo, size)
	t.nCells = int(binary.LittleEndian.Uint32(data[hdrCells:]))
	t.nLeafIDs = int(binary.LittleEndian.Uint32(data[hdrLeafIDs:]))
	t.cfg = Config{
		MaxDepth:     int(binary.LittleEndian.Uint16(data[hdrMaxDepth:])),
		LeafCapacity: int(binary.LittleEndian.Uint16(data[hdrLeafCap:])),
	}
	if t.nCells < 1 {
		return nil, fmt.Errorf("octree without root cell: %w", model.ErrInvalidFormat)
	}
	if uint32(t.nLeafIDs) != nodeCount {
		return nil, fmt.Errorf("octree indexes %d ids, file has %d nodes: %w", t.nLeafIDs, nodeCount, model.ErrInvalidFormat)
	}
	want := uint64(HeaderSize) + uint64(t.nCells)*CellSize + uint64(t.nLeafIDs)*4
	if uint64(len(data)) < want {
		return nil, fmt.Errorf("octree needs %d bytes, section has %d: %w", want, len(data), model.ErrTruncated)
	}
	t.cells = data[HeaderSize : HeaderSize+t.nCells*CellSize]
	t.leaves = data[HeaderSize+t.nCells*CellSize : want]

	if err := t.check(nodeCount); err != nil {
		return nil, err
	}
	return t, nil
}

// check verifies tree shape: each non-root cell has exactly one parent with a
// smaller index, leaf runs are in range, and every node id appears once.
func (t *Tree) check(nodeCount uint32) error {
	t.boxes = make([]Bounds, t.nCells)
	t.boxes[0] = t.bounds
	parented := make([]bool, t.nCells)
	seen := make([]bool, nodeCount)
	indexed := 0
	for i := range t.nCells {
		if i > 0 && !parented[i] {
			return fmt.Errorf("octree cell %d unreachable: %w", i, model.ErrInvalidFormat)
		}
		if !t.isLeaf(i) {
			if _, n := t.leafRun(i); n != 0 {
				return fmt.Errorf("octree internal cell %d has leaf ids: %w", i, model.ErrInvalidFormat)
			}
			for k := range 8 {
				c := t.child(i, k)
				if c <= i || c >= t.nCells || parented[c] {
					return fmt.Errorf("octree cell %d child %d -> %d: %w", i, k, c, model.ErrInvalidFormat)
				}
				parented[c] = true
				t.boxes[c] = t.boxes[i].child(k)
			}
			continue
		}
		off, n := t.leafRun(i)
		if uint64(off)+uint64(n) > uint64(t.nLeafIDs) {
			return fmt.Errorf("octree cell %d leaf run [%d, +%d): %w", i, off, n, model.ErrOutOfBounds)
		}
		for j := off; j < off+n; j++ {
			id := t.leafID(j)
			if id == 0 || id > nodeCount || seen[id-1] {
				return fmt.Errorf("octree cell %d leaf id %d: %w", i, id, model.ErrInvalidFormat)
			}
			seen[id-1] = true
		}
		indexed += int(n)
	}
	if indexed != t.nLeafIDs {
		return fmt.Errorf("octree leaves cover %d of %d ids: %w", indexed, t.nLeafIDs, model.ErrInvalidFormat)
	}
	return nil
}

// Verify checks that every indexed node lies inside its leaf's cube.
func (t *Tree) Verify(pos Positions) error {
	for i := range t.nCells {
		if !t.isLeaf(i) {
			continue
		}
		off, n := t.leafRun(i)
		for j := off; j < off+n; j++ {
			id := t.leafID(j)
			if p := pos.Position(int(id) - 1); !t.boxes[i].Contains(p) {
				return fmt.Errorf("node %d at %v outside octree cell %d: %w", id, p, i, model.ErrInvalidFormat)
			}
		}
	}
	return nil
}

func (t *Tree) isLeaf(i int) bool {
	return binary.LittleEndian.Uint32(t.cells[i*CellSize+cellChildren:]) == 0
}

func (t *Tree) child(i, k int) int {
	return int(binary.LittleEndian.Uint32(t.cells[i*CellSize+cellChildren+k*4:]))
}

func (t *Tree) leafRun(i int) (off, n uint32) {
	rec := t.cells[i*CellSize:]
	return binary.LittleEndian.Uint32(rec[cellLeafOff:]), binary.LittleEndian.Uint32(rec[cellLeafCnt:])
}

func (t *Tree) leafID(j uint32) uint32 {
	return binary.LittleEndian.Uint32(t.leaves[int(j)*4:])
}

// Bounds returns the root cube.
func (t *Tree) Bounds() Bounds { return t.bounds }

// Config returns the parameters the tree was built with.
func (t *Tree) Config() Config { return t.cfg }

// Stats walks the tree and summarizes its shape.
func (t *Tree) Stats() Stats {
	st := Stats{Cells: t.nCells}
	depth := make([]int, t.nCells)
	for i := range t.nCells {
		st.MaxDepth = max(st.MaxDepth, depth[i])
		if t.isLeaf(i) {
			st.Leaves++
			_, n := t.leafRun(i)
			st.MaxLeaf = max(st.MaxLeaf, int(n))
			continue
		}
		for k := range 8 {
			depth[t.child(i, k)] = depth[i] + 1
		}
	}
	return st
}

// Near appends to dst the ids of nodes within radius of p, in ascending id
// order. Negative or NaN radii match nothing.
func (t *Tree) Near(pos Positions, p model.Coordinate, radius float64, dst []model.NodeID) []model.NodeID {
	if !(radius >= 0) {
		return dst
	}
	r2 := radius * radius
	q := point(p)
	start := len(dst)

	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.boxes[i].minDistSquared(q) > r2 {
			continue
		}
		if !t.isLeaf(i) {
			for k := 7; k >= 0; k-- {
				stack = append(stack, t.child(i, k))
			}
			continue
		}
		off, n := t.leafRun(i)
		for j := off; j < off+n; j++ {
			id := t.leafID(j)
			if pos.Position(int(id)-1).DistanceSquared(p) <= r2 {
				dst = append(dst, model.NodeID(id))
			}
		}
	}
	slices.Sort(dst[start:])
	return dst
}

// NearestK appends the ids of the k nodes closest to p, ordered by
// (distance, id).
func (t *Tree) NearestK(pos Positions, p model.Coordinate, k int, dst []model.NodeID) []model.NodeID {
	if k <= 0 || t.nLeafIDs == 0 {
		return dst
	}
	k = min(k, t.nLeafIDs)
	q := point(p)

	cells := queue.NewMin(64)
	best := queue.NewMax(k)
	cells.Push(queue.Item{ID: 0, Dist: t.boxes[0].minDistSquared(q)})
	for cells.Len() > 0 {
		c, _ := cells.Pop()
		if best.Len() == k {
			// Equal bounds may still hold a smaller id at the same distance.
			if worst, _ := best.Top(); c.Dist > worst.Dist {
				break
			}
		}
		i := int(c.ID)
		if !t.isLeaf(i) {
			for ch := range 8 {
				ci := t.child(i, ch)
				cells.Push(queue.Item{ID: uint32(ci), Dist: t.boxes[ci].minDistSquared(q)})
			}
			continue
		}
		off, n := t.leafRun(i)
		for j := off; j < off+n; j++ {
			id := t.leafID(j)
			best.PushBounded(queue.Item{ID: id, Dist: pos.Position(int(id) - 1).DistanceSquared(p)}, k)
		}
	}

	items := slices.Clone(best.Items())
	slices.SortFunc(items, func(a, b queue.Item) int {
		switch {
		case queue.Before(a, b):
			return -1
		case queue.Before(b, a):
			return 1
		}
		return 0
	})
	for _, it := range items {
		dst = append(dst, model.NodeID(it.ID))
	}
	return dst
}
