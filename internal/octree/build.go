// Package octree builds and queries the serialized spatial index of a
// knowledge-base file.
//
// The section starts with a 48-byte header (root cube, counts, build
// parameters), followed by fixed 40-byte cells in breadth-first order and the
// leaf id array. A cell is internal when its first child index is non-zero;
// the root is cell 0, so child indices are always positive.
//
// Queries run directly over the serialized bytes and never allocate per cell.
package octree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/lingodb/model"
)

const (
	// DefaultLeafCapacity is the number of ids a leaf holds before it splits.
	DefaultLeafCapacity = 16
	// DefaultMaxDepth bounds subdivision; deeper overflow stays in the leaf.
	DefaultMaxDepth = 10

	// HeaderSize is the size of the section header.
	HeaderSize = 48
	// CellSize is the size of one serialized cell.
	CellSize = 40
)

// Header field offsets.
const (
	hdrMinX      = 0
	hdrMinY      = 8
	hdrMinZ      = 16
	hdrSize      = 24
	hdrCells     = 32
	hdrLeafIDs   = 36
	hdrMaxDepth  = 40
	hdrLeafCap   = 42
	cellChildren = 0
	cellLeafOff  = 32
	cellLeafCnt  = 36
)

// Config controls construction.
type Config struct {
	LeafCapacity int
	MaxDepth     int
}

// DefaultConfig returns the recommended construction parameters.
func DefaultConfig() Config {
	return Config{LeafCapacity: DefaultLeafCapacity, MaxDepth: DefaultMaxDepth}
}

func (c Config) validate() error {
	if c.LeafCapacity < 1 || c.LeafCapacity > math.MaxUint16 {
		return fmt.Errorf("octree leaf capacity %d: %w", c.LeafCapacity, model.ErrInvalidArgument)
	}
	if c.MaxDepth < 0 || c.MaxDepth > 32 {
		return fmt.Errorf("octree max depth %d: %w", c.MaxDepth, model.ErrInvalidArgument)
	}
	return nil
}

// Bounds is an axis-aligned cube. Max is stored rather than recomputed so
// that a child's faces coincide exactly with its parent's midplanes.
type Bounds struct {
	Min [3]float64
	Max [3]float64
}

func cube(lo [3]float64, size float64) Bounds {
	return Bounds{Min: lo, Max: [3]float64{lo[0] + size, lo[1] + size, lo[2] + size}}
}

// Size returns the edge length along x.
func (b Bounds) Size() float64 { return b.Max[0] - b.Min[0] }

// Contains reports whether p lies in the closed cube.
func (b Bounds) Contains(p model.Coordinate) bool {
	c := point(p)
	for axis := range 3 {
		if c[axis] < b.Min[axis] || c[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}

func (b Bounds) mid(axis int) float64 {
	return b.Min[axis] + (b.Max[axis]-b.Min[axis])/2
}

// child returns the bounds of octant i. Bit 0 selects the upper x half,
// bit 1 the upper y half, bit 2 the upper z half.
func (b Bounds) child(i int) Bounds {
	out := b
	for axis := range 3 {
		if i&(1<<axis) != 0 {
			out.Min[axis] = b.mid(axis)
		} else {
			out.Max[axis] = b.mid(axis)
		}
	}
	return out
}

// octant picks the child of b containing p. Points on a midplane go to the
// lower child along that axis.
func (b Bounds) octant(p model.Coordinate) int {
	c := point(p)
	o := 0
	for axis := range 3 {
		if c[axis] > b.mid(axis) {
			o |= 1 << axis
		}
	}
	return o
}

// minDistSquared is the squared distance from p to the nearest point of b.
func (b Bounds) minDistSquared(p [3]float64) float64 {
	var d float64
	for axis := range 3 {
		switch {
		case p[axis] < b.Min[axis]:
			t := b.Min[axis] - p[axis]
			d += t * t
		case p[axis] > b.Max[axis]:
			t := p[axis] - b.Max[axis]
			d += t * t
		}
	}
	return d
}

func point(p model.Coordinate) [3]float64 {
	return [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
}

// RootBounds returns the enclosing cube for points: the unit cube, grown
// when positions fall outside it.
func RootBounds(points []model.Coordinate) Bounds {
	return cube(rootCube(points))
}

func rootCube(points []model.Coordinate) ([3]float64, float64) {
	lo := [3]float64{0, 0, 0}
	hi := [3]float64{1, 1, 1}
	for _, p := range points {
		c := point(p)
		for axis := range 3 {
			lo[axis] = min(lo[axis], c[axis])
			hi[axis] = max(hi[axis], c[axis])
		}
	}
	size := 0.0
	for axis := range 3 {
		size = max(size, hi[axis]-lo[axis])
	}
	b := cube(lo, size)
	for axis := 0; axis < 3; {
		if b.Max[axis] >= hi[axis] {
			axis++
			continue
		}
		size = math.Nextafter(size, math.Inf(1))
		b = cube(lo, size)
	}
	return lo, size
}

type buildCell struct {
	bounds   Bounds
	depth    int
	ids      []uint32
	children *[8]*buildCell
}

func (c *buildCell) split(points []model.Coordinate, cfg Config) {
	if len(c.ids) <= cfg.LeafCapacity || c.depth >= cfg.MaxDepth {
		return
	}
	var kids [8]*buildCell
	for i := range kids {
		kids[i] = &buildCell{bounds: c.bounds.child(i), depth: c.depth + 1}
	}
	for _, id := range c.ids {
		o := c.bounds.octant(points[id-1])
		kids[o].ids = append(kids[o].ids, id)
	}
	c.ids = nil
	c.children = &kids
	for _, k := range kids {
		k.split(points, cfg)
	}
}

// Stats summarizes a built or opened tree.
type Stats struct {
	Cells    int
	Leaves   int
	MaxDepth int
	MaxLeaf  int
}

// Build constructs the tree over points (node id = index + 1) and returns
// the serialized section.
func Build(points []model.Coordinate, cfg Config) ([]byte, Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, Stats{}, err
	}
	if uint64(len(points)) > math.MaxUint32 {
		return nil, Stats{}, fmt.Errorf("octree over %d points: %w", len(points), model.ErrCapacityExceeded)
	}
	for i, p := range points {
		if !p.IsFinite() {
			return nil, Stats{}, fmt.Errorf("point %d %v: %w", i+1, p, model.ErrInvalidArgument)
		}
	}

	lo, size := rootCube(points)
	root := &buildCell{bounds: cube(lo, size), ids: make([]uint32, len(points))}
	for i := range root.ids {
		root.ids[i] = uint32(i + 1)
	}
	root.split(points, cfg)

	// Breadth-first numbering: children of a cell are numbered when it is
	// dequeued, so every child index is greater than its parent's.
	order := []*buildCell{root}
	var st Stats
	for i := 0; i < len(order); i++ {
		c := order[i]
		st.MaxDepth = max(st.MaxDepth, c.depth)
		if c.children == nil {
			st.Leaves++
			st.MaxLeaf = max(st.MaxLeaf, len(c.ids))
			continue
		}
		order = append(order, c.children[:]...)
	}
	st.Cells = len(order)
	if uint64(st.Cells) > math.MaxUint32 {
		return nil, Stats{}, fmt.Errorf("octree with %d cells: %w", st.Cells, model.ErrCapacityExceeded)
	}

	buf := make([]byte, HeaderSize+st.Cells*CellSize+len(points)*4)
	binary.LittleEndian.PutUint64(buf[hdrMinX:], math.Float64bits(lo[0]))
	binary.LittleEndian.PutUint64(buf[hdrMinY:], math.Float64bits(lo[1]))
	binary.LittleEndian.PutUint64(buf[hdrMinZ:], math.Float64bits(lo[2]))
	binary.LittleEndian.PutUint64(buf[hdrSize:], math.Float64bits(size))
	binary.LittleEndian.PutUint32(buf[hdrCells:], uint32(st.Cells))
	binary.LittleEndian.PutUint32(buf[hdrLeafIDs:], uint32(len(points)))
	binary.LittleEndian.PutUint16(buf[hdrMaxDepth:], uint16(cfg.MaxDepth))
	binary.LittleEndian.PutUint16(buf[hdrLeafCap:], uint16(cfg.LeafCapacity))

	leaves := buf[HeaderSize+st.Cells*CellSize:]
	next := uint32(1)
	leafOff := uint32(0)
	for i, c := range order {
		rec := buf[HeaderSize+i*CellSize : HeaderSize+(i+1)*CellSize]
		if c.children != nil {
			for k := range 8 {
				binary.LittleEndian.PutUint32(rec[cellChildren+k*4:], next)
				next++
			}
			continue
		}
		binary.LittleEndian.PutUint32(rec[cellLeafOff:], leafOff)
		binary.LittleEndian.PutUint32(rec[cellLeafCnt:], uint32(len(c.ids)))
		for _, id := range c.ids {
			binary.LittleEndian.PutUint32(leaves[int(leafOff)*4:], id)
			leafOff++
		}
	}
	return buf, st, nil
}
