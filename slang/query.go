package slang

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/lingodb/model"
)

// QueryBuilder composes a program one instruction at a time. Each method
// appends at most one instruction. The first invalid argument is remembered
// and reported by Compile.
type QueryBuilder struct {
	code     []Instruction
	strings  []string
	interned map[string]uint32
	err      error
}

// NewQuery returns an empty QueryBuilder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{interned: make(map[string]uint32)}
}

func (q *QueryBuilder) emit(op Opcode, a, b, c uint32) *QueryBuilder {
	if q.err == nil {
		q.code = append(q.code, Instruction{Op: op, A: a, B: b, C: c})
	}
	return q
}

func (q *QueryBuilder) fail(op Opcode, format string, args ...any) *QueryBuilder {
	if q.err == nil {
		q.err = fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), model.ErrInvalidArgument)
	}
	return q
}

func unit(v float32) bool { return v >= 0 && v <= 1 }

// LoadNode pushes the nodes whose word is exactly word.
func (q *QueryBuilder) LoadNode(word string) *QueryBuilder {
	idx, ok := q.interned[word]
	if !ok {
		idx = uint32(len(q.strings))
		q.strings = append(q.strings, word)
		q.interned[word] = idx
	}
	return q.emit(OpLoadNode, idx, 0, 0)
}

// LoadByID pushes {id}, or the empty set if id is not a node.
func (q *QueryBuilder) LoadByID(id model.NodeID) *QueryBuilder {
	return q.emit(OpLoadByID, uint32(id), 0, 0)
}

// LoadLayer pushes every node of layer l.
func (q *QueryBuilder) LoadLayer(l model.Layer) *QueryBuilder {
	if !l.Valid() {
		return q.fail(OpLoadLayer, "layer %d", l)
	}
	return q.emit(OpLoadLayer, uint32(l), 0, 0)
}

// FindSimilar replaces the top set with the nodes within 1-threshold of its
// members. threshold must be in [0, 1].
func (q *QueryBuilder) FindSimilar(threshold float32) *QueryBuilder {
	if !unit(threshold) {
		return q.fail(OpFindSimilar, "threshold %v", threshold)
	}
	return q.emit(OpFindSimilar, math.Float32bits(threshold), 0, 0)
}

// LayerUp moves the top set one layer up.
func (q *QueryBuilder) LayerUp() *QueryBuilder { return q.emit(OpLayerUp, 0, 0, 0) }

// LayerDown moves the top set one layer down.
func (q *QueryBuilder) LayerDown() *QueryBuilder { return q.emit(OpLayerDown, 0, 0, 0) }

// FollowConnection replaces the top set with the targets of outgoing
// connections whose type is in mask and whose strength is at least
// minStrength.
func (q *QueryBuilder) FollowConnection(mask model.ConnectionMask, minStrength float32) *QueryBuilder {
	if mask&^model.AllConnections != 0 {
		return q.fail(OpFollowConnection, "mask %#x", uint8(mask))
	}
	if !unit(minStrength) {
		return q.fail(OpFollowConnection, "min strength %v", minStrength)
	}
	return q.emit(OpFollowConnection, uint32(mask), math.Float32bits(minStrength), 0)
}

// Filter retains the members of the top set that match f.
func (q *QueryBuilder) Filter(f Filter) *QueryBuilder {
	if err := f.validate(); err != nil {
		return q.fail(OpFilter, "%v", err)
	}
	a, b, c := f.encode()
	return q.emit(OpFilter, a, b, c)
}

// Limit keeps the n smallest ids of the top set.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return q.fail(OpLimit, "n %d", n)
	}
	return q.emit(OpLimit, uint32(n), 0, 0)
}

// Decompose maps word-layer members of the top set to their morphemes.
func (q *QueryBuilder) Decompose() *QueryBuilder { return q.emit(OpDecompose, 0, 0, 0) }

// NearestK replaces the top set with the union of the k nearest neighbors of
// each member, excluding the member itself.
func (q *QueryBuilder) NearestK(k int) *QueryBuilder {
	if k < 0 || uint64(k) >= math.MaxUint32 {
		return q.fail(OpNearestK, "k %d", k)
	}
	return q.emit(OpNearestK, uint32(k), 0, 0)
}

// Union pops two sets and pushes their union.
func (q *QueryBuilder) Union() *QueryBuilder { return q.emit(OpUnion, 0, 0, 0) }

// Intersect pops two sets and pushes their intersection.
func (q *QueryBuilder) Intersect() *QueryBuilder { return q.emit(OpIntersect, 0, 0, 0) }

// Difference pops B then A and pushes A minus B.
func (q *QueryBuilder) Difference() *QueryBuilder { return q.emit(OpDifference, 0, 0, 0) }

// Dup duplicates the top set.
func (q *QueryBuilder) Dup() *QueryBuilder { return q.emit(OpDup, 0, 0, 0) }

// Compile appends Halt, validates the program and computes its static cost.
// The builder may be extended and compiled again afterwards.
func (q *QueryBuilder) Compile() (*Program, error) {
	if q.err != nil {
		return nil, q.err
	}
	code := make([]Instruction, len(q.code), len(q.code)+1)
	copy(code, q.code)
	code = append(code, Instruction{Op: OpHalt})
	return newProgram(code, slices.Clone(q.strings))
}
