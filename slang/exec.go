package slang

import (
	"context"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lingodb/format"
	"github.com/hupe1980/lingodb/model"
)

// DefaultLayerRadius is the search radius of the spatial fallback used by
// LayerUp and LayerDown when a node has no suitable connection.
const DefaultLayerRadius = 0.1

// Source is the read-only view of a knowledge base a program runs against.
// *reader.Reader implements it.
type Source interface {
	Contains(id model.NodeID) bool
	Node(id model.NodeID) (model.Node, error)
	NodePosition(id model.NodeID) (model.Coordinate, error)
	NodeLayer(id model.NodeID) (model.Layer, error)
	NodeConnections(id model.NodeID) (format.ConnectionSlice, error)
	AppendByWord(dst []model.NodeID, word string) []model.NodeID
	AppendNear(dst []model.NodeID, p model.Coordinate, radius float64) []model.NodeID
	AppendNearestK(dst []model.NodeID, p model.Coordinate, k int) []model.NodeID
	AppendLayer(dst []model.NodeID, l model.Layer) []model.NodeID
}

// Limits caps the work a single program may do. Zero fields take the
// defaults.
type Limits struct {
	MaxInstructions int
	MaxStackDepth   int
	MaxResultSize   int
}

// DefaultLimits returns 10 000 instructions, a stack of MaxStackDepth sets
// and 10 000 nodes per set.
func DefaultLimits() Limits {
	return Limits{
		MaxInstructions: 10000,
		MaxStackDepth:   MaxStackDepth,
		MaxResultSize:   10000,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxInstructions <= 0 {
		l.MaxInstructions = d.MaxInstructions
	}
	if l.MaxStackDepth <= 0 || l.MaxStackDepth > MaxStackDepth {
		l.MaxStackDepth = d.MaxStackDepth
	}
	if l.MaxResultSize <= 0 {
		l.MaxResultSize = d.MaxResultSize
	}
	return l
}

// ExecError reports where a program failed. Executed counts the instructions
// that completed before the failure.
type ExecError struct {
	PC       int
	Op       Opcode
	Executed int
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("slang: pc %d (%s) after %d instructions: %v", e.PC, e.Op, e.Executed, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Option configures an Executor.
type Option func(*Executor)

// WithLimits sets the per-program caps.
func WithLimits(l Limits) Option {
	return func(e *Executor) { e.limits = l.withDefaults() }
}

// WithLayerRadius sets the radius of the LayerUp/LayerDown spatial fallback.
// Negative or non-finite values are ignored.
func WithLayerRadius(r float64) Option {
	return func(e *Executor) {
		if r >= 0 && !math.IsInf(r, 0) {
			e.layerRadius = r
		}
	}
}

// Executor runs programs against a Source. It holds no per-query state and
// is safe for concurrent use.
type Executor struct {
	src         Source
	limits      Limits
	layerRadius float64
}

// NewExecutor returns an Executor over src.
func NewExecutor(src Source, optFns ...Option) *Executor {
	e := &Executor{
		src:         src,
		limits:      DefaultLimits(),
		layerRadius: DefaultLayerRadius,
	}
	for _, fn := range optFns {
		fn(e)
	}
	return e
}

// Limits returns the caps in effect.
func (e *Executor) Limits() Limits { return e.limits }

// Execute runs p and returns the result in ascending id order.
func (e *Executor) Execute(ctx context.Context, p *Program) ([]model.NodeID, error) {
	return e.ExecuteInto(ctx, p, nil)
}

// ExecuteInto runs p and appends the result to dst in ascending id order.
// On error dst is returned unchanged and its backing array is not written.
func (e *Executor) ExecuteInto(ctx context.Context, p *Program, dst []model.NodeID) ([]model.NodeID, error) {
	if p == nil || len(p.code) == 0 {
		return dst, fmt.Errorf("%w: empty program", ErrInvalidProgram)
	}
	m := newMachine(e, p)
	defer m.release()

	res, err := m.run(ctx)
	if err != nil {
		return dst, err
	}
	it := res.Iterator()
	for it.HasNext() {
		dst = append(dst, model.NodeID(it.Next()))
	}
	return dst, nil
}

// machine is the state of one execution.
type machine struct {
	e        *Executor
	p        *Program
	stack    []*roaring.Bitmap
	scratch  *[]model.NodeID
	executed int
}

func newMachine(e *Executor, p *Program) *machine {
	return &machine{
		e:       e,
		p:       p,
		stack:   make([]*roaring.Bitmap, 0, p.maxDepth),
		scratch: getScratch(),
	}
}

func (m *machine) release() {
	for _, s := range m.stack {
		putBitmap(s)
	}
	m.stack = m.stack[:0]
	putScratch(m.scratch)
}

func (m *machine) run(ctx context.Context) (*roaring.Bitmap, error) {
	for pc, ins := range m.p.code {
		fail := func(err error) error {
			return &ExecError{PC: pc, Op: ins.Op, Executed: m.executed, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return nil, fail(fmt.Errorf("%w: %w", model.ErrCancelled, err))
		}
		if m.executed >= m.e.limits.MaxInstructions {
			return nil, fail(fmt.Errorf("%w: instruction limit %d", model.ErrResourceExhausted, m.e.limits.MaxInstructions))
		}
		if ins.Op == OpHalt {
			m.executed++
			if len(m.stack) == 0 {
				m.stack = append(m.stack, getBitmap())
			}
			return m.stack[len(m.stack)-1], nil
		}
		if err := m.step(ins); err != nil {
			return nil, fail(err)
		}
		m.executed++
	}
	return nil, fmt.Errorf("%w: missing HALT", ErrInvalidProgram)
}

func (m *machine) push(s *roaring.Bitmap) error {
	if len(m.stack) >= m.e.limits.MaxStackDepth {
		putBitmap(s)
		return fmt.Errorf("%w: stack depth %d", model.ErrResourceExhausted, m.e.limits.MaxStackDepth)
	}
	if err := m.checkSize(s); err != nil {
		putBitmap(s)
		return err
	}
	m.stack = append(m.stack, s)
	return nil
}

func (m *machine) pop() (*roaring.Bitmap, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("%w: stack underflow", ErrInvalidProgram)
	}
	s := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return s, nil
}

func (m *machine) checkSize(s *roaring.Bitmap) error {
	if n := s.GetCardinality(); n > uint64(m.e.limits.MaxResultSize) {
		return fmt.Errorf("%w: node set of %d exceeds %d", model.ErrResourceExhausted, n, m.e.limits.MaxResultSize)
	}
	return nil
}

// load pushes a set produced by an Append-style lookup.
func (m *machine) load(fill func(dst []model.NodeID) []model.NodeID) error {
	*m.scratch = fill((*m.scratch)[:0])
	s := getBitmap()
	for _, id := range *m.scratch {
		s.Add(uint32(id))
	}
	return m.push(s)
}

// mapEach replaces the top set with the union of fn over its members.
func (m *machine) mapEach(fn func(id model.NodeID, out *roaring.Bitmap) error) error {
	in, err := m.pop()
	if err != nil {
		return err
	}
	defer putBitmap(in)

	out := getBitmap()
	it := in.Iterator()
	for it.HasNext() {
		if err := fn(model.NodeID(it.Next()), out); err != nil {
			putBitmap(out)
			return err
		}
		if err := m.checkSize(out); err != nil {
			putBitmap(out)
			return err
		}
	}
	return m.push(out)
}

// binary pops B then A, applies op to A in place and pushes A.
func (m *machine) binary(op func(a, b *roaring.Bitmap)) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	defer putBitmap(b)
	a, err := m.pop()
	if err != nil {
		return err
	}
	op(a, b)
	return m.push(a)
}

func (m *machine) step(ins Instruction) error {
	src := m.e.src
	switch ins.Op {
	case OpLoadNode:
		word := m.p.strings[ins.A]
		return m.load(func(dst []model.NodeID) []model.NodeID { return src.AppendByWord(dst, word) })
	case OpLoadByID:
		s := getBitmap()
		if id := model.NodeID(ins.A); src.Contains(id) {
			s.Add(uint32(id))
		}
		return m.push(s)
	case OpLoadLayer:
		l := model.Layer(ins.A)
		return m.load(func(dst []model.NodeID) []model.NodeID { return src.AppendLayer(dst, l) })
	case OpFindSimilar:
		radius := 1 - float64(math.Float32frombits(ins.A))
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			return m.similar(id, radius, out)
		})
	case OpLayerUp:
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			return m.layerMove(id, true, out)
		})
	case OpLayerDown:
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			return m.layerMove(id, false, out)
		})
	case OpFollowConnection:
		mask := model.ConnectionMask(ins.A)
		minStrength := math.Float32frombits(ins.B)
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			conns, err := src.NodeConnections(id)
			if err != nil {
				return err
			}
			for j := range conns.Len() {
				if mask.Contains(conns.Type(j)) && conns.Strength(j) >= minStrength {
					out.Add(uint32(conns.Target(j)))
				}
			}
			return nil
		})
	case OpFilter:
		f := decodeFilter(ins.A, ins.B, ins.C)
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			n, err := src.Node(id)
			if err != nil {
				return err
			}
			if f.Match(n) {
				out.Add(uint32(id))
			}
			return nil
		})
	case OpLimit:
		n := uint64(ins.A)
		in, err := m.pop()
		if err != nil {
			return err
		}
		if in.GetCardinality() <= n {
			return m.push(in)
		}
		out := getBitmap()
		it := in.Iterator()
		for range n {
			out.Add(it.Next())
		}
		putBitmap(in)
		return m.push(out)
	case OpDecompose:
		return m.mapEach(m.decompose)
	case OpNearestK:
		k := int(ins.A)
		return m.mapEach(func(id model.NodeID, out *roaring.Bitmap) error {
			return m.nearest(id, k, out)
		})
	case OpUnion:
		return m.binary(func(a, b *roaring.Bitmap) { a.Or(b) })
	case OpIntersect:
		return m.binary(func(a, b *roaring.Bitmap) { a.And(b) })
	case OpDifference:
		return m.binary(func(a, b *roaring.Bitmap) { a.AndNot(b) })
	case OpDup:
		if len(m.stack) == 0 {
			return fmt.Errorf("%w: stack underflow", ErrInvalidProgram)
		}
		c := getBitmap()
		c.Or(m.stack[len(m.stack)-1])
		return m.push(c)
	default:
		return fmt.Errorf("%w: opcode %s", ErrInvalidProgram, ins.Op)
	}
}

// similar adds the nodes within radius of id, skipping id itself and any
// node at exactly its position.
func (m *machine) similar(id model.NodeID, radius float64, out *roaring.Bitmap) error {
	if radius < 0 {
		return nil
	}
	src := m.e.src
	pos, err := src.NodePosition(id)
	if err != nil {
		return err
	}
	*m.scratch = src.AppendNear((*m.scratch)[:0], pos, radius)
	for _, n := range *m.scratch {
		if n == id {
			continue
		}
		p, err := src.NodePosition(n)
		if err != nil {
			return err
		}
		if p == pos {
			continue
		}
		out.Add(uint32(n))
	}
	return nil
}

// layerMove follows connections to the adjacent layer. Upward moves use
// Hypernymy; downward moves use Meronymy and Hyponymy. When no connection
// qualifies, the nodes within the layer radius on the far side of id's
// layer are used instead.
func (m *machine) layerMove(id model.NodeID, up bool, out *roaring.Bitmap) error {
	src := m.e.src
	layer, err := src.NodeLayer(id)
	if err != nil {
		return err
	}
	next, ok := layer.Down()
	mask := model.MaskOf(model.Meronymy, model.Hyponymy)
	if up {
		next, ok = layer.Up()
		mask = model.Hypernymy.Mask()
	}

	found := false
	if ok {
		conns, err := src.NodeConnections(id)
		if err != nil {
			return err
		}
		for j := range conns.Len() {
			if !mask.Contains(conns.Type(j)) {
				continue
			}
			t := conns.Target(j)
			tl, err := src.NodeLayer(t)
			if err != nil {
				return err
			}
			if tl == next {
				out.Add(uint32(t))
				found = true
			}
		}
	}
	if found {
		return nil
	}

	pos, err := src.NodePosition(id)
	if err != nil {
		return err
	}
	*m.scratch = src.AppendNear((*m.scratch)[:0], pos, m.e.layerRadius)
	for _, n := range *m.scratch {
		nl, err := src.NodeLayer(n)
		if err != nil {
			return err
		}
		if (up && nl > layer) || (!up && nl < layer) {
			out.Add(uint32(n))
		}
	}
	return nil
}

// decompose adds the morpheme-layer Meronymy targets of a word-layer node.
func (m *machine) decompose(id model.NodeID, out *roaring.Bitmap) error {
	src := m.e.src
	layer, err := src.NodeLayer(id)
	if err != nil {
		return err
	}
	if layer != model.LayerWords {
		return nil
	}
	conns, err := src.NodeConnections(id)
	if err != nil {
		return err
	}
	for j := range conns.Len() {
		if conns.Type(j) != model.Meronymy {
			continue
		}
		t := conns.Target(j)
		tl, err := src.NodeLayer(t)
		if err != nil {
			return err
		}
		if tl == model.LayerMorphemes {
			out.Add(uint32(t))
		}
	}
	return nil
}

// nearest adds the k nodes closest to id, excluding id.
func (m *machine) nearest(id model.NodeID, k int, out *roaring.Bitmap) error {
	if k == 0 {
		return nil
	}
	src := m.e.src
	pos, err := src.NodePosition(id)
	if err != nil {
		return err
	}
	*m.scratch = src.AppendNearestK((*m.scratch)[:0], pos, k+1)
	taken := 0
	for _, n := range *m.scratch {
		if taken == k {
			break
		}
		if n == id {
			continue
		}
		out.Add(uint32(n))
		taken++
	}
	return nil
}
