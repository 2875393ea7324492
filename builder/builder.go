package builder

import (
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/lingodb/format"
	"github.com/hupe1980/lingodb/internal/conv"
	"github.com/hupe1980/lingodb/internal/fs"
	"github.com/hupe1980/lingodb/internal/octree"
	"github.com/hupe1980/lingodb/model"
)

type node struct {
	wordOff  uint32
	wordLen  uint16
	pos      model.Coordinate
	layer    model.Layer
	morpheme model.MorphemeType
	origin   model.EtymologyOrigin
	flags    model.NodeFlags
}

type connection struct {
	source   model.NodeID
	target   model.NodeID
	typ      model.ConnectionType
	strength float32
}

// nodeKey identifies a (word, layer, position) triple. Float fields compare
// by value, so +0 and -0 collide as they denote the same position.
type nodeKey struct {
	word    string
	layer   model.Layer
	x, y, z float32
}

// Builder accumulates a knowledge base in memory.
type Builder struct {
	nodes    []node
	words    []string // words[i] is the word of node i+1
	conns    []connection
	outDeg   []uint16
	interned map[string]uint32
	strtab   []byte
	keys     map[nodeKey]model.NodeID

	header       *format.Header
	capacityHint uint64
	sealed       bool

	octree octree.Config
	fs     fs.FileSystem
	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty Builder.
func New(optFns ...Option) *Builder {
	b := &Builder{
		interned: make(map[string]uint32),
		keys:     make(map[nodeKey]model.NodeID),
		header:   format.NewHeader(),
		octree:   octree.DefaultConfig(),
		fs:       fs.Default,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(b)
	}
	return b
}

// NodeCount returns the number of nodes added so far.
func (b *Builder) NodeCount() int { return len(b.nodes) }

// ConnectionCount returns the number of connections added so far.
func (b *Builder) ConnectionCount() int { return len(b.conns) }

// AddNode adds a node with etymology Unknown, morpheme type Other and no flags.
func (b *Builder) AddNode(word string, layer model.Layer, pos model.Coordinate) (model.NodeID, error) {
	return b.AddNodeFull(word, layer, pos, model.OriginUnknown, model.MorphemeOther, 0)
}

// AddNodeFull adds a node and returns its id. Ids are issued densely from 1.
//
// The same word may appear many times at distinct positions or layers; an
// exact repeat of word, layer and position fails with a *DuplicateError.
func (b *Builder) AddNodeFull(word string, layer model.Layer, pos model.Coordinate, origin model.EtymologyOrigin, morpheme model.MorphemeType, flags model.NodeFlags) (model.NodeID, error) {
	if b.sealed {
		return model.InvalidNodeID, ErrSealed
	}
	switch {
	case !layer.Valid():
		return model.InvalidNodeID, fmt.Errorf("layer %d: %w", layer, model.ErrInvalidArgument)
	case !origin.Valid():
		return model.InvalidNodeID, fmt.Errorf("etymology origin %d: %w", origin, model.ErrInvalidArgument)
	case !morpheme.Valid():
		return model.InvalidNodeID, fmt.Errorf("morpheme type %d: %w", morpheme, model.ErrInvalidArgument)
	case !pos.IsFinite():
		return model.InvalidNodeID, fmt.Errorf("position %v: %w", pos, model.ErrInvalidArgument)
	case !utf8.ValidString(word):
		return model.InvalidNodeID, fmt.Errorf("word %q is not valid UTF-8: %w", word, model.ErrInvalidArgument)
	case len(word) > format.MaxWordLength:
		return model.InvalidNodeID, fmt.Errorf("word of %d bytes exceeds %d: %w", len(word), format.MaxWordLength, model.ErrCapacityExceeded)
	case uint64(len(b.nodes)) >= math.MaxUint32:
		return model.InvalidNodeID, fmt.Errorf("node count: %w", model.ErrCapacityExceeded)
	}

	key := nodeKey{word: word, layer: layer, x: pos.X, y: pos.Y, z: pos.Z}
	if id, ok := b.keys[key]; ok {
		return model.InvalidNodeID, &DuplicateError{Word: word, Layer: layer, Position: pos, Existing: id}
	}

	off, err := b.intern(word)
	if err != nil {
		return model.InvalidNodeID, err
	}

	b.nodes = append(b.nodes, node{
		wordOff:  off,
		wordLen:  uint16(len(word)),
		pos:      pos,
		layer:    layer,
		morpheme: morpheme,
		origin:   origin,
		flags:    flags,
	})
	b.words = append(b.words, word)
	b.outDeg = append(b.outDeg, 0)
	id := model.NodeIDFromIndex(len(b.nodes) - 1)
	b.keys[key] = id
	return id, nil
}

func (b *Builder) intern(word string) (uint32, error) {
	if off, ok := b.interned[word]; ok {
		return off, nil
	}
	off, err := conv.IntToUint32("string table size", len(b.strtab))
	if err != nil {
		return 0, err
	}
	if _, err := conv.IntToUint32("string table size", len(b.strtab)+len(word)); err != nil {
		return 0, err
	}
	b.strtab = append(b.strtab, word...)
	b.interned[word] = off
	return off, nil
}

// AddConnection adds a directed connection from source to target.
func (b *Builder) AddConnection(source, target model.NodeID, typ model.ConnectionType, strength float32) error {
	if b.sealed {
		return ErrSealed
	}
	if !b.issued(source) {
		return fmt.Errorf("source %d: %w", source, model.ErrUnknownNode)
	}
	if !b.issued(target) {
		return fmt.Errorf("target %d: %w", target, model.ErrUnknownNode)
	}
	if !typ.Valid() {
		return fmt.Errorf("connection type %d: %w", typ, model.ErrInvalidArgument)
	}
	if s := float64(strength); math.IsNaN(s) || s < 0 || s > 1 {
		return fmt.Errorf("strength %v: %w", strength, model.ErrInvalidStrength)
	}
	if b.outDeg[source.Index()] == format.MaxConnectionsPerNode {
		return fmt.Errorf("node %d has %d outgoing connections: %w", source, format.MaxConnectionsPerNode, model.ErrCapacityExceeded)
	}
	if uint64(len(b.conns)) >= math.MaxUint32 {
		return fmt.Errorf("connection count: %w", model.ErrCapacityExceeded)
	}
	b.outDeg[source.Index()]++
	b.conns = append(b.conns, connection{source: source, target: target, typ: typ, strength: strength})
	return nil
}

func (b *Builder) issued(id model.NodeID) bool {
	return id.IsValid() && int(id) <= len(b.nodes)
}

// SetLanguage records a language code of at most 16 bytes.
func (b *Builder) SetLanguage(code string) error {
	if b.sealed {
		return ErrSealed
	}
	return b.header.SetLanguage(code)
}

// SetModelVersion records a model version of at most 32 bytes.
func (b *Builder) SetModelVersion(v string) error {
	if b.sealed {
		return ErrSealed
	}
	return b.header.SetModelVersion(v)
}

// SetCapacityHint records the expected node capacity of the knowledge base.
func (b *Builder) SetCapacityHint(n uint64) {
	b.capacityHint = n
}
