package model

import (
	"fmt"
	"math"
)

// NodeID identifies a node in a knowledge base.
// Valid identifiers range from 1 to the node count; the identifier minus one
// is the index into the node array.
type NodeID uint32

// InvalidNodeID is the reserved sentinel identifier.
const InvalidNodeID NodeID = 0

// IsValid reports whether id is not the sentinel.
func (id NodeID) IsValid() bool { return id != InvalidNodeID }

// Index returns the zero-based node array index of id.
func (id NodeID) Index() int { return int(id) - 1 }

// NodeIDFromIndex converts a zero-based node array index to a NodeID.
func NodeIDFromIndex(i int) NodeID { return NodeID(i + 1) }

// Coordinate is a position in the 3-D concept space.
// Components are conventionally in [0, 1].
type Coordinate struct {
	X, Y, Z float32
}

// Coord is shorthand for Coordinate{X: x, Y: y, Z: z}.
func Coord(x, y, z float32) Coordinate {
	return Coordinate{X: x, Y: y, Z: z}
}

// DistanceSquared returns the squared Euclidean distance between c and o.
func (c Coordinate) DistanceSquared(o Coordinate) float64 {
	dx := float64(c.X) - float64(o.X)
	dy := float64(c.Y) - float64(o.Y)
	dz := float64(c.Z) - float64(o.Z)
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the Euclidean distance between c and o.
func (c Coordinate) Distance(o Coordinate) float64 {
	return math.Sqrt(c.DistanceSquared(o))
}

// IsFinite reports whether all components are finite.
func (c Coordinate) IsFinite() bool {
	return isFinite32(c.X) && isFinite32(c.Y) && isFinite32(c.Z)
}

// String returns a string representation of the Coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%g, %g, %g)", c.X, c.Y, c.Z)
}

func isFinite32(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Layer is the abstraction level of a linguistic entity.
type Layer uint8

const (
	LayerLetters Layer = iota
	LayerPhonemes
	LayerMorphemes
	LayerWords
	LayerPhrases
	LayerConcepts
	LayerDomains
)

// NumLayers is the number of defined layers.
const NumLayers = 7

var layerNames = [NumLayers]string{"letters", "phonemes", "morphemes", "words", "phrases", "concepts", "domains"}

// layerZ holds the canonical z-center used for default placement.
var layerZ = [NumLayers]float32{0.05, 0.15, 0.30, 0.45, 0.60, 0.75, 0.90}

// Valid reports whether l is a defined layer.
func (l Layer) Valid() bool { return l < NumLayers }

// ZCenter returns the canonical z coordinate of the layer.
func (l Layer) ZCenter() float32 {
	if !l.Valid() {
		return 0
	}
	return layerZ[l]
}

// Up returns the next higher layer. ok is false for LayerDomains.
func (l Layer) Up() (Layer, bool) {
	if !l.Valid() || l == LayerDomains {
		return l, false
	}
	return l + 1, true
}

// Down returns the next lower layer. ok is false for LayerLetters.
func (l Layer) Down() (Layer, bool) {
	if !l.Valid() || l == LayerLetters {
		return l, false
	}
	return l - 1, true
}

func (l Layer) String() string {
	if !l.Valid() {
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
	return layerNames[l]
}

// EtymologyOrigin is the historical language family attributed to a lexeme.
type EtymologyOrigin uint8

const (
	OriginLatin EtymologyOrigin = iota
	OriginGreek
	OriginGermanic
	OriginFrench
	OriginArabic
	OriginSanskrit
	OriginModern
	OriginUnknown
)

// NumOrigins is the number of defined etymology origins.
const NumOrigins = 8

var originNames = [NumOrigins]string{"latin", "greek", "germanic", "french", "arabic", "sanskrit", "modern", "unknown"}

// originY holds the canonical y-base used by default seeding.
var originY = [NumOrigins]float32{0.10, 0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.90}

// Valid reports whether o is a defined origin.
func (o EtymologyOrigin) Valid() bool { return o < NumOrigins }

// YBase returns the canonical y coordinate of the origin.
func (o EtymologyOrigin) YBase() float32 {
	if !o.Valid() {
		return originY[OriginUnknown]
	}
	return originY[o]
}

func (o EtymologyOrigin) String() string {
	if !o.Valid() {
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
	return originNames[o]
}

// MorphemeType classifies a morpheme.
type MorphemeType uint8

const (
	MorphemePrefix MorphemeType = iota
	MorphemeSuffix
	MorphemeRoot
	MorphemeCompound
	MorphemeInfix
	MorphemeOther
)

// NumMorphemeTypes is the number of defined morpheme types.
const NumMorphemeTypes = 6

var morphemeNames = [NumMorphemeTypes]string{"prefix", "suffix", "root", "compound", "infix", "other"}

// Valid reports whether m is a defined morpheme type.
func (m MorphemeType) Valid() bool { return m < NumMorphemeTypes }

func (m MorphemeType) String() string {
	if !m.Valid() {
		return fmt.Sprintf("morpheme(%d)", uint8(m))
	}
	return morphemeNames[m]
}

// NodeFlags is a bitset of independent node properties.
type NodeFlags uint16

const (
	FlagTechnical NodeFlags = 1 << iota
	FlagProductive
	FlagFrequent
	FlagLearned
)

// Has reports whether all bits of mask are set.
func (f NodeFlags) Has(mask NodeFlags) bool { return f&mask == mask }

// ConnectionType is the kind of a directed link between two nodes.
type ConnectionType uint8

const (
	Hypernymy ConnectionType = iota
	Hyponymy
	Meronymy
	Synonymy
	Antonymy
	Derivation
	Analogy
)

// NumConnectionTypes is the number of defined connection types.
const NumConnectionTypes = 7

var connectionNames = [NumConnectionTypes]string{"hypernymy", "hyponymy", "meronymy", "synonymy", "antonymy", "derivation", "analogy"}

// Valid reports whether t is a defined connection type.
func (t ConnectionType) Valid() bool { return t < NumConnectionTypes }

// Mask returns the single-bit ConnectionMask of t.
func (t ConnectionType) Mask() ConnectionMask { return ConnectionMask(1) << t }

func (t ConnectionType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("connection(%d)", uint8(t))
	}
	return connectionNames[t]
}

// ConnectionMask is a set of connection types, one bit per type.
type ConnectionMask uint8

// AllConnections matches every defined connection type.
const AllConnections ConnectionMask = 1<<NumConnectionTypes - 1

// MaskOf builds a mask from the given types.
func MaskOf(types ...ConnectionType) ConnectionMask {
	var m ConnectionMask
	for _, t := range types {
		m |= t.Mask()
	}
	return m
}

// Contains reports whether t is in the mask.
func (m ConnectionMask) Contains(t ConnectionType) bool {
	return t.Valid() && m&t.Mask() != 0
}

// Node is a decoded node. Word may borrow from a memory-mapped string table
// and is only valid while the knowledge base that produced it is open.
type Node struct {
	ID       NodeID
	Word     string
	Position Coordinate
	Layer    Layer
	Morpheme MorphemeType
	Origin   EtymologyOrigin
	Flags    NodeFlags
}

// Connection is a decoded outgoing link of a node.
type Connection struct {
	Target   NodeID
	Type     ConnectionType
	Strength float32
}
