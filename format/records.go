package format

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/lingodb/model"
)

const (
	// NodeRecordSize is the packed size of a node record.
	NodeRecordSize = 60
	// ConnectionRecordSize is the packed size of a connection record.
	ConnectionRecordSize = 20
)

// Node record field offsets.
const (
	nodeWordOffset  = 0
	nodeWordLength  = 4
	nodeX           = 6
	nodeY           = 10
	nodeZ           = 14
	nodeLayer       = 18
	nodeMorpheme    = 19
	nodeEtymology   = 20
	nodeFlags       = 21
	nodeConnOffset  = 23
	nodeConnCount   = 27
	nodeRecordUsed  = 29
	connTarget      = 0
	connType        = 4
	connStrength    = 5
	connRecordUsed  = 9
	maxConnPerNode  = math.MaxUint16
	maxWordByteSize = math.MaxUint16
)

// MaxConnectionsPerNode is the largest outgoing run a node record can describe.
const MaxConnectionsPerNode = maxConnPerNode

// MaxWordLength is the largest word (in bytes) a node record can reference.
const MaxWordLength = maxWordByteSize

// NodeRecord is the decoded form of a packed 60-byte node record.
type NodeRecord struct {
	WordOffset        uint32
	WordLength        uint16
	Position          model.Coordinate
	Layer             model.Layer
	MorphemeType      model.MorphemeType
	Etymology         model.EtymologyOrigin
	Flags             model.NodeFlags
	ConnectionsOffset uint32
	ConnectionsCount  uint16
}

// Put writes the packed record into dst[:NodeRecordSize], zeroing the reserved tail.
func (n *NodeRecord) Put(dst []byte) {
	_ = dst[NodeRecordSize-1]
	binary.LittleEndian.PutUint32(dst[nodeWordOffset:], n.WordOffset)
	binary.LittleEndian.PutUint16(dst[nodeWordLength:], n.WordLength)
	binary.LittleEndian.PutUint32(dst[nodeX:], math.Float32bits(n.Position.X))
	binary.LittleEndian.PutUint32(dst[nodeY:], math.Float32bits(n.Position.Y))
	binary.LittleEndian.PutUint32(dst[nodeZ:], math.Float32bits(n.Position.Z))
	dst[nodeLayer] = uint8(n.Layer)
	dst[nodeMorpheme] = uint8(n.MorphemeType)
	dst[nodeEtymology] = uint8(n.Etymology)
	binary.LittleEndian.PutUint16(dst[nodeFlags:], uint16(n.Flags))
	binary.LittleEndian.PutUint32(dst[nodeConnOffset:], n.ConnectionsOffset)
	binary.LittleEndian.PutUint16(dst[nodeConnCount:], n.ConnectionsCount)
	clear(dst[nodeRecordUsed:NodeRecordSize])
}

// DecodeNodeRecord decodes a packed node record from src[:NodeRecordSize].
func DecodeNodeRecord(src []byte) NodeRecord {
	_ = src[NodeRecordSize-1]
	return NodeRecord{
		WordOffset:        binary.LittleEndian.Uint32(src[nodeWordOffset:]),
		WordLength:        binary.LittleEndian.Uint16(src[nodeWordLength:]),
		Position:          decodePosition(src),
		Layer:             model.Layer(src[nodeLayer]),
		MorphemeType:      model.MorphemeType(src[nodeMorpheme]),
		Etymology:         model.EtymologyOrigin(src[nodeEtymology]),
		Flags:             model.NodeFlags(binary.LittleEndian.Uint16(src[nodeFlags:])),
		ConnectionsOffset: binary.LittleEndian.Uint32(src[nodeConnOffset:]),
		ConnectionsCount:  binary.LittleEndian.Uint16(src[nodeConnCount:]),
	}
}

func decodePosition(src []byte) model.Coordinate {
	return model.Coordinate{
		X: math.Float32frombits(binary.LittleEndian.Uint32(src[nodeX:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(src[nodeY:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(src[nodeZ:])),
	}
}

// ConnectionRecord is the decoded form of a packed 20-byte connection record.
type ConnectionRecord struct {
	Target   model.NodeID
	Type     model.ConnectionType
	Strength float32
}

// Put writes the packed record into dst[:ConnectionRecordSize], zeroing the reserved tail.
func (c *ConnectionRecord) Put(dst []byte) {
	_ = dst[ConnectionRecordSize-1]
	binary.LittleEndian.PutUint32(dst[connTarget:], uint32(c.Target))
	dst[connType] = uint8(c.Type)
	binary.LittleEndian.PutUint32(dst[connStrength:], math.Float32bits(c.Strength))
	clear(dst[connRecordUsed:ConnectionRecordSize])
}

// DecodeConnectionRecord decodes a packed connection record from src[:ConnectionRecordSize].
func DecodeConnectionRecord(src []byte) ConnectionRecord {
	_ = src[ConnectionRecordSize-1]
	return ConnectionRecord{
		Target:   model.NodeID(binary.LittleEndian.Uint32(src[connTarget:])),
		Type:     model.ConnectionType(src[connType]),
		Strength: math.Float32frombits(binary.LittleEndian.Uint32(src[connStrength:])),
	}
}

// NodeArray is a zero-copy view over a packed node array.
type NodeArray struct {
	data []byte
}

// NewNodeArray wraps data, which must hold a whole number of records.
func NewNodeArray(data []byte) (NodeArray, error) {
	if len(data)%NodeRecordSize != 0 {
		return NodeArray{}, fmt.Errorf("node array of %d bytes is not a multiple of %d: %w", len(data), NodeRecordSize, model.ErrInvalidFormat)
	}
	return NodeArray{data: data}, nil
}

// Len returns the number of records.
func (a NodeArray) Len() int { return len(a.data) / NodeRecordSize }

func (a NodeArray) rec(i int) []byte {
	return a.data[i*NodeRecordSize : (i+1)*NodeRecordSize]
}

// At decodes the record at index i.
func (a NodeArray) At(i int) NodeRecord { return DecodeNodeRecord(a.rec(i)) }

// Position decodes only the position of record i.
func (a NodeArray) Position(i int) model.Coordinate { return decodePosition(a.rec(i)) }

// Layer decodes only the layer of record i.
func (a NodeArray) Layer(i int) model.Layer { return model.Layer(a.data[i*NodeRecordSize+nodeLayer]) }

// WordSpan returns the string-table slice of record i.
func (a NodeArray) WordSpan(i int) (offset uint32, length uint16) {
	r := a.rec(i)
	return binary.LittleEndian.Uint32(r[nodeWordOffset:]), binary.LittleEndian.Uint16(r[nodeWordLength:])
}

// ConnectionSpan returns the connection-array run of record i.
func (a NodeArray) ConnectionSpan(i int) (offset uint32, count uint16) {
	r := a.rec(i)
	return binary.LittleEndian.Uint32(r[nodeConnOffset:]), binary.LittleEndian.Uint16(r[nodeConnCount:])
}

// ConnectionSlice is a zero-copy view over a run of packed connection records.
type ConnectionSlice struct {
	data []byte
}

// NewConnectionSlice wraps data, which must hold a whole number of records.
func NewConnectionSlice(data []byte) (ConnectionSlice, error) {
	if len(data)%ConnectionRecordSize != 0 {
		return ConnectionSlice{}, fmt.Errorf("connection array of %d bytes is not a multiple of %d: %w", len(data), ConnectionRecordSize, model.ErrInvalidFormat)
	}
	return ConnectionSlice{data: data}, nil
}

// Len returns the number of records.
func (s ConnectionSlice) Len() int { return len(s.data) / ConnectionRecordSize }

// At decodes the record at index i.
func (s ConnectionSlice) At(i int) ConnectionRecord {
	return DecodeConnectionRecord(s.data[i*ConnectionRecordSize : (i+1)*ConnectionRecordSize])
}

// Target decodes only the target of record i.
func (s ConnectionSlice) Target(i int) model.NodeID {
	return model.NodeID(binary.LittleEndian.Uint32(s.data[i*ConnectionRecordSize+connTarget:]))
}

// Type decodes only the connection type of record i.
func (s ConnectionSlice) Type(i int) model.ConnectionType {
	return model.ConnectionType(s.data[i*ConnectionRecordSize+connType])
}

// Strength decodes only the strength of record i.
func (s ConnectionSlice) Strength(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(s.data[i*ConnectionRecordSize+connStrength:]))
}

// Slice returns the sub-run [offset, offset+count) or ErrOutOfBounds.
func (s ConnectionSlice) Slice(offset, count int) (ConnectionSlice, error) {
	if offset < 0 || count < 0 || offset+count > s.Len() {
		return ConnectionSlice{}, fmt.Errorf("connections [%d, +%d) outside %d records: %w", offset, count, s.Len(), model.ErrOutOfBounds)
	}
	return ConnectionSlice{data: s.data[offset*ConnectionRecordSize : (offset+count)*ConnectionRecordSize]}, nil
}

// All decodes every record in the view.
func (s ConnectionSlice) All() []ConnectionRecord {
	out := make([]ConnectionRecord, s.Len())
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}
