package format

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/lingodb/model"
)

// LayerIndexHeaderSize is the size of the (offset, count) table that opens the
// layer index section: one pair of u32 per layer.
const LayerIndexHeaderSize = model.NumLayers * 8

// EncodeLayerIndex groups node ids by layer, where layers[i] is the layer of
// node i+1. Ids within a layer are ascending.
func EncodeLayerIndex(layers []model.Layer) ([]byte, error) {
	if uint64(len(layers)) > math.MaxUint32 {
		return nil, fmt.Errorf("layer index over %d nodes: %w", len(layers), model.ErrCapacityExceeded)
	}
	var counts [model.NumLayers]uint32
	for i, l := range layers {
		if !l.Valid() {
			return nil, fmt.Errorf("node %d layer %d: %w", i+1, l, model.ErrInvalidArgument)
		}
		counts[l]++
	}

	buf := make([]byte, LayerIndexHeaderSize+len(layers)*4)
	var next [model.NumLayers]uint32
	off := uint32(0)
	for l := range model.NumLayers {
		binary.LittleEndian.PutUint32(buf[l*8:], off)
		binary.LittleEndian.PutUint32(buf[l*8+4:], counts[l])
		next[l] = off
		off += counts[l]
	}
	ids := buf[LayerIndexHeaderSize:]
	for i, l := range layers {
		binary.LittleEndian.PutUint32(ids[int(next[l])*4:], uint32(i+1))
		next[l]++
	}
	return buf, nil
}

// LayerIndex is a zero-copy view over the layer index section.
type LayerIndex struct {
	data []byte
	ids  []byte
}

// OpenLayerIndex validates the section against the node array: runs are
// contiguous in layer order, ids ascend within a run, and every id sits in
// the run of its own layer.
func OpenLayerIndex(data []byte, nodes NodeArray) (LayerIndex, error) {
	n := nodes.Len()
	want := uint64(LayerIndexHeaderSize) + uint64(n)*4
	if uint64(len(data)) < want {
		return LayerIndex{}, fmt.Errorf("layer index needs %d bytes, section has %d: %w", want, len(data), model.ErrTruncated)
	}
	x := LayerIndex{data: data[:LayerIndexHeaderSize], ids: data[LayerIndexHeaderSize:want]}

	expect := uint32(0)
	for l := range model.Layer(model.NumLayers) {
		off, cnt := x.run(l)
		if off != expect || uint64(off)+uint64(cnt) > uint64(n) {
			return LayerIndex{}, fmt.Errorf("layer index run %s [%d, +%d): %w", l, off, cnt, model.ErrInvalidFormat)
		}
		prev := uint32(0)
		for j := off; j < off+cnt; j++ {
			id := x.id(j)
			if id <= prev || id > uint32(n) || nodes.Layer(int(id)-1) != l {
				return LayerIndex{}, fmt.Errorf("layer index run %s holds node %d: %w", l, id, model.ErrInvalidFormat)
			}
			prev = id
		}
		expect = off + cnt
	}
	if expect != uint32(n) {
		return LayerIndex{}, fmt.Errorf("layer index covers %d of %d nodes: %w", expect, n, model.ErrInvalidFormat)
	}
	return x, nil
}

func (x LayerIndex) run(l model.Layer) (off, cnt uint32) {
	return binary.LittleEndian.Uint32(x.data[int(l)*8:]), binary.LittleEndian.Uint32(x.data[int(l)*8+4:])
}

func (x LayerIndex) id(j uint32) uint32 {
	return binary.LittleEndian.Uint32(x.ids[int(j)*4:])
}

// Count returns the number of nodes in layer l.
func (x LayerIndex) Count(l model.Layer) int {
	if !l.Valid() || x.data == nil {
		return 0
	}
	_, cnt := x.run(l)
	return int(cnt)
}

// AppendNodes appends the ids of layer l in ascending order.
func (x LayerIndex) AppendNodes(l model.Layer, dst []model.NodeID) []model.NodeID {
	if !l.Valid() || x.data == nil {
		return dst
	}
	off, cnt := x.run(l)
	for j := off; j < off+cnt; j++ {
		dst = append(dst, model.NodeID(x.id(j)))
	}
	return dst
}
