// Package wordindex builds and probes the open-addressed word hash index.
//
// Layout (little-endian):
//
//	header   16 B  bucket_count u32 | entry_count u32 | postings_count u32 | reserved u32
//	buckets  16 B  hash u64 | postings_offset u32 | postings_count u32
//	postings  4 B  node id, ascending within each bucket
//
// Buckets are keyed by FNV-1a 64 of the word and probed linearly. A bucket
// with zero postings is empty. Equal hashes are disambiguated by comparing
// the word of the bucket's first posting.
package wordindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/model"
)

const (
	// HeaderSize is the size of the index header.
	HeaderSize = 16
	// BucketSize is the size of one bucket.
	BucketSize = 16

	// MaxLoadNum / MaxLoadDen is the highest allowed load factor (0.7).
	MaxLoadNum = 7
	MaxLoadDen = 10

	minBuckets = 8
)

// Words resolves a zero-based node index to its word.
type Words interface {
	Word(index int) string
}

// BucketCount returns the power-of-two table size for n distinct words.
func BucketCount(n int) int {
	need := max((n*MaxLoadDen+MaxLoadNum-1)/MaxLoadNum, minBuckets)
	// Load must stay strictly below 1 so probing always finds an empty bucket.
	if need <= n {
		need = n + 1
	}
	return 1 << bits.Len(uint(need-1))
}

// Build indexes words, where words[i] belongs to node id i+1.
func Build(words []string) ([]byte, error) {
	if uint64(len(words)) > math.MaxUint32 {
		return nil, fmt.Errorf("word index over %d nodes: %w", len(words), model.ErrCapacityExceeded)
	}

	// Distinct words in order of first appearance keep the layout deterministic.
	postings := make(map[string][]uint32, len(words))
	var order []string
	for i, w := range words {
		if _, ok := postings[w]; !ok {
			order = append(order, w)
		}
		postings[w] = append(postings[w], uint32(i+1))
	}

	nb := BucketCount(len(order))
	buf := make([]byte, HeaderSize+nb*BucketSize+len(words)*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(nb))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(order)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(words)))

	buckets := buf[HeaderSize : HeaderSize+nb*BucketSize]
	list := buf[HeaderSize+nb*BucketSize:]
	mask := uint64(nb - 1)
	off := 0
	for _, w := range order {
		h := hash.FNV1a64(w)
		slot := h & mask
		for binary.LittleEndian.Uint32(buckets[slot*BucketSize+12:]) != 0 {
			slot = (slot + 1) & mask
		}
		ids := postings[w]
		b := buckets[slot*BucketSize:]
		binary.LittleEndian.PutUint64(b[0:], h)
		binary.LittleEndian.PutUint32(b[8:], uint32(off))
		binary.LittleEndian.PutUint32(b[12:], uint32(len(ids)))
		for _, id := range ids {
			binary.LittleEndian.PutUint32(list[off*4:], id)
			off++
		}
	}
	return buf, nil
}

// Index is a read-only view over a serialized word index.
type Index struct {
	buckets  []byte
	postings []byte
	nBuckets int
	entries  int
	mask     uint64
}

// Open validates section data for a file with nodeCount nodes.
func Open(data []byte, nodeCount uint32) (*Index, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("word index of %d bytes: %w", len(data), model.ErrTruncated)
	}
	nb := binary.LittleEndian.Uint32(data[0:])
	entries := binary.LittleEndian.Uint32(data[4:])
	np := binary.LittleEndian.Uint32(data[8:])
	if nb == 0 || nb&(nb-1) != 0 {
		return nil, fmt.Errorf("word index bucket count %d not a power of two: %w", nb, model.ErrInvalidFormat)
	}
	if uint64(entries)*MaxLoadDen > uint64(nb)*MaxLoadNum || entries >= nb {
		return nil, fmt.Errorf("word index holds %d entries in %d buckets: %w", entries, nb, model.ErrInvalidFormat)
	}
	if np != nodeCount {
		return nil, fmt.Errorf("word index has %d postings, file has %d nodes: %w", np, nodeCount, model.ErrInvalidFormat)
	}
	want := uint64(HeaderSize) + uint64(nb)*BucketSize + uint64(np)*4
	if uint64(len(data)) < want {
		return nil, fmt.Errorf("word index needs %d bytes, section has %d: %w", want, len(data), model.ErrTruncated)
	}
	idx := &Index{
		buckets:  data[HeaderSize : HeaderSize+int(nb)*BucketSize],
		postings: data[HeaderSize+int(nb)*BucketSize : want],
		nBuckets: int(nb),
		entries:  int(entries),
		mask:     uint64(nb - 1),
	}
	if err := idx.check(nodeCount); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) bucket(slot uint64) (h uint64, off, n uint32) {
	b := x.buckets[slot*BucketSize:]
	return binary.LittleEndian.Uint64(b[0:]), binary.LittleEndian.Uint32(b[8:]), binary.LittleEndian.Uint32(b[12:])
}

func (x *Index) posting(j uint32) uint32 {
	return binary.LittleEndian.Uint32(x.postings[int(j)*4:])
}

// check verifies that postings are in range, ascending, and cover every node
// exactly once.
func (x *Index) check(nodeCount uint32) error {
	seen := make([]bool, nodeCount)
	used := 0
	total := uint64(0)
	for slot := range uint64(x.nBuckets) {
		_, off, n := x.bucket(slot)
		if n == 0 {
			continue
		}
		used++
		if uint64(off)+uint64(n) > uint64(nodeCount) {
			return fmt.Errorf("word index bucket %d postings [%d, +%d): %w", slot, off, n, model.ErrOutOfBounds)
		}
		prev := uint32(0)
		for j := off; j < off+n; j++ {
			id := x.posting(j)
			if id <= prev || id > nodeCount || seen[id-1] {
				return fmt.Errorf("word index bucket %d posting %d: %w", slot, id, model.ErrInvalidFormat)
			}
			seen[id-1] = true
			prev = id
		}
		total += uint64(n)
	}
	if used != x.entries || total != uint64(nodeCount) {
		return fmt.Errorf("word index covers %d nodes in %d buckets, header says %d entries: %w", total, used, x.entries, model.ErrInvalidFormat)
	}
	return nil
}

// Verify checks every posting against the words of the node array: all
// postings of a bucket share one word whose hash is the bucket key.
func (x *Index) Verify(words Words) error {
	for slot := range uint64(x.nBuckets) {
		h, off, n := x.bucket(slot)
		if n == 0 {
			continue
		}
		w := words.Word(int(x.posting(off)) - 1)
		if hash.FNV1a64(w) != h {
			return fmt.Errorf("word index bucket %d hash mismatch for %q: %w", slot, w, model.ErrInvalidFormat)
		}
		for j := off + 1; j < off+n; j++ {
			if id := x.posting(j); words.Word(int(id)-1) != w {
				return fmt.Errorf("word index bucket %d mixes words at node %d: %w", slot, id, model.ErrInvalidFormat)
			}
		}
	}
	return nil
}

// Lookup appends the ids of nodes whose word equals w, ascending.
func (x *Index) Lookup(w string, words Words, dst []model.NodeID) []model.NodeID {
	h := hash.FNV1a64(w)
	slot := h & x.mask
	for range x.nBuckets {
		bh, off, n := x.bucket(slot)
		if n == 0 {
			return dst
		}
		if bh == h && words.Word(int(x.posting(off))-1) == w {
			for j := off; j < off+n; j++ {
				dst = append(dst, model.NodeID(x.posting(j)))
			}
			return dst
		}
		slot = (slot + 1) & x.mask
	}
	return dst
}

// Stats summarizes table occupancy.
type Stats struct {
	Buckets  int
	Entries  int
	MaxProbe int
}

// Stats computes occupancy and the longest probe sequence.
func (x *Index) Stats() Stats {
	st := Stats{Buckets: x.nBuckets, Entries: x.entries}
	for slot := range uint64(x.nBuckets) {
		h, _, n := x.bucket(slot)
		if n == 0 {
			continue
		}
		home := h & x.mask
		probe := int((slot - home) & x.mask)
		st.MaxProbe = max(st.MaxProbe, probe)
	}
	return st
}
