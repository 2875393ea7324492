package reader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/format"
	"github.com/hupe1980/lingodb/internal/conv"
	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/internal/mmap"
	"github.com/hupe1980/lingodb/internal/octree"
	"github.com/hupe1980/lingodb/internal/wordindex"
	"github.com/hupe1980/lingodb/model"
)

// ErrClosed is returned by a Reader after Close.
var ErrClosed = errors.New("reader: closed")

// Reader is an opened, validated knowledge base.
type Reader struct {
	header   format.Header
	data     []byte
	sections [format.NumSections][]byte
	strings  []byte
	nodes    format.NodeArray
	conns    format.ConnectionSlice
	tree     *octree.Tree
	words    *wordindex.Index
	layers   format.LayerIndex
	// hasLayers is false for files written without the layer index section.
	hasLayers bool

	release func() error
	closed  atomic.Bool
}

// Open memory-maps and validates the file at path.
func Open(ctx context.Context, path string, optFns ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	start := time.Now()

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, model.ErrIo, err)
	}
	// The checksum pass streams the whole file once.
	initial := o.access
	if o.verifyChecksums {
		initial = AccessSequential
	}
	if err := m.Advise(initial); err != nil {
		o.logger.Warn("madvise failed", "path", path, "error", err)
	}
	r, err := load(ctx, m.Bytes(), &o)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := adviseSections(m, &r.header, o.access); err != nil {
		o.logger.Warn("madvise failed", "path", path, "error", err)
	}
	r.release = m.Close
	o.logger.Info("knowledge base opened",
		"path", path,
		"nodes", r.NodeCount(),
		"connections", r.ConnectionCount(),
		"bytes", len(r.data),
		"duration", time.Since(start),
	)
	return r, nil
}

// OpenBytes validates an in-memory file. data must not be modified while the
// Reader is in use.
func OpenBytes(ctx context.Context, data []byte, optFns ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return load(ctx, data, &o)
}

// OpenBlob opens a file held in a blob store. Mappable blobs are used without
// copying. The Reader takes ownership of blob and closes it on Close or on
// failure.
func OpenBlob(ctx context.Context, blob blobstore.Blob, optFns ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("read blob: %w: %w", model.ErrIo, err)
	}
	r, err := load(ctx, data, &o)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	r.release = blob.Close
	return r, nil
}

func load(ctx context.Context, data []byte, o *options) (*Reader, error) {
	h, err := format.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if err := h.ValidateLayout(uint64(len(data))); err != nil {
		return nil, err
	}
	r := &Reader{header: *h, data: data}
	for i, sec := range h.Sections {
		if sec.Size == 0 {
			continue
		}
		lo, err := conv.Uint64ToInt(sec.Offset)
		if err != nil {
			return nil, &format.SectionError{Section: i, Offset: sec.Offset, Size: sec.Size, Limit: h.FileSize, Err: err}
		}
		hi, err := conv.Uint64ToInt(sec.End())
		if err != nil {
			return nil, &format.SectionError{Section: i, Offset: sec.Offset, Size: sec.Size, Limit: h.FileSize, Err: err}
		}
		r.sections[i] = data[lo:hi:hi]
	}

	trailer := h.Sections[format.SectionTrailer]
	if trailer.End() != h.FileSize {
		return nil, &format.SectionError{Section: format.SectionTrailer, Offset: trailer.Offset, Size: trailer.Size, Limit: h.FileSize, Err: model.ErrInvalidFormat}
	}
	sum, err := format.DecodeTrailer(r.section(format.SectionTrailer))
	if err != nil {
		return nil, err
	}
	if h.ChecksumAlgorithm == format.ChecksumCRC64 {
		if got := hash.CRC64(data[:format.HeaderSize]); got != sum {
			return nil, &ChecksumError{What: "header", Want: sum, Got: got}
		}
		if o.verifyChecksums {
			if err := r.verifyChecksums(ctx); err != nil {
				return nil, err
			}
		}
	}

	r.strings = r.section(format.SectionStrings)
	if r.nodes, err = format.NewNodeArray(r.section(format.SectionNodes)); err != nil {
		return nil, err
	}
	if r.conns, err = format.NewConnectionSlice(r.section(format.SectionConnections)); err != nil {
		return nil, err
	}
	if err := r.validateRecords(ctx); err != nil {
		return nil, err
	}

	if r.tree, err = octree.Open(r.section(format.SectionOctree), h.NodeCount); err != nil {
		return nil, err
	}
	if err := r.tree.Verify(r.nodes); err != nil {
		return nil, err
	}
	if r.words, err = wordindex.Open(r.section(format.SectionWordIndex), h.NodeCount); err != nil {
		return nil, err
	}
	if err := r.words.Verify(wordView{r}); err != nil {
		return nil, err
	}
	if h.HasFlag(format.FlagLayerIndex) {
		if r.layers, err = format.OpenLayerIndex(r.section(format.SectionLayerIndex), r.nodes); err != nil {
			return nil, err
		}
		r.hasLayers = true
	}
	return r, nil
}

// section returns the bytes of slot s, or nil for an empty section.
func (r *Reader) section(s int) []byte { return r.sections[s] }

// adviseSections applies p to every non-empty data section of m. The header
// and trailer keep the mapping-wide advice.
func adviseSections(m *mmap.Mapping, h *format.Header, p AccessPattern) error {
	var errs []error
	for i, sec := range h.Sections {
		if sec.Size == 0 || i == format.SectionTrailer {
			continue
		}
		reg, err := m.Region(sec.Offset, sec.Size)
		if err == nil {
			err = reg.Advise(p)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", format.SectionName(i), err))
		}
	}
	return errors.Join(errs...)
}

// ChecksumError reports a checksum mismatch. It unwraps to model.ErrChecksumFailure.
type ChecksumError struct {
	What string
	Want uint64
	Got  uint64
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: recorded %016x, computed %016x", e.What, e.Want, e.Got)
}

func (e *ChecksumError) Unwrap() error { return model.ErrChecksumFailure }

// verifyChecksums recomputes the four section checksums concurrently.
func (r *Reader) verifyChecksums(ctx context.Context) error {
	h := &r.header
	body := r.data[format.HeaderSize:h.Sections[format.SectionTrailer].Offset]
	checks := [format.NumChecksums]struct {
		what string
		data []byte
	}{
		format.ChecksumFile:        {"file", body},
		format.ChecksumNodes:       {"node array", r.section(format.SectionNodes)},
		format.ChecksumConnections: {"connection array", r.section(format.SectionConnections)},
		format.ChecksumStrings:     {"string table", r.section(format.SectionStrings)},
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", model.ErrCancelled, err)
			}
			if got := hash.CRC64(c.data); got != h.Checksums[i] {
				return &ChecksumError{What: c.what, Want: h.Checksums[i], Got: got}
			}
			return nil
		})
	}
	return g.Wait()
}

// wordView adapts a Reader to the index packages' zero-based word lookup.
type wordView struct{ r *Reader }

func (v wordView) Word(index int) string { return v.r.word(index) }

// word returns the word of node index i without copying.
func (r *Reader) word(i int) string {
	off, n := r.nodes.WordSpan(i)
	if n == 0 {
		return ""
	}
	return unsafe.String(&r.strings[off], int(n))
}

func (r *Reader) index(id model.NodeID) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	if !id.IsValid() || uint64(id) > uint64(r.nodes.Len()) {
		return 0, fmt.Errorf("node %d: %w", id, model.ErrNotFound)
	}
	return id.Index(), nil
}

// Header returns a copy of the file header.
func (r *Reader) Header() format.Header { return r.header }

// NodeCount returns the number of nodes.
func (r *Reader) NodeCount() int { return r.nodes.Len() }

// ConnectionCount returns the number of connections.
func (r *Reader) ConnectionCount() int { return r.conns.Len() }

// Contains reports whether id names a node of this file.
func (r *Reader) Contains(id model.NodeID) bool {
	return id.IsValid() && uint64(id) <= uint64(r.nodes.Len())
}

// Node returns the node with the given id. Its Word borrows from the mapping.
func (r *Reader) Node(id model.NodeID) (model.Node, error) {
	i, err := r.index(id)
	if err != nil {
		return model.Node{}, err
	}
	rec := r.nodes.At(i)
	return model.Node{
		ID:       id,
		Word:     r.word(i),
		Position: rec.Position,
		Layer:    rec.Layer,
		Morpheme: rec.MorphemeType,
		Origin:   rec.Etymology,
		Flags:    rec.Flags,
	}, nil
}

// NodeWord returns the word of a node, borrowed from the string table.
func (r *Reader) NodeWord(id model.NodeID) (string, error) {
	i, err := r.index(id)
	if err != nil {
		return "", err
	}
	return r.word(i), nil
}

// NodePosition returns the position of a node.
func (r *Reader) NodePosition(id model.NodeID) (model.Coordinate, error) {
	i, err := r.index(id)
	if err != nil {
		return model.Coordinate{}, err
	}
	return r.nodes.Position(i), nil
}

// NodeLayer returns the layer of a node.
func (r *Reader) NodeLayer(id model.NodeID) (model.Layer, error) {
	i, err := r.index(id)
	if err != nil {
		return 0, err
	}
	return r.nodes.Layer(i), nil
}

// NodeConnections returns the outgoing connections of a node as a zero-copy
// view, ordered by descending strength then ascending target.
func (r *Reader) NodeConnections(id model.NodeID) (format.ConnectionSlice, error) {
	i, err := r.index(id)
	if err != nil {
		return format.ConnectionSlice{}, err
	}
	off, n := r.nodes.ConnectionSpan(i)
	return r.conns.Slice(int(off), int(n))
}

// FindByWord returns the ids of nodes whose word is exactly word, ascending.
func (r *Reader) FindByWord(word string) []model.NodeID {
	return r.AppendByWord(nil, word)
}

// AppendByWord appends the ids of nodes whose word is exactly word.
func (r *Reader) AppendByWord(dst []model.NodeID, word string) []model.NodeID {
	if r.closed.Load() {
		return dst
	}
	return r.words.Lookup(word, wordView{r}, dst)
}

// FindNear returns the ids of nodes within radius of p, ascending.
func (r *Reader) FindNear(p model.Coordinate, radius float64) []model.NodeID {
	return r.AppendNear(nil, p, radius)
}

// AppendNear appends the ids of nodes within radius of p, ascending.
func (r *Reader) AppendNear(dst []model.NodeID, p model.Coordinate, radius float64) []model.NodeID {
	if r.closed.Load() {
		return dst
	}
	return r.tree.Near(r.nodes, p, radius, dst)
}

// FindNearestK returns the ids of the k nodes closest to p, ordered by
// distance with ties broken by ascending id.
func (r *Reader) FindNearestK(p model.Coordinate, k int) []model.NodeID {
	return r.AppendNearestK(nil, p, k)
}

// AppendNearestK appends the k nearest ids to dst.
func (r *Reader) AppendNearestK(dst []model.NodeID, p model.Coordinate, k int) []model.NodeID {
	if r.closed.Load() {
		return dst
	}
	return r.tree.NearestK(r.nodes, p, k, dst)
}

// NodesInLayer returns the ids of the nodes in layer l, ascending.
func (r *Reader) NodesInLayer(l model.Layer) []model.NodeID {
	return r.AppendLayer(nil, l)
}

// AppendLayer appends the ids of the nodes in layer l, ascending.
func (r *Reader) AppendLayer(dst []model.NodeID, l model.Layer) []model.NodeID {
	if r.closed.Load() || !l.Valid() {
		return dst
	}
	if r.hasLayers {
		return r.layers.AppendNodes(l, dst)
	}
	for i := range r.nodes.Len() {
		if r.nodes.Layer(i) == l {
			dst = append(dst, model.NodeIDFromIndex(i))
		}
	}
	return dst
}

// Stats summarizes the file and its indexes.
type Stats struct {
	FileSize      uint64
	Nodes         int
	Connections   int
	StringBytes   int
	OctreeCells   int
	OctreeLeaves  int
	OctreeDepth   int
	LargestLeaf   int
	DistinctWords int
	WordBuckets   int
	LongestProbe  int
	NodesPerLayer [model.NumLayers]int
}

// Stats walks the indexes and returns their shape.
func (r *Reader) Stats() Stats {
	if r.closed.Load() {
		return Stats{}
	}
	ts := r.tree.Stats()
	ws := r.words.Stats()
	st := Stats{
		FileSize:      r.header.FileSize,
		Nodes:         r.nodes.Len(),
		Connections:   r.conns.Len(),
		StringBytes:   len(r.strings),
		OctreeCells:   ts.Cells,
		OctreeLeaves:  ts.Leaves,
		OctreeDepth:   ts.MaxDepth,
		LargestLeaf:   ts.MaxLeaf,
		DistinctWords: ws.Entries,
		WordBuckets:   ws.Buckets,
		LongestProbe:  ws.MaxProbe,
	}
	for i := range r.nodes.Len() {
		st.NodesPerLayer[r.nodes.Layer(i)]++
	}
	return st
}

// Close releases the mapping. It is idempotent.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.release == nil {
		return nil
	}
	if err := r.release(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrIo, err)
	}
	return nil
}
