package reader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/format"
	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/internal/kbtest"
	"github.com/hupe1980/lingodb/internal/mmap"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/testutil"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.lingo")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReader_ThreeNodes(t *testing.T) {
	b, ids := kbtest.NewTech(t)
	path := filepath.Join(t.TempDir(), "kb.lingo")
	require.NoError(t, b.Build(t.Context(), path))

	r, err := Open(t.Context(), path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.NodeCount())
	assert.Equal(t, 1, r.ConnectionCount())
	h := r.Header()
	assert.Equal(t, "en", h.LanguageCode())

	assert.Equal(t, []model.NodeID{ids.Tech}, r.FindByWord("tech"))
	assert.Empty(t, r.FindByWord("techno"))
	assert.Empty(t, r.FindByWord(""))

	conns, err := r.NodeConnections(ids.Tech)
	require.NoError(t, err)
	require.Equal(t, 1, conns.Len())
	assert.Equal(t, ids.Technical, conns.Target(0))
	assert.Equal(t, model.Hypernymy, conns.Type(0))
	assert.Equal(t, float32(0.9), conns.Strength(0))

	conns, err = r.NodeConnections(ids.Technical)
	require.NoError(t, err)
	assert.Zero(t, conns.Len())

	n, err := r.Node(ids.Technology)
	require.NoError(t, err)
	assert.Equal(t, model.Node{
		ID:       ids.Technology,
		Word:     "technology",
		Position: model.Coord(0.5, 0.3, 0.4),
		Layer:    model.LayerWords,
		Morpheme: model.MorphemeOther,
		Origin:   model.OriginUnknown,
	}, n)

	word, err := r.NodeWord(ids.Technical)
	require.NoError(t, err)
	assert.Equal(t, "technical", word)

	assert.Equal(t, []model.NodeID{ids.Technical, ids.Technology}, r.NodesInLayer(model.LayerWords))
	assert.Equal(t, []model.NodeID{ids.Technical, ids.Technology}, r.FindNear(model.Coord(0.5, 0.3, 0.4), 0))
	assert.Equal(t, []model.NodeID{ids.Tech, ids.Technical}, r.FindNearestK(model.Coord(0.3, 0.2, 0.3), 2))
}

func TestReader_NotFound(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	r, err := OpenBytes(t.Context(), kbtest.Bytes(t, b))
	require.NoError(t, err)

	for _, id := range []model.NodeID{0, 4, 1 << 31} {
		_, err := r.Node(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = r.NodeWord(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = r.NodeConnections(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = r.NodePosition(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = r.NodeLayer(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.False(t, r.Contains(id))
	}
	assert.Empty(t, r.NodesInLayer(model.Layer(9)))
}

func TestReader_RoundTrip(t *testing.T) {
	rng := testutil.NewRNG(7)
	b, points := kbtest.Random(t, rng, 2000, 300)
	type edge struct {
		src, dst model.NodeID
		typ      model.ConnectionType
		strength float32
	}
	var edges []edge
	for range 3000 {
		e := edge{
			src:      model.NodeID(rng.Intn(len(points)) + 1),
			dst:      model.NodeID(rng.Intn(len(points)) + 1),
			typ:      model.ConnectionType(rng.Intn(model.NumConnectionTypes)),
			strength: rng.Float32(),
		}
		require.NoError(t, b.AddConnection(e.src, e.dst, e.typ, e.strength))
		edges = append(edges, e)
	}

	r, err := OpenBytes(t.Context(), kbtest.Bytes(t, b))
	require.NoError(t, err)

	for i, p := range points {
		id := model.NodeIDFromIndex(i)
		got, err := r.NodePosition(id)
		require.NoError(t, err)
		require.Equal(t, p, got)
		assert.Contains(t, r.FindByWord(testutil.Word(i%300)), id)
	}
	for _, e := range edges {
		conns, err := r.NodeConnections(e.src)
		require.NoError(t, err)
		assert.Contains(t, conns.All(), format.ConnectionRecord{Target: e.dst, Type: e.typ, Strength: e.strength})
	}

	total := 0
	for l := range model.Layer(model.NumLayers) {
		ids := r.NodesInLayer(l)
		for _, id := range ids {
			layer, err := r.NodeLayer(id)
			require.NoError(t, err)
			assert.Equal(t, l, layer)
		}
		total += len(ids)
	}
	assert.Equal(t, len(points), total)

	st := r.Stats()
	assert.Equal(t, 2000, st.Nodes)
	assert.Equal(t, 3000, st.Connections)
	assert.Equal(t, 300, st.DistinctWords)
	assert.Greater(t, st.OctreeCells, 1)
	require.NoError(t, r.Validate(t.Context()))
}

func TestReader_SpatialMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(42)
	b, points := kbtest.Random(t, rng, 10000, 1000)
	r, err := OpenBytes(t.Context(), kbtest.Bytes(t, b))
	require.NoError(t, err)

	for range 100 {
		p := rng.Coordinate()
		radius := float64(rng.Float32()) * 0.2
		assert.Equal(t, testutil.BruteForceNear(points, p, radius), r.FindNear(p, radius))
	}
	for range 100 {
		p := rng.Coordinate()
		assert.Equal(t, testutil.BruteForceNearestK(points, p, 10), r.FindNearestK(p, 10))
	}
}

func TestReader_CorruptMagic(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	data := kbtest.Bytes(t, b)
	data[0] = 'X'

	r, err := Open(t.Context(), writeFile(t, data))
	require.ErrorIs(t, err, model.ErrInvalidFormat)
	assert.Nil(t, r)
}

func TestReader_Corruption(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	pristine := kbtest.Bytes(t, b)
	h, err := format.DecodeHeader(pristine)
	require.NoError(t, err)
	strings := h.Sections[format.SectionStrings].Offset
	nodes := h.Sections[format.SectionNodes].Offset
	conns := h.Sections[format.SectionConnections].Offset

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		opts   []Option
		want   error
	}{
		{"truncated header", func(d []byte) []byte { return d[:100] }, nil, model.ErrTruncated},
		{"truncated body", func(d []byte) []byte { return d[:len(d)-1] }, nil, model.ErrTruncated},
		{"trailing bytes", func(d []byte) []byte { return append(d, make([]byte, 8)...) }, nil, model.ErrInvalidFormat},
		{"empty section far offset", func(d []byte) []byte {
			// Strings slot: offset 1<<40, size 0, with the header checksum resealed.
			binary.LittleEndian.PutUint64(d[36:], 1<<40)
			binary.LittleEndian.PutUint64(d[100:], 0)
			copy(d[len(d)-format.TrailerSize:], format.EncodeTrailer(hash.CRC64(d[:format.HeaderSize])))
			return d
		}, nil, model.ErrTruncated},
		{"empty reserved section far offset", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d[36+8*format.SectionReserved:], 1<<40)
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrTruncated},
		{"major version", func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[8:], 2)
			return d
		}, nil, model.ErrVersionMismatch},
		{"endian marker", func(d []byte) []byte { d[32] = 2; return d }, nil, model.ErrInvalidFormat},
		{"header tampered", func(d []byte) []byte { d[228]++; return d }, nil, model.ErrChecksumFailure},
		{"trailer magic", func(d []byte) []byte { d[len(d)-16] = 'X'; return d }, nil, model.ErrInvalidFormat},
		{"string table", func(d []byte) []byte { d[strings]++; return d }, nil, model.ErrChecksumFailure},
		{"node layer", func(d []byte) []byte { d[nodes+18] = 9; return d }, nil, model.ErrChecksumFailure},
		{"node layer unverified", func(d []byte) []byte { d[nodes+18] = 9; return d },
			[]Option{WithVerifyChecksums(false)}, model.ErrInvalidFormat},
		{"word span unverified", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[nodes:], 1000)
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrOutOfBounds},
		{"invalid utf8 unverified", func(d []byte) []byte { d[strings] = 0xff; return d },
			[]Option{WithVerifyChecksums(false)}, model.ErrInvalidFormat},
		{"connection target unverified", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[conns:], 99)
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrOutOfBounds},
		{"connection strength unverified", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[conns+5:], 0x40000000) // 2.0
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrInvalidFormat},
		{"connection run unverified", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[nodes+23:], 1)
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrOutOfBounds},
		{"moved node unverified", func(d []byte) []byte {
			// Node 2 now lies outside the octree cell that indexes it.
			binary.LittleEndian.PutUint32(d[nodes+format.NodeRecordSize+6:], 0x40a00000) // 5.0
			return d
		}, []Option{WithVerifyChecksums(false)}, model.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(pristine))
			_, err := OpenBytes(t.Context(), data, tt.opts...)
			require.ErrorIs(t, err, tt.want)

			_, err = Open(t.Context(), writeFile(t, data), tt.opts...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReader_ChecksumErrorDetails(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	data := kbtest.Bytes(t, b)
	h, err := format.DecodeHeader(data)
	require.NoError(t, err)
	data[h.Sections[format.SectionConnections].Offset+19]++ // reserved byte

	_, err = OpenBytes(t.Context(), data)
	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, []string{"file", "connection array"}, ce.What)

	_, err = OpenBytes(t.Context(), data, WithVerifyChecksums(false))
	require.NoError(t, err)
}

func TestReader_OpenMissing(t *testing.T) {
	_, err := Open(t.Context(), filepath.Join(t.TempDir(), "missing.lingo"))
	require.ErrorIs(t, err, model.ErrIo)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReader_OpenCancelled(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := OpenBytes(ctx, kbtest.Bytes(t, b))
	assert.ErrorIs(t, err, model.ErrCancelled)
}

func TestReader_OpenBlob(t *testing.T) {
	b, ids := kbtest.NewTech(t)
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(t.Context(), "kb.lingo", kbtest.Bytes(t, b)))

	blob, err := store.Open(t.Context(), "kb.lingo")
	require.NoError(t, err)
	r, err := OpenBlob(t.Context(), blob)
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{ids.Tech}, r.FindByWord("tech"))
	require.NoError(t, r.Close())

	local := blobstore.NewLocalStore(t.TempDir())
	b2, _ := kbtest.NewTech(t)
	require.NoError(t, local.Put(t.Context(), "kb.lingo", kbtest.Bytes(t, b2)))
	blob, err = local.Open(t.Context(), "kb.lingo")
	require.NoError(t, err)
	r, err = OpenBlob(t.Context(), blob, WithAccessPattern(AccessSequential))
	require.NoError(t, err)
	assert.Equal(t, 3, r.NodeCount())
	require.NoError(t, r.Close())
}

func TestReader_Close(t *testing.T) {
	b, ids := kbtest.NewTech(t)
	r, err := Open(t.Context(), writeFile(t, kbtest.Bytes(t, b)))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Node(ids.Tech)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, r.FindByWord("tech"))
	assert.Empty(t, r.FindNear(model.Coord(0.3, 0.2, 0.3), 1))
	assert.Empty(t, r.FindNearestK(model.Coord(0.3, 0.2, 0.3), 1))
	assert.Empty(t, r.NodesInLayer(model.LayerWords))
	assert.ErrorIs(t, r.Validate(t.Context()), ErrClosed)
	assert.Equal(t, Stats{}, r.Stats())
}

func TestReader_Concurrent(t *testing.T) {
	rng := testutil.NewRNG(3)
	b, points := kbtest.Random(t, rng, 5000, 500)
	r, err := OpenBytes(t.Context(), kbtest.Bytes(t, b))
	require.NoError(t, err)

	queries := rng.Coordinates(50)
	want := make([][]model.NodeID, len(queries))
	for i, q := range queries {
		want[i] = r.FindNearestK(q, 8)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				assert.Equal(t, want[i], r.FindNearestK(q, 8))
				assert.Equal(t, testutil.BruteForceNear(points, q, 0.05), r.FindNear(q, 0.05))
				assert.NotEmpty(t, r.FindByWord(testutil.Word(i)))
			}
		}()
	}
	wg.Wait()
}

func BenchmarkFindByWord(b *testing.B) {
	rng := testutil.NewRNG(1)
	kb, _ := kbtest.Random(b, rng, 100000, 20000)
	r, err := OpenBytes(b.Context(), kbtest.Bytes(b, kb))
	require.NoError(b, err)

	dst := make([]model.NodeID, 0, 16)
	i := 0
	for b.Loop() {
		dst = r.AppendByWord(dst[:0], testutil.Word(i%20000))
		i++
	}
}

func TestAdviseSections(t *testing.T) {
	b, _ := kbtest.NewTech(t)
	path := writeFile(t, kbtest.Bytes(t, b))

	m, err := mmap.Open(path)
	require.NoError(t, err)
	h, err := format.DecodeHeader(m.Bytes())
	require.NoError(t, err)

	for _, p := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed} {
		assert.NoError(t, adviseSections(m, h, p), p.String())
	}

	require.NoError(t, m.Close())
	assert.ErrorIs(t, adviseSections(m, h, AccessRandom), mmap.ErrClosed)
}

func TestReader_OpenAccessPatterns(t *testing.T) {
	b, ids := kbtest.NewTech(t)
	path := writeFile(t, kbtest.Bytes(t, b))

	for _, tc := range []struct {
		name   string
		access AccessPattern
		verify bool
	}{
		{"random verified", AccessRandom, true},
		{"sequential unverified", AccessSequential, false},
		{"willneed verified", AccessWillNeed, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Open(t.Context(), path, WithAccessPattern(tc.access), WithVerifyChecksums(tc.verify))
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, []model.NodeID{ids.Technical}, r.FindByWord("technical"))
			assert.Nil(t, r.section(format.SectionReserved))
		})
	}
}
