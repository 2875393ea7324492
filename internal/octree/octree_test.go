package octree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/testutil"
)

type points []model.Coordinate

func (p points) Position(i int) model.Coordinate { return p[i] }

func build(t *testing.T, pts []model.Coordinate, cfg Config) *Tree {
	t.Helper()
	data, st, err := Build(pts, cfg)
	require.NoError(t, err)
	tree, err := Open(data, uint32(len(pts)))
	require.NoError(t, err)
	require.NoError(t, tree.Verify(points(pts)))
	assert.Equal(t, st, tree.Stats())
	return tree
}

func TestTree_MatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(4711)
	pts := rng.Coordinates(10_000)
	tree := build(t, pts, DefaultConfig())

	st := tree.Stats()
	assert.LessOrEqual(t, st.MaxDepth, DefaultMaxDepth)
	assert.LessOrEqual(t, st.MaxLeaf, DefaultLeafCapacity)

	for range 100 {
		p := rng.Coordinate()
		r := float64(rng.Float32()) * 0.2
		want := testutil.BruteForceNear(pts, p, r)
		got := tree.Near(points(pts), p, r, nil)
		require.Equal(t, len(want), len(got))
		if len(want) > 0 {
			require.Equal(t, want, got)
		}
	}

	for range 100 {
		p := rng.Coordinate()
		want := testutil.BruteForceNearestK(pts, p, 10)
		got := tree.NearestK(points(pts), p, 10, nil)
		require.Equal(t, want, got)
	}
}

func TestTree_TiesBreakByID(t *testing.T) {
	rng := testutil.NewRNG(7)
	pts := rng.GridCoordinates(2_000, 4)
	tree := build(t, pts, Config{LeafCapacity: 4, MaxDepth: 6})

	for range 50 {
		p := rng.GridCoordinates(1, 4)[0]
		for _, k := range []int{1, 5, 17} {
			require.Equal(t, testutil.BruteForceNearestK(pts, p, k), tree.NearestK(points(pts), p, k, nil))
		}
		require.Equal(t, testutil.BruteForceNear(pts, p, 0.25), tree.Near(points(pts), p, 0.25, nil))
	}
}

func TestTree_DeepOverflowStaysInLeaf(t *testing.T) {
	pts := make([]model.Coordinate, 40)
	for i := range pts {
		pts[i] = model.Coord(0.3, 0.3, 0.3)
	}
	tree := build(t, pts, Config{LeafCapacity: 4, MaxDepth: 3})
	st := tree.Stats()
	assert.Equal(t, 3, st.MaxDepth)
	assert.Equal(t, 40, st.MaxLeaf)
	assert.Len(t, tree.Near(points(pts), model.Coord(0.3, 0.3, 0.3), 0, nil), 40)
}

func TestTree_MidplaneGoesLow(t *testing.T) {
	root := Bounds{Max: [3]float64{1, 1, 1}}
	assert.Equal(t, 0, root.octant(model.Coord(0.5, 0.5, 0.5)))
	assert.Equal(t, 7, root.octant(model.Coord(0.6, 0.6, 0.6)))
	assert.Equal(t, 1, root.octant(model.Coord(0.6, 0.5, 0.1)))
}

func TestRootBounds_GrowsBeyondUnitCube(t *testing.T) {
	pts := []model.Coordinate{model.Coord(-1, 0.5, 0.5), model.Coord(0.5, 2.5, 0.5)}
	b := RootBounds(pts)
	assert.Equal(t, [3]float64{-1, 0, 0}, b.Min)
	assert.GreaterOrEqual(t, b.Size(), 2.5)
	for _, p := range pts {
		assert.True(t, b.Contains(p))
	}

	tree := build(t, pts, DefaultConfig())
	assert.Equal(t, []model.NodeID{2}, tree.NearestK(points(pts), model.Coord(0, 3, 0), 1, nil))
}

func TestTree_Empty(t *testing.T) {
	tree := build(t, nil, DefaultConfig())
	assert.Empty(t, tree.Near(nil, model.Coord(0.5, 0.5, 0.5), 1, nil))
	assert.Empty(t, tree.NearestK(nil, model.Coord(0.5, 0.5, 0.5), 3, nil))
	assert.Equal(t, 1.0, tree.Bounds().Size())
}

func TestTree_QueryEdgeCases(t *testing.T) {
	pts := testutil.NewRNG(1).Coordinates(50)
	tree := build(t, pts, DefaultConfig())

	assert.Empty(t, tree.Near(points(pts), pts[0], -1, nil))
	assert.Equal(t, []model.NodeID{1}, tree.Near(points(pts), pts[0], 0, nil))
	assert.Len(t, tree.NearestK(points(pts), pts[0], 500, nil), 50)
	assert.Empty(t, tree.NearestK(points(pts), pts[0], 0, nil))

	dst := []model.NodeID{99}
	dst = tree.NearestK(points(pts), pts[3], 1, dst)
	assert.Equal(t, []model.NodeID{99, 4}, dst)
}

func TestBuild_Rejects(t *testing.T) {
	_, _, err := Build([]model.Coordinate{model.Coord(0, 0, 0)}, Config{LeafCapacity: 0, MaxDepth: 3})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestOpen_Corrupt(t *testing.T) {
	pts := testutil.NewRNG(3).Coordinates(100)
	data, _, err := Build(pts, Config{LeafCapacity: 4, MaxDepth: 5})
	require.NoError(t, err)

	corrupt := func(mut func([]byte)) []byte {
		c := append([]byte(nil), data...)
		mut(c)
		return c
	}

	tests := []struct {
		name    string
		data    []byte
		nodes   uint32
		wantErr error
	}{
		{"short", data[:10], 100, model.ErrTruncated},
		{"node count", data, 101, model.ErrInvalidFormat},
		{"missing leaf ids", data[:len(data)-4], 100, model.ErrTruncated},
		{"zero size", corrupt(func(b []byte) { binary.LittleEndian.PutUint64(b[hdrSize:], 0) }), 100, model.ErrInvalidFormat},
		{"child cycle", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[HeaderSize+cellChildren:], 0xFFFF) }), 100, model.ErrInvalidFormat},
		{"duplicate id", corrupt(func(b []byte) {
			leaves := b[len(b)-400:]
			copy(leaves[4:8], leaves[0:4])
		}), 100, model.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data, tt.nodes)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func BenchmarkNearestK(b *testing.B) {
	rng := testutil.NewRNG(1)
	pts := rng.Coordinates(100_000)
	data, _, err := Build(pts, DefaultConfig())
	require.NoError(b, err)
	tree, err := Open(data, uint32(len(pts)))
	require.NoError(b, err)

	dst := make([]model.NodeID, 0, 10)
	for b.Loop() {
		dst = tree.NearestK(points(pts), rng.Coordinate(), 10, dst[:0])
	}
}
