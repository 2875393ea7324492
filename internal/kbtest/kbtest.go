// Package kbtest builds small knowledge bases for tests.
package kbtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/builder"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/testutil"
)

// Tech holds the ids of the "tech" family.
type Tech struct {
	Tech       model.NodeID // Morphemes (0.3, 0.2, 0.3)
	Technical  model.NodeID // Words (0.5, 0.3, 0.4)
	Technology model.NodeID // Words (0.5, 0.3, 0.4)
}

// NewTech returns a builder with three nodes and one Hypernymy connection
// tech -> technical of strength 0.9.
func NewTech(tb testing.TB, opts ...builder.Option) (*builder.Builder, Tech) {
	tb.Helper()
	b := builder.New(opts...)
	var ids Tech
	var err error
	ids.Tech, err = b.AddNode("tech", model.LayerMorphemes, model.Coord(0.3, 0.2, 0.3))
	require.NoError(tb, err)
	ids.Technical, err = b.AddNode("technical", model.LayerWords, model.Coord(0.5, 0.3, 0.4))
	require.NoError(tb, err)
	ids.Technology, err = b.AddNode("technology", model.LayerWords, model.Coord(0.5, 0.3, 0.4))
	require.NoError(tb, err)
	require.NoError(tb, b.AddConnection(ids.Tech, ids.Technical, model.Hypernymy, 0.9))
	require.NoError(tb, b.SetLanguage("en"))
	return b, ids
}

// Bytes encodes b.
func Bytes(tb testing.TB, b *builder.Builder) []byte {
	tb.Helper()
	data, err := b.Bytes(tb.Context())
	require.NoError(tb, err)
	return data
}

// Random returns a builder with n nodes at random positions in random layers.
// Node i+1 has word testutil.Word(i%distinct) and position points[i].
func Random(tb testing.TB, rng *testutil.RNG, n, distinct int) (*builder.Builder, []model.Coordinate) {
	tb.Helper()
	b := builder.New()
	points := rng.Coordinates(n)
	for i, p := range points {
		_, err := b.AddNode(testutil.Word(i%distinct), rng.Layer(), p)
		require.NoError(tb, err)
	}
	return b, points
}
