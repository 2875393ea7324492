package benchmark_test

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/lingodb"
	"github.com/hupe1980/lingodb/builder"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/testutil"
)

const (
	sizeSmall  = 10_000
	sizeMedium = 100_000
)

// openBenchDB builds a knowledge base of n random nodes, links some of them
// to a node one layer up, and opens it.
func openBenchDB(b *testing.B, n int, opts ...lingodb.Option) (*lingodb.DB, []model.Coordinate) {
	b.Helper()
	rng := testutil.NewRNG(42)
	bld := builder.New()
	points := rng.Coordinates(n)
	layers := make([]model.Layer, n)
	for i, p := range points {
		layers[i] = rng.Layer()
		if _, err := bld.AddNode(testutil.Word(i%(n/4+1)), layers[i], p); err != nil {
			b.Fatal(err)
		}
	}
	for i := range n {
		j := rng.Intn(n)
		if layers[j] == layers[i]+1 {
			if err := bld.AddConnection(model.NodeIDFromIndex(i), model.NodeIDFromIndex(j), model.Hypernymy, rng.Float32()); err != nil {
				b.Fatal(err)
			}
		}
	}

	path := filepath.Join(b.TempDir(), "bench.lingo")
	if err := lingodb.Build(b.Context(), bld, path); err != nil {
		b.Fatal(err)
	}
	db, err := lingodb.Open(b.Context(), path, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })
	return db, points
}
