package benchmark_test

import (
	"strconv"
	"testing"

	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/slang"
	"github.com/hupe1980/lingodb/testutil"
)

// BenchmarkQuery measures end-to-end query latency for typical programs.
func BenchmarkQuery(b *testing.B) {
	db, _ := openBenchDB(b, sizeSmall)

	programs := []struct {
		name string
		q    *slang.QueryBuilder
	}{
		{"load", slang.NewQuery().LoadNode(testutil.Word(7))},
		{"layer_up", slang.NewQuery().LoadNode(testutil.Word(7)).LayerUp()},
		{"similar", slang.NewQuery().LoadNode(testutil.Word(7)).FindSimilar(0.95)},
		{"similar_up_limit", slang.NewQuery().LoadNode(testutil.Word(7)).FindSimilar(0.95).LayerUp().Limit(10)},
		{"nearest_k", slang.NewQuery().LoadByID(1).NearestK(10)},
		{"layer_filter", slang.NewQuery().LoadLayer(model.LayerWords).Filter(slang.HasFlags(model.FlagFrequent))},
	}
	for _, pc := range programs {
		p, err := pc.q.Compile()
		if err != nil {
			b.Fatal(err)
		}
		b.Run(pc.name, func(b *testing.B) {
			ctx := b.Context()
			var dst []model.NodeID
			var err error
			b.ReportAllocs()
			for b.Loop() {
				dst, err = db.QueryInto(ctx, p, dst[:0])
				if err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(p.Cost(), "est_cost")
		})
	}
}

// BenchmarkFindNear measures radius search scaling with knowledge-base size.
func BenchmarkFindNear(b *testing.B) {
	for _, n := range []int{sizeSmall, sizeMedium} {
		b.Run("n="+strconv.Itoa(n), func(b *testing.B) {
			db, points := openBenchDB(b, n)
			r := db.Reader()
			var dst []model.NodeID
			i := 0
			b.ReportAllocs()
			for b.Loop() {
				dst = r.AppendNear(dst[:0], points[i%len(points)], 0.02)
				i++
			}
		})
	}
}

// BenchmarkFindNearestK measures k-NN latency.
func BenchmarkFindNearestK(b *testing.B) {
	db, points := openBenchDB(b, sizeSmall)
	r := db.Reader()
	var dst []model.NodeID
	i := 0
	b.ReportAllocs()
	for b.Loop() {
		dst = r.AppendNearestK(dst[:0], points[i%len(points)], 10)
		i++
	}
}

// BenchmarkParallelQuery measures throughput under concurrent load.
func BenchmarkParallelQuery(b *testing.B) {
	db, _ := openBenchDB(b, sizeSmall)
	p, err := slang.NewQuery().LoadNode(testutil.Word(3)).FindSimilar(0.9).Limit(20).Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := b.Context()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		var dst []model.NodeID
		for pb.Next() {
			var err error
			if dst, err = db.QueryInto(ctx, p, dst[:0]); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
