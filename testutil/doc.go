// Package testutil provides helpers for LingoDB tests and benchmarks.
//
// It generates reproducible node positions and computes brute-force ground
// truth for spatial queries.
//
//	rng := testutil.NewRNG(4711)
//	pts := rng.Coordinates(10_000)
//	want := testutil.BruteForceNear(pts, p, 0.1)
//	got, _ := r.FindNear(p, 0.1)
package testutil
