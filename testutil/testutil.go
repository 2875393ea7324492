package testutil

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/lingodb/model"
)

// RNG is a seeded, goroutine-safe random source.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewRNG creates an RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns a number in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a number in [0, 1).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Coordinate returns a uniform point in the unit cube.
func (r *RNG) Coordinate() model.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.Coord(r.rand.Float32(), r.rand.Float32(), r.rand.Float32())
}

// Coordinates returns n uniform points in the unit cube.
func (r *RNG) Coordinates(n int) []model.Coordinate {
	out := make([]model.Coordinate, n)
	for i := range out {
		out[i] = r.Coordinate()
	}
	return out
}

// GridCoordinates returns n points snapped to a grid with the given number of
// steps per axis, so that many points share positions and distances tie.
func (r *RNG) GridCoordinates(n, steps int) []model.Coordinate {
	out := make([]model.Coordinate, n)
	s := float32(steps)
	for i := range out {
		out[i] = model.Coord(float32(r.Intn(steps+1))/s, float32(r.Intn(steps+1))/s, float32(r.Intn(steps+1))/s)
	}
	return out
}

// Layer returns a uniformly chosen layer.
func (r *RNG) Layer() model.Layer { return model.Layer(r.Intn(model.NumLayers)) }

// Word returns a synthetic word for index i.
func Word(i int) string { return fmt.Sprintf("w%05d", i) }

// BruteForceNear returns the ids (index+1) of points within radius of p in
// ascending order.
func BruteForceNear(points []model.Coordinate, p model.Coordinate, radius float64) []model.NodeID {
	r2 := radius * radius
	var out []model.NodeID
	for i, pt := range points {
		if pt.DistanceSquared(p) <= r2 {
			out = append(out, model.NodeIDFromIndex(i))
		}
	}
	return out
}

// BruteForceNearestK returns the ids of the k points closest to p ordered by
// (distance, id).
func BruteForceNearestK(points []model.Coordinate, p model.Coordinate, k int) []model.NodeID {
	type cand struct {
		id model.NodeID
		d  float64
	}
	all := make([]cand, len(points))
	for i, pt := range points {
		all[i] = cand{id: model.NodeIDFromIndex(i), d: pt.DistanceSquared(p)}
	}
	slices.SortFunc(all, func(a, b cand) int {
		if a.d != b.d {
			if a.d < b.d {
				return -1
			}
			return 1
		}
		return int(a.id) - int(b.id)
	})
	k = min(k, len(all))
	out := make([]model.NodeID, k)
	for i := range out {
		out[i] = all[i].id
	}
	return out
}
