package slang

import (
	"math"

	"github.com/hupe1980/lingodb/model"
)

// Expected fan-outs behind the static cost model. They only rank compiled
// forms against each other and never influence execution.
const (
	homographsPerWord = 2.0
	nodesPerLayer     = 1000.0
	edgesPerNode      = 4.0
	nodesPerVolume    = 20000.0 // expected density of the unit cube
	fallbackFraction  = 0.25    // share of layer moves that need the spatial fallback
	lookupCost        = 1.0
	scanCost          = 0.1
)

// costFunc estimates the work of one instruction and the size of the set it
// produces from the estimated sizes of its inputs, bottom operand first.
type costFunc func(ins Instruction, in []float64, layerRadius float64) (cost, out float64)

var costTable = [numOpcodes]costFunc{
	OpHalt: func(Instruction, []float64, float64) (float64, float64) { return 0, 0 },
	OpLoadNode: func(Instruction, []float64, float64) (float64, float64) {
		return lookupCost, homographsPerWord
	},
	OpLoadByID: func(Instruction, []float64, float64) (float64, float64) {
		return lookupCost, 1
	},
	OpLoadLayer: func(Instruction, []float64, float64) (float64, float64) {
		return nodesPerLayer * scanCost, nodesPerLayer
	},
	OpFindSimilar: func(ins Instruction, in []float64, _ float64) (float64, float64) {
		r := 1 - float64(math.Float32frombits(ins.A))
		hits := ballHits(r)
		return in[0] * (treeDescent + hits), in[0] * hits
	},
	OpLayerUp:   layerMoveCost,
	OpLayerDown: layerMoveCost,
	OpFollowConnection: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return in[0] * edgesPerNode, in[0] * edgesPerNode / 2
	},
	OpFilter: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return in[0], in[0] / 2
	},
	OpLimit: func(ins Instruction, in []float64, _ float64) (float64, float64) {
		out := math.Min(in[0], float64(ins.A))
		return out * scanCost, out
	},
	OpDecompose: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return in[0] * edgesPerNode, in[0] * edgesPerNode / 2
	},
	OpNearestK: func(ins Instruction, in []float64, _ float64) (float64, float64) {
		k := float64(ins.A)
		return in[0] * (treeDescent + k*math.Log2(k+2)), in[0] * k
	},
	OpUnion: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return (in[0] + in[1]) * scanCost, in[0] + in[1]
	},
	OpIntersect: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return (in[0] + in[1]) * scanCost, math.Min(in[0], in[1])
	},
	OpDifference: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return (in[0] + in[1]) * scanCost, in[0]
	},
	OpDup: func(_ Instruction, in []float64, _ float64) (float64, float64) {
		return in[0] * scanCost, in[0]
	},
}

// treeDescent approximates the cells visited to reach a leaf.
const treeDescent = 8.0

// ballHits is the expected number of nodes within radius r, at least one.
func ballHits(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return math.Max(1, nodesPerVolume*4.0/3.0*math.Pi*r*r*r)
}

func layerMoveCost(_ Instruction, in []float64, layerRadius float64) (float64, float64) {
	edges := in[0] * edgesPerNode
	fallback := in[0] * fallbackFraction * (treeDescent + ballHits(layerRadius))
	out := in[0]*edgesPerNode/model.NumLayers + in[0]*fallbackFraction*ballHits(layerRadius)/2
	return edges + fallback, out
}
