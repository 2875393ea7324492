package slang

import "fmt"

// Opcode identifies a SLANG instruction.
type Opcode uint32

const (
	// OpHalt ends the program. The top of the stack, if any, is the result.
	OpHalt Opcode = iota
	// OpLoadNode pushes the nodes whose word is Strings[A].
	OpLoadNode
	// OpLoadByID pushes {A}, or the empty set if A is not a node.
	OpLoadByID
	// OpFindSimilar replaces S with the nodes within 1-threshold of any s in
	// S, excluding s and nodes at exactly s's position. A holds the float32
	// bits of the threshold.
	OpFindSimilar
	// OpLayerUp follows Hypernymy edges one layer up, falling back to spatial
	// neighbors in higher layers.
	OpLayerUp
	// OpLayerDown follows Meronymy and Hyponymy edges one layer down, falling
	// back to spatial neighbors in lower layers.
	OpLayerDown
	// OpFollowConnection replaces S with the targets of outgoing edges whose
	// type is in mask A and whose strength is at least float32 bits B.
	OpFollowConnection
	// OpFilter retains the nodes of S matching a Filter encoded in A, B, C.
	OpFilter
	// OpLimit keeps the A smallest ids of S.
	OpLimit
	// OpDecompose maps word-layer nodes to the morpheme-layer targets of
	// their Meronymy edges.
	OpDecompose
	// OpLoadLayer pushes every node of layer A.
	OpLoadLayer
	// OpNearestK replaces S with the union of the A nearest neighbors of
	// each s, excluding s.
	OpNearestK
	// OpUnion pops B then A and pushes A ∪ B.
	OpUnion
	// OpIntersect pops B then A and pushes A ∩ B.
	OpIntersect
	// OpDifference pops B then A and pushes A \ B.
	OpDifference
	// OpDup pushes a copy of the top of the stack.
	OpDup

	numOpcodes
)

// opInfo describes the static shape of an opcode.
type opInfo struct {
	name string
	pop  int
	push int
}

var opTable = [numOpcodes]opInfo{
	OpHalt:             {"HALT", 0, 0},
	OpLoadNode:         {"LOAD_NODE", 0, 1},
	OpLoadByID:         {"LOAD_ID", 0, 1},
	OpFindSimilar:      {"FIND_SIMILAR", 1, 1},
	OpLayerUp:          {"LAYER_UP", 1, 1},
	OpLayerDown:        {"LAYER_DOWN", 1, 1},
	OpFollowConnection: {"FOLLOW", 1, 1},
	OpFilter:           {"FILTER", 1, 1},
	OpLimit:            {"LIMIT", 1, 1},
	OpDecompose:        {"DECOMPOSE", 1, 1},
	OpLoadLayer:        {"LOAD_LAYER", 0, 1},
	OpNearestK:         {"NEAREST_K", 1, 1},
	OpUnion:            {"UNION", 2, 1},
	OpIntersect:        {"INTERSECT", 2, 1},
	OpDifference:       {"DIFFERENCE", 2, 1},
	OpDup:              {"DUP", 1, 2},
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return op < numOpcodes }

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("OP(%d)", uint32(op))
	}
	return opTable[op].name
}
