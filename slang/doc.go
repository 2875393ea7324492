// Package slang implements SLANG, a small stack-based bytecode language for
// querying a knowledge base.
//
// A program is a linear pipeline over node sets. Every instruction pops zero
// or more sets from a bounded stack and pushes at most one, and the program
// ends at a single trailing Halt whose top-of-stack is the result:
//
//	p, err := slang.NewQuery().
//		LoadNode("technical").
//		FindSimilar(0.9).
//		LayerUp().
//		Limit(5).
//		Compile()
//
//	ids, err := slang.NewExecutor(r).Execute(ctx, p)
//
// Node sets are kept as roaring bitmaps, so every intermediate set is sorted
// and de-duplicated and results come back in ascending id order.
//
// # Limits
//
// An Executor enforces per-program caps on dispatched instructions, stack
// depth and set cardinality (see Limits). Exceeding any cap fails the query
// with model.ErrResourceExhausted wrapped in an *ExecError that records how
// far execution got. The context is polled before every instruction.
//
// # Encoding
//
// A compiled Program round-trips through MarshalBinary and UnmarshalBinary.
// Decoded programs are re-validated before they are accepted, and String
// renders a disassembly annotated with the static cost estimate.
package slang
