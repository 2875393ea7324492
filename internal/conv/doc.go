// Package conv narrows integers with bounds checks.
//
// Builders use it whenever an in-memory count or offset is written into a
// fixed-width file field; overflow surfaces as model.ErrCapacityExceeded.
// Readers use it when turning on-disk u64 offsets into slice indices.
package conv
