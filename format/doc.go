// Package format defines the bit-exact LingoDB knowledge-base file format.
//
// # File Layout
//
//	┌─────────────────────────────────────────────┐
//	│ Header (512 bytes)                          │
//	├─────────────────────────────────────────────┤
//	│ String table (UTF-8 words, no terminators)  │
//	├─────────────────────────────────────────────┤
//	│ Node array (NodeCount × 60 bytes)           │
//	├─────────────────────────────────────────────┤
//	│ Connection array (ConnCount × 20 bytes)     │
//	├─────────────────────────────────────────────┤
//	│ Octree (header, cells, leaf ids)            │
//	├─────────────────────────────────────────────┤
//	│ Word index (open-addressed hash)            │
//	├─────────────────────────────────────────────┤
//	│ Layer index (auxiliary, optional)           │
//	├─────────────────────────────────────────────┤
//	│ Trailer ("LINGOEND" + header CRC64)         │
//	└─────────────────────────────────────────────┘
//
// Every section starts on an 8-byte boundary. All scalars are little-endian;
// floats are IEEE-754 single precision.
//
// # Packed Records
//
// Node and connection records are packed (60 and 20 bytes) and therefore
// frequently misaligned. Go cannot express packed structs, so records are
// never cast from the mapped bytes: NodeArray and ConnectionSlice are
// zero-copy views that decode each field through encoding/binary, which
// reads byte by byte and never forms a misaligned reference.
//
// # Versioning
//
// A reader accepts files with the same major version and a minor version not
// greater than its own. Unknown header flags are ignored.
package format
