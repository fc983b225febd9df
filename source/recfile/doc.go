// Package recfile implements a flat, append-style record file with a
// fixed-size offset table.
//
// Two files make up a dataset:
//
//	<name>.rec  header | records
//	<name>.rdx  header | one uint64 byte offset per record
//
// The .rec header (48 bytes, little-endian):
//
//	magic "REC1" | kind u8 | reserved [3] | minX minY maxX maxY f64 | reserved [8]
//
// Each record is:
//
//	payload length u32 | envelope (x y for points, minX minY maxX maxY otherwise) | payload
//
// The .rdx header (16 bytes): magic "RDX1" | reserved [4] | count u64.
//
// Payload bytes are opaque to this package.
package recfile
