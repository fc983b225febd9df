// Package source defines the collaborators the index builder reads from.
//
// A Dataset combines two views of one logical data file:
//
//   - Reader: sequential forward iteration yielding (id, offset, envelope)
//     in ascending id order, plus random re-reads by byte offset
//   - OffsetIndex: a fixed-size table mapping record ids to byte offsets
//
// Record decoding beyond the envelope is outside this package; the
// reference file format lives in source/recfile and an in-memory
// implementation for tests is provided by Memory.
package source
