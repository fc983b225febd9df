// Package quadtree implements the in-memory quadtree used to index record
// envelopes.
//
// Records are pushed down into a quadrant only when their envelope fits
// entirely inside it, so every record id is stored exactly once. Records
// that straddle a split line, or that reach the depth budget, stay at the
// node where descent stopped.
//
// The package also defines NodeReader, the read-only node access shared by
// materialized trees and lazily decoded on-disk trees. Search only depends
// on NodeReader.
package quadtree
