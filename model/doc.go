// Package model defines the core spatial types used throughout qix.
//
// # Identity Types
//
//   - RecordID: zero-based position of a record in the primary data file (uint32)
//
// # Geometry Types
//
//   - Envelope: axis-aligned 2-D bounding box with a representable null value
//   - ShapeKind: geometry family of a data file; points use a degenerate envelope
package model
