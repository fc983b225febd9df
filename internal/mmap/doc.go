// Package mmap provides memory-mapped file access for zero-copy I/O.
//
// # Overview
//
// qix maps index files read-only so that large quadtrees can be traversed
// lazily without decoding the whole file, and maps the bounds cache
// scratch file read-write during index construction.
//
// # Usage
//
//	m, err := mmap.Open("roads.qix")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// Create a view into a specific region
//	region, _ := m.Region(offset, size)
//
//	// Map an already open file, e.g. one obtained through internal/fs
//	m, err := mmap.Map(f, size)
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessRandom)
//
// Writable mappings are created over an already sized file. They back
// scratch files that are deleted after use and are never flushed:
//
//	w, err := mmap.MapWritable(f, size)
//	copy(w.Bytes(), payload)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Windows: Uses CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. The Close() method
// is idempotent and protected by atomic operations. However, callers must
// ensure no goroutines access Bytes() after Close() returns.
package mmap
