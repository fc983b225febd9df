// Package qix maintains an on-disk quadtree index next to a flat record
// file and answers bounding box queries with it.
//
// The index lives beside the data file (roads.rec, roads.rdx, roads.qix).
// It is rebuilt as a whole, never updated in place, and swapped in
// atomically while other goroutines keep querying the previous version.
//
// # Quick Start
//
//	idx, _ := qix.Open("roads.rec")
//	defer idx.Close()
//
//	hits, err := idx.Search(ctx, model.NewEnvelope(10, 47, 11, 48))
//	if err != nil {
//		return err
//	}
//	if hits == nil {
//		// The index cannot narrow the query: scan every record.
//	}
//	for id := range hits.All() {
//		// ...
//	}
//
// A nil *Hits is not an error. It is returned whenever the index is
// missing, stale, unreadable, or covers less than the query, and tells the
// caller to fall back to a full scan. Why the index was not used is logged
// and reported through MetricsCollector.RecordFallback.
//
// # Building
//
// Search builds a missing or stale index on demand unless
// WithCreateIndex(false) is set. Build can also be called explicitly:
//
//	stats, err := idx.Build(ctx)
//
// A build streams the data file once. Per-record bounds are kept in a
// bounds cache (heap, memory-mapped temp file, or re-reading the data file
// when neither fits) so the tree can be rebalanced without parsing records
// again. A failed build never touches the installed index.
//
// # Loading
//
// Index files smaller than WithCacheThreshold are decoded once and kept in
// memory until the file changes. Larger ones are decoded per query, or with
// WithMemoryMap walked lazily from a read-only mapping.
//
// # Locking
//
// Every Index over the same data file shares one lock manager from the
// registry (WithRegistry). Readers take shared tickets; installing a new
// index takes the exclusive ticket for the index file, waiting at most
// WithLockTimeout. WithProcessLock adds an OS file lock so that processes
// sharing a directory do not rebuild the same index at once.
//
// # Publishing
//
// Publish uploads the installed index to a blobstore.BlobStore (local,
// S3 or MinIO), optionally compressed; Fetch downloads and installs it.
package qix
