// Package resource implements the Controller for process-wide build limits.
//
// The Controller governs three resource types used by index construction:
//
//   - Memory: heap reserved by in-process bounds caches (non-blocking, fail-fast)
//   - Builds: number of index builds running at the same time
//   - IO: token bucket throttling the sequential pass over primary data files
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. AcquireMemory never blocks; a caller that cannot reserve
// heap picks a different storage strategy instead:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded - use a file-backed strategy
//	}
//	defer rc.ReleaseMemory(n)
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 50 << 20})
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
