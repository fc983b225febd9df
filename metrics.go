package qix

import (
	"sync/atomic"
	"time"
)

// Fallback reasons passed to MetricsCollector.RecordFallback.
const (
	FallbackNoIndex     = "no_index"     // index missing and not built
	FallbackStale       = "stale"        // index older than the data file
	FallbackUnavailable = "unavailable"  // index cannot be generated here
	FallbackBuildFailed = "build_failed" // on-demand rebuild failed
	FallbackLoadFailed  = "load_failed"  // index unreadable or corrupt
	FallbackCoversAll   = "covers_all"   // query contains the whole index
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// qixprom provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each build attempt. stats is zero when the
	// build failed before finishing.
	RecordBuild(stats BuildStats, err error)

	// RecordSearch is called after each search. indexed is false when the
	// call fell back to "scan everything".
	RecordSearch(hits int, indexed bool, duration time.Duration, err error)

	// RecordFallback is called with one of the Fallback* reasons.
	RecordFallback(reason string)

	// RecordLockWait reports how long a lock on the named file kind took.
	RecordLockWait(kind string, wait time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(BuildStats, error)                {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordFallback(string)                        {}
func (NoopMetricsCollector) RecordLockWait(string, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchIndexed    atomic.Int64
	SearchErrors     atomic.Int64
	SearchHits       atomic.Int64
	SearchTotalNanos atomic.Int64
	FallbackCount    atomic.Int64
	LockWaitCount    atomic.Int64
	LockWaitNanos    atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(stats BuildStats, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(stats.Duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(hits int, indexed bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchHits.Add(int64(hits))
	if indexed {
		b.SearchIndexed.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(string) {
	b.FallbackCount.Add(1)
}

// RecordLockWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLockWait(_ string, wait time.Duration) {
	b.LockWaitCount.Add(1)
	b.LockWaitNanos.Add(wait.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildAvgNanos:  avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchIndexed:  b.SearchIndexed.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchHits:     b.SearchHits.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		FallbackCount:  b.FallbackCount.Load(),
		LockWaitCount:  b.LockWaitCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	BuildAvgNanos  int64
	SearchCount    int64
	SearchIndexed  int64
	SearchErrors   int64
	SearchHits     int64
	SearchAvgNanos int64
	FallbackCount  int64
	LockWaitCount  int64
}
