// Package qixprom exports qix metrics to Prometheus.
//
//	c := qixprom.New(prometheus.DefaultRegisterer, "myapp")
//	idx, _ := qix.Open("roads.rec", qix.WithMetricsCollector(c))
package qixprom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/qix"
)

// Collector implements qix.MetricsCollector.
type Collector struct {
	builds       *prometheus.CounterVec
	buildSeconds prometheus.Histogram
	buildRecords prometheus.Gauge
	buildNodes   prometheus.Gauge
	indexBytes   prometheus.Gauge

	searches      *prometheus.CounterVec
	searchSeconds *prometheus.HistogramVec
	searchHits    prometheus.Histogram

	fallbacks *prometheus.CounterVec
	lockWait  *prometheus.HistogramVec
}

var _ qix.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. namespace
// prefixes every metric name; empty means "qix". A nil reg skips
// registration.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "qix"
	}

	c := &Collector{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Index builds by outcome.",
		}, []string{"status"}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		buildRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_records",
			Help:      "Records in the last successfully built index.",
		}),
		buildNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_nodes",
			Help:      "Nodes in the last successfully built index.",
		}),
		indexBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_size_bytes",
			Help:      "Size of the last successfully built index file.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by mode (indexed or scan) and outcome.",
		}, []string{"mode", "status"}),
		searchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of searches, including on-demand builds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Record ids returned by indexed searches.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Searches answered with a full scan, by reason.",
		}, []string{"reason"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for file locks, by file kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 10, 7),
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(c.collectors()...)
	}
	return c
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.builds, c.buildSeconds, c.buildRecords, c.buildNodes, c.indexBytes,
		c.searches, c.searchSeconds, c.searchHits,
		c.fallbacks, c.lockWait,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements qix.MetricsCollector.
func (c *Collector) RecordBuild(stats qix.BuildStats, err error) {
	c.builds.WithLabelValues(status(err)).Inc()
	c.buildSeconds.Observe(stats.Duration.Seconds())
	if err != nil {
		return
	}
	c.buildRecords.Set(float64(stats.Records))
	c.buildNodes.Set(float64(stats.Nodes))
	c.indexBytes.Set(float64(stats.Bytes))
}

// RecordSearch implements qix.MetricsCollector.
func (c *Collector) RecordSearch(hits int, indexed bool, d time.Duration, err error) {
	mode := "scan"
	if indexed {
		mode = "indexed"
		c.searchHits.Observe(float64(hits))
	}
	c.searches.WithLabelValues(mode, status(err)).Inc()
	c.searchSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordFallback implements qix.MetricsCollector.
func (c *Collector) RecordFallback(reason string) {
	c.fallbacks.WithLabelValues(reason).Inc()
}

// RecordLockWait implements qix.MetricsCollector.
func (c *Collector) RecordLockWait(kind string, wait time.Duration) {
	c.lockWait.WithLabelValues(kind).Observe(wait.Seconds())
}
