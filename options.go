package qix

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/hupe1980/qix/internal/boundscache"
	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/indexer"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/internal/resource"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/source/recfile"
)

// Defaults applied when the corresponding option is not given.
const (
	DefaultLeafCapacity  = indexer.DefaultLeafCapacity
	DefaultMinDepth      = quadtree.DefaultMinDepth
	DefaultHeapThreshold = boundscache.DefaultHeapThreshold
	DefaultLockTimeout   = 30 * time.Second
)

type (
	// FileSystem abstracts the file operations used for index files.
	FileSystem = fs.FileSystem
	// File is an open file of a FileSystem.
	File = fs.File
	// ResourceController bounds memory, concurrent builds and build IO.
	ResourceController = resource.Controller
	// ResourceConfig configures a ResourceController.
	ResourceConfig = resource.Config
	// LockRegistry hands out one lock manager per data file.
	LockRegistry = fileset.Registry
	// Requestor identifies a lock holder.
	Requestor = fileset.Requestor
)

// NewResourceController creates a controller with the given limits.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

// NewLockRegistry creates a lock registry independent of the default one.
func NewLockRegistry() *LockRegistry {
	return fileset.NewRegistry()
}

// NewRequestor returns a requestor with a fresh identity.
func NewRequestor(name string) Requestor {
	return fileset.NewRequestor(name)
}

type options struct {
	leafCapacity     int
	minDepth         int
	cacheThreshold   int64
	memoryMap        bool
	createIndex      bool
	byteOrder        binary.ByteOrder
	heapThreshold    int64
	tempDir          string
	fs               FileSystem
	resources        *ResourceController
	registry         *LockRegistry
	requestor        *Requestor
	lockTimeout      time.Duration
	processLock      bool
	metricsCollector MetricsCollector
	logger           *Logger
	opener           source.Opener
}

// Option configures Open.
type Option func(*options)

// WithLeafCapacity sets the number of records a leaf may hold before it is
// split. Default: 16.
func WithLeafCapacity(n int) Option {
	return func(o *options) {
		o.leafCapacity = n
	}
}

// WithMinDepth sets the lower bound for the estimated tree depth.
// Default: 10.
func WithMinDepth(n int) Option {
	return func(o *options) {
		o.minDepth = n
	}
}

// WithCacheThreshold keeps index files smaller than n bytes in memory after
// the first query. The cached tree is dropped when this Index rebuilds or
// when the file on disk changes. Default: 0 (never cache).
func WithCacheThreshold(n int64) Option {
	return func(o *options) {
		o.cacheThreshold = n
	}
}

// WithMemoryMap makes uncached queries walk a memory-mapped view of the
// index instead of decoding it fully. Mapped views skip checksum
// verification.
func WithMemoryMap(enabled bool) Option {
	return func(o *options) {
		o.memoryMap = enabled
	}
}

// WithCreateIndex controls whether Search builds a missing or stale index
// before querying. Default: true.
func WithCreateIndex(enabled bool) Option {
	return func(o *options) {
		o.createIndex = enabled
	}
}

// WithByteOrder selects the byte order of written index files.
// binary.LittleEndian and binary.BigEndian are accepted; binary.NativeEndian
// resolves to whichever of the two the host uses.
// Default: little endian.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) {
		o.byteOrder = order
	}
}

// WithHeapThreshold sets the largest bounds cache, in bytes, kept on the
// heap during a build. Larger caches go to a mapped temporary file.
// A negative value disables the heap strategy. Default: 1 MiB.
func WithHeapThreshold(n int64) Option {
	return func(o *options) {
		o.heapThreshold = n
	}
}

// WithTempDir sets the directory for bounds cache temporary files.
// Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithFileSystem replaces the file system used for index files, temporary
// files and free-space probes.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithResourceController shares memory, build and IO budgets across
// indexes.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithRegistry sets the registry that maps data files to lock managers.
// Indexes that must see each other's locks need the same registry.
// Default: a process-wide registry.
func WithRegistry(r *LockRegistry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithRequestor sets the identity under which this Index takes locks.
// Default: a fresh requestor per Index.
func WithRequestor(req Requestor) Option {
	return func(o *options) {
		o.requestor = &req
	}
}

// WithLockTimeout bounds the wait for the exclusive lock when installing a
// new index. Default: 30s.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithProcessLock guards builds with an OS file lock next to the index so
// that several processes do not rebuild the same index at once.
func WithProcessLock(enabled bool) Option {
	return func(o *options) {
		o.processLock = enabled
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &qix.BasicMetricsCollector{}
//	idx, _ := qix.Open("roads.rec", qix.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, fallbacks: %d\n", stats.SearchCount, stats.FallbackCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := qix.NewJSONLogger(slog.LevelInfo)
//	idx, _ := qix.Open("roads.rec", qix.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSourceOpener replaces the function that opens the primary data and
// offset files. Default: the record file reader.
func WithSourceOpener(fn source.Opener) Option {
	return func(o *options) {
		o.opener = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		leafCapacity:     DefaultLeafCapacity,
		minDepth:         DefaultMinDepth,
		createIndex:      true,
		byteOrder:        binary.LittleEndian,
		heapThreshold:    DefaultHeapThreshold,
		fs:               fs.Default,
		registry:         fileset.DefaultRegistry,
		lockTimeout:      DefaultLockTimeout,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		opener:           recfile.OpenDataset,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.fs == nil {
		o.fs = fs.Default
	}
	if o.registry == nil {
		o.registry = fileset.DefaultRegistry
	}
	if o.opener == nil {
		o.opener = recfile.OpenDataset
	}
	if o.byteOrder == nil {
		o.byteOrder = binary.LittleEndian
	}
	return o
}
