package qix

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/source/recfile"
)

// IndexExtension is the file extension of spatial index files.
const IndexExtension = ".qix"

// Status describes whether the on-disk index can serve queries.
type Status int

const (
	// StatusMissing means no index file exists yet.
	StatusMissing Status = iota
	// StatusStale means the index is older than the data file.
	StatusStale
	// StatusFresh means the index is at least as new as the data file.
	StatusFresh
	// StatusUnavailable means no index can be generated, because the
	// dataset is not local or its data or offset file is missing.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusStale:
		return "stale"
	case StatusFresh:
		return "fresh"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// OffsetsPath returns the offset table path that belongs to dataPath.
func OffsetsPath(dataPath string) string {
	return swapExt(dataPath, recfile.OffsetsExtension)
}

// IndexPath returns the index path that belongs to dataPath.
func IndexPath(dataPath string) string {
	return swapExt(dataPath, IndexExtension)
}

func swapExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// Index manages the spatial index of one dataset: it decides whether the
// index is usable, builds and installs it, and answers bounding box
// queries. An Index is safe for concurrent use.
type Index struct {
	paths     source.Paths
	indexPath string
	opts      options
	files     *fileset.FileSet // nil for datasets without local files
	req       Requestor
	logger    *Logger
	metrics   MetricsCollector

	buildMu   sync.Mutex // serializes builds and installs
	mu        sync.Mutex // guards cache and lastBuild
	cache     *cachedTree
	lastBuild *BuildStats

	closed atomic.Bool
}

type cachedTree struct {
	tree    *quadtree.Tree
	header  persistence.Header
	modTime time.Time
	size    int64
}

// Open returns the Index for the record file at dataPath. The offset table
// and index are expected next to it (see OffsetsPath and IndexPath).
// Nothing is read until the first call that needs it.
func Open(dataPath string, optFns ...Option) (*Index, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("qix: empty data path")
	}
	return OpenPaths(source.Paths{Data: dataPath, Offsets: OffsetsPath(dataPath)}, optFns...)
}

// OpenPaths returns the Index for an explicit pair of data and offset
// files. A dataset without local paths can be searched but never indexed;
// every search reports "scan everything".
func OpenPaths(paths source.Paths, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	req := NewRequestor("qix")
	if o.requestor != nil {
		req = *o.requestor
	}

	ix := &Index{
		paths:   paths,
		opts:    o,
		req:     req,
		metrics: o.metricsCollector,
	}

	if paths.IsLocal() {
		ix.indexPath = IndexPath(paths.Data)
		ix.logger = o.logger.WithPath(paths.Data).WithRequestor(req)
		ix.files = o.registry.Get(ix.filePaths(), fileset.Config{
			FS:     o.fs,
			Logger: ix.logger.Logger,
		})
	} else {
		ix.logger = o.logger.WithRequestor(req)
	}

	return ix, nil
}

func (ix *Index) filePaths() fileset.Paths {
	return fileset.Paths{
		fileset.KindData:    ix.paths.Data,
		fileset.KindOffsets: ix.paths.Offsets,
		fileset.KindIndex:   ix.indexPath,
	}
}

// Path returns the index file location, or "" for non-local datasets.
func (ix *Index) Path() string { return ix.indexPath }

// Requestor returns the identity this Index takes locks under.
func (ix *Index) Requestor() Requestor { return ix.req }

// Status reports whether the index exists and is fresh. An index whose
// modification time equals the data file's counts as fresh.
func (ix *Index) Status() Status {
	if ix.files == nil {
		return StatusUnavailable
	}
	data, err := ix.files.Stat(fileset.KindData)
	if err != nil || !ix.files.Exists(fileset.KindOffsets) {
		return StatusUnavailable
	}
	idx, err := ix.files.Stat(fileset.KindIndex)
	if err != nil {
		return StatusMissing
	}
	if idx.ModTime().Before(data.ModTime()) {
		return StatusStale
	}
	return StatusFresh
}

// Stats describes the installed index.
type Stats struct {
	Path         string
	Status       Status
	Size         int64
	ModTime      time.Time
	ByteOrder    string
	RecordCount  uint64
	NodeCount    uint32
	MaxDepth     uint32
	LeafCapacity uint32
	Cached       bool

	// LastBuild is set once this Index has built successfully.
	LastBuild *BuildStats
}

// Stats reads the header of the installed index.
func (ix *Index) Stats() (Stats, error) {
	if ix.closed.Load() {
		return Stats{}, ErrClosed
	}
	if ix.files == nil {
		return Stats{}, ErrNotLocal
	}

	st := Stats{Path: ix.indexPath, Status: ix.Status()}

	ix.mu.Lock()
	st.Cached = ix.cache != nil
	if ix.lastBuild != nil {
		lb := *ix.lastBuild
		st.LastBuild = &lb
	}
	ix.mu.Unlock()

	f, err := ix.files.FS().OpenFile(ix.indexPath, os.O_RDONLY, 0)
	if err != nil {
		return st, translateError(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return st, translateError(err)
	}
	buf := make([]byte, persistence.HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return st, translateError(fmt.Errorf("%w: %w", persistence.ErrNotIndexFile, err))
	}
	h, err := persistence.DecodeHeader(buf)
	if err != nil {
		return st, translateError(err)
	}

	st.Size = fi.Size()
	st.ModTime = fi.ModTime()
	st.ByteOrder = h.ByteOrder.String()
	st.RecordCount = h.RecordCount
	st.NodeCount = h.NodeCount
	st.MaxDepth = h.MaxDepth
	st.LeafCapacity = h.LeafCapacity
	return st, nil
}

// Close drops the cached tree and releases this Index's hold on the shared
// lock manager. Locks still held when the last Index over a dataset closes
// are logged as leaked.
func (ix *Index) Close() error {
	if ix.closed.Swap(true) {
		return nil
	}
	ix.mu.Lock()
	ix.cache = nil
	ix.mu.Unlock()

	if ix.files != nil {
		ix.opts.registry.Release(ix.filePaths())
	}
	return nil
}

func (ix *Index) dropCache() {
	ix.mu.Lock()
	ix.cache = nil
	ix.mu.Unlock()
}
