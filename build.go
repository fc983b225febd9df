package qix

import (
	"bufio"
	"context"
	"time"

	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/indexer"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/internal/quadtree"
)

// BuildStats describes a finished build.
type BuildStats struct {
	Records       int // records in the data file
	Indexed       int // records with a non-null envelope
	Nodes         int
	Depth         int
	MaxDepth      int // estimated depth; the tree may grow to twice this
	LeafCapacity  int
	Strategy      string // bounds cache strategy: heap, mapped or reread
	OptimizeCalls int
	Bytes         int64 // size of the written index file
	Duration      time.Duration
}

// Build streams the data file once, builds and optimizes a quadtree and
// atomically installs it as the new index. On failure the previously
// installed index is left untouched and the error is a *BuildAbortedError.
func (ix *Index) Build(ctx context.Context) (BuildStats, error) {
	if ix.closed.Load() {
		return BuildStats{}, ErrClosed
	}
	if ix.files == nil {
		return BuildStats{}, ErrNotLocal
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()
	return ix.build(ctx)
}

// build runs one build and records its outcome. Callers hold buildMu.
func (ix *Index) build(ctx context.Context) (BuildStats, error) {
	start := time.Now()
	stats, err := ix.buildAndInstall(ctx)
	stats.Duration = time.Since(start)

	if err != nil {
		err = &BuildAbortedError{Path: ix.paths.Data, Cause: translateError(err)}
	} else {
		ix.mu.Lock()
		ix.cache = nil
		ix.lastBuild = &stats
		ix.mu.Unlock()
	}

	ix.logger.LogBuild(ctx, stats, err)
	ix.metrics.RecordBuild(stats, err)
	return stats, err
}

func (ix *Index) buildAndInstall(ctx context.Context) (BuildStats, error) {
	if ix.opts.processLock {
		pl, err := ix.files.LockProcess(ctx, fileset.KindIndex, 0)
		if err != nil {
			return BuildStats{}, err
		}
		defer func() { _ = pl.Unlock() }()
	}

	tree, st, err := ix.buildTree(ctx)
	if err != nil {
		return BuildStats{}, err
	}

	sf, err := ix.files.StorageFile(fileset.KindIndex)
	if err != nil {
		return BuildStats{}, err
	}
	bw := bufio.NewWriterSize(sf, 256*1024)
	if err := persistence.Store(bw, tree, ix.opts.byteOrder); err != nil {
		_ = sf.Discard()
		return BuildStats{}, err
	}
	if err := bw.Flush(); err != nil {
		_ = sf.Discard()
		return BuildStats{}, err
	}

	waitStart := time.Now()
	if err := sf.Replace(ctx, ix.req, ix.opts.lockTimeout); err != nil {
		return BuildStats{}, err
	}
	ix.metrics.RecordLockWait(fileset.KindIndex.String(), time.Since(waitStart))

	return BuildStats{
		Records:       st.Records,
		Indexed:       st.Indexed,
		Nodes:         st.Nodes,
		Depth:         st.Depth,
		MaxDepth:      st.MaxDepth,
		LeafCapacity:  st.LeafCapacity,
		Strategy:      st.Strategy.String(),
		OptimizeCalls: st.OptimizeCalls,
		Bytes:         persistence.EncodedSize(tree),
	}, nil
}

// buildTree holds read locks on the data and offset files while they are
// streamed.
func (ix *Index) buildTree(ctx context.Context) (*quadtree.Tree, indexer.Stats, error) {
	waitStart := time.Now()
	dataTicket, err := ix.files.AcquireRead(ctx, fileset.KindData, ix.req)
	if err != nil {
		return nil, indexer.Stats{}, err
	}
	defer dataTicket.Release()

	offTicket, err := ix.files.AcquireRead(ctx, fileset.KindOffsets, ix.req)
	if err != nil {
		return nil, indexer.Stats{}, err
	}
	defer offTicket.Release()
	ix.metrics.RecordLockWait(fileset.KindData.String(), time.Since(waitStart))

	ds, err := ix.opts.opener(ix.paths)
	if err != nil {
		return nil, indexer.Stats{}, err
	}
	defer ds.Close()

	return indexer.Build(ctx, ds, indexer.Config{
		LeafCapacity:  ix.opts.leafCapacity,
		MinDepth:      ix.opts.minDepth,
		HeapThreshold: ix.opts.heapThreshold,
		TempDir:       ix.opts.tempDir,
		FS:            ix.opts.fs,
		Resources:     ix.opts.resources,
		Logger:        ix.logger.Logger,
	})
}
