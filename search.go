package qix

import (
	"context"
	"iter"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/model"
)

// Hits holds the record ids returned by an indexed search, without
// duplicates and in ascending order.
type Hits struct {
	rb *roaring.Bitmap
}

// Len returns the number of hits.
func (h *Hits) Len() int {
	return int(h.rb.GetCardinality())
}

// Contains reports whether id is among the hits.
func (h *Hits) Contains(id model.RecordID) bool {
	return h.rb.Contains(uint32(id))
}

// IDs returns the hits as a slice.
func (h *Hits) IDs() []model.RecordID {
	out := make([]model.RecordID, 0, h.rb.GetCardinality())
	it := h.rb.Iterator()
	for it.HasNext() {
		out = append(out, model.RecordID(it.Next()))
	}
	return out
}

// All iterates over the hits in ascending order.
func (h *Hits) All() iter.Seq[model.RecordID] {
	return func(yield func(model.RecordID) bool) {
		it := h.rb.Iterator()
		for it.HasNext() {
			if !yield(model.RecordID(it.Next())) {
				return
			}
		}
	}
}

// Bitmap returns a copy of the hits as a roaring bitmap.
func (h *Hits) Bitmap() *roaring.Bitmap {
	return h.rb.Clone()
}

// Search returns the records whose envelope may intersect q.
//
// A nil *Hits with a nil error means the index cannot narrow the query
// and the caller must scan every record: the index is missing, stale,
// unreadable, or q covers the whole dataset. Index failures never surface
// as errors here; they are logged and counted as fallbacks. Errors are
// returned only for a closed Index, an invalid q, or a cancelled ctx.
//
// With WithCreateIndex (the default) a missing or stale index is rebuilt
// before the query runs.
func (ix *Index) Search(ctx context.Context, q model.Envelope) (*Hits, error) {
	start := time.Now()
	hits, err := ix.search(ctx, q)
	elapsed := time.Since(start)

	n := 0
	if hits != nil {
		n = hits.Len()
		ix.logger.LogSearch(ctx, n, elapsed)
	}
	ix.metrics.RecordSearch(n, hits != nil, elapsed, err)
	return hits, err
}

func (ix *Index) search(ctx context.Context, q model.Envelope) (*Hits, error) {
	if ix.closed.Load() {
		return nil, ErrClosed
	}
	if q.IsNull() {
		return nil, ErrInvalidEnvelope
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ix.ensureIndex(ctx) {
		return nil, nil
	}

	root, release, err := ix.root(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ix.dropCache()
		ix.fallback(ctx, FallbackLoadFailed, translateError(err))
		return nil, nil
	}
	defer release()

	if q.Contains(root.Bounds()) {
		ix.fallback(ctx, FallbackCoversAll, nil)
		return nil, nil
	}

	rb := roaring.New()
	err = quadtree.Search(root, q, func(id model.RecordID) bool {
		rb.Add(uint32(id))
		return true
	})
	if err != nil {
		ix.dropCache()
		ix.fallback(ctx, FallbackLoadFailed, translateError(err))
		return nil, nil
	}
	return &Hits{rb: rb}, nil
}

// ensureIndex reports whether a fresh index is installed, building one
// first when allowed.
func (ix *Index) ensureIndex(ctx context.Context) bool {
	status := ix.Status()
	switch status {
	case StatusFresh:
		return true
	case StatusUnavailable:
		ix.fallback(ctx, FallbackUnavailable, nil)
		return false
	}

	if !ix.opts.createIndex {
		reason := FallbackNoIndex
		if status == StatusStale {
			reason = FallbackStale
		}
		ix.fallback(ctx, reason, nil)
		return false
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	// A concurrent caller may have finished the build meanwhile.
	if ix.Status() == StatusFresh {
		return true
	}
	if _, err := ix.build(ctx); err != nil {
		ix.fallback(ctx, FallbackBuildFailed, err)
		return false
	}
	return true
}

func (ix *Index) fallback(ctx context.Context, reason string, err error) {
	ix.metrics.RecordFallback(reason)
	ix.logger.LogFallback(ctx, reason, err)
}

func noop() {}

// root returns the root of the installed index and a release func.
// Small indexes come from the cache; larger ones are loaded per call,
// fully or through a memory map.
func (ix *Index) root(ctx context.Context) (quadtree.NodeReader, func(), error) {
	fi, err := ix.files.Stat(fileset.KindIndex)
	if err != nil {
		return nil, nil, err
	}
	if ix.opts.cacheThreshold > 0 && fi.Size() < ix.opts.cacheThreshold {
		tree, err := ix.cachedTree(ctx)
		if err != nil {
			return nil, nil, err
		}
		return tree.Root(), noop, nil
	}

	if ix.opts.memoryMap {
		t, err := ix.files.AcquireRead(ctx, fileset.KindIndex, ix.req)
		if err != nil {
			return nil, nil, err
		}
		mp, err := persistence.OpenMapped(ix.opts.fs, ix.indexPath)
		if err != nil {
			t.Release()
			return nil, nil, err
		}
		root, err := mp.Root()
		if err != nil {
			_ = mp.Close()
			t.Release()
			return nil, nil, err
		}
		return root, func() {
			_ = mp.Close()
			t.Release()
		}, nil
	}

	tree, _, _, err := ix.loadTree(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tree.Root(), noop, nil
}

// loadTree decodes the installed index under a read lock.
func (ix *Index) loadTree(ctx context.Context) (*quadtree.Tree, persistence.Header, os.FileInfo, error) {
	lf, err := ix.files.OpenRead(ctx, fileset.KindIndex, ix.req)
	if err != nil {
		return nil, persistence.Header{}, nil, err
	}
	defer lf.Close()

	fi, err := lf.Stat()
	if err != nil {
		return nil, persistence.Header{}, nil, err
	}
	tree, h, err := persistence.Load(lf)
	if err != nil {
		return nil, persistence.Header{}, nil, err
	}
	return tree, h, fi, nil
}

// cachedTree returns the cached tree, reloading it when the file on disk
// changed since it was cached.
func (ix *Index) cachedTree(ctx context.Context) (*quadtree.Tree, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if c := ix.cache; c != nil {
		fi, err := ix.files.Stat(fileset.KindIndex)
		if err == nil && fi.ModTime().Equal(c.modTime) && fi.Size() == c.size {
			return c.tree, nil
		}
		ix.cache = nil
	}

	tree, h, fi, err := ix.loadTree(ctx)
	if err != nil {
		return nil, err
	}
	ix.cache = &cachedTree{tree: tree, header: h, modTime: fi.ModTime(), size: fi.Size()}
	return tree, nil
}

// Offsets resolves hits to byte offsets in the data file.
func (ix *Index) Offsets(ctx context.Context, hits *Hits) ([]int64, error) {
	if ix.closed.Load() {
		return nil, ErrClosed
	}
	if hits == nil {
		return nil, nil
	}

	if ix.files != nil {
		t, err := ix.files.AcquireRead(ctx, fileset.KindOffsets, ix.req)
		if err != nil {
			return nil, translateError(err)
		}
		defer t.Release()
	}

	ds, err := ix.opts.opener(ix.paths)
	if err != nil {
		return nil, translateError(err)
	}
	defer ds.Close()

	out := make([]int64, 0, hits.Len())
	for id := range hits.All() {
		off, err := ds.OffsetOf(id)
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, off)
	}
	return out, nil
}
