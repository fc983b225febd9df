package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/qix/internal/boundscache"
	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/internal/resource"
	"github.com/hupe1980/qix/source"
)

// DefaultLeafCapacity is the leaf size used when Config.LeafCapacity is unset.
const DefaultLeafCapacity = 16

// ErrAborted wraps every error that stops a build. Nothing produced by an
// aborted build may be installed.
var ErrAborted = errors.New("indexer: build aborted")

// Config controls a build.
type Config struct {
	LeafCapacity int
	MinDepth     int

	HeapThreshold int64
	TempDir       string
	FS            fs.FileSystem
	Resources     *resource.Controller

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.LeafCapacity <= 0 {
		c.LeafCapacity = DefaultLeafCapacity
	}
	if c.MinDepth <= 0 {
		c.MinDepth = quadtree.DefaultMinDepth
	}
	if c.FS == nil {
		c.FS = fs.Default
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Stats describes a finished build.
type Stats struct {
	Records       int
	Indexed       int // records with a non-null envelope
	Nodes         int
	Depth         int
	MaxDepth      int
	LeafCapacity  int
	Strategy      boundscache.Strategy
	OptimizeCalls int
	Allocated     int
	Duration      time.Duration
}

// Build streams ds once and returns the optimized tree.
func Build(ctx context.Context, ds source.Dataset, cfg Config) (*quadtree.Tree, Stats, error) {
	cfg.setDefaults()
	start := time.Now()

	if err := cfg.Resources.AcquireBuild(ctx); err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	defer cfg.Resources.ReleaseBuild()

	count := ds.Count()
	maxDepth := quadtree.EstimateDepth(count, cfg.LeafCapacity, cfg.MinDepth)

	cache, err := boundscache.New(boundscache.Config{
		Count:         count,
		Kind:          ds.Kind(),
		HeapThreshold: cfg.HeapThreshold,
		TempDir:       cfg.TempDir,
		FS:            cfg.FS,
		Resources:     cfg.Resources,
		Reader:        ds,
		Offsets:       ds,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	defer cache.Close()

	tree := quadtree.New(ds.Extent(), count, maxDepth, cfg.LeafCapacity)

	indexed, err := populate(ctx, ds, tree, cache, cfg.Resources)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	calls, err := Optimize(tree, cache)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	stats := Stats{
		Records:       count,
		Indexed:       indexed,
		Nodes:         tree.NodeCount(),
		Depth:         tree.Depth(),
		MaxDepth:      maxDepth,
		LeafCapacity:  cfg.LeafCapacity,
		Strategy:      cache.Strategy(),
		OptimizeCalls: calls,
		Allocated:     tree.Allocated(),
		Duration:      time.Since(start),
	}

	cfg.Logger.Debug("quadtree built",
		"records", stats.Records,
		"nodes", stats.Nodes,
		"depth", stats.Depth,
		"strategy", stats.Strategy.String(),
		"heap_bytes", cfg.Resources.MemoryUsage(),
		"duration", stats.Duration,
	)

	return tree, stats, nil
}

// populate runs the single sequential pass. Records with a null envelope
// are skipped; they can never match a query.
func populate(ctx context.Context, r source.Reader, tree *quadtree.Tree, cache boundscache.Cache, rc *resource.Controller) (int, error) {
	count := r.Count()
	indexed := 0
	next := 0

	err := r.Scan(ctx, func(rec source.Record) error {
		if int(rec.ID) != next || next >= count {
			return fmt.Errorf("record %d out of sequence (expected %d of %d)", rec.ID, next, count)
		}
		next++

		if err := rc.AcquireIO(ctx, rec.Size); err != nil {
			return err
		}

		if rec.Envelope.IsNull() {
			return nil
		}
		if err := cache.Put(rec.ID, rec.Envelope); err != nil {
			return err
		}
		tree.Insert(rec.ID, rec.Envelope)
		indexed++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if next != count {
		return 0, fmt.Errorf("data source ended after %d of %d records", next, count)
	}
	return indexed, nil
}
