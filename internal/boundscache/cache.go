package boundscache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/resource"
	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
)

const (
	// DefaultHeapThreshold is the largest cache kept in process memory.
	DefaultHeapThreshold = 1 << 20
	// TempPrefix prefixes the names of mapped cache files.
	TempPrefix = "qix-bounds-"

	// spaceMargin is left free on the temp volume when sizing a mapped cache.
	spaceMargin = 4 << 20
)

var (
	// ErrInsufficientSpace is returned when the temp volume cannot hold a mapped cache.
	ErrInsufficientSpace = errors.New("boundscache: insufficient disk space")
	// ErrOutOfRange is returned for record ids beyond the configured count.
	ErrOutOfRange = errors.New("boundscache: record id out of range")
	// ErrNoFallback is returned when neither storage nor a re-read source is available.
	ErrNoFallback = errors.New("boundscache: no storage and no source to re-read from")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("boundscache: closed")
)

// Strategy identifies how a cache stores envelopes.
type Strategy int

const (
	StrategyHeap Strategy = iota
	StrategyMapped
	StrategyReread
)

func (s Strategy) String() string {
	switch s {
	case StrategyHeap:
		return "heap"
	case StrategyMapped:
		return "mapped"
	case StrategyReread:
		return "reread"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Cache is a write-once, random-read array of envelopes indexed by record id.
type Cache interface {
	// Put records the envelope of id. Every id is put at most once.
	Put(id model.RecordID, env model.Envelope) error
	// Get returns the envelope of id.
	Get(id model.RecordID) (model.Envelope, error)
	// Expand folds the envelope of id into acc.
	Expand(id model.RecordID, acc *model.Envelope) error
	Strategy() Strategy
	Close() error
}

// Config selects and sizes a cache.
type Config struct {
	Count int
	Kind  model.ShapeKind

	// HeapThreshold is the largest size in bytes kept on the heap.
	// Zero means DefaultHeapThreshold; negative disables the heap strategy.
	HeapThreshold int64
	// TempDir holds mapped cache files. Empty means the OS temp dir.
	TempDir string

	FS        fs.FileSystem
	Resources *resource.Controller

	// Reader and Offsets serve the reread strategy.
	Reader  source.Reader
	Offsets source.OffsetIndex

	Logger *slog.Logger
}

// RequiredBytes returns the storage a cache of count records of kind needs.
func RequiredBytes(count int, kind model.ShapeKind) int64 {
	return int64(count) * int64(kind.Ordinates()) * 8
}

// New picks the cheapest strategy that can hold the configured count.
// Degradation to the reread strategy is logged at WARN, not returned.
func New(cfg Config) (Cache, error) {
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	threshold := cfg.HeapThreshold
	if threshold == 0 {
		threshold = DefaultHeapThreshold
	}

	need := RequiredBytes(cfg.Count, cfg.Kind)

	if threshold > 0 && need <= threshold {
		if err := cfg.Resources.AcquireMemory(need); err == nil {
			return newHeap(cfg.Count, cfg.Kind, need, cfg.Resources), nil
		}
		cfg.Logger.Debug("bounds cache memory budget exhausted, trying temp file", "bytes", need)
	}

	c, err := newMapped(cfg, need)
	if err == nil {
		return c, nil
	}

	if cfg.Reader == nil || cfg.Offsets == nil {
		return nil, errors.Join(ErrNoFallback, err)
	}

	cfg.Logger.Warn("bounds cache degraded to re-reading the data file",
		"records", cfg.Count,
		"bytes", need,
		"error", err,
	)

	return newReread(cfg.Count, cfg.Reader, cfg.Offsets), nil
}
