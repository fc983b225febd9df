package testutil

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/source/recfile"
)

// World is the default extent for generated data.
var World = model.NewEnvelope(0, 0, 100, 100)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

func (r *RNG) coord(lo, hi float64) float64 {
	return lo + r.rand.Float64()*(hi-lo)
}

// Point returns a degenerate envelope uniformly placed inside extent.
func (r *RNG) Point(extent model.Envelope) model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.PointEnvelope(r.coord(extent.MinX, extent.MaxX), r.coord(extent.MinY, extent.MaxY))
}

// Points returns n uniform points inside extent.
func (r *RNG) Points(n int, extent model.Envelope) []model.Envelope {
	out := make([]model.Envelope, n)
	for i := range out {
		out[i] = r.Point(extent)
	}
	return out
}

// Boxes returns n boxes with sides up to maxSide, clipped to extent.
func (r *RNG) Boxes(n int, extent model.Envelope, maxSide float64) []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Envelope, n)
	for i := range out {
		x := r.coord(extent.MinX, extent.MaxX)
		y := r.coord(extent.MinY, extent.MaxY)
		w := r.rand.Float64() * maxSide
		h := r.rand.Float64() * maxSide
		out[i] = model.NewEnvelope(x, y, min(x+w, extent.MaxX), min(y+h, extent.MaxY))
	}
	return out
}

// Clustered returns n points packed around a few centers. The spread is
// the cluster radius as a fraction of the extent width. Skewed data like
// this drives the tree to its depth limit.
func (r *RNG) Clustered(n int, extent model.Envelope, clusters int, spread float64) []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([][2]float64, max(clusters, 1))
	for i := range centers {
		centers[i] = [2]float64{r.coord(extent.MinX, extent.MaxX), r.coord(extent.MinY, extent.MaxY)}
	}

	radius := extent.Width() * spread
	out := make([]model.Envelope, n)
	for i := range out {
		c := centers[r.rand.Intn(len(centers))]
		x := clamp(c[0]+r.rand.NormFloat64()*radius, extent.MinX, extent.MaxX)
		y := clamp(c[1]+r.rand.NormFloat64()*radius, extent.MinY, extent.MaxY)
		out[i] = model.PointEnvelope(x, y)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// CreateDataset writes envs as a record file named name in dir, together
// with its offset table, and returns the data file path. Record i gets
// envs[i].
func CreateDataset(dir, name string, kind model.ShapeKind, envs []model.Envelope) (string, error) {
	paths := source.Paths{
		Data:    filepath.Join(dir, name+recfile.DataExtension),
		Offsets: filepath.Join(dir, name+recfile.OffsetsExtension),
	}
	w, err := recfile.Create(paths, kind)
	if err != nil {
		return "", err
	}
	for i, env := range envs {
		if _, err := w.Append(env, nil); err != nil {
			_ = w.Close()
			return "", fmt.Errorf("append record %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return paths.Data, nil
}

// WriteDataset is CreateDataset for tests; it fails tb on error.
func WriteDataset(tb testing.TB, dir, name string, kind model.ShapeKind, envs []model.Envelope) string {
	tb.Helper()
	p, err := CreateDataset(dir, name, kind, envs)
	if err != nil {
		tb.Fatalf("write dataset: %v", err)
	}
	return p
}

// Intersecting returns the ids of all envelopes that intersect q, in
// ascending order. Every index search for q must include them.
func Intersecting(envs []model.Envelope, q model.Envelope) []model.RecordID {
	var out []model.RecordID
	for i, e := range envs {
		if q.Intersects(e) {
			out = append(out, model.RecordID(i))
		}
	}
	return out
}

// Missing returns the ids in want for which contains reports false.
func Missing(want []model.RecordID, contains func(model.RecordID) bool) []model.RecordID {
	var out []model.RecordID
	for _, id := range want {
		if !contains(id) {
			out = append(out, id)
		}
	}
	return out
}
