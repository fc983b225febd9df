package qix

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/testutil"
)

// writePoints creates a point dataset with n records spread over
// [0,100]x[0,100] and returns the data path and the points by id.
func writePoints(t testing.TB, dir string, n int, seed int64) (string, []model.Envelope) {
	t.Helper()
	points := testutil.NewRNG(seed).Points(n, testutil.World)
	return testutil.WriteDataset(t, dir, "roads", model.KindPoint, points), points
}

func within(points []model.Envelope, q model.Envelope) []model.RecordID {
	return testutil.Intersecting(points, q)
}

func captureLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/data/roads.qix", IndexPath("/data/roads.rec"))
	assert.Equal(t, "/data/roads.rdx", OffsetsPath("/data/roads.rec"))
	assert.Equal(t, "roads.qix", IndexPath("roads"))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	dataPath, _ := writePoints(t, dir, 100, 1)

	idx, err := Open(dataPath, WithCreateIndex(false))
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, StatusMissing, idx.Status())

	_, err = idx.Build(context.Background())
	require.NoError(t, err)

	dataInfo, err := os.Stat(dataPath)
	require.NoError(t, err)
	mtime := dataInfo.ModTime()

	// Same modification time as the data file counts as fresh.
	require.NoError(t, os.Chtimes(idx.Path(), mtime, mtime))
	assert.Equal(t, StatusFresh, idx.Status())

	older := mtime.Add(-time.Second)
	require.NoError(t, os.Chtimes(idx.Path(), older, older))
	assert.Equal(t, StatusStale, idx.Status())

	require.NoError(t, os.Remove(OffsetsPath(dataPath)))
	assert.Equal(t, StatusUnavailable, idx.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "missing", StatusMissing.String())
	assert.Equal(t, "stale", StatusStale.String())
	assert.Equal(t, "fresh", StatusFresh.String())
	assert.Equal(t, "unavailable", StatusUnavailable.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestBuild_Stats(t *testing.T) {
	dir := t.TempDir()
	dataPath, _ := writePoints(t, dir, 5000, 2)

	metrics := &BasicMetricsCollector{}
	var logs bytes.Buffer
	idx, err := Open(dataPath,
		WithLeafCapacity(8),
		WithMetricsCollector(metrics),
		WithLogger(captureLogger(&logs)),
	)
	require.NoError(t, err)
	defer idx.Close()

	bs, err := idx.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, bs.Records)
	assert.Equal(t, 5000, bs.Indexed)
	assert.Equal(t, 8, bs.LeafCapacity)
	assert.GreaterOrEqual(t, bs.MaxDepth, DefaultMinDepth)
	assert.LessOrEqual(t, bs.Depth, 2*bs.MaxDepth)
	assert.NotEmpty(t, bs.Strategy)
	assert.Positive(t, bs.Nodes)

	fi, err := os.Stat(idx.Path())
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), bs.Bytes)

	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, st.Status)
	assert.Equal(t, uint64(5000), st.RecordCount)
	assert.Equal(t, uint32(bs.Nodes), st.NodeCount)
	assert.Equal(t, uint32(8), st.LeafCapacity)
	assert.Equal(t, "LittleEndian", st.ByteOrder)
	require.NotNil(t, st.LastBuild)
	assert.Equal(t, bs.Nodes, st.LastBuild.Nodes)

	assert.Equal(t, int64(1), metrics.GetStats().BuildCount)
	assert.Contains(t, logs.String(), "index built")

	tmp, err := filepath.Glob(filepath.Join(dir, "qix-*"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestBuild_FailureKeepsPreviousIndex(t *testing.T) {
	dir := t.TempDir()
	dataPath, _ := writePoints(t, dir, 200, 3)

	idx, err := Open(dataPath)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Build(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(idx.Path())
	require.NoError(t, err)

	// Truncate the data file behind its header.
	require.NoError(t, os.Truncate(dataPath, 60))

	_, err = idx.Build(context.Background())
	require.Error(t, err)
	var aborted *BuildAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, dataPath, aborted.Path)
	assert.ErrorIs(t, err, ErrIOFailure)

	after, err := os.ReadFile(idx.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBuild_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	dataPath, _ := writePoints(t, dir, 1000, 4)

	idx, err := Open(dataPath)
	require.NoError(t, err)
	defer idx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = idx.Build(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusMissing, idx.Status())
}

func TestBuild_BigEndian(t *testing.T) {
	dir := t.TempDir()
	dataPath, points := writePoints(t, dir, 500, 5)

	idx, err := Open(dataPath, WithByteOrder(binary.BigEndian))
	require.NoError(t, err)
	defer idx.Close()

	q := model.NewEnvelope(20, 20, 40, 40)
	hits, err := idx.Search(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, hits)
	for _, id := range within(points, q) {
		assert.True(t, hits.Contains(id))
	}

	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, "BigEndian", st.ByteOrder)
}

func TestNotLocal(t *testing.T) {
	idx, err := OpenPaths(source.Paths{},
		WithSourceOpener(func(source.Paths) (source.Dataset, error) {
			return source.NewMemory(model.KindPoint, []model.Envelope{model.PointEnvelope(1, 1)}), nil
		}),
	)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, StatusUnavailable, idx.Status())
	assert.Empty(t, idx.Path())

	hits, err := idx.Search(context.Background(), model.NewEnvelope(0, 0, 2, 2))
	require.NoError(t, err)
	assert.Nil(t, hits)

	_, err = idx.Build(context.Background())
	assert.ErrorIs(t, err, ErrNotLocal)
	_, err = idx.Stats()
	assert.ErrorIs(t, err, ErrNotLocal)
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	dataPath, _ := writePoints(t, dir, 10, 6)

	reg := NewLockRegistry()
	idx, err := Open(dataPath, WithRegistry(reg))
	require.NoError(t, err)
	other, err := Open(dataPath, WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	assert.Equal(t, 1, reg.Len())

	_, err = idx.Search(context.Background(), model.NewEnvelope(0, 0, 1, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Build(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// The other Index keeps working on the shared lock manager.
	_, err = other.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, other.Close())
	assert.Equal(t, 0, reg.Len())
}
