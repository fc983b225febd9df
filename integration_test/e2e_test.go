package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/qix"
	"github.com/hupe1980/qix/blobstore"
	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/testutil"
)

func TestE2E_PublishAndRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "published"))

	points := testutil.NewRNG(1).Points(20_000, testutil.World)
	dataPath := testutil.WriteDataset(t, dir, "roads", model.KindPoint, points)

	// 1. Build and publish
	idx, err := qix.Open(dataPath)
	require.NoError(t, err)
	_, err = idx.Build(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Publish(ctx, store, "indexes/roads.qix", qix.CodecZstd))
	require.NoError(t, idx.Close())

	// 2. Lose the local index
	require.NoError(t, os.Remove(qix.IndexPath(dataPath)))

	// 3. Reopen without building and restore
	idx, err = qix.Open(dataPath, qix.WithCreateIndex(false))
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, qix.StatusMissing, idx.Status())

	require.NoError(t, idx.Fetch(ctx, store, "indexes/roads.qix"))
	require.Equal(t, qix.StatusFresh, idx.Status())

	q := model.NewEnvelope(12, 70, 19, 77)
	hits, err := idx.Search(ctx, q)
	require.NoError(t, err)
	require.NotNil(t, hits)
	assert.Empty(t, testutil.Missing(testutil.Intersecting(points, q), hits.Contains))
}

func TestE2E_BoundsCacheStrategies(t *testing.T) {
	ctx := context.Background()
	points := testutil.NewRNG(2).Points(30_000, testutil.World)

	tests := []struct {
		name     string
		diskFull bool
		heap     int64
		want     string
	}{
		{"heap", false, 1 << 30, "heap"},
		{"mapped", false, -1, "mapped"},
		{"reread when disk is full", true, -1, "reread"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dataPath := testutil.WriteDataset(t, dir, "roads", model.KindPoint, points)

			ffs := fs.NewFaultyFS(nil)
			if tt.diskFull {
				ffs.SetAvailable(0)
			}

			idx, err := qix.Open(dataPath,
				qix.WithFileSystem(ffs),
				qix.WithHeapThreshold(tt.heap),
				qix.WithTempDir(dir),
			)
			require.NoError(t, err)
			defer idx.Close()

			st, err := idx.Build(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Strategy)
			assert.Equal(t, len(points), st.Indexed)

			q := model.NewEnvelope(50, 50, 52, 58)
			hits, err := idx.Search(ctx, q)
			require.NoError(t, err)
			require.NotNil(t, hits)
			assert.Empty(t, testutil.Missing(testutil.Intersecting(points, q), hits.Contains))

			leftovers, err := filepath.Glob(filepath.Join(dir, "qix-*"))
			require.NoError(t, err)
			assert.Empty(t, leftovers)
		})
	}
}

// Separate registries do not see each other's tickets, like separate
// processes. The OS file lock still keeps their builds apart.
func TestE2E_ProcessLockedBuilds(t *testing.T) {
	dir := t.TempDir()
	points := testutil.NewRNG(3).Points(10_000, testutil.World)
	dataPath := testutil.WriteDataset(t, dir, "roads", model.KindPoint, points)

	g, ctx := errgroup.WithContext(context.Background())
	for range 3 {
		g.Go(func() error {
			idx, err := qix.Open(dataPath,
				qix.WithRegistry(qix.NewLockRegistry()),
				qix.WithProcessLock(true),
			)
			if err != nil {
				return err
			}
			defer idx.Close()
			for range 3 {
				if _, err := idx.Build(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	idx, err := qix.Open(dataPath, qix.WithCreateIndex(false))
	require.NoError(t, err)
	defer idx.Close()

	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, qix.StatusFresh, st.Status)
	assert.Equal(t, uint64(len(points)), st.RecordCount)
}
