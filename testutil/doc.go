// Package testutil provides test data for qix.
//
// This package is intended for use in tests and benchmarks only.
// It generates reproducible envelopes, writes them as record files and
// computes the exact answer a spatial query must include.
//
// # Random Envelopes
//
//	rng := testutil.NewRNG(seed)
//	points := rng.Points(10_000, testutil.World)
//	boxes := rng.Boxes(1_000, testutil.World, 2.5)
//	skewed := rng.Clustered(10_000, testutil.World, 4, 0.5)
//
// # Datasets
//
//	dataPath := testutil.WriteDataset(t, t.TempDir(), "roads", model.KindPoint, points)
//
// # Ground Truth
//
//	want := testutil.Intersecting(points, q)
//	missing := testutil.Missing(want, hits.Contains)
package testutil
