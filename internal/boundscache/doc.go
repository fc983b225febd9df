// Package boundscache records one envelope per record during an index build
// so the optimizer can look bounds up repeatedly and out of order without
// parsing the data file again.
//
// Three strategies exist, chosen once per build by New:
//
//   - heap: a []float64 in process memory, for small datasets;
//   - mapped: a memory-mapped temporary file sized exactly to the need;
//   - reread: no storage at all, every lookup re-reads the data file.
//
// Point datasets store two ordinates per record instead of four.
package boundscache
