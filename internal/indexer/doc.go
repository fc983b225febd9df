// Package indexer builds an optimized quadtree from a data source.
//
// A build streams the source once, inserting every record into the tree
// and into a bounds cache, then runs a single recursive optimize pass that
// re-splits overflowing leaves, prunes empty nodes, collapses single-child
// chains, shrinks node bounds to their content and merges sparse children
// back into their parent.
package indexer
