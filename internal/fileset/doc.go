// Package fileset coordinates access to the files that make up one
// dataset: the data file, its offset table, the spatial index and any
// auxiliary attribute file.
//
// Every open handle on a tracked file is backed by a ticket. Any number of
// read tickets may coexist on one file kind; a write ticket excludes every
// other ticket on that kind. Locking is advisory and in-process; tickets are
// attributed to a Requestor so leaked locks can be traced.
//
// Replacing a file goes through Replace: the new content is written to a
// private temporary file, the write ticket is taken, and the temporary file
// is renamed over the destination. Readers therefore see either the old or
// the new content, never a mix.
package fileset
