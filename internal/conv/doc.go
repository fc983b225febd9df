// Package conv checks integer conversions at the boundary between Go ints
// and the fixed-width fields of the on-disk formats.
package conv
