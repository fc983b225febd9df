// Package compress implements the payload codecs used for published index
// blobs.
package compress
