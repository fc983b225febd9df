// Package blobstore provides the storage abstraction used to publish built
// indexes and fetch them on other hosts.
//
// BlobStore is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem with mmap reads and atomic puts
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with checksummed puts and multipart uploads
//
// ReadAll fetches a whole blob, splitting large remote blobs into ranges
// that are read concurrently.
package blobstore
