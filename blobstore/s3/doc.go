// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = idx.Publish(ctx, store, "roads.qix", qix.CodecLZ4)
//
// # Features
//
//   - Range reads, fetched concurrently by blobstore.ReadAll
//   - CRC32C-checksummed puts; multipart uploads above the part size
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
