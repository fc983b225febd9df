package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// DefaultChunkSize is the range size ReadAll fetches per request.
const DefaultChunkSize = 4 << 20

const fetchConcurrency = 4

// BlobStore is an abstraction for named, immutable blobs such as published
// index files.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll returns the full content of b. Remote blobs are fetched as
// chunkSize ranges, several at a time.
func ReadAll(ctx context.Context, b Blob, chunkSize int64) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			return bytes.Clone(data), nil
		}
	}

	size := b.Size()
	if size < 0 {
		return nil, fmt.Errorf("blobstore: invalid blob size %d", size)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	out := make([]byte, size)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for off := int64(0); off < size; off += chunkSize {
		end := min(off+chunkSize, size)
		g.Go(func() error {
			n, err := b.ReadAt(ctx, out[off:end], off)
			if err == io.EOF && int64(n) == end-off {
				err = nil
			}
			if err != nil {
				return err
			}
			if int64(n) != end-off {
				return io.ErrUnexpectedEOF
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
