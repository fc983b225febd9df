package qix

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/qix/blobstore"
	"github.com/hupe1980/qix/internal/compress"
	"github.com/hupe1980/qix/internal/conv"
	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/internal/resource"
)

// Codec selects the compression of a published index.
type Codec uint8

const (
	// CodecNone uploads the index file as is.
	CodecNone = Codec(compress.None)
	// CodecLZ4 favors speed.
	CodecLZ4 = Codec(compress.LZ4)
	// CodecZstd favors size.
	CodecZstd = Codec(compress.Zstd)
)

func (c Codec) String() string { return compress.Codec(c).String() }

// ParseCodec maps "none", "lz4" or "zstd" to a Codec. The empty string
// means CodecNone.
func ParseCodec(s string) (Codec, error) {
	c, err := compress.ParseCodec(s)
	return Codec(c), err
}

const (
	blobMagic      = "QXB1"
	blobHeaderSize = 16
)

// ErrInvalidBlob is returned by Fetch for objects that are not published
// indexes.
var ErrInvalidBlob = fmt.Errorf("%w: not a published index", ErrFormat)

func encodeBlobHeader(codec Codec, size uint64) []byte {
	b := make([]byte, blobHeaderSize)
	copy(b, blobMagic)
	b[4] = byte(codec)
	binary.LittleEndian.PutUint64(b[8:], size)
	return b
}

func decodeBlobHeader(b []byte) (Codec, uint64, error) {
	if len(b) < blobHeaderSize || string(b[:4]) != blobMagic {
		return 0, 0, ErrInvalidBlob
	}
	codec := Codec(b[4])
	if !compress.Codec(codec).Valid() {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidBlob, codec)
	}
	return codec, binary.LittleEndian.Uint64(b[8:]), nil
}

// Publish uploads the installed index to store under name. The file is read
// under a read lock, so a concurrent rebuild waits until the upload data
// has been read.
func (ix *Index) Publish(ctx context.Context, store blobstore.BlobStore, name string, codec Codec) error {
	if ix.closed.Load() {
		return ErrClosed
	}
	if ix.files == nil {
		return ErrNotLocal
	}
	if !compress.Codec(codec).Valid() {
		return fmt.Errorf("qix: %w", compress.ErrUnknownCodec)
	}

	raw, err := ix.readIndexFile(ctx)
	if err != nil {
		return translateError(err)
	}
	if _, err := persistence.DecodeHeader(raw); err != nil {
		return translateError(err)
	}

	payload, err := compress.Compress(compress.Codec(codec), raw)
	if err != nil {
		return err
	}

	blob := make([]byte, 0, blobHeaderSize+len(payload))
	blob = append(blob, encodeBlobHeader(codec, uint64(len(raw)))...)
	blob = append(blob, payload...)

	if err := store.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("qix: publish %s: %w", name, err)
	}

	ix.logger.InfoContext(ctx, "index published",
		"name", name,
		"codec", codec.String(),
		"bytes", len(raw),
		"stored", len(blob),
	)
	return nil
}

func (ix *Index) readIndexFile(ctx context.Context) ([]byte, error) {
	lf, err := ix.files.OpenRead(ctx, fileset.KindIndex, ix.req)
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	var buf bytes.Buffer
	if fi, err := lf.Stat(); err == nil {
		buf.Grow(int(fi.Size()))
	}
	if _, err := io.Copy(&buf, resource.NewRateLimitedReader(ctx, lf, ix.opts.resources)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fetch downloads the index published under name, verifies it and installs
// it over the local index with the same atomic replace a build uses. The
// data file is not consulted: the caller is responsible for publishing and
// fetching indexes that match their data.
func (ix *Index) Fetch(ctx context.Context, store blobstore.BlobStore, name string) error {
	if ix.closed.Load() {
		return ErrClosed
	}
	if ix.files == nil {
		return ErrNotLocal
	}

	b, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("qix: fetch %s: %w", name, err)
	}
	blob, err := blobstore.ReadAll(ctx, b, blobstore.DefaultChunkSize)
	_ = b.Close()
	if err != nil {
		return fmt.Errorf("qix: fetch %s: %w", name, err)
	}

	codec, size, err := decodeBlobHeader(blob)
	if err != nil {
		return err
	}
	n, err := conv.Uint64ToInt(size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlob, err)
	}
	raw, err := compress.Decompress(compress.Codec(codec), blob[blobHeaderSize:], n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlob, err)
	}
	if _, _, err := persistence.Load(bytes.NewReader(raw)); err != nil {
		return translateError(err)
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	if err := ix.install(ctx, raw); err != nil {
		return translateError(err)
	}
	ix.dropCache()

	ix.logger.InfoContext(ctx, "index fetched",
		"name", name,
		"codec", codec.String(),
		"bytes", len(raw),
	)
	return nil
}

func (ix *Index) install(ctx context.Context, raw []byte) error {
	sf, err := ix.files.StorageFile(fileset.KindIndex)
	if err != nil {
		return err
	}
	if _, err := sf.Write(raw); err != nil {
		return errors.Join(err, sf.Discard())
	}

	waitStart := time.Now()
	if err := sf.Replace(ctx, ix.req, ix.opts.lockTimeout); err != nil {
		return err
	}
	ix.metrics.RecordLockWait(fileset.KindIndex.String(), time.Since(waitStart))
	return nil
}
