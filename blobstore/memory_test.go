package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("payload")
	require.NoError(t, store.Put(ctx, "x/1", data))
	data[0] = 'P'

	blob, err := store.Open(ctx, "x/1")
	require.NoError(t, err)
	got, err := ReadAll(ctx, blob, 0)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1"}, names)

	require.NoError(t, store.Delete(ctx, "x/1"))
	_, err = store.Open(ctx, "x/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// rangeBlob serves ReadAt from memory and counts the calls.
type rangeBlob struct {
	data  []byte
	calls atomic.Int32
	fail  bool
}

func (b *rangeBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	b.calls.Add(1)
	if b.fail {
		return 0, errors.New("range read failed")
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *rangeBlob) Close() error { return nil }
func (b *rangeBlob) Size() int64  { return int64(len(b.data)) }

func TestReadAll_Chunked(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	blob := &rangeBlob{data: data}

	got, err := ReadAll(context.Background(), blob, 999)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int32(11), blob.calls.Load())
}

func TestReadAll_Empty(t *testing.T) {
	blob := &rangeBlob{}
	got, err := ReadAll(context.Background(), blob, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), blob.calls.Load())
}

func TestReadAll_PropagatesErrors(t *testing.T) {
	blob := &rangeBlob{data: make([]byte, 100), fail: true}
	_, err := ReadAll(context.Background(), blob, 10)
	assert.EqualError(t, err, "range read failed")
}
