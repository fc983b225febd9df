package persistence

import (
	"fmt"
	"hash"
	"io"

	qhash "github.com/hupe1980/qix/internal/hash"
)

// CRC32C over the node section. It detects accidental corruption,
// not tampering.

type checksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, hash: qhash.NewCRC32C()}
}

func (cw *checksumWriter) Write(p []byte) (int, error) {
	_, _ = cw.hash.Write(p)
	return cw.w.Write(p)
}

func (cw *checksumWriter) Sum() uint32 { return cw.hash.Sum32() }

type checksumReader struct {
	r    io.Reader
	hash hash.Hash32
}

func newChecksumReader(r io.Reader) *checksumReader {
	return &checksumReader{r: r, hash: qhash.NewCRC32C()}
}

func (cr *checksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		_, _ = cr.hash.Write(p[:n])
	}
	return n, err
}

func (cr *checksumReader) verify(expected uint32) error {
	if actual := cr.hash.Sum32(); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ChecksumMismatchError is returned by full loads when the node section
// does not match the checksum stored in the header. It matches ErrCorrupt.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("persistence: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }
