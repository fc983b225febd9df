package recfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
)

// Writer appends records to a new dataset. Offsets are buffered in memory
// and written, together with the final extent, by Close.
type Writer struct {
	data    *os.File
	buf     *bufio.Writer
	paths   source.Paths
	kind    model.ShapeKind
	extent  model.Envelope
	pos     int64
	offsets []uint64
	scratch []byte
	closed  bool
}

// Create truncates or creates both files of a dataset.
func Create(p source.Paths, kind model.ShapeKind) (*Writer, error) {
	if !p.IsLocal() {
		return nil, fmt.Errorf("recfile: both data and offsets paths are required")
	}

	f, err := os.OpenFile(p.Data, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		data:    f,
		buf:     bufio.NewWriterSize(f, 64*1024),
		paths:   p,
		kind:    kind,
		extent:  model.NullEnvelope(),
		pos:     dataHeaderSize,
		scratch: make([]byte, recordPrefixSize+32),
	}

	// Placeholder header; the extent is patched on Close.
	if _, err := w.buf.Write(encodeDataHeader(kind, model.Envelope{})); err != nil {
		_ = f.Close()
		return nil, err
	}

	return w, nil
}

// Append writes one record and returns its id.
func (w *Writer) Append(env model.Envelope, payload []byte) (model.RecordID, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if env.IsNull() {
		return 0, fmt.Errorf("%w: null envelope", ErrKindMismatch)
	}
	if w.kind.IsPoint() && !env.IsPoint() {
		return 0, fmt.Errorf("%w: %s record with extent %s", ErrKindMismatch, w.kind, env)
	}
	if len(payload) > maxPayloadLength {
		return 0, fmt.Errorf("recfile: payload of %d bytes exceeds limit", len(payload))
	}

	id := model.RecordID(len(w.offsets))
	envSize := envelopeSize(w.kind)

	le.PutUint32(w.scratch, uint32(len(payload)))
	putEnvelope(w.scratch[recordPrefixSize:], w.kind, env)

	if _, err := w.buf.Write(w.scratch[:recordPrefixSize+envSize]); err != nil {
		return 0, err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return 0, err
	}

	w.offsets = append(w.offsets, uint64(w.pos))
	w.pos += int64(recordPrefixSize + envSize + len(payload))
	w.extent = w.extent.Union(env)

	return id, nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return len(w.offsets)
}

// Close flushes the data file, patches its header and writes the offset table.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if cerr := w.data.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	return writeOffsets(w.paths.Offsets, w.offsets)
}

func (w *Writer) finish() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}

	extent := w.extent
	if extent.IsNull() {
		extent = model.Envelope{}
	}
	if _, err := w.data.WriteAt(encodeDataHeader(w.kind, extent), 0); err != nil {
		return err
	}

	return w.data.Sync()
}

func writeOffsets(path string, offsets []uint64) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	bw := bufio.NewWriter(f)

	hdr := make([]byte, offsetsHeaderSize)
	copy(hdr, offsetsMagic)
	le.PutUint64(hdr[8:], uint64(len(offsets)))
	if _, err := bw.Write(hdr); err != nil {
		return err
	}

	var b [8]byte
	for _, off := range offsets {
		le.PutUint64(b[:], off)
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
