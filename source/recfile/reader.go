package recfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/qix/internal/conv"
	"github.com/hupe1980/qix/internal/mmap"
	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
)

// File is a read-only dataset. It satisfies source.Dataset.
//
// Sequential scans read the data file through a buffered section reader;
// EnvelopeAt uses positioned reads so it is safe for concurrent use.
type File struct {
	data    *os.File
	size    int64
	kind    model.ShapeKind
	extent  model.Envelope
	offsets *mmap.Mapping
	count   int

	closeOnce sync.Once
	closeErr  error
}

var _ source.Dataset = (*File)(nil)

// Open opens both files of a dataset.
func Open(p source.Paths) (*File, error) {
	if !p.IsLocal() {
		return nil, fmt.Errorf("recfile: both data and offsets paths are required")
	}

	data, err := os.Open(p.Data)
	if err != nil {
		return nil, err
	}

	f, err := open(data, p.Offsets)
	if err != nil {
		_ = data.Close()
		return nil, err
	}
	return f, nil
}

// OpenDataset is a source.Opener backed by Open.
func OpenDataset(p source.Paths) (source.Dataset, error) {
	return Open(p)
}

func open(data *os.File, offsetsPath string) (*File, error) {
	st, err := data.Stat()
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, dataHeaderSize)
	if _, err := data.ReadAt(hdr, 0); err != nil {
		if err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	kind, extent, err := decodeDataHeader(hdr)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Open(offsetsPath)
	if err != nil {
		return nil, err
	}

	b := m.Bytes()
	if len(b) < offsetsHeaderSize {
		_ = m.Close()
		return nil, ErrTruncated
	}
	if string(b[:4]) != offsetsMagic {
		_ = m.Close()
		return nil, ErrBadMagic
	}
	count, err := conv.Uint64ToInt(le.Uint64(b[8:]))
	if err != nil || (len(b)-offsetsHeaderSize)/8 < count {
		_ = m.Close()
		return nil, ErrTruncated
	}
	_ = m.Advise(mmap.AccessRandom)

	return &File{
		data:    data,
		size:    st.Size(),
		kind:    kind,
		extent:  extent,
		offsets: m,
		count:   count,
	}, nil
}

// Kind returns the shape kind stored in the header.
func (f *File) Kind() model.ShapeKind { return f.kind }

// Count returns the number of records listed in the offset table.
func (f *File) Count() int { return f.count }

// Extent returns the dataset extent stored in the header.
func (f *File) Extent() model.Envelope {
	if f.count == 0 {
		return model.NullEnvelope()
	}
	return f.extent
}

// OffsetOf returns the byte offset of record id in the data file.
func (f *File) OffsetOf(id model.RecordID) (int64, error) {
	if int(id) >= f.count {
		return 0, source.ErrOutOfRange
	}
	b := f.offsets.Bytes()
	if b == nil {
		return 0, ErrClosed
	}
	pos := offsetsHeaderSize + 8*int(id)
	return int64(le.Uint64(b[pos:])), nil
}

// EnvelopeAt reads the envelope of the record stored at offset.
func (f *File) EnvelopeAt(offset int64) (model.Envelope, error) {
	envSize := envelopeSize(f.kind)
	if offset < dataHeaderSize || offset+int64(recordPrefixSize+envSize) > f.size {
		return model.Envelope{}, source.ErrOutOfRange
	}

	var b [recordPrefixSize + 32]byte
	if _, err := f.data.ReadAt(b[:recordPrefixSize+envSize], offset); err != nil {
		return model.Envelope{}, err
	}
	return readEnvelope(b[recordPrefixSize:], f.kind), nil
}

// Scan reads records in file order. Ids are assigned by position, so the
// data file must contain exactly Count records.
func (f *File) Scan(ctx context.Context, fn func(source.Record) error) error {
	envSize := envelopeSize(f.kind)
	r := bufio.NewReaderSize(io.NewSectionReader(f.data, dataHeaderSize, f.size-dataHeaderSize), 256*1024)

	var b [recordPrefixSize + 32]byte
	pos := int64(dataHeaderSize)

	for i := 0; i < f.count; i++ {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if _, err := io.ReadFull(r, b[:recordPrefixSize+envSize]); err != nil {
			return truncated(err)
		}
		n := int(le.Uint32(b[:]))
		if n > maxPayloadLength {
			return fmt.Errorf("recfile: record %d: payload length %d exceeds limit", i, n)
		}
		if _, err := r.Discard(n); err != nil {
			return truncated(err)
		}

		size := recordPrefixSize + envSize + n
		rec := source.Record{
			ID:       model.RecordID(i),
			Offset:   pos,
			Size:     size,
			Envelope: readEnvelope(b[recordPrefixSize:], f.kind),
		}
		pos += int64(size)

		if err := fn(rec); err != nil {
			return err
		}
	}

	return nil
}

// Close releases both files. It is idempotent.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		err := f.offsets.Close()
		if cerr := f.data.Close(); err == nil {
			err = cerr
		}
		f.closeErr = err
	})
	return f.closeErr
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}
