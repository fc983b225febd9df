package source

import (
	"context"
	"errors"

	"github.com/hupe1980/qix/model"
)

// ErrOutOfRange is returned for record ids or offsets outside the dataset.
var ErrOutOfRange = errors.New("source: record out of range")

// Record is one entry produced by a sequential scan.
type Record struct {
	ID       model.RecordID
	Offset   int64
	Size     int // encoded size in bytes, used for IO accounting
	Envelope model.Envelope
}

// Reader is the primary data collaborator.
type Reader interface {
	// Kind returns the geometry family of every record.
	Kind() model.ShapeKind
	// Count returns the total record count, known before streaming begins.
	Count() int
	// Extent returns the envelope of the whole dataset.
	Extent() model.Envelope
	// Scan visits every record once in ascending id order.
	// Scanning stops at the first error returned by fn.
	Scan(ctx context.Context, fn func(Record) error) error
	// EnvelopeAt re-reads the envelope of the record stored at offset.
	EnvelopeAt(offset int64) (model.Envelope, error)
}

// OffsetIndex is the auxiliary offset table collaborator.
type OffsetIndex interface {
	Count() int
	OffsetOf(id model.RecordID) (int64, error)
}

// Dataset bundles both collaborators over one data file.
type Dataset interface {
	Reader
	OffsetIndex
	Close() error
}

// Paths names the files a Dataset is opened from. Empty paths mean the
// dataset is not backed by local files.
type Paths struct {
	Data    string
	Offsets string
}

// IsLocal reports whether both files are local paths.
func (p Paths) IsLocal() bool {
	return p.Data != "" && p.Offsets != ""
}

// Opener opens a Dataset over the given paths.
type Opener func(p Paths) (Dataset, error)
