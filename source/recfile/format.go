package recfile

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/hupe1980/qix/model"
)

const (
	dataMagic         = "REC1"
	offsetsMagic      = "RDX1"
	dataHeaderSize    = 48
	offsetsHeaderSize = 16
	recordPrefixSize  = 4
	maxPayloadLength  = 1 << 30

	// DataExtension is the conventional suffix of the record file.
	DataExtension = ".rec"
	// OffsetsExtension is the conventional suffix of the offset table.
	OffsetsExtension = ".rdx"
)

var (
	// ErrBadMagic is returned when a file does not start with the expected marker.
	ErrBadMagic = errors.New("recfile: bad magic")
	// ErrTruncated is returned when a file ends in the middle of a header or record.
	ErrTruncated = errors.New("recfile: truncated file")
	// ErrKindMismatch is returned when an envelope does not fit the file's shape kind.
	ErrKindMismatch = errors.New("recfile: envelope does not match shape kind")
	// ErrClosed is returned when using a closed writer or reader.
	ErrClosed = errors.New("recfile: closed")
)

var le = binary.LittleEndian

func envelopeSize(kind model.ShapeKind) int {
	return kind.Ordinates() * 8
}

func putEnvelope(b []byte, kind model.ShapeKind, e model.Envelope) {
	le.PutUint64(b[0:], math.Float64bits(e.MinX))
	le.PutUint64(b[8:], math.Float64bits(e.MinY))
	if kind.IsPoint() {
		return
	}
	le.PutUint64(b[16:], math.Float64bits(e.MaxX))
	le.PutUint64(b[24:], math.Float64bits(e.MaxY))
}

func readEnvelope(b []byte, kind model.ShapeKind) model.Envelope {
	x := math.Float64frombits(le.Uint64(b[0:]))
	y := math.Float64frombits(le.Uint64(b[8:]))
	if kind.IsPoint() {
		return model.PointEnvelope(x, y)
	}
	return model.Envelope{
		MinX: x,
		MinY: y,
		MaxX: math.Float64frombits(le.Uint64(b[16:])),
		MaxY: math.Float64frombits(le.Uint64(b[24:])),
	}
}

func encodeDataHeader(kind model.ShapeKind, extent model.Envelope) []byte {
	b := make([]byte, dataHeaderSize)
	copy(b, dataMagic)
	b[4] = byte(kind)
	le.PutUint64(b[8:], math.Float64bits(extent.MinX))
	le.PutUint64(b[16:], math.Float64bits(extent.MinY))
	le.PutUint64(b[24:], math.Float64bits(extent.MaxX))
	le.PutUint64(b[32:], math.Float64bits(extent.MaxY))
	return b
}

func decodeDataHeader(b []byte) (model.ShapeKind, model.Envelope, error) {
	if len(b) < dataHeaderSize {
		return 0, model.Envelope{}, ErrTruncated
	}
	if string(b[:4]) != dataMagic {
		return 0, model.Envelope{}, ErrBadMagic
	}
	extent := model.Envelope{
		MinX: math.Float64frombits(le.Uint64(b[8:])),
		MinY: math.Float64frombits(le.Uint64(b[16:])),
		MaxX: math.Float64frombits(le.Uint64(b[24:])),
		MaxY: math.Float64frombits(le.Uint64(b[32:])),
	}
	return model.ShapeKind(b[4]), extent, nil
}
