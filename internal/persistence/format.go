package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Magic identifies qix index files.
	Magic = "QIX"
	// Version is the current format version.
	Version = 1

	// HeaderSize is the fixed size of the file header.
	HeaderSize = 32

	// nodeFixedSize is the encoded size of a node without its ids:
	// subtree size, bounds, id count and child count.
	nodeFixedSize = 8 + 32 + 4 + 4

	flagLittle = 'L'
	flagBig    = 'B'

	maxChildren = 4

	// maxDecodeDepth bounds recursion on corrupt input.
	maxDecodeDepth = 1024
)

var (
	// ErrNotIndexFile is returned when the header is missing, truncated or
	// carries the wrong magic.
	ErrNotIndexFile = errors.New("persistence: not a qix index file")
	// ErrUnsupportedVersion is returned for a valid magic with an unknown
	// version or byte order flag.
	ErrUnsupportedVersion = errors.New("persistence: unsupported index version")
	// ErrCorrupt is returned when the node section is truncated or inconsistent.
	ErrCorrupt = errors.New("persistence: corrupt index body")
	// ErrByteOrder is returned when storing with a byte order other than big or little endian.
	ErrByteOrder = errors.New("persistence: unsupported byte order")
)

// Header is the decoded fixed-size file header.
type Header struct {
	ByteOrder    binary.ByteOrder
	Version      uint8
	RecordCount  uint64
	NodeCount    uint32
	MaxDepth     uint32
	LeafCapacity uint32
	Checksum     uint32
}

func orderFlag(o binary.ByteOrder) (byte, error) {
	if o == nil {
		return flagLittle, nil
	}
	switch o.String() {
	case binary.LittleEndian.String():
		return flagLittle, nil
	case binary.BigEndian.String():
		return flagBig, nil
	case binary.NativeEndian.String():
		if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
			return flagLittle, nil
		}
		return flagBig, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrByteOrder, o)
	}
}

func (h *Header) encode() ([]byte, error) {
	flag, err := orderFlag(h.ByteOrder)
	if err != nil {
		return nil, err
	}
	order := byteOrderFor(flag)

	b := make([]byte, HeaderSize)
	copy(b, Magic)
	b[3] = flag
	b[4] = Version
	order.PutUint64(b[8:], h.RecordCount)
	order.PutUint32(b[16:], h.NodeCount)
	order.PutUint32(b[20:], h.MaxDepth)
	order.PutUint32(b[24:], h.LeafCapacity)
	order.PutUint32(b[28:], h.Checksum)
	return b, nil
}

func byteOrderFor(flag byte) binary.ByteOrder {
	if flag == flagBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated to %d bytes", ErrNotIndexFile, len(b))
	}
	if string(b[:3]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrNotIndexFile, b[:3])
	}
	flag := b[3]
	if flag != flagLittle && flag != flagBig {
		return Header{}, fmt.Errorf("%w: byte order flag %q", ErrUnsupportedVersion, flag)
	}
	if b[4] != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[4])
	}

	order := byteOrderFor(flag)
	return Header{
		ByteOrder:    order,
		Version:      b[4],
		RecordCount:  order.Uint64(b[8:]),
		NodeCount:    order.Uint32(b[16:]),
		MaxDepth:     order.Uint32(b[20:]),
		LeafCapacity: order.Uint32(b[24:]),
		Checksum:     order.Uint32(b[28:]),
	}, nil
}

func float64frombits(order binary.ByteOrder, b []byte) float64 {
	return math.Float64frombits(order.Uint64(b))
}
