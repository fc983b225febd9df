package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm. The numeric values are part of
// the published blob format and must not change.
type Codec uint8

const (
	// None stores the payload as is.
	None Codec = 0
	// LZ4 uses LZ4 block compression (fast).
	LZ4 Codec = 1
	// Zstd uses Zstandard (better ratio).
	Zstd Codec = 2
)

var (
	// ErrUnknownCodec is returned for codec values outside the known set.
	ErrUnknownCodec = errors.New("compress: unknown codec")
	// ErrSizeMismatch is returned when a payload does not decode to the
	// announced size.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool { return c <= Zstd }

// ParseCodec maps a codec name back to its value.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

const (
	// maxLZ4Ratio bounds how far an lz4 block can expand.
	maxLZ4Ratio = 256
	// zstdPrealloc caps the output buffer reserved up front for zstd, as a
	// multiple of the payload size. The announced size is not trusted.
	zstdPrealloc = 64
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Compress encodes data with codec. The result never aliases data unless the
// codec is None.
func Compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(codec))
	}
}

// lz4 block output carries a leading flag byte: 0 means the block did not
// compress and the raw bytes follow.
func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{0}, nil
	}
	out := make([]byte, 1+lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, out[1:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(data) {
		out = out[:1+len(data)]
		out[0] = 0
		copy(out[1:], data)
		return out, nil
	}
	out[0] = 1
	return out[:1+n], nil
}

// Decompress decodes payload produced by Compress. size is the expected
// decoded length; it comes from untrusted headers and is checked against
// what payload can actually expand to before anything is allocated.
func Decompress(codec Codec, payload []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrSizeMismatch
	}
	switch codec {
	case None:
		if len(payload) != size {
			return nil, ErrSizeMismatch
		}
		return payload, nil
	case LZ4:
		if len(payload) == 0 {
			return nil, ErrSizeMismatch
		}
		if payload[0] == 0 {
			if len(payload)-1 != size {
				return nil, ErrSizeMismatch
			}
			return payload[1:], nil
		}
		if size > maxLZ4Ratio*len(payload) {
			return nil, ErrSizeMismatch
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload[1:], out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case Zstd:
		if size == 0 && len(payload) == 0 {
			return []byte{}, nil
		}
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, min(size, zstdPrealloc*len(payload))))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(codec))
	}
}
