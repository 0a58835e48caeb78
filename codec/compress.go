package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm of a compressed codec.
type Compression uint8

const (
	// CompressionNone stores the encoded bytes as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, bool) {
	switch s {
	case "none", "":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return 0, false
	}
}

// ErrCorrupt is returned when compressed data cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt compressed data")

// maxDecodedSize bounds the size a header may announce.
const maxDecodedSize = 64 << 20

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

type compressed struct {
	inner Codec
	algo  Compression
}

// Compressed wraps c so that encoded values are compressed with algo.
//
// Format: [algorithm byte][uvarint decoded size][payload]. A value that does
// not shrink is stored with algorithm CompressionNone.
func Compressed(c Codec, algo Compression) Codec {
	return compressed{inner: c, algo: algo}
}

func (c compressed) Name() string {
	return c.inner.Name() + "+" + c.algo.String()
}

func (c compressed) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return compress(raw, c.algo)
}

func (c compressed) Unmarshal(data []byte, v any) error {
	raw, err := decompress(data)
	if err != nil {
		return err
	}
	return c.inner.Unmarshal(raw, v)
}

func compress(raw []byte, algo Compression) ([]byte, error) {
	header := make([]byte, 1, 1+binary.MaxVarintLen64)
	header = binary.AppendUvarint(header, uint64(len(raw)))

	var payload []byte
	switch algo {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		payload = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	case CompressionNone:
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", algo)
	}

	// lz4 reports n == 0 for incompressible input.
	if len(payload) == 0 || len(payload) >= len(raw) {
		header[0] = byte(CompressionNone)
		return append(header, raw...), nil
	}
	header[0] = byte(algo)
	return append(header, payload...), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, ErrCorrupt
	}
	algo := Compression(data[0])
	size, n := binary.Uvarint(data[1:])
	if n <= 0 || size > maxDecodedSize {
		return nil, ErrCorrupt
	}
	payload := data[1+n:]

	switch algo {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, ErrCorrupt
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		m, err := lz4.UncompressBlock(payload, out)
		if err != nil || uint64(m) != size {
			return nil, ErrCorrupt
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil || uint64(len(out)) != size {
			return nil, ErrCorrupt
		}
		return out, nil
	default:
		return nil, ErrCorrupt
	}
}
