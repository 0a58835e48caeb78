// Package codec centralizes record encoding.
//
// The codec name is part of the storage format: records written with one
// codec may not decode with another.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
// Compressed codecs are named "<codec>+<compression>", e.g. "go-json+zstd".
func ByName(name string) (Codec, bool) {
	base, comp, compressed := strings.Cut(name, "+")

	var c Codec
	switch base {
	case "json":
		c = JSON{}
	case "go-json":
		c = GoJSON{}
	default:
		return nil, false
	}
	if !compressed {
		return c, true
	}

	algo, ok := ParseCompression(comp)
	if !ok || algo == CompressionNone {
		return nil, false
	}
	return Compressed(c, algo), true
}

// MustMarshal is a helper for tests and examples.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
