// Package codec implements the FITS tile compression algorithms and the
// registry that maps a ZCMPTYPE name to its implementation.
//
// A Codec turns one tile's typed pixel buffer into the bit-exact byte stream
// defined by its algorithm and back. Codecs are immutable once constructed
// and safe for concurrent use by tile workers.
package codec

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Codec compresses and decompresses one tile.
//
// shape lists the tile extents in FITS axis order (axis 0 varies fastest).
// Only shape-aware algorithms such as HCOMPRESS_1 look at it.
type Codec interface {
	Type() format.CompressionType
	Compress(src buffer.Buffer, shape []int) ([]byte, error)
	// Decompress decodes exactly n elements of the given kind.
	Decompress(data []byte, n int, kind format.ElementKind, shape []int) (buffer.Buffer, error)
}

// Param is one algorithm parameter as written to a ZNAMEi/ZVALi keyword pair.
type Param struct {
	Name  string
	Value int64
}

// Parameterized is implemented by codecs that carry ZNAMEi/ZVALi parameters.
type Parameterized interface {
	Params() []Param
}

// HeapKind returns the element kind of the COMPRESSED_DATA column for an
// algorithm. PLIO_1 stores 16-bit words, everything else stores bytes.
func HeapKind(t format.CompressionType) format.ElementKind {
	if t == format.CompressionPLIO {
		return format.KindInt16
	}

	return format.KindUint8
}

func checkCount(n int) error {
	if n <= 0 {
		return fmt.Errorf("element count %d: %w", n, errs.ErrLengthMismatch)
	}

	return nil
}

func requireInteger(t format.CompressionType, kind format.ElementKind) error {
	if !kind.IsInteger() {
		return fmt.Errorf("%s requires integer pixels, got %s: %w", t, kind, errs.ErrKindMismatch)
	}

	return nil
}
