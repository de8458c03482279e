package compress

import (
	"fmt"

	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Compressor compresses a byte stream.
//
// The returned slice is owned by the caller and never aliases the input.
// Implementations never modify the input and must be safe for concurrent use, since tile workers share the
// built-in instances.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Decompress must report corrupted input as an error rather than returning
// partial output. The byte-oriented tile codecs check the decoded length
// against the expected pixel count themselves.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// LimitedDecompressor is a Decompressor that can stop early. DecompressLimit
// returns at most limit+1 bytes, so callers can tell an oversized stream from
// an exact one without inflating all of it.
type LimitedDecompressor interface {
	DecompressLimit(data []byte, limit int) ([]byte, error)
}

// Codec combines both directions of a byte-stream compressor.
type Codec interface {
	Compressor
	Decompressor
}

// Stats describes one compression call.
type Stats struct {
	Algorithm      format.StreamCompression
	OriginalSize   int64
	CompressedSize int64
}

// Ratio returns compressed size over original size, 0 for empty input.
func (s Stats) Ratio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// CreateCodec returns a new codec for the given stream algorithm.
func CreateCodec(algo format.StreamCompression) (Codec, error) {
	switch algo {
	case format.StreamNone:
		return NewNoOpCompressor(), nil
	case format.StreamGzip:
		return NewGzipCompressor(DefaultGzipLevel), nil
	case format.StreamZstd:
		return NewZstdCompressor(), nil
	case format.StreamS2:
		return NewS2Compressor(), nil
	case format.StreamLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("stream compression %s: %w", algo, errs.ErrUnknownCodec)
	}
}

var builtinCodecs = map[format.StreamCompression]Codec{
	format.StreamNone: NewNoOpCompressor(),
	format.StreamGzip: NewGzipCompressor(DefaultGzipLevel),
	format.StreamZstd: NewZstdCompressor(),
	format.StreamS2:   NewS2Compressor(),
	format.StreamLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the shared built-in codec for the given stream algorithm.
func GetCodec(algo format.StreamCompression) (Codec, error) {
	if c, ok := builtinCodecs[algo]; ok {
		return c, nil
	}

	return nil, fmt.Errorf("stream compression %s: %w", algo, errs.ErrUnknownCodec)
}

// Measure runs c over data and reports its size statistics.
func Measure(algo format.StreamCompression, c Compressor, data []byte) ([]byte, Stats, error) {
	out, err := c.Compress(data)
	if err != nil {
		return nil, Stats{}, err
	}

	return out, Stats{
		Algorithm:      algo,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(out)),
	}, nil
}
