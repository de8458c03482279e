package codec

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/compress"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/pool"
)

// streamCodec runs a byte-stream compressor over the big-endian
// representation of the pixels, optionally byte-shuffled first.
type streamCodec struct {
	typ     format.CompressionType
	stream  compress.Codec
	shuffle bool
}

var _ Codec = (*streamCodec)(nil)

func newStreamCtor(t format.CompressionType) Constructor {
	return func(cfg Config) (Codec, error) {
		return NewStream(t, cfg)
	}
}

// NewStream builds one of the byte-oriented algorithms: GZIP_1, GZIP_2,
// NOCOMPRESS, or the ZSTD_1, LZ4_1 and S2_1 extensions.
func NewStream(t format.CompressionType, cfg Config) (Codec, error) {
	c := &streamCodec{typ: t}

	switch t {
	case format.CompressionGzip1:
		c.stream = compress.NewGzipCompressor(cfg.GzipLevel)
	case format.CompressionGzip2:
		c.stream = compress.NewGzipCompressor(cfg.GzipLevel)
		c.shuffle = true
	case format.CompressionNone:
		c.stream = compress.NewNoOpCompressor()
	case format.CompressionZstd, format.CompressionLZ4, format.CompressionS2:
		algo := map[format.CompressionType]format.StreamCompression{
			format.CompressionZstd: format.StreamZstd,
			format.CompressionLZ4:  format.StreamLZ4,
			format.CompressionS2:   format.StreamS2,
		}[t]
		stream, err := compress.GetCodec(algo)
		if err != nil {
			return nil, err
		}
		c.stream = stream
		c.shuffle = true
	default:
		return nil, fmt.Errorf("%s is not a byte-stream algorithm: %w", t, errs.ErrUnknownCodec)
	}

	return c, nil
}

func (c *streamCodec) Type() format.CompressionType { return c.typ }

func (c *streamCodec) Compress(src buffer.Buffer, _ []int) ([]byte, error) {
	// every stream compressor returns a fresh slice, so the scratch can go
	// back to the pool once it has run
	bb := pool.GetTileBuffer()
	defer pool.PutTileBuffer(bb)
	bb.Grow(src.ByteSize())
	bb.B = buffer.AppendBytes(bb.B, src)

	raw := bb.B
	if c.shuffle {
		raw = compress.Shuffle(raw, src.Kind().Size())
	}

	out, err := c.stream.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.typ, err)
	}

	return out, nil
}

func (c *streamCodec) Decompress(data []byte, n int, kind format.ElementKind, _ []int) (buffer.Buffer, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if kind.Size() == 0 {
		return nil, fmt.Errorf("%s: element kind %s: %w", c.typ, kind, errs.ErrKindMismatch)
	}

	want := n * kind.Size()
	raw, err := c.decompress(data, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", c.typ, err, errs.ErrCorruptStream)
	}
	if len(raw) != want {
		return nil, fmt.Errorf("%s: decoded %d bytes, want %d: %w", c.typ, len(raw), want, errs.ErrLengthMismatch)
	}
	if c.shuffle {
		raw = compress.Unshuffle(raw, kind.Size())
	}

	return buffer.FromBytes(kind, raw, n)
}

// decompress stops a bounded stream one byte past want, which is enough for
// the length check to reject it.
func (c *streamCodec) decompress(data []byte, want int) ([]byte, error) {
	if lim, ok := c.stream.(compress.LimitedDecompressor); ok {
		return lim.DecompressLimit(data, want)
	}

	return c.stream.Decompress(data)
}
