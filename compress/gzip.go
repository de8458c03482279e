package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// DefaultGzipLevel matches the level cfitsio-compatible writers use.
const DefaultGzipLevel = gzip.DefaultCompression

// GzipCompressor produces RFC 1952 gzip members, the framing required for
// GZIP_1 and GZIP_2 tiles.
type GzipCompressor struct {
	level   int
	writers *sync.Pool
}

var (
	_ Codec               = (*GzipCompressor)(nil)
	_ LimitedDecompressor = (*GzipCompressor)(nil)
)

var gzipReaderPool sync.Pool

// NewGzipCompressor returns a compressor using the given deflate level. An
// invalid level falls back to DefaultGzipLevel.
func NewGzipCompressor(level int) *GzipCompressor {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = DefaultGzipLevel
	}

	c := &GzipCompressor{level: level}
	c.writers = &sync.Pool{
		New: func() any {
			w, err := gzip.NewWriterLevel(io.Discard, c.level)
			if err != nil {
				panic(fmt.Sprintf("gzip writer at level %d: %v", c.level, err))
			}
			return w
		},
	}

	return c
}

// Level returns the configured deflate level.
func (c *GzipCompressor) Level() int {
	return c.level
}

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data)/2 + 32)

	w, _ := c.writers.Get().(*gzip.Writer)
	defer c.writers.Put(w)
	w.Reset(&out)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}

	return out.Bytes(), nil
}

func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	return c.DecompressLimit(data, -1)
}

// DecompressLimit inflates at most limit+1 bytes. A negative limit reads the
// whole member.
func (c *GzipCompressor) DecompressLimit(data []byte, limit int) ([]byte, error) {
	src := bytes.NewReader(data)

	r, ok := gzipReaderPool.Get().(*gzip.Reader)
	if ok {
		if err := r.Reset(src); err != nil {
			gzipReaderPool.Put(r)
			return nil, fmt.Errorf("gzip decompression failed: %w", err)
		}
	} else {
		var err error
		if r, err = gzip.NewReader(src); err != nil {
			return nil, fmt.Errorf("gzip decompression failed: %w", err)
		}
	}
	defer gzipReaderPool.Put(r)

	var in io.Reader = r
	if limit >= 0 {
		in = io.LimitReader(r, int64(limit)+1)
	}

	out, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}

	return out, nil
}
