package codec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/compress"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/stretchr/testify/require"
)

// tileSamples returns named integer tiles of kind with n pixels.
func tileSamples(t *testing.T, kind format.ElementKind, n int) map[string]buffer.Buffer {
	t.Helper()

	lo, hi := buffer.IntRange(kind)
	if kind == format.KindInt64 {
		// RICE_1 codes 64-bit pixels in four bytes
		lo, hi = math.MinInt32, math.MaxInt32
	}
	rng := rand.New(rand.NewSource(int64(kind)))

	build := func(f func(i int) int64) buffer.Buffer {
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = f(i)
		}
		b, err := buffer.FromInt64s(kind, vals)
		require.NoError(t, err)

		return b
	}

	return map[string]buffer.Buffer{
		"zeros":  build(func(int) int64 { return 0 }),
		"max":    build(func(int) int64 { return hi }),
		"min":    build(func(int) int64 { return lo }),
		"single": build(func(int) int64 { return 17 }),
		"ramp":   build(func(i int) int64 { return int64(i % 100) }),
		"random": build(func(int) int64 { return lo + rng.Int63n(hi-lo) }),
		"swings": build(func(i int) int64 {
			if i%2 == 0 {
				return lo
			}
			return hi
		}),
	}
}

var integerKinds = []format.ElementKind{
	format.KindUint8,
	format.KindInt16,
	format.KindInt32,
	format.KindInt64,
}

func TestLosslessCodecsRoundTrip(t *testing.T) {
	types := []format.CompressionType{
		format.CompressionRice,
		format.CompressionGzip1,
		format.CompressionGzip2,
		format.CompressionHCompress,
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionS2,
	}
	shape := []int{16, 12}

	for _, typ := range types {
		c, err := New(typ)
		require.NoError(t, err)
		require.Equal(t, typ, c.Type())

		for _, kind := range integerKinds {
			for name, src := range tileSamples(t, kind, 16*12) {
				t.Run(typ.String()+"/"+kind.String()+"/"+name, func(t *testing.T) {
					packed, err := c.Compress(src, shape)
					require.NoError(t, err)

					out, err := c.Decompress(packed, src.Len(), kind, shape)
					require.NoError(t, err)
					require.Equal(t, src, out)
				})
			}
		}
	}
}

func TestStreamCodecsFloatRoundTrip(t *testing.T) {
	types := []format.CompressionType{
		format.CompressionGzip1,
		format.CompressionGzip2,
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionS2,
	}
	f32 := buffer.Wrap([]float32{0, -1.5, float32(math.Inf(1)), float32(math.NaN()), 3.25e10})
	f64 := buffer.Wrap([]float64{math.Pi, -0, math.MaxFloat64, 1e-300})

	for _, typ := range types {
		c, err := New(typ)
		require.NoError(t, err)

		t.Run(typ.String(), func(t *testing.T) {
			for _, src := range []buffer.Buffer{f32, f64} {
				packed, err := c.Compress(src, nil)
				require.NoError(t, err)

				out, err := c.Decompress(packed, src.Len(), src.Kind(), nil)
				require.NoError(t, err)
				require.Equal(t, buffer.AppendBytes(nil, src), buffer.AppendBytes(nil, out))
			}
		})
	}
}

func TestIntegerOnlyCodecsRejectFloats(t *testing.T) {
	src := buffer.Wrap([]float32{1, 2, 3, 4})
	for _, typ := range []format.CompressionType{format.CompressionRice, format.CompressionHCompress, format.CompressionPLIO} {
		c, err := New(typ)
		require.NoError(t, err)

		_, err = c.Compress(src, []int{2, 2})
		require.ErrorIs(t, err, errs.ErrKindMismatch, typ.String())

		_, err = c.Decompress([]byte{0}, 4, format.KindFloat32, []int{2, 2})
		require.ErrorIs(t, err, errs.ErrKindMismatch, typ.String())
	}
}

func TestStreamDecompressErrors(t *testing.T) {
	c, err := New(format.CompressionGzip1)
	require.NoError(t, err)

	src := buffer.Wrap([]int32{1, 2, 3, 4})
	packed, err := c.Compress(src, nil)
	require.NoError(t, err)

	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := c.Decompress(packed, 5, format.KindInt32, nil)
		require.ErrorIs(t, err, errs.ErrLengthMismatch)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := c.Decompress([]byte("not a gzip stream"), 4, format.KindInt32, nil)
		require.ErrorIs(t, err, errs.ErrCorruptStream)
	})

	t.Run("ZeroCount", func(t *testing.T) {
		_, err := c.Decompress(packed, 0, format.KindInt32, nil)
		require.ErrorIs(t, err, errs.ErrLengthMismatch)
	})

	t.Run("Oversized", func(t *testing.T) {
		bomb, err := compress.NewGzipCompressor(compress.DefaultGzipLevel).Compress(make([]byte, 1<<22))
		require.NoError(t, err)

		_, err = c.Decompress(bomb, 4, format.KindInt32, nil)
		require.ErrorIs(t, err, errs.ErrLengthMismatch)
		require.Contains(t, err.Error(), "decoded 17 bytes")
	})
}

func TestStreamScratchReuse(t *testing.T) {
	first := buffer.Wrap([]int16{1, 2, 3, 4, 5, 6, 7, 8})
	second := buffer.Wrap([]int16{-9, -9, -9, -9, -9, -9, -9, -9})

	for _, typ := range []format.CompressionType{
		format.CompressionNone, format.CompressionGzip1, format.CompressionGzip2,
		format.CompressionZstd, format.CompressionLZ4, format.CompressionS2,
	} {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := New(typ)
			require.NoError(t, err)

			a, err := c.Compress(first, nil)
			require.NoError(t, err)
			_, err = c.Compress(second, nil)
			require.NoError(t, err)

			got, err := c.Decompress(a, 8, format.KindInt16, nil)
			require.NoError(t, err)
			require.Equal(t, buffer.AppendBytes(nil, first), buffer.AppendBytes(nil, got))
		})
	}
}

func TestGzip2ShufflesBytes(t *testing.T) {
	vals := make([]int32, 4096)
	for i := range vals {
		vals[i] = int32(i * 3)
	}
	src := buffer.Wrap(vals)

	g1, err := New(format.CompressionGzip1)
	require.NoError(t, err)
	g2, err := New(format.CompressionGzip2)
	require.NoError(t, err)

	p1, err := g1.Compress(src, nil)
	require.NoError(t, err)
	p2, err := g2.Compress(src, nil)
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	// GZIP_2 payloads are not readable as GZIP_1
	out, err := g1.Decompress(p2, len(vals), format.KindInt32, nil)
	require.NoError(t, err)
	require.NotEqual(t, src, out)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		ok   bool
	}{
		{"Default", nil, true},
		{"BlockSize16", []Option{WithBlockSize(16)}, true},
		{"BlockSize128", []Option{WithBlockSize(128)}, true},
		{"BlockSize17", []Option{WithBlockSize(17)}, false},
		{"BlockSize256", []Option{WithBlockSize(256)}, false},
		{"BytePix2", []Option{WithBytePix(2)}, true},
		{"BytePix3", []Option{WithBytePix(3)}, false},
		{"NegativeScale", []Option{WithScale(-1)}, false},
		{"GzipLevel9", []Option{WithGzipLevel(9)}, true},
		{"GzipLevel10", []Option{WithGzipLevel(10)}, false},
		{"ParamBlockSize", []Option{WithParam("blocksize", 64)}, true},
		{"ParamNoiseBit", []Option{WithParam("NOISEBIT", 4)}, true},
		{"ParamUnknown", []Option{WithParam("WAVELET", 1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, errs.ErrInvalidOption)
			}
		})
	}
}

func TestConfigParams(t *testing.T) {
	cfg, err := NewConfig(WithParam("SCALE", 8), WithParam("SMOOTH", 1), WithParam("BYTEPIX", 2))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Scale)
	require.True(t, cfg.Smooth)
	require.True(t, cfg.Lossy())
	require.Equal(t, 2, cfg.BytePix)
	require.Equal(t, DefaultBlockSize, cfg.BlockSize)
}

func TestRegistry(t *testing.T) {
	t.Run("Registered", func(t *testing.T) {
		require.Equal(t, []format.CompressionType{
			format.CompressionRice,
			format.CompressionGzip1,
			format.CompressionGzip2,
			format.CompressionHCompress,
			format.CompressionPLIO,
			format.CompressionNone,
			format.CompressionZstd,
			format.CompressionLZ4,
			format.CompressionS2,
		}, Registered())
	})

	t.Run("Lookup", func(t *testing.T) {
		for _, name := range []string{"RICE_1", "RICE_ONE", "gzip_2", "HCOMPRESS_1", "PLIO_1", "NOCOMPRESS"} {
			c, err := Lookup(name)
			require.NoError(t, err, name)
			require.Equal(t, format.ParseCompressionType(name), c.Type())
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := Lookup("WAVELET_1")
		require.ErrorIs(t, err, errs.ErrUnknownCodec)

		_, err = New(format.CompressionUnknown)
		require.ErrorIs(t, err, errs.ErrUnknownCodec)
	})

	t.Run("InvalidOption", func(t *testing.T) {
		_, err := New(format.CompressionRice, WithBlockSize(20))
		require.ErrorIs(t, err, errs.ErrInvalidOption)
	})
}

func TestHeapKind(t *testing.T) {
	require.Equal(t, format.KindInt16, HeapKind(format.CompressionPLIO))
	require.Equal(t, format.KindUint8, HeapKind(format.CompressionRice))
	require.Equal(t, format.KindUint8, HeapKind(format.CompressionGzip2))
}

func BenchmarkCodecs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]int32, 100*100)
	for i := range vals {
		vals[i] = int32(1000 + rng.Intn(64))
	}
	src := buffer.Wrap(vals)
	shape := []int{100, 100}

	for _, typ := range Registered() {
		if typ == format.CompressionPLIO {
			continue
		}
		c, err := New(typ)
		require.NoError(b, err)

		b.Run(typ.String()+"/Compress", func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_, _ = c.Compress(src, shape)
			}
		})

		packed, err := c.Compress(src, shape)
		require.NoError(b, err)

		b.Run(typ.String()+"/Decompress", func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_, _ = c.Decompress(packed, len(vals), format.KindInt32, shape)
			}
		})
	}
}
