package quant

import (
	"math"
	"math/rand"
	"testing"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/stretchr/testify/require"
)

func noisyTile(n int, sigma float64) []float64 {
	rng := rand.New(rand.NewSource(42))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 100 + rng.NormFloat64()*sigma
	}

	return vals
}

func TestRandomSequence(t *testing.T) {
	require.Equal(t, float32(16807.0/2147483647.0), randomValues[0])
	// the generator is known to reach 1043618065 after 10000 steps
	require.Equal(t, float32(1043618065.0/2147483647.0), randomValues[NRandom-1])

	for _, v := range randomValues {
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
	}
}

func TestDither(t *testing.T) {
	t.Run("Reproducible", func(t *testing.T) {
		require.Equal(t, Offsets(1, 3, 20000), Offsets(1, 3, 20000))
	})

	t.Run("TilesDiffer", func(t *testing.T) {
		require.NotEqual(t, Offsets(1, 0, 64), Offsets(1, 1, 64))
	})

	t.Run("SeedShiftsTileIndex", func(t *testing.T) {
		require.Equal(t, Offsets(1, 12, 100), Offsets(5, 8, 100))
	})

	t.Run("Wraps", func(t *testing.T) {
		require.Equal(t, Offsets(1, 0, 100), Offsets(1, NRandom, 100))
	})

	t.Run("StartsInsideSequence", func(t *testing.T) {
		d := NewDither(1, 0)
		require.Equal(t, int(randomValues[0]*500), d.next)
		require.Equal(t, float64(randomValues[d.next]), d.Next())
	})
}

func TestEstimateNoise(t *testing.T) {
	t.Run("Gaussian", func(t *testing.T) {
		noise := EstimateNoise(noisyTile(100*100, 10), 100, nil)
		require.Equal(t, 10000, noise.NGood)
		require.InDelta(t, 10, noise.Sigma(), 1)
		require.InDelta(t, 10, noise.Noise3, 1.5)
	})

	t.Run("Constant", func(t *testing.T) {
		vals := make([]float64, 400)
		for i := range vals {
			vals[i] = 7
		}
		noise := EstimateNoise(vals, 20, nil)
		require.Zero(t, noise.Sigma())
		require.Equal(t, 7.0, noise.Min)
		require.Equal(t, 7.0, noise.Max)
	})

	t.Run("TooFewPixels", func(t *testing.T) {
		noise := EstimateNoise([]float64{3, 1, 2}, 3, nil)
		require.Zero(t, noise.Sigma())
		require.Equal(t, 1.0, noise.Min)
		require.Equal(t, 3.0, noise.Max)
		require.Equal(t, 3, noise.NGood)
	})

	t.Run("SkipsNulls", func(t *testing.T) {
		vals := noisyTile(400, 5)
		vals[10] = 1e30
		noise := EstimateNoise(vals, 20, func(i int) bool { return i == 10 })
		require.Equal(t, 399, noise.NGood)
		require.Less(t, noise.Max, 1e3)
	})
}

func TestQuantizeErrorBound(t *testing.T) {
	vals := noisyTile(64*64, 10)
	src := buffer.Wrap(vals)

	for _, method := range []format.QuantizeMethod{format.NoDither, format.SubtractiveDither1, format.SubtractiveDither2} {
		t.Run(method.String(), func(t *testing.T) {
			q, err := New(Options{Level: 4, Method: method, DitherSeed: 17})
			require.NoError(t, err)

			ints, p, err := q.Quantize(src, nil, 64, 5)
			require.NoError(t, err)
			require.InDelta(t, 2.5, p.Scale, 0.4)

			again, p2, err := q.Quantize(src, nil, 64, 5)
			require.NoError(t, err)
			require.Equal(t, ints, again)
			require.Equal(t, p, p2)

			out, err := q.Dequantize(ints, format.KindFloat64, p, 5)
			require.NoError(t, err)
			got, ok := buffer.As[float64](out)
			require.True(t, ok)
			for i := range vals {
				require.InDelta(t, vals[i], got[i], p.Scale/2+1e-4, "pixel %d", i)
			}
		})
	}
}

func TestQuantizeNulls(t *testing.T) {
	vals := noisyTile(32*32, 3)
	nulls := []int{0, 17, 500, 1023}
	for _, i := range nulls {
		vals[i] = math.NaN()
	}

	q, err := New(DefaultOptions())
	require.NoError(t, err)

	ints, p, err := q.Quantize(buffer.Wrap(vals), nulls, 32, 0)
	require.NoError(t, err)
	for _, i := range nulls {
		require.Equal(t, NullValue, ints[i])
	}
	for i, v := range ints {
		if v != NullValue {
			require.Greater(t, v, NullValue+NReservedValues-2, "pixel %d", i)
		}
	}

	out, err := q.Dequantize(ints, format.KindFloat32, p, 0)
	require.NoError(t, err)
	got, ok := buffer.As[float32](out)
	require.True(t, ok)

	isNull := map[int]bool{}
	for _, i := range nulls {
		isNull[i] = true
	}
	for i, v := range got {
		if isNull[i] {
			require.True(t, math.IsNaN(float64(v)), "pixel %d", i)
			continue
		}
		require.InDelta(t, vals[i], float64(v), p.Scale/2+1e-3, "pixel %d", i)
	}
}

func TestQuantizeAllNull(t *testing.T) {
	vals := []float64{math.NaN(), math.NaN(), math.NaN()}
	q, err := New(DefaultOptions())
	require.NoError(t, err)

	ints, p, err := q.Quantize(buffer.Wrap(vals), []int{0, 1, 2}, 3, 0)
	require.NoError(t, err)
	require.Equal(t, []int32{NullValue, NullValue, NullValue}, ints)
	require.Equal(t, Params{Scale: 1}, p)
}

func TestQuantizeLossless(t *testing.T) {
	vals := []float32{0, 1, -1, 1e6, -123456, 42}
	q, err := New(Options{Method: format.QuantizeLossless})
	require.NoError(t, err)

	ints, p, err := q.Quantize(buffer.Wrap(vals), nil, len(vals), 0)
	require.NoError(t, err)
	require.Equal(t, Params{Scale: 1, Zero: 0}, p)
	require.Equal(t, []int32{0, 1, -1, 1000000, -123456, 42}, ints)

	out, err := q.Dequantize(ints, format.KindFloat32, p, 0)
	require.NoError(t, err)
	require.Equal(t, buffer.Wrap(vals), out)

	_, _, err = q.Quantize(buffer.Wrap([]float64{1e10}), nil, 1, 0)
	require.ErrorIs(t, err, errs.ErrNonFinite)
}

func TestSubtractiveDither2KeepsZeros(t *testing.T) {
	vals := noisyTile(400, 4)
	vals[7], vals[300] = 0, 0

	q, err := New(Options{Level: 4, Method: format.SubtractiveDither2, DitherSeed: 1})
	require.NoError(t, err)

	ints, p, err := q.Quantize(buffer.Wrap(vals), nil, 20, 3)
	require.NoError(t, err)
	require.Equal(t, ZeroValue, ints[7])
	require.Equal(t, ZeroValue, ints[300])

	out, err := q.Dequantize(ints, format.KindFloat64, p, 3)
	require.NoError(t, err)
	got, _ := buffer.As[float64](out)
	require.Zero(t, got[7])
	require.Zero(t, got[300])
}

func TestAbsoluteLevel(t *testing.T) {
	q, err := New(Options{Level: -0.25, Method: format.NoDither})
	require.NoError(t, err)

	_, p, err := q.Quantize(buffer.Wrap(noisyTile(100, 1)), nil, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0.25, p.Scale)
	// the zero point is a whole number of steps
	require.InDelta(t, math.Round(p.Zero/p.Scale), p.Zero/p.Scale, 1e-9)
}

func TestNegativeZeroPointRounds(t *testing.T) {
	q, err := New(Options{Level: -0.25, Method: format.NoDither})
	require.NoError(t, err)

	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = -10.3 + float64(i)*0.037
	}

	ints, p, err := q.Quantize(buffer.Wrap(vals), nil, 10, 0)
	require.NoError(t, err)
	// -10.3/0.25 = -41.2 rounds to -41, not toward zero
	require.InDelta(t, -10.25, p.Zero, 1e-12)

	out, err := q.Dequantize(ints, format.KindFloat64, p, 0)
	require.NoError(t, err)
	got, _ := buffer.As[float64](out)
	for i, v := range vals {
		require.InDelta(t, v, got[i], p.Scale/2+1e-9)
	}
}

func TestQuantizeFailures(t *testing.T) {
	q, err := New(DefaultOptions())
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		_, _, err := q.Quantize(buffer.Wrap([]float32{}), nil, 0, 0)
		require.ErrorIs(t, err, errs.ErrDegenerateRange)
	})

	t.Run("Infinity", func(t *testing.T) {
		vals := noisyTile(100, 1)
		vals[50] = math.Inf(1)
		_, _, err := q.Quantize(buffer.Wrap(vals), nil, 10, 0)
		require.ErrorIs(t, err, errs.ErrNonFinite)
	})

	t.Run("UnmaskedNaN", func(t *testing.T) {
		vals := noisyTile(100, 1)
		vals[3] = math.NaN()
		_, _, err := q.Quantize(buffer.Wrap(vals), nil, 10, 0)
		require.ErrorIs(t, err, errs.ErrNonFinite)
	})

	t.Run("Constant", func(t *testing.T) {
		vals := make([]float64, 100)
		_, _, err := q.Quantize(buffer.Wrap(vals), nil, 10, 0)
		require.ErrorIs(t, err, errs.ErrNonFinite)
	})

	t.Run("RangeOverflow", func(t *testing.T) {
		abs, err := New(Options{Level: -1e-6, Method: format.NoDither})
		require.NoError(t, err)
		_, _, err = abs.Quantize(buffer.Wrap([]float64{0, 1e6, 2e6}), nil, 3, 0)
		require.ErrorIs(t, err, errs.ErrNonFinite)
	})

	t.Run("IntegerTile", func(t *testing.T) {
		_, _, err := q.Quantize(buffer.Wrap([]int32{1, 2}), nil, 2, 0)
		require.ErrorIs(t, err, errs.ErrKindMismatch)
	})
}

func TestOptionsValidate(t *testing.T) {
	_, err := New(Options{Method: format.SubtractiveDither1, DitherSeed: NRandom + 1})
	require.ErrorIs(t, err, errs.ErrInvalidOption)

	_, err = New(Options{Method: format.QuantizeOff})
	require.ErrorIs(t, err, errs.ErrInvalidOption)

	_, err = New(Options{Level: math.NaN(), Method: format.NoDither})
	require.ErrorIs(t, err, errs.ErrInvalidOption)

	q, err := New(Options{Method: format.SubtractiveDither1})
	require.NoError(t, err)
	require.Equal(t, DefaultLevel, q.Options().Level)
	require.Equal(t, DefaultDitherSeed, q.Options().DitherSeed)
}

func BenchmarkQuantize(b *testing.B) {
	src := buffer.Wrap(noisyTile(256*256, 10))
	q, err := New(DefaultOptions())
	require.NoError(b, err)

	b.ReportAllocs()
	for b.Loop() {
		_, _, _ = q.Quantize(src, nil, 256, 0)
	}
}
