package endian

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFITSIsBigEndian(t *testing.T) {
	require.Equal(t, binary.BigEndian, FITS())
}

func TestAppendInt16s(t *testing.T) {
	require := require.New(t)

	out := AppendInt16s(FITS(), []byte{0xAA}, []int16{1, -2})
	require.Equal([]byte{0xAA, 0x00, 0x01, 0xFF, 0xFE}, out)

	back := make([]int16, 2)
	DecodeInt16s(FITS(), back, out[1:])
	require.Equal([]int16{1, -2}, back)
}

func TestRoundTripArrays(t *testing.T) {
	e := FITS()

	t.Run("int32", func(t *testing.T) {
		src := []int32{0, 1, -1, math.MaxInt32, math.MinInt32}
		back := make([]int32, len(src))
		DecodeInt32s(e, back, AppendInt32s(e, nil, src))
		require.Equal(t, src, back)
	})

	t.Run("int64", func(t *testing.T) {
		src := []int64{0, 42, math.MinInt64}
		back := make([]int64, len(src))
		DecodeInt64s(e, back, AppendInt64s(e, nil, src))
		require.Equal(t, src, back)
	})

	t.Run("float32", func(t *testing.T) {
		src := []float32{0, 1.5, float32(math.Inf(-1))}
		raw := AppendFloat32s(e, nil, src)
		require.Equal(t, []byte{0x3F, 0xC0, 0x00, 0x00}, raw[4:8])
		back := make([]float32, len(src))
		DecodeFloat32s(e, back, raw)
		require.Equal(t, src, back)
	})

	t.Run("float64 NaN bits", func(t *testing.T) {
		src := []float64{math.NaN(), -0.25}
		back := make([]float64, len(src))
		DecodeFloat64s(e, back, AppendFloat64s(e, nil, src))
		require.True(t, math.IsNaN(back[0]))
		require.Equal(t, -0.25, back[1])
	})
}

func BenchmarkAppendFloat32s(b *testing.B) {
	src := make([]float32, 4096)
	for i := range src {
		src[i] = float32(i) * 0.5
	}
	dst := make([]byte, 0, 4*len(src))

	b.ReportAllocs()
	for b.Loop() {
		dst = AppendFloat32s(FITS(), dst[:0], src)
	}
}
