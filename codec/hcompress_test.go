package codec

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/bitio"
	"github.com/stretchr/testify/require"
)

func smoothImage(cols, rows int) []int32 {
	rng := rand.New(rand.NewSource(5))
	vals := make([]int32, cols*rows)
	for y := range rows {
		for x := range cols {
			r := math.Hypot(float64(x-cols/2), float64(y-rows/2))
			vals[y*cols+x] = int32(1000+2000*math.Exp(-r*r/50)) + int32(rng.Intn(3))
		}
	}

	return vals
}

func TestHCompressLosslessShapes(t *testing.T) {
	shapes := [][]int{
		{2, 2},
		{3, 2},
		{2, 3},
		{7, 5},
		{16, 16},
		{33, 17},
		{64, 8, 1},
		{100, 3},
	}

	h := NewHCompress(DefaultConfig())
	for _, shape := range shapes {
		t.Run(fmt.Sprint(shape), func(t *testing.T) {
			src := buffer.Wrap(smoothImage(shape[0], shape[1]))

			packed, err := h.Compress(src, shape)
			require.NoError(t, err)

			out, err := h.Decompress(packed, src.Len(), format.KindInt32, shape)
			require.NoError(t, err)
			require.Equal(t, src, out, "shape %v", shape)
		})
	}
}

func TestHCompressMagic(t *testing.T) {
	h := NewHCompress(DefaultConfig())
	packed, err := h.Compress(buffer.Wrap([]int16{1, 2, 3, 4}), []int{2, 2})
	require.NoError(t, err)
	require.Equal(t, []byte{0xDD, 0x99}, packed[:2])
	// rows then row length, both big-endian
	require.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 2}, packed[2:10])
}

func TestHCompressLossy(t *testing.T) {
	const cols, rows = 64, 48
	vals := smoothImage(cols, rows)
	src := buffer.Wrap(vals)
	shape := []int{cols, rows}

	lossless, err := NewHCompress(DefaultConfig()).Compress(src, shape)
	require.NoError(t, err)

	for _, smooth := range []bool{false, true} {
		cfg, err := NewConfig(WithScale(4), WithSmooth(smooth))
		require.NoError(t, err)
		h := NewHCompress(cfg)
		require.Equal(t, []Param{{Name: "SCALE", Value: 4}, {Name: "SMOOTH", Value: map[bool]int64{false: 0, true: 1}[smooth]}}, h.Params())

		packed, err := h.Compress(src, shape)
		require.NoError(t, err)
		require.Less(t, len(packed), len(lossless))

		out, err := h.Decompress(packed, len(vals), format.KindInt32, shape)
		require.NoError(t, err)

		got, ok := buffer.As[int32](out)
		require.True(t, ok)

		var sum float64
		for i := range vals {
			sum += math.Abs(float64(got[i] - vals[i]))
		}
		require.Less(t, sum/float64(len(vals)), 4.0)
	}
}

func TestHCompressClampsToKind(t *testing.T) {
	cfg, err := NewConfig(WithScale(64))
	require.NoError(t, err)
	h := NewHCompress(cfg)

	vals := make([]uint8, 16*16)
	for i := range vals {
		vals[i] = uint8(255 * (i % 2))
	}
	packed, err := h.Compress(buffer.Wrap(vals), []int{16, 16})
	require.NoError(t, err)

	out, err := h.Decompress(packed, len(vals), format.KindUint8, []int{16, 16})
	require.NoError(t, err)
	require.Equal(t, format.KindUint8, out.Kind())
}

func TestHCompressUnsupportedRank(t *testing.T) {
	h := NewHCompress(DefaultConfig())
	src := buffer.Wrap(make([]int32, 8))

	for _, shape := range [][]int{{8}, {8, 1}, {1, 8}, {2, 2, 2}} {
		_, err := h.Compress(src, shape)
		require.ErrorIs(t, err, errs.ErrUnsupportedRank, "shape %v", shape)
	}

	_, err := h.Compress(src, []int{3, 3})
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}

func TestHCompressCorruptStream(t *testing.T) {
	h := NewHCompress(DefaultConfig())
	src := buffer.Wrap(smoothImage(16, 16))
	shape := []int{16, 16}
	packed, err := h.Compress(src, shape)
	require.NoError(t, err)

	t.Run("BadMagic", func(t *testing.T) {
		bad := append([]byte{0xDD, 0x98}, packed[2:]...)
		_, err := h.Decompress(bad, 256, format.KindInt32, shape)
		require.ErrorIs(t, err, errs.ErrCorruptStream)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := h.Decompress(packed[:len(packed)/3], 256, format.KindInt32, shape)
		require.ErrorIs(t, err, errs.ErrCorruptStream)
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		_, err := h.Decompress(packed[:10], 256, format.KindInt32, shape)
		require.ErrorIs(t, err, errs.ErrCorruptStream)
	})

	t.Run("PixelCount", func(t *testing.T) {
		_, err := h.Decompress(packed, 200, format.KindInt32, nil)
		require.ErrorIs(t, err, errs.ErrLengthMismatch)
	})
}

func TestHTransInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, dims := range [][2]int{{1, 1}, {1, 5}, {4, 4}, {5, 9}, {31, 2}} {
		nx, ny := dims[0], dims[1]
		a := make([]int64, nx*ny)
		for i := range a {
			a[i] = rng.Int63n(1<<20) - 1<<19
		}
		want := append([]int64(nil), a...)

		htrans(a, nx, ny)
		hinv(a, nx, ny, false, 0)
		require.Equal(t, want, a, "dims %v", dims)
	}
}

func TestReadHuffmanMatchesCodes(t *testing.T) {
	for sym := range 16 {
		data := []byte{byte(hcCode[sym] << (8 - hcNCode[sym]))}
		rd := bitio.NewReader(data)
		got, err := readHuffman(rd)
		require.NoError(t, err)
		require.Equal(t, byte(sym), got)
	}
}
