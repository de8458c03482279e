package tile

import (
	"fmt"
	"testing"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/stretchr/testify/require"
)

func TestNewGeometry(t *testing.T) {
	tests := []struct {
		dims, tileDims []int
		counts         []int
	}{
		{[]int{4, 4}, []int{2, 2}, []int{2, 2}},
		{[]int{10}, []int{3}, []int{4}},
		{[]int{8, 5}, []int{8, 2}, []int{1, 3}},
		{[]int{7, 9, 3}, []int{7, 1, 1}, []int{1, 9, 3}},
		{[]int{5, 5}, []int{100, 100}, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.dims, tt.tileDims), func(t *testing.T) {
			g, err := NewGeometry(tt.dims, tt.tileDims)
			require.NoError(t, err)
			require.Equal(t, tt.counts, g.Counts())

			want := 1
			for _, c := range tt.counts {
				want *= c
			}
			require.Equal(t, want, g.Count())
			require.NoError(t, g.Covers())
		})
	}
}

func TestGeometryErrors(t *testing.T) {
	cases := map[string][2][]int{
		"NoAxes":       {{}, {}},
		"RankMismatch": {{4, 4}, {2}},
		"ZeroDim":      {{4, 0}, {2, 2}},
		"NegativeTile": {{4, 4}, {2, -1}},
		"ZeroTile":     {{4}, {0}},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewGeometry(c[0], c[1])
			require.ErrorIs(t, err, errs.ErrInvalidGeometry)
		})
	}
}

func TestTileOrderAndExtents(t *testing.T) {
	g, err := NewGeometry([]int{5, 3}, []int{2, 2})
	require.NoError(t, err)

	var got []Tile
	for tl := range g.Tiles() {
		got = append(got, tl)
	}

	require.Equal(t, []Tile{
		{Index: 0, Offset: []int{0, 0}, Extent: []int{2, 2}},
		{Index: 1, Offset: []int{2, 0}, Extent: []int{2, 2}},
		{Index: 2, Offset: []int{4, 0}, Extent: []int{1, 2}},
		{Index: 3, Offset: []int{0, 2}, Extent: []int{2, 1}},
		{Index: 4, Offset: []int{2, 2}, Extent: []int{2, 1}},
		{Index: 5, Offset: []int{4, 2}, Extent: []int{1, 1}},
	}, got)

	_, err = g.Tile(6)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)
	_, err = g.Tile(-1)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)
}

func TestCoverageExhaustive(t *testing.T) {
	for dx := 1; dx <= 6; dx++ {
		for dy := 1; dy <= 5; dy++ {
			for tx := 1; tx <= dx+1; tx++ {
				for ty := 1; ty <= dy+1; ty++ {
					g, err := NewGeometry([]int{dx, dy, 2}, []int{tx, ty, 1})
					require.NoError(t, err)

					hits := make([]int, dx*dy*2)
					for tl := range g.Tiles() {
						walkRows(g.dims, tl, func(imgAt, _, n int) {
							for i := imgAt; i < imgAt+n; i++ {
								hits[i]++
							}
						})
					}
					for i, h := range hits {
						require.Equal(t, 1, h, "pixel %d of %dx%d in %dx%d tiles", i, dx, dy, tx, ty)
					}
				}
			}
		}
	}
}

func TestDefaultTileDims(t *testing.T) {
	require.Equal(t, []int{100, 1, 1}, DefaultTileDims([]int{100, 20, 3}))
	require.Equal(t, []int{7}, DefaultTileDims([]int{7}))
}

func TestPlaneTileDims(t *testing.T) {
	cases := []struct {
		dims []int
		want []int
	}{
		{[]int{64, 32}, []int{64, 16}},
		{[]int{64, 10}, []int{64, 10}},
		{[]int{64, 2}, []int{64, 2}},
		{[]int{20, 33}, []int{20, 17}},
		{[]int{20, 17}, []int{20, 17}},
		{[]int{20, 100, 3}, []int{20, 16, 1}},
	}
	for _, tc := range cases {
		got, err := PlaneTileDims(tc.dims)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "dims %v", tc.dims)
		require.NotEqual(t, 1, tc.dims[1]%got[1], "dims %v leaves a one-row tile", tc.dims)
	}

	for _, dims := range [][]int{{100}, {1, 40}, {40, 1}} {
		_, err := PlaneTileDims(dims)
		require.ErrorIs(t, err, errs.ErrInvalidGeometry, "dims %v", dims)
	}
}

func TestExtractInsert(t *testing.T) {
	dims := []int{5, 4}
	img := make([]int32, 20)
	for i := range img {
		img[i] = int32(i)
	}
	src := buffer.Wrap(img)

	g, err := NewGeometry(dims, []int{2, 3})
	require.NoError(t, err)

	tl, err := g.Tile(1)
	require.NoError(t, err)
	part, err := Extract(src, dims, tl)
	require.NoError(t, err)
	// columns 2-3 of rows 0-2
	require.Equal(t, buffer.Wrap([]int32{2, 3, 7, 8, 12, 13}), part)

	out := buffer.Wrap(make([]int32, 20))
	for tl := range g.Tiles() {
		p, err := Extract(src, dims, tl)
		require.NoError(t, err)
		require.NoError(t, Insert(out, dims, tl, p))
	}
	require.Equal(t, src, out)
}

func TestInsertErrors(t *testing.T) {
	dims := []int{4, 4}
	img := buffer.Wrap(make([]float32, 16))
	tl := Tile{Index: 0, Offset: []int{0, 0}, Extent: []int{2, 2}}

	err := Insert(img, dims, tl, buffer.Wrap([]float64{1, 2, 3, 4}))
	require.ErrorIs(t, err, errs.ErrKindMismatch)

	err = Insert(img, dims, tl, buffer.Wrap([]float32{1, 2, 3}))
	require.ErrorIs(t, err, errs.ErrLengthMismatch)

	outside := Tile{Offset: []int{3, 0}, Extent: []int{2, 2}}
	_, err = Extract(img, dims, outside)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)

	_, err = Extract(buffer.Wrap(make([]float32, 15)), dims, tl)
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}

func TestBufferLazy(t *testing.T) {
	calls := 0
	tl := Tile{Index: 3, Offset: []int{0}, Extent: []int{3}}
	b := NewBuffer(tl, func(Tile) (buffer.Buffer, error) {
		calls++
		return buffer.Wrap([]int16{1, 2, 3}), nil
	})

	require.False(t, b.Loaded())
	require.Equal(t, 0, calls)

	data, err := b.Data()
	require.NoError(t, err)
	require.Equal(t, buffer.Wrap([]int16{1, 2, 3}), data)

	_, err = b.Data()
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, []int{3}, b.Shape())

	b.Set(buffer.Wrap([]int16{4, 5, 6}))
	data, err = b.Data()
	require.NoError(t, err)
	require.Equal(t, buffer.Wrap([]int16{4, 5, 6}), data)

	b.Release()
	require.False(t, b.Loaded())
	_, err = b.Data()
	require.ErrorIs(t, err, errs.ErrInvalidOption)
}

func TestBufferSourceLength(t *testing.T) {
	tl := Tile{Extent: []int{4}, Offset: []int{0}}
	b := NewBuffer(tl, func(Tile) (buffer.Buffer, error) {
		return buffer.Wrap([]uint8{1}), nil
	})
	_, err := b.Data()
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}

func BenchmarkExtract(b *testing.B) {
	dims := []int{1024, 1024}
	img := buffer.Wrap(make([]float32, 1024*1024))
	g, err := NewGeometry(dims, []int{128, 128})
	require.NoError(b, err)

	b.ReportAllocs()
	for b.Loop() {
		for tl := range g.Tiles() {
			_, _ = Extract(img, dims, tl)
		}
	}
}
