package tiled

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fitstile/ndimage"
	"github.com/arloliu/fitstile/table"
)

// noisyImage returns a float64 image of smooth structure plus unit gaussian
// noise.
func noisyImage(t *testing.T, nx, ny int, seed uint64) *ndimage.Image {
	t.Helper()

	rng := rand.New(rand.NewPCG(seed, seed+1))
	data := make([]float64, nx*ny)
	for y := range ny {
		for x := range nx {
			data[y*nx+x] = 100 + 20*math.Sin(float64(x)/7) + 10*math.Cos(float64(y)/5) + rng.NormFloat64()
		}
	}
	img, err := ndimage.FromSlice(data, nx, ny)
	require.NoError(t, err)

	return img
}

// roundTrip compresses img and decompresses the result.
func roundTrip(t *testing.T, img *ndimage.Image, opts ...Option) (*Result, *ndimage.Image, *Report) {
	t.Helper()

	c, err := NewCompressor(opts...)
	require.NoError(t, err)
	res, err := c.Compress(context.Background(), img)
	require.NoError(t, err)

	d, err := NewDecompressor(opts...)
	require.NoError(t, err)
	out, report, err := d.Decompress(context.Background(), Keywords(res), res.Table)
	require.NoError(t, err)

	return res, out, report
}

// reload marshals the result table and parses it back through its header.
func reload(t *testing.T, res *Result) (table.Header, *table.Table) {
	t.Helper()

	hdr := Keywords(res)
	raw, err := res.Table.MarshalBinary()
	require.NoError(t, err)
	layout, err := hdr.Layout()
	require.NoError(t, err)
	tbl, err := table.UnmarshalTable(raw, layout)
	require.NoError(t, err)

	return hdr, tbl
}

func nanIndices[T float32 | float64](s []T) []int {
	var out []int
	for i, v := range s {
		if v != v {
			out = append(out, i)
		}
	}

	return out
}
