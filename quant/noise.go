package quant

import (
	"math"
	"slices"

	"github.com/arloliu/fitstile/internal/pool"
)

// Noise scale factors that turn the median of the 2nd, 3rd and 5th order
// differences into a Gaussian sigma.
const (
	noise2Factor = 1.0483579
	noise3Factor = 0.6052697
	noise5Factor = 0.1772048
)

// minRowPixels is the number of valid pixels a row needs before its
// differences are used.
const minRowPixels = 9

// Noise is the result of EstimateNoise.
type Noise struct {
	Noise2 float64
	Noise3 float64
	Noise5 float64
	Min    float64
	Max    float64
	NGood  int // valid pixels
}

// Sigma returns the smallest non-zero of the three estimates, or zero when
// none could be made.
func (n Noise) Sigma() float64 {
	sigma := 0.0
	for _, v := range []float64{n.Noise3, n.Noise2, n.Noise5} {
		if v > 0 && (sigma == 0 || v < sigma) {
			sigma = v
		}
	}

	return sigma
}

// EstimateNoise measures the background noise of a tile laid out in rows of
// rowLen pixels. Pixels for which null returns true are skipped; null may be
// nil. Tiles with rows shorter than nine pixels are treated as one row.
func EstimateNoise(vals []float64, rowLen int, null func(i int) bool) Noise {
	res := Noise{Min: math.Inf(1), Max: math.Inf(-1)}
	if len(vals) == 0 {
		return res
	}
	if rowLen < minRowPixels || rowLen > len(vals) {
		rowLen = len(vals)
	}

	row, releaseRow := pool.Float64s.Get(rowLen)
	defer releaseRow()
	d2, release2 := pool.Float64s.Get(rowLen)
	defer release2()
	d3, release3 := pool.Float64s.Get(rowLen)
	defer release3()
	d5, release5 := pool.Float64s.Get(rowLen)
	defer release5()

	var rows2, rows3, rows5 []float64
	for start := 0; start < len(vals); start += rowLen {
		end := min(start+rowLen, len(vals))

		row = row[:0]
		for i := start; i < end; i++ {
			if null != nil && null(i) {
				continue
			}
			v := vals[i]
			res.Min = min(res.Min, v)
			res.Max = max(res.Max, v)
			res.NGood++
			row = append(row, v)
		}
		if len(row) < minRowPixels {
			continue
		}

		d2, d3, d5 = d2[:0], d3[:0], d5[:0]
		for i := 4; i < len(row)-4; i++ {
			v1, v3, v4, v5, v6, v7, v9 := row[i-4], row[i-2], row[i-1], row[i], row[i+1], row[i+2], row[i+4]
			if v5 != v6 || v6 != v7 {
				d2 = append(d2, math.Abs(v5-v7))
			}
			// constant background stretches carry no noise information
			if v3 != v4 || v4 != v5 || v5 != v6 || v6 != v7 {
				d3 = append(d3, math.Abs(2*v5-v3-v7))
				d5 = append(d5, math.Abs(6*v5-4*v3-4*v7+v1+v9))
			}
		}

		if len(d2) > 0 {
			rows2 = append(rows2, noise2Factor*median(d2))
		}
		if len(d3) > 0 {
			rows3 = append(rows3, noise3Factor*median(d3))
			rows5 = append(rows5, noise5Factor*median(d5))
		}
	}

	res.Noise2 = rowMedian(rows2)
	res.Noise3 = rowMedian(rows3)
	res.Noise5 = rowMedian(rows5)

	return res
}

// median sorts vals in place and returns the lower median.
func median(vals []float64) float64 {
	switch len(vals) {
	case 1:
		return vals[0]
	case 2:
		return (vals[0] + vals[1]) / 2
	}
	slices.Sort(vals)

	return vals[(len(vals)-1)/2]
}

// rowMedian combines per-row estimates.
func rowMedian(vals []float64) float64 {
	switch len(vals) {
	case 0:
		return 0
	case 1:
		return vals[0]
	}
	slices.Sort(vals)

	return (vals[(len(vals)-1)/2] + vals[len(vals)/2]) / 2
}
