package quant

// NRandom is the length of the FITS dither sequence.
const NRandom = 10000

// randomValues holds the FITS dither sequence: the Park-Miller minimal
// standard generator with a = 16807, m = 2^31 - 1 and seed 1, as float32.
var randomValues = func() [NRandom]float32 {
	const (
		a = 16807.0
		m = 2147483647.0
	)

	var out [NRandom]float32
	seed := 1.0
	for i := range out {
		temp := a * seed
		seed = temp - m*float64(int64(temp/m))
		out[i] = float32(seed / m)
	}

	return out
}()

// Dither walks the dither sequence of one tile. It is a small value type;
// each tile gets its own.
type Dither struct {
	seed int // current seed index into randomValues
	next int // next value index
}

// NewDither positions the sequence for a tile. ditherSeed is the ZDITHER0
// value (1..10000) and tileIndex is zero-based.
func NewDither(ditherSeed, tileIndex int) Dither {
	seed := (tileIndex + ditherSeed - 1) % NRandom
	if seed < 0 {
		seed += NRandom
	}

	return Dither{seed: seed, next: int(randomValues[seed] * 500)}
}

// Next returns the offset for the next pixel.
func (d *Dither) Next() float64 {
	r := float64(randomValues[d.next])
	d.next++
	if d.next == NRandom {
		d.seed++
		if d.seed == NRandom {
			d.seed = 0
		}
		d.next = int(randomValues[d.seed] * 500)
	}

	return r
}

// Offsets returns the first n offsets of a tile's sequence.
func Offsets(ditherSeed, tileIndex, n int) []float64 {
	d := NewDither(ditherSeed, tileIndex)
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Next()
	}

	return out
}
