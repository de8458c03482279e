package quant

import (
	"fmt"
	"math"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Reserved quantized values.
const (
	// NullValue marks an undefined pixel in quantized data (ZBLANK).
	NullValue int32 = -2147483647
	// ZeroValue marks an exact 0.0 under SUBTRACTIVE_DITHER_2.
	ZeroValue int32 = -2147483646
	// NReservedValues is the headroom kept above NullValue.
	NReservedValues = 10

	DefaultLevel      = 4.0
	DefaultDitherSeed = 1
)

// Options configures a Quantizer.
type Options struct {
	// Level is the number of quantization steps per noise sigma. Zero
	// selects DefaultLevel; a negative value is the absolute step size.
	Level float64
	// Method selects dithering, or QuantizeLossless for scale 1 / zero 0.
	Method format.QuantizeMethod
	// DitherSeed is the ZDITHER0 value in [1, 10000].
	DitherSeed int
}

// DefaultOptions returns level 4 with SUBTRACTIVE_DITHER_1 and seed 1.
func DefaultOptions() Options {
	return Options{
		Level:      DefaultLevel,
		Method:     format.SubtractiveDither1,
		DitherSeed: DefaultDitherSeed,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if math.IsNaN(o.Level) || math.IsInf(o.Level, 0) {
		return fmt.Errorf("quantization level %v: %w", o.Level, errs.ErrInvalidOption)
	}
	switch o.Method {
	case format.QuantizeLossless, format.NoDither, format.SubtractiveDither1, format.SubtractiveDither2:
	default:
		return fmt.Errorf("quantization method %s: %w", o.Method, errs.ErrInvalidOption)
	}
	if o.Method.Dithered() && (o.DitherSeed < 1 || o.DitherSeed > NRandom) {
		return fmt.Errorf("dither seed %d outside [1, %d]: %w", o.DitherSeed, NRandom, errs.ErrInvalidOption)
	}

	return nil
}

// Params are the per-tile ZSCALE and ZZERO values.
type Params struct {
	Scale float64
	Zero  float64
}

// Quantizer maps float tiles to int32 tiles. It holds no per-tile state and
// is safe for concurrent use.
type Quantizer struct {
	opts Options
}

// New validates opts and returns a Quantizer.
func New(opts Options) (*Quantizer, error) {
	if opts.Level == 0 {
		opts.Level = DefaultLevel
	}
	if opts.DitherSeed == 0 {
		opts.DitherSeed = DefaultDitherSeed
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Quantizer{opts: opts}, nil
}

func (q *Quantizer) Options() Options { return q.opts }

// nullSet turns sorted tile-local indices into a membership test.
func nullSet(n int, nulls []int) func(int) bool {
	if len(nulls) == 0 {
		return nil
	}
	set := make([]bool, n)
	for _, i := range nulls {
		if i >= 0 && i < n {
			set[i] = true
		}
	}

	return func(i int) bool { return set[i] }
}

// Quantize converts a float tile to integers. nulls lists the tile-local
// indices of undefined pixels, which are written as NullValue. rowLen is the
// extent of the tile's first axis and tileIndex its zero-based index.
//
// An empty tile fails with ErrDegenerateRange. A tile whose scale cannot be
// derived (infinite or unmasked NaN pixels, zero noise, or a range that
// overflows 32 bits) fails with ErrNonFinite; such tiles are meant to be
// stored losslessly instead.
func (q *Quantizer) Quantize(src buffer.Buffer, nulls []int, rowLen, tileIndex int) ([]int32, Params, error) {
	if !src.Kind().IsFloat() {
		return nil, Params{}, fmt.Errorf("quantize %s tile: %w", src.Kind(), errs.ErrKindMismatch)
	}
	n := src.Len()
	if n == 0 {
		return nil, Params{}, fmt.Errorf("quantize tile %d: %w", tileIndex, errs.ErrDegenerateRange)
	}

	vals := buffer.Float64s(src)
	isNull := nullSet(n, nulls)
	for i, v := range vals {
		if isNull != nil && isNull(i) {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, Params{}, fmt.Errorf("tile %d pixel %d is %v: %w", tileIndex, i, v, errs.ErrNonFinite)
		}
	}

	if q.opts.Method == format.QuantizeLossless {
		return quantizeLossless(vals, isNull, tileIndex)
	}

	var (
		noise Noise
		delta float64
	)
	if q.opts.Level > 0 {
		noise = EstimateNoise(vals, rowLen, isNull)
		delta = noise.Sigma() / q.opts.Level
	} else {
		noise = EstimateNoise(vals, 0, isNull)
		delta = -q.opts.Level
	}

	out := make([]int32, n)
	if noise.NGood == 0 {
		// every pixel is undefined
		for i := range out {
			out[i] = NullValue
		}

		return out, Params{Scale: 1, Zero: 0}, nil
	}
	if delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil, Params{}, fmt.Errorf("tile %d has no measurable noise: %w", tileIndex, errs.ErrNonFinite)
	}

	span := (noise.Max - noise.Min) / delta
	if math.IsInf(span, 0) || span > 2*math.MaxInt32-NReservedValues {
		return nil, Params{}, fmt.Errorf("tile %d range %g..%g needs more than 32 bits at step %g: %w",
			tileIndex, noise.Min, noise.Max, delta, errs.ErrNonFinite)
	}

	var zero float64
	switch {
	case noise.NGood < n || q.opts.Method == format.SubtractiveDither2:
		// keep the reserved values just below the quantized range free
		zero = noise.Min - delta*float64(int64(NullValue)+NReservedValues)
	case span < math.MaxInt32-NReservedValues:
		zero = math.Round(noise.Min/delta) * delta
	default:
		zero = (noise.Min + noise.Max) / 2
	}

	dither := q.opts.Method.Dithered()
	var d Dither
	if dither {
		d = NewDither(q.opts.DitherSeed, tileIndex)
	}

	for i, v := range vals {
		r := 0.5
		if dither {
			r = d.Next()
		}
		switch {
		case isNull != nil && isNull(i):
			out[i] = NullValue
		case q.opts.Method == format.SubtractiveDither2 && v == 0:
			out[i] = ZeroValue
		default:
			out[i] = nint((v-zero)/delta + r - 0.5)
		}
	}

	return out, Params{Scale: delta, Zero: zero}, nil
}

func quantizeLossless(vals []float64, isNull func(int) bool, tileIndex int) ([]int32, Params, error) {
	out := make([]int32, len(vals))
	for i, v := range vals {
		if isNull != nil && isNull(i) {
			out[i] = NullValue
			continue
		}
		if v < float64(NullValue)+NReservedValues || v > math.MaxInt32 {
			return nil, Params{}, fmt.Errorf("tile %d pixel %d value %g exceeds 32 bits: %w",
				tileIndex, i, v, errs.ErrNonFinite)
		}
		out[i] = nint(v)
	}

	return out, Params{Scale: 1, Zero: 0}, nil
}

// nint rounds half away from zero.
func nint(x float64) int32 {
	switch {
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32:
		return math.MinInt32
	case x >= 0:
		return int32(x + 0.5)
	default:
		return int32(x - 0.5)
	}
}

// Dequantize restores a float tile of the given kind. NullValue becomes NaN
// and, under SUBTRACTIVE_DITHER_2, ZeroValue becomes 0.
func (q *Quantizer) Dequantize(ints []int32, kind format.ElementKind, p Params, tileIndex int) (buffer.Buffer, error) {
	return Dequantize(ints, kind, p, q.opts.Method, q.opts.DitherSeed, tileIndex)
}

// Dequantize is the stateless form of Quantizer.Dequantize, used by readers
// that take the method and seed from the table keywords.
//
// Each value is restored as (q - r + 0.5)*scale + zero, where r is the
// tile's dither draw (0.5 when undithered). The dither is subtracted here
// because the quantizer added it.
func Dequantize(ints []int32, kind format.ElementKind, p Params, method format.QuantizeMethod, ditherSeed, tileIndex int) (buffer.Buffer, error) {
	if !kind.IsFloat() {
		return nil, fmt.Errorf("dequantize to %s: %w", kind, errs.ErrKindMismatch)
	}
	if len(ints) == 0 {
		return nil, fmt.Errorf("dequantize tile %d: %w", tileIndex, errs.ErrDegenerateRange)
	}
	if p.Scale == 0 || math.IsNaN(p.Scale) || math.IsNaN(p.Zero) {
		return nil, fmt.Errorf("tile %d scale %g zero %g: %w", tileIndex, p.Scale, p.Zero, errs.ErrNonFinite)
	}

	dither := method.Dithered()
	var d Dither
	if dither {
		d = NewDither(ditherSeed, tileIndex)
	}

	vals := make([]float64, len(ints))
	for i, v := range ints {
		r := 0.5
		if dither {
			r = d.Next()
		}
		switch {
		case v == NullValue:
			vals[i] = math.NaN()
		case v == ZeroValue && method == format.SubtractiveDither2:
			vals[i] = 0
		default:
			vals[i] = (float64(v)-r+0.5)*p.Scale + p.Zero
		}
	}

	if kind == format.KindFloat64 {
		return buffer.Wrap(vals), nil
	}

	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}

	return buffer.Wrap(out), nil
}
