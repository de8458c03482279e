package tiled

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/options"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/table"
	"github.com/arloliu/fitstile/tile"
)

// Settings is what a reader needs to rebuild an image from its tile table.
// It round-trips through the Z keywords of the compressed HDU.
type Settings struct {
	Kind        format.ElementKind // ZBITPIX
	Axes        []int              // ZNAXISn
	TileDims    []int              // ZTILEn
	Compression format.CompressionType
	Codec       codec.Config // ZNAMEi/ZVALi
	// Quantized is set for float images whose tiles were stored as scaled
	// integers; Quant then holds ZQUANTIZ and ZDITHER0.
	Quantized bool
	Quant     quant.Options
	// Blank is ZBLANK: the integer that marks undefined pixels in the coded
	// tiles, or nil.
	Blank *int64
	// MaskCompression is ZMASKCMP, set when undefined pixels are kept in a
	// NULL_PIXEL_MASK column.
	MaskCompression format.CompressionType
}

// codedKind is the element kind handed to the tile codec.
func (s *Settings) codedKind() format.ElementKind {
	if s.Quantized {
		return format.KindInt32
	}

	return s.Kind
}

// params returns the ZNAMEi/ZVALi pairs of the algorithm, followed by
// NOISEBIT for quantized images with an integral noise-relative level.
func (s *Settings) params() ([]codec.Param, error) {
	c, err := codec.NewWithConfig(s.Compression, s.Codec)
	if err != nil {
		return nil, err
	}
	p, ok := c.(codec.Parameterized)
	if !ok {
		return nil, nil
	}
	params := p.Params()
	if s.Compression == format.CompressionRice && s.Codec.BytePix == 0 {
		params = append(params, codec.Param{Name: "BYTEPIX", Value: int64(riceBytePix(s.codedKind()))})
	}
	if s.Quantized && s.Quant.Level > 0 && s.Quant.Level == math.Trunc(s.Quant.Level) {
		params = append(params, codec.Param{Name: "NOISEBIT", Value: int64(s.Quant.Level)})
	}

	return params, nil
}

func riceBytePix(k format.ElementKind) int {
	switch k {
	case format.KindUint8:
		return 1
	case format.KindInt16:
		return 2
	default:
		return 4
	}
}

// Keywords returns the Z keywords in their conventional order.
func (s *Settings) Keywords() (table.Header, error) {
	var h table.Header
	h.Set("ZIMAGE", true)
	h.Set("ZCMPTYPE", s.Compression.String())
	h.Set("ZBITPIX", s.Kind.Bitpix())
	h.Set("ZNAXIS", len(s.Axes))
	for i, n := range s.Axes {
		h.Set(fmt.Sprintf("ZNAXIS%d", i+1), n)
	}
	for i, n := range s.TileDims {
		h.Set(fmt.Sprintf("ZTILE%d", i+1), n)
	}

	params, err := s.params()
	if err != nil {
		return nil, err
	}
	for i, p := range params {
		h.Set(fmt.Sprintf("ZNAME%d", i+1), p.Name)
		h.Set(fmt.Sprintf("ZVAL%d", i+1), p.Value)
	}

	if s.Quantized {
		h.Set("ZQUANTIZ", s.Quant.Method.String())
		if s.Quant.Method.Dithered() {
			h.Set("ZDITHER0", s.Quant.DitherSeed)
		}
	}
	if s.Blank != nil {
		h.Set("ZBLANK", *s.Blank)
	}
	if s.MaskCompression != format.CompressionUnknown {
		h.Set("ZMASKCMP", s.MaskCompression.String())
	}

	return h, nil
}

// Keywords returns the full header of a compression result: the Z keywords
// followed by the table structure keywords.
func Keywords(res *Result) table.Header {
	h := slices.Clone(res.Header)
	h.Merge(res.Table.Keywords())

	return h
}

// ParseKeywords reads Settings back from a header. Missing ZTILEn default to
// row-by-row tiling; a missing ZQUANTIZ on a float image with an integer
// coded column means NO_DITHER.
func ParseKeywords(h table.Header) (*Settings, error) {
	if ok, err := h.Bool("ZIMAGE"); err != nil || !ok {
		return nil, errors.Wrap(errs.ErrMissingKeyword, "ZIMAGE = T")
	}

	s := &Settings{}
	name, err := h.String("ZCMPTYPE")
	if err != nil {
		return nil, err
	}
	if s.Compression = format.ParseCompressionType(name); s.Compression == format.CompressionUnknown {
		return nil, errors.Wrapf(errs.ErrUnknownCodec, "ZCMPTYPE %q", name)
	}

	bitpix, err := h.Int("ZBITPIX")
	if err != nil {
		return nil, err
	}
	if s.Kind = format.KindFromBitpix(int(bitpix)); s.Kind == format.KindUnknown {
		return nil, errors.Wrapf(errs.ErrInvalidTable, "ZBITPIX %d", bitpix)
	}

	naxis, err := h.Int("ZNAXIS")
	if err != nil {
		return nil, err
	}
	if naxis <= 0 || naxis > 999 {
		return nil, errors.Wrapf(errs.ErrInvalidGeometry, "ZNAXIS %d", naxis)
	}
	s.Axes = make([]int, naxis)
	for i := range s.Axes {
		n, err := h.Int(fmt.Sprintf("ZNAXIS%d", i+1))
		if err != nil {
			return nil, err
		}
		s.Axes[i] = int(n)
	}

	s.TileDims = tile.DefaultTileDims(s.Axes)
	for i := range s.TileDims {
		key := fmt.Sprintf("ZTILE%d", i+1)
		if !h.Has(key) {
			continue
		}
		n, err := h.Int(key)
		if err != nil {
			return nil, err
		}
		s.TileDims[i] = int(n)
	}

	if err := s.parseParams(h); err != nil {
		return nil, err
	}

	if h.Has("ZBLANK") {
		b, err := h.Int("ZBLANK")
		if err != nil {
			return nil, err
		}
		s.Blank = &b
	}

	if err := s.parseQuantization(h); err != nil {
		return nil, err
	}

	if h.Has("ZMASKCMP") {
		name, err := h.String("ZMASKCMP")
		if err != nil {
			return nil, err
		}
		if s.MaskCompression = format.ParseCompressionType(name); s.MaskCompression == format.CompressionUnknown {
			return nil, errors.Wrapf(errs.ErrUnknownCodec, "ZMASKCMP %q", name)
		}
	}

	return s, nil
}

func (s *Settings) parseParams(h table.Header) error {
	s.Codec = codec.DefaultConfig()
	if s.Compression == format.CompressionRice {
		// the convention's default when BYTEPIX is absent
		s.Codec.BytePix = 4
	}

	var opts []codec.Option
	for i := 1; ; i++ {
		key := fmt.Sprintf("ZNAME%d", i)
		if !h.Has(key) {
			break
		}
		name, err := h.String(key)
		if err != nil {
			return err
		}
		val, err := h.Int(fmt.Sprintf("ZVAL%d", i))
		if err != nil {
			return err
		}
		if name == "NOISEBIT" {
			s.Quant.Level = float64(val)
			continue
		}
		opts = append(opts, codec.WithParam(name, val))
	}

	if err := options.Apply(&s.Codec, opts...); err != nil {
		return errors.Wrap(err, "compression parameters")
	}

	return errors.Wrap(s.Codec.Validate(), "compression parameters")
}

// parseQuantization reads ZQUANTIZ and ZDITHER0. Float images without
// ZQUANTIZ are taken as unquantized here; the decompressor still treats them
// as NO_DITHER when the table carries ZSCALE.
func (s *Settings) parseQuantization(h table.Header) error {
	s.Quant.Method = format.QuantizeOff
	if !s.Kind.IsFloat() || !h.Has("ZQUANTIZ") {
		return nil
	}

	name, err := h.String("ZQUANTIZ")
	if err != nil {
		return err
	}
	method, ok := format.ParseQuantizeMethod(name)
	if !ok {
		return errors.Wrapf(errs.ErrInvalidOption, "ZQUANTIZ %q", name)
	}
	s.Quant.Method = method
	s.Quantized = method != format.QuantizeOff
	s.Quant.DitherSeed = quant.DefaultDitherSeed
	if h.Has("ZDITHER0") {
		seed, err := h.Int("ZDITHER0")
		if err != nil {
			return err
		}
		s.Quant.DitherSeed = int(seed)
	}
	if !s.Quantized {
		return nil
	}

	return errors.Wrap(s.Quant.Validate(), "quantization")
}
