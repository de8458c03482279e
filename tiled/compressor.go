package tiled

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/options"
	"github.com/arloliu/fitstile/metrics"
	"github.com/arloliu/fitstile/ndimage"
	"github.com/arloliu/fitstile/nullmask"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/table"
	"github.com/arloliu/fitstile/tile"
)

// Compressor writes images as tile tables. It is immutable after
// construction and may compress several images concurrently.
type Compressor struct {
	cfg       config
	codecCfg  codec.Config
	codec     codec.Codec
	fallback  codec.Codec
	mask      codec.Codec
	quantizer *quant.Quantizer
}

// NewCompressor validates the options and builds the tile codecs.
//
// The sentinel null policy cannot be combined with lossy HCOMPRESS_1, which
// would not preserve the reserved value; that combination fails with
// errs.ErrInvalidOption.
func NewCompressor(opts ...Option) (*Compressor, error) {
	cfg := defaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	codecCfg, err := codec.NewConfig(cfg.codecOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.nullPolicy == format.NullSentinel && cfg.compression == format.CompressionHCompress && codecCfg.Lossy() {
		return nil, errors.Wrapf(errs.ErrInvalidOption,
			"null sentinel with lossy %s (scale %d); use the mask column policy", cfg.compression, codecCfg.Scale)
	}

	c := &Compressor{cfg: cfg, codecCfg: codecCfg}
	if c.codec, err = codec.NewWithConfig(cfg.compression, codecCfg); err != nil {
		return nil, err
	}
	if c.fallback, err = codec.New(format.CompressionGzip1); err != nil {
		return nil, err
	}
	if cfg.nullPolicy == format.NullMaskColumn {
		if c.mask, err = codec.New(cfg.maskCompression); err != nil {
			return nil, err
		}
	}
	if cfg.quant.Method != format.QuantizeOff {
		if c.quantizer, err = quant.New(cfg.quant); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Result is the output of one Compress call.
type Result struct {
	// Table has one row per tile, in tile index order.
	Table *table.Table
	// Header holds the Z keywords describing the image; see Keywords for
	// the complete header including table structure.
	Header   table.Header
	Settings *Settings
	Report   *Report
	Stats    Stats
}

// Stats summarizes a compression run.
type Stats struct {
	Tiles     int
	Fallbacks int
	RawBytes  int64
	HeapBytes int64
	// Fingerprint is the xxHash64 of the descriptors and heap.
	Fingerprint uint64
}

// Ratio returns raw bytes per heap byte.
func (s Stats) Ratio() float64 {
	if s.HeapBytes == 0 {
		return 0
	}

	return float64(s.RawBytes) / float64(s.HeapBytes)
}

// compressed is what one tile leaves behind for the heap.
type compressed struct {
	data     []byte
	mask     []byte
	nulls    nullmask.Mask
	params   quant.Params
	fallback bool
}

// job carries the per-image state shared by all tile operations of one
// Compress call. Workers only read it.
type job struct {
	img      *ndimage.Image
	settings *Settings
	quantize bool
}

// Compress splits img into tiles and compresses them.
//
// Under AbortOnFirst the first tile failure is returned and no result is
// produced. Under CollectAll a result is returned alongside the
// errs.TileErrors; failed tiles have empty rows.
func (c *Compressor) Compress(ctx context.Context, img *ndimage.Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	kind := img.Kind()
	quantize := kind.IsFloat() && c.quantizer != nil
	if kind.IsFloat() && !quantize && c.cfg.compression.IntegerOnly() {
		return nil, errors.Wrapf(errs.ErrInvalidOption, "%s needs quantized float pixels", c.cfg.compression)
	}

	tileDims, err := c.defaultTileDims(img.Axes)
	if err != nil {
		return nil, err
	}
	geom, err := tile.NewGeometry(img.Axes, tileDims)
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		Kind:        kind,
		Axes:        slices.Clone(img.Axes),
		TileDims:    geom.TileDims(),
		Compression: c.cfg.compression,
		Codec:       c.codecCfg,
		Quantized:   quantize,
	}
	switch {
	case quantize:
		settings.Quant = c.quantizer.Options()
		if c.cfg.nullPolicy == format.NullSentinel {
			blank := int64(quant.NullValue)
			settings.Blank = &blank
		}
	case img.Blank != nil:
		blank := *img.Blank
		settings.Blank = &blank
	}

	j := &job{img: img, settings: settings, quantize: quantize}
	n := geom.Count()
	ops := make([]*operation, n)
	outs := make([]compressed, n)
	src := tile.ImageSource(img.Data, img.Axes)
	for t := range geom.Tiles() {
		ops[t.Index] = newOperation(directionCompress, t, src)
	}

	log := c.cfg.logger.WithPrefix("[compress] ")
	steps := [4]step{
		c.buffering,
		func(op *operation) error { return c.transforming(op, j, &outs[op.Tile().Index]) },
		func(op *operation) error { return c.coding(op, &outs[op.Tile().Index]) },
		func(op *operation) error { return c.committing(op, &outs[op.Tile().Index]) },
	}

	failures, err := schedule(ctx, n, c.cfg.workers, c.cfg.failure, func(i int) *errs.TileError {
		te := ops[i].run(steps)
		c.observe(ops[i], img.Kind().Size())
		if te != nil {
			log.Errorf("%v", te)
		}

		return te
	})

	report := &Report{Failures: failures}
	for _, op := range ops {
		report.Tiles = append(report.Tiles, op.report)
	}
	if err != nil && (c.cfg.failure == AbortOnFirst || ctx.Err() != nil) {
		return nil, err
	}

	tbl, err2 := c.buildTable(settings, outs)
	if err2 != nil {
		return nil, err2
	}
	if _, ok := tbl.Column(table.ColNullPixelMask); ok {
		settings.MaskCompression = c.cfg.maskCompression
	}
	hdr, err2 := settings.Keywords()
	if err2 != nil {
		return nil, err2
	}

	res := &Result{
		Table:    tbl,
		Header:   hdr,
		Settings: settings,
		Report:   report,
		Stats: Stats{
			Tiles:       n,
			Fallbacks:   len(report.Fallbacks()),
			RawBytes:    int64(img.Data.ByteSize()),
			HeapBytes:   tbl.Heap().Len(),
			Fingerprint: tbl.Fingerprint(),
		},
	}
	log.Infof("%d tiles with %s: %d -> %d bytes, %d fallbacks, %d failed, heap %016x",
		n, c.cfg.compression, res.Stats.RawBytes, res.Stats.HeapBytes, res.Stats.Fallbacks, len(failures), res.Stats.Fingerprint)

	return res, err
}

// defaultTileDims returns the configured tile shape, or row-by-row tiling
// when none was set. HCOMPRESS_1 needs 2-D tiles, so it defaults to blocks
// of rows instead.
func (c *Compressor) defaultTileDims(axes []int) ([]int, error) {
	switch {
	case c.cfg.tileDims != nil:
		return c.cfg.tileDims, nil
	case c.cfg.compression == format.CompressionHCompress:
		dims, err := tile.PlaneTileDims(axes)
		if err != nil {
			return nil, errors.Wrapf(err, "%s default tiling", c.cfg.compression)
		}

		return dims, nil
	default:
		return tile.DefaultTileDims(axes), nil
	}
}

func (c *Compressor) buffering(op *operation) error {
	_, err := op.buf.Data()
	return err
}

// transforming detects undefined pixels and quantizes float tiles. A float
// tile whose quantization parameters cannot be computed is marked for the
// lossless GZIP_1 fallback and keeps its float pixels.
func (c *Compressor) transforming(op *operation, j *job, out *compressed) error {
	data, err := op.buf.Data()
	if err != nil {
		return err
	}
	t := op.Tile()

	nulls := nullmask.Detect(data, j.img.Blank)
	op.report.Nulls = nulls.Len()
	maskColumn := c.cfg.nullPolicy == format.NullMaskColumn

	switch {
	case j.quantize:
		qnulls := []int(nulls)
		if maskColumn && !nulls.Empty() {
			// the mask column restores these; quantize them as their
			// neighbours so no reserved value has to survive coding
			fillForward(data, nulls)
			qnulls = nil
			out.nulls = nulls
		}
		ints, params, err := c.quantizer.Quantize(data, qnulls, t.Extent[0], t.Index)
		if errors.Is(err, errs.ErrNonFinite) {
			if out.nulls != nil {
				// the fallback stores the raw pixels, NaN included
				_ = nullmask.Restore(data, out.nulls, nil)
				out.nulls = nil
			}
			out.fallback = true
			op.report.Fallback = true
			c.cfg.logger.Warnf("tile %d stored losslessly with %s: %v", t.Index, c.fallback.Type(), err)
			c.cfg.metrics.ObserveFallback(c.fallback.Type().String())

			return nil
		}
		if err != nil {
			return err
		}
		op.buf.Set(buffer.Wrap(ints))
		out.params = params
		op.report.Quantized = true
		op.report.Params = params

	case data.Kind().IsInteger() && maskColumn && !nulls.Empty():
		if err := nullmask.Substitute(data, nulls, 0); err != nil {
			return err
		}
		out.nulls = nulls
	}

	return nil
}

// fillForward overwrites each undefined float pixel with the closest defined
// pixel before it, or after it for a leading run. A tile with no defined
// pixel is set to zero.
func fillForward(data buffer.Buffer, nulls nullmask.Mask) {
	switch s := data.(type) {
	case buffer.Of[float32]:
		fillFloats(s, nulls)
	case buffer.Of[float64]:
		fillFloats(s, nulls)
	}
}

func fillFloats[T float32 | float64](s []T, nulls nullmask.Mask) {
	first := -1
	for i := range s {
		if !nulls.Contains(i) {
			first = i
			break
		}
	}
	if first < 0 {
		clear(s)
		return
	}

	last := s[first]
	for i := range s {
		if nulls.Contains(i) {
			s[i] = last
			continue
		}
		last = s[i]
	}
}

func (c *Compressor) coding(op *operation, out *compressed) error {
	data, err := op.buf.Data()
	if err != nil {
		return err
	}
	t := op.Tile()

	cd, column := c.codec, table.ColCompressedData
	if out.fallback {
		cd, column = c.fallback, table.ColGzipCompressedData
	}
	if out.data, err = cd.Compress(data, t.Extent); err != nil {
		return err
	}
	op.report.Column = column
	op.report.Bytes = len(out.data)

	if !out.nulls.Empty() {
		if out.mask, err = nullmask.EncodeColumn(out.nulls, t.Len(), c.mask, t.Extent); err != nil {
			return err
		}
	}

	return nil
}

// committing keeps the blobs for the index-order heap append that follows
// the worker pool.
func (c *Compressor) committing(op *operation, out *compressed) error {
	if out.data == nil {
		return errors.Wrapf(errs.ErrLengthMismatch, "tile %d produced no data", op.Tile().Index)
	}
	out.nulls = nil

	return nil
}

func (c *Compressor) observe(op *operation, elemSize int) {
	r := op.report
	algo := c.cfg.compression.String()
	if r.Fallback {
		algo = c.fallback.Type().String()
	}
	c.cfg.metrics.ObserveTile(metrics.DirectionCompress, algo, r.Err != nil,
		r.Tile.Len()*elemSize, r.Bytes, r.Duration.Seconds())
}

// buildTable appends the tile blobs to a new heap in tile index order.
func (c *Compressor) buildTable(s *Settings, outs []compressed) (*table.Table, error) {
	var anyFallback, anyMask bool
	for _, o := range outs {
		anyFallback = anyFallback || o.fallback
		anyMask = anyMask || o.mask != nil
	}

	form := c.cfg.form
	tbl := table.New(len(outs))
	dataCol, err := tbl.AddVarColumn(table.ColCompressedData, codec.HeapKind(c.cfg.compression), form)
	if err != nil {
		return nil, err
	}

	var gzipCol, maskCol *table.VarColumn
	if anyFallback {
		if gzipCol, err = tbl.AddVarColumn(table.ColGzipCompressedData, format.KindUint8, form); err != nil {
			return nil, err
		}
	}
	if anyMask {
		if maskCol, err = tbl.AddVarColumn(table.ColNullPixelMask, codec.HeapKind(c.cfg.maskCompression), form); err != nil {
			return nil, err
		}
	}

	var scaleCol, zeroCol *table.ScalarColumn
	if s.Quantized {
		if scaleCol, err = tbl.AddScalarColumn(table.ColZScale, format.KindFloat64); err != nil {
			return nil, err
		}
		if zeroCol, err = tbl.AddScalarColumn(table.ColZZero, format.KindFloat64); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	for i, o := range outs {
		col := dataCol
		if o.fallback {
			col = gzipCol
		}
		if err := col.Set(i, o.data); err != nil {
			return nil, errors.Wrapf(err, "tile %d", i)
		}
		if o.mask != nil {
			if err := maskCol.Set(i, o.mask); err != nil {
				return nil, errors.Wrapf(err, "tile %d mask", i)
			}
		}
		if scaleCol != nil {
			if err := scaleCol.SetFloat(i, o.params.Scale); err != nil {
				return nil, err
			}
			if err := zeroCol.SetFloat(i, o.params.Zero); err != nil {
				return nil, err
			}
		}
	}
	c.cfg.logger.Debugf("heap of %d bytes assembled in %s", tbl.Heap().Len(), time.Since(start))

	return tbl, nil
}
