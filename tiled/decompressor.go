package tiled

import (
	"context"

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

// Decompressor rebuilds images from tile tables. Only the scheduling,
// logging and metrics options apply; everything else is read from the
// header.
type Decompressor struct {
	cfg config
}

func NewDecompressor(opts ...Option) (*Decompressor, error) {
	cfg := defaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Decompressor{cfg: cfg}, nil
}

// blobSource says which column a tile's pixels come from.
type blobSource uint8

const (
	sourceCompressed blobSource = iota
	sourceGzip
	sourceRaw
)

// reader is the per-image state shared read-only by the tile operations of
// one Decompress call.
type reader struct {
	settings *Settings
	quant    bool
	codec    codec.Codec
	fallback codec.Codec
	mask     codec.Codec

	dataCol, gzipCol, rawCol, maskCol *table.VarColumn
	scaleCol, zeroCol, blankCol       *table.ScalarColumn

	scale, zero float64
}

// fetched holds the raw bytes of one tile between Buffering and Coding.
type fetched struct {
	blob   []byte
	mask   []byte
	source blobSource
	nulls  nullmask.Mask
}

// Decompress rebuilds the image described by hdr from tbl.
//
// Under CollectAll the image is returned with failed tiles left zero,
// together with the errs.TileErrors. The report is returned whenever the
// tiles were scheduled.
func (d *Decompressor) Decompress(ctx context.Context, hdr table.Header, tbl *table.Table) (*ndimage.Image, *Report, error) {
	s, err := ParseKeywords(hdr)
	if err != nil {
		return nil, nil, err
	}
	geom, err := tile.NewGeometry(s.Axes, s.TileDims)
	if err != nil {
		return nil, nil, err
	}
	if geom.Count() != tbl.NRows() {
		return nil, nil, errors.Wrapf(errs.ErrInvalidTable, "%d tiles but %d rows", geom.Count(), tbl.NRows())
	}

	r, err := d.newReader(s, hdr, tbl)
	if err != nil {
		return nil, nil, err
	}

	img, err := ndimage.New(s.Kind, s.Axes...)
	if err != nil {
		return nil, nil, err
	}
	if s.Kind.IsInteger() && s.Blank != nil {
		img = img.WithBlank(*s.Blank)
	}

	n := geom.Count()
	ops := make([]*operation, n)
	fetches := make([]fetched, n)
	for t := range geom.Tiles() {
		f := &fetches[t.Index]
		ops[t.Index] = newOperation(directionDecompress, t, func(t tile.Tile) (buffer.Buffer, error) {
			return r.decode(f, t)
		})
	}

	log := d.cfg.logger.WithPrefix("[decompress] ")
	steps := [4]step{
		func(op *operation) error { return r.buffering(op, &fetches[op.Tile().Index]) },
		func(op *operation) error { return r.coding(op, &fetches[op.Tile().Index]) },
		func(op *operation) error { return r.transforming(op, &fetches[op.Tile().Index]) },
		func(op *operation) error { return committing(op, img) },
	}

	failures, err := schedule(ctx, n, d.cfg.workers, d.cfg.failure, func(i int) *errs.TileError {
		te := ops[i].run(steps)
		rep := ops[i].report
		d.cfg.metrics.ObserveTile(metrics.DirectionDecompress, s.Compression.String(), te != nil,
			rep.Bytes, rep.Tile.Len()*s.Kind.Size(), rep.Duration.Seconds())
		if te != nil {
			log.Errorf("%v", te)
		}

		return te
	})

	report := &Report{Failures: failures}
	for _, op := range ops {
		report.Tiles = append(report.Tiles, op.report)
	}
	if err != nil && (d.cfg.failure == AbortOnFirst || ctx.Err() != nil) {
		return nil, report, err
	}
	log.Infof("%d tiles of %s %v with %s, %d failed", n, s.Kind, s.Axes, s.Compression, len(failures))

	return img, report, err
}

func (d *Decompressor) newReader(s *Settings, hdr table.Header, tbl *table.Table) (*reader, error) {
	r := &reader{settings: s, quant: s.Quantized, scale: 1}

	var err error
	if r.codec, err = codec.NewWithConfig(s.Compression, s.Codec); err != nil {
		return nil, err
	}
	if r.fallback, err = codec.New(format.CompressionGzip1); err != nil {
		return nil, err
	}

	r.dataCol = optionalVar(tbl, table.ColCompressedData)
	r.gzipCol = optionalVar(tbl, table.ColGzipCompressedData)
	r.rawCol = optionalVar(tbl, table.ColUncompressedData)
	r.maskCol = optionalVar(tbl, table.ColNullPixelMask)
	if r.dataCol == nil && r.gzipCol == nil && r.rawCol == nil {
		return nil, errors.Wrap(errs.ErrInvalidTable, "no tile data column")
	}
	if r.dataCol != nil && r.dataCol.Elem() != codec.HeapKind(s.Compression) {
		return nil, errors.Wrapf(errs.ErrInvalidTable, "%s holds %s elements for %s",
			table.ColCompressedData, r.dataCol.Elem(), s.Compression)
	}
	if r.rawCol != nil && r.rawCol.Elem() != s.Kind {
		return nil, errors.Wrapf(errs.ErrInvalidTable, "%s holds %s elements for a %s image",
			table.ColUncompressedData, r.rawCol.Elem(), s.Kind)
	}

	r.scaleCol = optionalScalar(tbl, table.ColZScale)
	r.zeroCol = optionalScalar(tbl, table.ColZZero)
	r.blankCol = optionalScalar(tbl, table.ColZBlank)
	if hdr.Has("ZSCALE") {
		if r.scale, err = hdr.Float("ZSCALE"); err != nil {
			return nil, err
		}
	}
	if hdr.Has("ZZERO") {
		if r.zero, err = hdr.Float("ZZERO"); err != nil {
			return nil, err
		}
	}
	if s.Kind.IsFloat() && !r.quant && (r.scaleCol != nil || hdr.Has("ZSCALE")) {
		// scaled float data from a writer that left out ZQUANTIZ
		r.quant = true
		s.Quant.Method = format.NoDither
	}

	if r.maskCol != nil {
		maskType := s.MaskCompression
		if maskType == format.CompressionUnknown {
			maskType = format.CompressionPLIO
		}
		if r.mask, err = codec.New(maskType); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func optionalVar(tbl *table.Table, name string) *table.VarColumn {
	if _, ok := tbl.Column(name); !ok {
		return nil
	}
	c, err := tbl.VarColumn(name)
	if err != nil {
		return nil
	}

	return c
}

func optionalScalar(tbl *table.Table, name string) *table.ScalarColumn {
	if _, ok := tbl.Column(name); !ok {
		return nil
	}
	c, err := tbl.ScalarColumn(name)
	if err != nil {
		return nil
	}

	return c
}

// buffering slices the tile's blobs out of the heap. COMPRESSED_DATA wins,
// then GZIP_COMPRESSED_DATA, then UNCOMPRESSED_DATA.
func (r *reader) buffering(op *operation, f *fetched) error {
	row := op.Tile().Index

	cells := []struct {
		col    *table.VarColumn
		source blobSource
	}{
		{r.dataCol, sourceCompressed},
		{r.gzipCol, sourceGzip},
		{r.rawCol, sourceRaw},
	}
	for _, cell := range cells {
		if cell.col == nil {
			continue
		}
		blob, err := cell.col.Get(row)
		if err != nil {
			return err
		}
		if len(blob) > 0 {
			f.blob, f.source = blob, cell.source
			break
		}
	}
	if f.blob == nil {
		return errors.Wrapf(errs.ErrInvalidTable, "row %d holds no tile data", row)
	}
	op.report.Bytes = len(f.blob)
	op.report.Column = [...]string{table.ColCompressedData, table.ColGzipCompressedData, table.ColUncompressedData}[f.source]
	op.report.Fallback = f.source == sourceGzip

	if r.maskCol != nil {
		mask, err := r.maskCol.Get(row)
		if err != nil {
			return err
		}
		f.mask = mask
	}

	return nil
}

// decode is the tile buffer source: it turns the fetched blob into pixels.
func (r *reader) decode(f *fetched, t tile.Tile) (buffer.Buffer, error) {
	s := r.settings
	switch f.source {
	case sourceGzip:
		return r.fallback.Decompress(f.blob, t.Len(), s.Kind, t.Extent)
	case sourceRaw:
		return buffer.FromBytes(s.Kind, f.blob, t.Len())
	}

	kind := s.Kind
	if r.quant {
		kind = format.KindInt32
	}

	return r.codec.Decompress(f.blob, t.Len(), kind, t.Extent)
}

func (r *reader) coding(op *operation, f *fetched) error {
	if _, err := op.buf.Data(); err != nil {
		return err
	}
	if len(f.mask) == 0 {
		return nil
	}

	t := op.Tile()
	nulls, err := nullmask.DecodeColumn(f.mask, t.Len(), r.mask, t.Extent)
	if err != nil {
		return err
	}
	f.nulls = nulls

	return nil
}

// transforming dequantizes scaled tiles and marks undefined pixels.
func (r *reader) transforming(op *operation, f *fetched) error {
	data, err := op.buf.Data()
	if err != nil {
		return err
	}
	t := op.Tile()
	s := r.settings

	if r.quant && f.source == sourceCompressed {
		ints, ok := buffer.As[int32](data)
		if !ok {
			return errors.Wrapf(errs.ErrKindMismatch, "quantized tile decoded as %s", data.Kind())
		}
		p, blank, err := r.tileParams(t.Index)
		if err != nil {
			return err
		}

		var sentinel nullmask.Mask
		if blank != nil && *blank != int64(quant.NullValue) {
			sentinel = nullmask.Scan(data, *blank)
		}
		out, err := quant.Dequantize(ints, s.Kind, p, s.Quant.Method, s.Quant.DitherSeed, t.Index)
		if err != nil {
			return err
		}
		if err := nullmask.Restore(out, sentinel, nil); err != nil {
			return err
		}
		data = out
		op.report.Quantized = true
		op.report.Params = p
	}

	if err := nullmask.Restore(data, f.nulls, s.Blank); err != nil {
		return err
	}
	op.report.Nulls = f.nulls.Len()
	op.buf.Set(data)

	return nil
}

// tileParams returns ZSCALE, ZZERO and ZBLANK for one tile, from the
// per-tile columns when present and the keywords otherwise.
func (r *reader) tileParams(row int) (quant.Params, *int64, error) {
	p := quant.Params{Scale: r.scale, Zero: r.zero}
	var err error
	if r.scaleCol != nil {
		if p.Scale, err = r.scaleCol.Float(row); err != nil {
			return p, nil, err
		}
	}
	if r.zeroCol != nil {
		if p.Zero, err = r.zeroCol.Float(row); err != nil {
			return p, nil, err
		}
	}

	blank := r.settings.Blank
	if r.blankCol != nil {
		v, err := r.blankCol.Int(row)
		if err != nil {
			return p, nil, err
		}
		blank = &v
	}

	return p, blank, nil
}

func committing(op *operation, img *ndimage.Image) error {
	data, err := op.buf.Data()
	if err != nil {
		return err
	}

	return tile.Insert(img.Data, img.Axes, op.Tile(), data)
}
