// Package fitstile compresses n-dimensional images into FITS tile-compressed
// binary tables and back.
//
// An image is cut into a regular grid of tiles. Every tile is compressed on
// its own with one of the FITS algorithms (RICE_1, GZIP_1, GZIP_2,
// HCOMPRESS_1, PLIO_1 or NOCOMPRESS) and stored as one row of a binary
// table whose variable-length cells point into a shared heap. Floating-point
// tiles are usually quantized to scaled integers first, with optional
// subtractive dithering, which makes them lossy but far more compressible.
//
// # Core Features
//
//   - Tiles are compressed concurrently on a bounded worker pool
//   - Deterministic output: the heap layout does not depend on scheduling
//   - Undefined pixels kept as a reserved integer or in a NULL_PIXEL_MASK column
//   - Lossless GZIP_1 fallback for float tiles that cannot be quantized
//   - Abort-on-first or collect-all tile failure handling
//   - Optional structured logging and Prometheus metrics
//
// # Basic Usage
//
// Compressing a float image with the default settings (RICE_1, dithered
// quantization, row-by-row tiles):
//
//	img, _ := ndimage.FromSlice(pixels, 1024, 1024)
//	enc, err := fitstile.Encode(ctx, img)
//	if err != nil {
//	    return err
//	}
//	// enc.Header holds the Z keywords and table structure keywords,
//	// enc.Data the table rows followed by the heap.
//
// Decoding it again:
//
//	img, err := fitstile.Decode(ctx, enc.Header, enc.Data)
//
// # Package Structure
//
// This package wraps the tiled package for the common cases. The tiled
// package exposes the per-tile reports, the binary table and the Settings
// carried by the Z keywords; table, codec and quant hold the building
// blocks.
package fitstile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/config"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/ndimage"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/table"
	"github.com/arloliu/fitstile/tiled"
)

// Encoded is a compressed image ready to be written as a FITS binary table
// extension.
type Encoded struct {
	// Header holds the Z keywords followed by NAXIS1, NAXIS2, PCOUNT,
	// TFIELDS, TTYPEn, TFORMn and THEAP.
	Header table.Header
	// Data is the main table followed by the heap.
	Data   []byte
	Stats  tiled.Stats
	Report *tiled.Report
}

// NewCompressor creates a compressor with custom options.
//
// Available options include:
//   - tiled.WithCompression(format.CompressionRice|Gzip1|Gzip2|HCompress|PLIO|None)
//   - tiled.WithTileDims(dims...)
//   - tiled.WithCodecOptions(codec.WithBlockSize(n), codec.WithScale(s), ...)
//   - tiled.WithQuantization(quant.Options{...})
//   - tiled.WithNullPolicy(format.NullSentinel|NullMaskColumn)
//   - tiled.WithWorkers(n), tiled.WithFailurePolicy(p)
//   - tiled.WithLogger(l), tiled.WithMetrics(m)
func NewCompressor(opts ...tiled.Option) (*tiled.Compressor, error) {
	return tiled.NewCompressor(opts...)
}

// NewDefaultCompressor creates a compressor with the conventional settings:
// RICE_1 with 32-pixel blocks, row-by-row tiles, SUBTRACTIVE_DITHER_1
// quantization at 4 levels per noise sigma and ZBLANK for undefined pixels.
func NewDefaultCompressor() (*tiled.Compressor, error) {
	return tiled.NewCompressor()
}

// NewLosslessCompressor creates a compressor that reproduces every pixel
// bit for bit. Float images are stored unquantized with GZIP_2, integer
// images with RICE_1.
func NewLosslessCompressor(kind format.ElementKind, opts ...tiled.Option) (*tiled.Compressor, error) {
	base := []tiled.Option{tiled.WithCompression(format.CompressionRice)}
	if kind.IsFloat() {
		base = []tiled.Option{
			tiled.WithCompression(format.CompressionGzip2),
			tiled.WithQuantization(quant.Options{Method: format.QuantizeOff}),
		}
	}

	return tiled.NewCompressor(append(base, opts...)...)
}

// NewHCompressCompressor creates an HCOMPRESS_1 compressor with 2-D tiles of
// the given size. A scale above 1 makes the compression lossy; undefined
// pixels are then kept in a NULL_PIXEL_MASK column.
func NewHCompressCompressor(nx, ny, scale int, opts ...tiled.Option) (*tiled.Compressor, error) {
	base := []tiled.Option{
		tiled.WithCompression(format.CompressionHCompress),
		tiled.WithTileDims(nx, ny),
		tiled.WithCodecOptions(codec.WithScale(scale)),
	}
	if scale > 1 {
		base = append(base, tiled.WithNullPolicy(format.NullMaskColumn))
	}

	return tiled.NewCompressor(append(base, opts...)...)
}

// NewDecompressor creates a decompressor. Only the worker, failure policy,
// logger and metrics options apply.
func NewDecompressor(opts ...tiled.Option) (*tiled.Decompressor, error) {
	return tiled.NewDecompressor(opts...)
}

// Encode compresses img and serializes the resulting table.
func Encode(ctx context.Context, img *ndimage.Image, opts ...tiled.Option) (*Encoded, error) {
	c, err := tiled.NewCompressor(opts...)
	if err != nil {
		return nil, err
	}

	return EncodeWith(ctx, c, img)
}

// EncodeWith is Encode with a prepared compressor.
func EncodeWith(ctx context.Context, c *tiled.Compressor, img *ndimage.Image) (*Encoded, error) {
	res, err := c.Compress(ctx, img)
	if err != nil {
		return nil, err
	}
	data, err := res.Table.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serialize tile table")
	}

	return &Encoded{
		Header: tiled.Keywords(res),
		Data:   data,
		Stats:  res.Stats,
		Report: res.Report,
	}, nil
}

// Decode parses a serialized table described by hdr and rebuilds the image.
func Decode(ctx context.Context, hdr table.Header, data []byte, opts ...tiled.Option) (*ndimage.Image, error) {
	layout, err := hdr.Layout()
	if err != nil {
		return nil, err
	}
	tbl, err := table.UnmarshalTable(data, layout)
	if err != nil {
		return nil, err
	}
	d, err := tiled.NewDecompressor(opts...)
	if err != nil {
		return nil, err
	}
	img, _, err := d.Decompress(ctx, hdr, tbl)

	return img, err
}

// LoadOptions reads a TOML config file and returns the matching options.
// Log lines are discarded; use config.Load for finer control.
func LoadOptions(path string) ([]tiled.Option, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	return c.Options(nil, nil)
}
