// Package tiled drives the FITS tiled image compression convention over a
// whole image.
//
// A Compressor splits an image into tiles, runs one tile operation per tile
// on a bounded worker pool and stores the compressed tiles in a binary table
// whose heap holds one blob per tile. A Decompressor reverses the pipeline.
//
// Each tile operation moves through a fixed sequence of states. On write:
//
//	Pending → Buffering → Transforming → Coding → Committing → Done
//
// and on read Coding comes before Transforming. Any step error moves the
// operation to Failed and is reported as an *errs.TileError carrying the
// tile index and the state it failed in.
//
// Heap layout is deterministic: finished blobs are kept per tile and appended
// to the heap in tile index order once every worker has returned, so the
// bytes written for an image do not depend on the number of workers.
//
// Basic usage:
//
//	c, err := tiled.NewCompressor(
//	    tiled.WithCompression(format.CompressionRice),
//	    tiled.WithTileDims(100, 100),
//	)
//	res, err := c.Compress(ctx, img)
//	hdr := tiled.Keywords(res)
//
//	d, err := tiled.NewDecompressor()
//	out, report, err := d.Decompress(ctx, hdr, res.Table)
package tiled
