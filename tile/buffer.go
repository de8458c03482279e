package tile

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
)

// Source materializes the pixels of a tile.
type Source func(t Tile) (buffer.Buffer, error)

// ImageSource reads tiles out of an in-memory image.
func ImageSource(img buffer.Buffer, dims []int) Source {
	return func(t Tile) (buffer.Buffer, error) {
		return Extract(img, dims, t)
	}
}

// Buffer holds one tile's pixels. The pixels are fetched from its Source on
// first use and may then be replaced in place by each processing step. A
// Buffer belongs to a single tile operation and is not safe for concurrent
// use.
type Buffer struct {
	tile Tile
	src  Source
	data buffer.Buffer
}

func NewBuffer(t Tile, src Source) *Buffer {
	return &Buffer{tile: t, src: src}
}

func (b *Buffer) Tile() Tile { return b.tile }

// Shape returns the tile extents in FITS axis order.
func (b *Buffer) Shape() []int { return b.tile.Extent }

// Loaded reports whether the pixels have been materialized.
func (b *Buffer) Loaded() bool { return b.data != nil }

// Data returns the tile's pixels, materializing them if needed.
func (b *Buffer) Data() (buffer.Buffer, error) {
	if b.data != nil {
		return b.data, nil
	}
	if b.src == nil {
		return nil, fmt.Errorf("%s has no pixel source: %w", b.tile, errs.ErrInvalidOption)
	}

	data, err := b.src(b.tile)
	if err != nil {
		return nil, err
	}
	if data.Len() != b.tile.Len() {
		return nil, fmt.Errorf("%s source returned %d pixels: %w", b.tile, data.Len(), errs.ErrLengthMismatch)
	}
	b.data = data

	return data, nil
}

// Set replaces the pixels, for example with their quantized form.
func (b *Buffer) Set(data buffer.Buffer) { b.data = data }

// Release drops the pixels once the tile has been committed.
func (b *Buffer) Release() {
	b.data = nil
	b.src = nil
}
