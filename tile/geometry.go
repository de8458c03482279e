// Package tile splits an N-dimensional image into rectangular tiles and moves
// pixels between an image and its tiles.
//
// Axes are in FITS order: axis 0 (NAXIS1) varies fastest in memory, and tiles
// are numbered the same way, so tile 1 is the neighbour of tile 0 along
// axis 0.
package tile

import (
	"fmt"
	"iter"
	"slices"

	"github.com/arloliu/fitstile/errs"
)

// Tile is one rectangular piece of an image.
type Tile struct {
	Index  int   // position in storage order
	Offset []int // first pixel per axis
	Extent []int // pixels per axis
}

// Len returns the number of pixels in the tile.
func (t Tile) Len() int {
	n := 1
	for _, e := range t.Extent {
		n *= e
	}

	return n
}

func (t Tile) String() string {
	return fmt.Sprintf("tile %d at %v size %v", t.Index, t.Offset, t.Extent)
}

// Geometry is the tiling of an image. It is immutable.
type Geometry struct {
	dims     []int
	tileDims []int
	counts   []int
	total    int
}

// NewGeometry computes the tiling of an image of dims pixels with tiles of
// tileDims pixels. Both must have the same positive length and only positive
// entries. The last tile along an axis may be smaller than tileDims.
func NewGeometry(dims, tileDims []int) (*Geometry, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("image has no axes: %w", errs.ErrInvalidGeometry)
	}
	if len(dims) != len(tileDims) {
		return nil, fmt.Errorf("%d image axes but %d tile axes: %w", len(dims), len(tileDims), errs.ErrInvalidGeometry)
	}

	g := &Geometry{
		dims:     slices.Clone(dims),
		tileDims: slices.Clone(tileDims),
		counts:   make([]int, len(dims)),
		total:    1,
	}
	for i := range dims {
		if dims[i] <= 0 {
			return nil, fmt.Errorf("axis %d has %d pixels: %w", i+1, dims[i], errs.ErrInvalidGeometry)
		}
		if tileDims[i] <= 0 {
			return nil, fmt.Errorf("axis %d tile size %d: %w", i+1, tileDims[i], errs.ErrInvalidGeometry)
		}
		g.counts[i] = (dims[i] + tileDims[i] - 1) / tileDims[i]
		g.total *= g.counts[i]
	}

	return g, nil
}

// DefaultTileDims returns row-by-row tiling: a whole first axis per tile and
// one pixel along every other axis.
func DefaultTileDims(dims []int) []int {
	out := make([]int, len(dims))
	for i := range out {
		out[i] = 1
	}
	if len(dims) > 0 {
		out[0] = dims[0]
	}

	return out
}

// PlaneTileRows is the preferred tile height for codecs that work on 2-D
// planes.
const PlaneTileRows = 16

// PlaneTileDims returns the default tiling for plane codecs: whole rows, a
// block of up to PlaneTileRows rows, and one pixel along every higher axis.
// The block height is nudged so that the last tile never has a single row.
func PlaneTileDims(dims []int) ([]int, error) {
	if len(dims) < 2 || dims[0] < 2 || dims[1] < 2 {
		return nil, fmt.Errorf("image axes %v have no plane of at least 2x2: %w", dims, errs.ErrInvalidGeometry)
	}

	out := DefaultTileDims(dims)
	out[1] = planeRows(dims[1])

	return out, nil
}

func planeRows(ny int) int {
	if ny <= PlaneTileRows {
		return ny
	}
	for rows := PlaneTileRows; rows <= PlaneTileRows+PlaneTileRows/2; rows++ {
		if ny%rows != 1 {
			return rows
		}
	}
	for rows := PlaneTileRows - 1; rows >= 2; rows-- {
		if ny%rows != 1 {
			return rows
		}
	}

	return ny
}

func (g *Geometry) Dims() []int { return slices.Clone(g.dims) }

func (g *Geometry) TileDims() []int { return slices.Clone(g.tileDims) }

// Counts returns the number of tiles along each axis.
func (g *Geometry) Counts() []int { return slices.Clone(g.counts) }

// Count returns the total number of tiles.
func (g *Geometry) Count() int { return g.total }

// Pixels returns the number of pixels in the image.
func (g *Geometry) Pixels() int {
	n := 1
	for _, d := range g.dims {
		n *= d
	}

	return n
}

// Tile returns tile i in storage order.
func (g *Geometry) Tile(i int) (Tile, error) {
	if i < 0 || i >= g.total {
		return Tile{}, fmt.Errorf("tile %d of %d: %w", i, g.total, errs.ErrInvalidGeometry)
	}

	t := Tile{
		Index:  i,
		Offset: make([]int, len(g.dims)),
		Extent: make([]int, len(g.dims)),
	}
	rem := i
	for ax := range g.dims {
		pos := rem % g.counts[ax]
		rem /= g.counts[ax]

		t.Offset[ax] = pos * g.tileDims[ax]
		t.Extent[ax] = min(g.tileDims[ax], g.dims[ax]-t.Offset[ax])
	}

	return t, nil
}

// Tiles yields every tile in storage order.
func (g *Geometry) Tiles() iter.Seq[Tile] {
	return func(yield func(Tile) bool) {
		for i := range g.total {
			t, _ := g.Tile(i)
			if !yield(t) {
				return
			}
		}
	}
}

// Covers checks that the tiles lie inside the image and that their pixel
// counts add up to the image size.
func (g *Geometry) Covers() error {
	sum := 0
	for t := range g.Tiles() {
		for ax := range g.dims {
			if t.Offset[ax] < 0 || t.Extent[ax] <= 0 || t.Offset[ax]+t.Extent[ax] > g.dims[ax] {
				return fmt.Errorf("%s leaves the image: %w", t, errs.ErrInvalidGeometry)
			}
		}
		sum += t.Len()
	}
	if sum != g.Pixels() {
		return fmt.Errorf("tiles hold %d pixels, image has %d: %w", sum, g.Pixels(), errs.ErrInvalidGeometry)
	}

	return nil
}
