// Package ndimage holds an N-dimensional image in FITS axis order.
package ndimage

import (
	"fmt"
	"slices"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Image is an N-dimensional array of one element kind. Axes[0] is NAXIS1,
// the fastest varying axis. Blank is the BLANK value of an integer image, or
// nil if it has none.
type Image struct {
	Axes  []int
	Data  buffer.Buffer
	Blank *int64
}

// New allocates a zeroed image.
func New(kind format.ElementKind, axes ...int) (*Image, error) {
	n, err := pixels(axes)
	if err != nil {
		return nil, err
	}
	data, err := buffer.New(kind, n)
	if err != nil {
		return nil, err
	}

	return &Image{Axes: slices.Clone(axes), Data: data}, nil
}

// FromSlice wraps data as an image without copying.
func FromSlice[T buffer.Number](data []T, axes ...int) (*Image, error) {
	img := &Image{Axes: slices.Clone(axes), Data: buffer.Wrap(data)}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	return img, nil
}

// WithBlank sets the BLANK value and returns the image.
func (img *Image) WithBlank(blank int64) *Image {
	img.Blank = &blank
	return img
}

func pixels(axes []int) (int, error) {
	if len(axes) == 0 {
		return 0, fmt.Errorf("image has no axes: %w", errs.ErrInvalidGeometry)
	}
	n := 1
	for i, a := range axes {
		if a <= 0 {
			return 0, fmt.Errorf("NAXIS%d = %d: %w", i+1, a, errs.ErrInvalidGeometry)
		}
		n *= a
	}

	return n, nil
}

// Validate checks that the axes are positive and match the data length.
func (img *Image) Validate() error {
	n, err := pixels(img.Axes)
	if err != nil {
		return err
	}
	if img.Data == nil {
		return fmt.Errorf("image has no data: %w", errs.ErrLengthMismatch)
	}
	if img.Data.Len() != n {
		return fmt.Errorf("axes %v need %d pixels, data has %d: %w", img.Axes, n, img.Data.Len(), errs.ErrLengthMismatch)
	}
	if img.Blank != nil && img.Data.Kind().IsFloat() {
		return fmt.Errorf("BLANK on a %s image: %w", img.Data.Kind(), errs.ErrInvalidOption)
	}

	return nil
}

func (img *Image) Kind() format.ElementKind { return img.Data.Kind() }

func (img *Image) Len() int { return img.Data.Len() }

// Index returns the flat index of a pixel given one coordinate per axis.
func (img *Image) Index(coords ...int) (int, error) {
	if len(coords) != len(img.Axes) {
		return 0, fmt.Errorf("%d coordinates for %d axes: %w", len(coords), len(img.Axes), errs.ErrInvalidGeometry)
	}
	idx, stride := 0, 1
	for ax, c := range coords {
		if c < 0 || c >= img.Axes[ax] {
			return 0, fmt.Errorf("coordinate %d on axis %d of %d: %w", c, ax+1, img.Axes[ax], errs.ErrInvalidGeometry)
		}
		idx += c * stride
		stride *= img.Axes[ax]
	}

	return idx, nil
}
