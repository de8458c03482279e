package tile

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
)

// walkRows calls fn with the image offset and tile offset of every run of
// pixels along axis 0 inside t.
func walkRows(dims []int, t Tile, fn func(imgAt, tileAt, n int)) {
	rank := len(dims)
	pos := make([]int, rank) // position relative to the tile, axes 1..
	rowLen := t.Extent[0]
	tileAt := 0

	for {
		imgAt, stride := 0, 1
		for ax := range rank {
			imgAt += (t.Offset[ax] + pos[ax]) * stride
			stride *= dims[ax]
		}
		fn(imgAt, tileAt, rowLen)
		tileAt += rowLen

		ax := 1
		for ; ax < rank; ax++ {
			pos[ax]++
			if pos[ax] < t.Extent[ax] {
				break
			}
			pos[ax] = 0
		}
		if ax >= rank {
			return
		}
	}
}

func checkRegion(dims []int, t Tile, imgLen int) error {
	if len(t.Offset) != len(dims) || len(t.Extent) != len(dims) {
		return fmt.Errorf("%s does not match %d-D image: %w", t, len(dims), errs.ErrInvalidGeometry)
	}
	n := 1
	for ax, d := range dims {
		if t.Offset[ax] < 0 || t.Extent[ax] <= 0 || t.Offset[ax]+t.Extent[ax] > d {
			return fmt.Errorf("%s outside image %v: %w", t, dims, errs.ErrInvalidGeometry)
		}
		n *= d
	}
	if n != imgLen {
		return fmt.Errorf("image %v needs %d pixels, buffer has %d: %w", dims, n, imgLen, errs.ErrLengthMismatch)
	}

	return nil
}

func extract[T buffer.Number](img []T, dims []int, t Tile) buffer.Of[T] {
	out := make(buffer.Of[T], t.Len())
	walkRows(dims, t, func(imgAt, tileAt, n int) {
		copy(out[tileAt:tileAt+n], img[imgAt:imgAt+n])
	})

	return out
}

func insert[T buffer.Number](img []T, dims []int, t Tile, src []T) {
	walkRows(dims, t, func(imgAt, tileAt, n int) {
		copy(img[imgAt:imgAt+n], src[tileAt:tileAt+n])
	})
}

// Extract copies the pixels of t out of an image into a new buffer.
func Extract(img buffer.Buffer, dims []int, t Tile) (buffer.Buffer, error) {
	if err := checkRegion(dims, t, img.Len()); err != nil {
		return nil, err
	}

	switch s := img.(type) {
	case buffer.Of[uint8]:
		return extract(s, dims, t), nil
	case buffer.Of[int16]:
		return extract(s, dims, t), nil
	case buffer.Of[int32]:
		return extract(s, dims, t), nil
	case buffer.Of[int64]:
		return extract(s, dims, t), nil
	case buffer.Of[float32]:
		return extract(s, dims, t), nil
	case buffer.Of[float64]:
		return extract(s, dims, t), nil
	}

	return nil, fmt.Errorf("extract from %s image: %w", img.Kind(), errs.ErrKindMismatch)
}

// Insert copies src, the pixels of t, into their place in an image.
func Insert(img buffer.Buffer, dims []int, t Tile, src buffer.Buffer) error {
	if err := checkRegion(dims, t, img.Len()); err != nil {
		return err
	}
	if src.Kind() != img.Kind() {
		return fmt.Errorf("%s tile into %s image: %w", src.Kind(), img.Kind(), errs.ErrKindMismatch)
	}
	if src.Len() != t.Len() {
		return fmt.Errorf("%s needs %d pixels, got %d: %w", t, t.Len(), src.Len(), errs.ErrLengthMismatch)
	}

	switch s := img.(type) {
	case buffer.Of[uint8]:
		insert(s, dims, t, src.(buffer.Of[uint8]))
	case buffer.Of[int16]:
		insert(s, dims, t, src.(buffer.Of[int16]))
	case buffer.Of[int32]:
		insert(s, dims, t, src.(buffer.Of[int32]))
	case buffer.Of[int64]:
		insert(s, dims, t, src.(buffer.Of[int64]))
	case buffer.Of[float32]:
		insert(s, dims, t, src.(buffer.Of[float32]))
	case buffer.Of[float64]:
		insert(s, dims, t, src.(buffer.Of[float64]))
	}

	return nil
}
