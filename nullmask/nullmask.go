// Package nullmask finds undefined pixels in a tile and puts them back after
// a round trip.
//
// A float pixel is undefined when it is NaN; an integer pixel is undefined
// when it equals the image BLANK value. The positions are carried through
// compression either as a reserved value inside the pixel data or as a
// separately compressed NULL_PIXEL_MASK column.
package nullmask

import (
	"fmt"
	"math"
	"slices"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
)

// Mask is an ascending list of tile-local flat indices of undefined pixels.
type Mask []int

func (m Mask) Len() int { return len(m) }

func (m Mask) Empty() bool { return len(m) == 0 }

// Contains reports whether index i is undefined.
func (m Mask) Contains(i int) bool {
	_, found := slices.BinarySearch(m, i)
	return found
}

// Detect scans buf for undefined pixels. blank is the integer sentinel and
// is ignored for float buffers; a nil blank means integer buffers have no
// undefined pixels.
func Detect(buf buffer.Buffer, blank *int64) Mask {
	switch s := buf.(type) {
	case buffer.Of[float32]:
		return scanFloat(s)
	case buffer.Of[float64]:
		return scanFloat(s)
	}
	if blank == nil {
		return nil
	}

	return Scan(buf, *blank)
}

func scanFloat[T float32 | float64](s []T) Mask {
	var m Mask
	for i, v := range s {
		if math.IsNaN(float64(v)) {
			m = append(m, i)
		}
	}

	return m
}

func scanInt[T uint8 | int16 | int32 | int64](s []T, sentinel int64) Mask {
	var m Mask
	for i, v := range s {
		if int64(v) == sentinel {
			m = append(m, i)
		}
	}

	return m
}

// Scan returns the positions whose value equals sentinel. Float buffers are
// scanned for NaN instead.
func Scan(buf buffer.Buffer, sentinel int64) Mask {
	switch s := buf.(type) {
	case buffer.Of[uint8]:
		return scanInt(s, sentinel)
	case buffer.Of[int16]:
		return scanInt(s, sentinel)
	case buffer.Of[int32]:
		return scanInt(s, sentinel)
	case buffer.Of[int64]:
		return scanInt(s, sentinel)
	case buffer.Of[float32]:
		return scanFloat(s)
	case buffer.Of[float64]:
		return scanFloat(s)
	}

	return nil
}

func fill[T buffer.Number](s []T, m Mask, v T) error {
	for _, i := range m {
		if i < 0 || i >= len(s) {
			return fmt.Errorf("mask index %d outside tile of %d pixels: %w", i, len(s), errs.ErrLengthMismatch)
		}
		s[i] = v
	}

	return nil
}

// Substitute writes value at every masked position of an integer buffer.
func Substitute(buf buffer.Buffer, m Mask, value int64) error {
	if m.Empty() {
		return nil
	}
	lo, hi := buffer.IntRange(buf.Kind())
	if !buf.Kind().IsInteger() || value < lo || value > hi {
		return fmt.Errorf("null value %d for %s pixels: %w", value, buf.Kind(), errs.ErrValueOutOfRange)
	}

	switch s := buf.(type) {
	case buffer.Of[uint8]:
		return fill(s, m, uint8(value))
	case buffer.Of[int16]:
		return fill(s, m, int16(value))
	case buffer.Of[int32]:
		return fill(s, m, int32(value))
	case buffer.Of[int64]:
		return fill(s, m, value)
	}

	return nil
}

// Restore marks every masked position undefined: NaN for float buffers,
// blank for integer buffers.
func Restore(buf buffer.Buffer, m Mask, blank *int64) error {
	if m.Empty() {
		return nil
	}

	switch s := buf.(type) {
	case buffer.Of[float32]:
		return fill(s, m, float32(math.NaN()))
	case buffer.Of[float64]:
		return fill(s, m, math.NaN())
	}
	if blank == nil {
		return fmt.Errorf("integer image has undefined pixels but no BLANK value: %w", errs.ErrInvalidOption)
	}

	return Substitute(buf, m, *blank)
}
