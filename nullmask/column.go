package nullmask

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/codec"
	"github.com/arloliu/fitstile/errs"
)

// EncodeColumn compresses m as an n-pixel array of 16-bit flags, one for
// undefined and zero otherwise, ready for the NULL_PIXEL_MASK column. An
// empty mask encodes to nil.
func EncodeColumn(m Mask, n int, c codec.Codec, shape []int) ([]byte, error) {
	if m.Empty() {
		return nil, nil
	}

	flags := make([]int16, n)
	for _, i := range m {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("mask index %d outside tile of %d pixels: %w", i, n, errs.ErrLengthMismatch)
		}
		flags[i] = 1
	}

	data, err := c.Compress(buffer.Wrap(flags), shape)
	if err != nil {
		return nil, fmt.Errorf("null pixel mask: %w", err)
	}

	return data, nil
}

// DecodeColumn reverses EncodeColumn. Empty data is an empty mask.
func DecodeColumn(data []byte, n int, c codec.Codec, shape []int) (Mask, error) {
	if len(data) == 0 {
		return nil, nil
	}

	buf, err := c.Decompress(data, n, buffer.KindOf[int16](), shape)
	if err != nil {
		return nil, fmt.Errorf("null pixel mask: %w", err)
	}

	flags, err := buffer.Int64s(buf)
	if err != nil {
		return nil, err
	}

	var m Mask
	for i, v := range flags {
		if v != 0 {
			m = append(m, i)
		}
	}

	return m, nil
}
