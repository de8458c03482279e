package codec

import (
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// PLIOMaxValue is the exclusive upper bound of PLIO_1 pixel values.
const PLIOMaxValue = 1 << 24

// Line-list opcodes, stored in the top four bits of each 16-bit word.
const (
	plZeroRun    = 0 // run of zeros
	plSetHigh    = 1 // set high value, two words
	plIncHigh    = 2 // add to high value
	plDecHigh    = 3 // subtract from high value
	plHighRun    = 4 // run of high value pixels
	plZerosHigh  = 5 // zeros followed by one high pixel
	plIncHighOne = 6 // add to high value and emit one pixel
	plDecHighOne = 7 // subtract from high value and emit one pixel

	plMaxCount   = 4095
	plHeaderSize = 7
)

// PLIO implements PLIO_1, the IRAF pixel-list line encoding. It suits masks
// and segmentation maps with long runs of identical non-negative values.
type PLIO struct{}

var _ Codec = (*PLIO)(nil)

func NewPLIO() *PLIO { return &PLIO{} }

func (*PLIO) Type() format.CompressionType { return format.CompressionPLIO }

func (*PLIO) Compress(src buffer.Buffer, _ []int) ([]byte, error) {
	if err := requireInteger(format.CompressionPLIO, src.Kind()); err != nil {
		return nil, err
	}
	vals, err := buffer.Int64s(src)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("plio: empty tile: %w", errs.ErrLengthMismatch)
	}
	for i, v := range vals {
		if v < 0 || v >= PLIOMaxValue {
			return nil, fmt.Errorf("plio: pixel %d value %d outside [0, 2^24): %w", i, v, errs.ErrValueOutOfRange)
		}
	}

	return endian.AppendInt16s(endian.FITS(), nil, plioEncode(vals)), nil
}

func (*PLIO) Decompress(data []byte, n int, kind format.ElementKind, _ []int) (buffer.Buffer, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if err := requireInteger(format.CompressionPLIO, kind); err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("plio: odd byte count %d: %w", len(data), errs.ErrCorruptStream)
	}

	words := make([]int16, len(data)/2)
	endian.DecodeInt16s(endian.FITS(), words, data)

	vals, err := plioDecode(words, n)
	if err != nil {
		return nil, err
	}

	out, err := buffer.FromInt64s(kind, vals)
	if err != nil {
		return nil, fmt.Errorf("plio: %v: %w", err, errs.ErrCorruptStream)
	}

	return out, nil
}

func plWord(op, data int64) int16 {
	return int16(op<<12 + data)
}

// plioEncode produces a line list for px, whose values are already known to
// lie in [0, 2^24).
func plioEncode(px []int64) []int16 {
	n := len(px)
	ll := make([]int16, plHeaderSize, plHeaderSize+n/2+8)
	ll[1] = plHeaderSize
	ll[2] = -100

	pv := px[0]
	x1, iz := 0, 0
	hi := int64(1)

	for ip := 0; ip < n; ip++ {
		var nv int64
		if ip < n-1 {
			nv = px[ip+1]
			if nv == pv {
				continue
			}
			if pv == 0 {
				pv = nv
				x1 = ip + 1
				continue
			}
		} else if pv == 0 {
			x1 = n
		}

		np := ip - x1 + 1
		nz := x1 - iz
		done := false

		if pv > 0 {
			if dv := pv - hi; dv != 0 {
				hi = pv
				switch {
				case dv > plMaxCount || dv < -plMaxCount:
					ll = append(ll, plWord(plSetHigh, pv&plMaxCount), int16(pv>>12))
				case dv < 0:
					ll = append(ll, plWord(plDecHigh, -dv))
				default:
					ll = append(ll, plWord(plIncHigh, dv))
				}
				if dv >= -plMaxCount && dv <= plMaxCount && np == 1 && nz == 0 {
					// fold the single pixel into the increment word
					ll[len(ll)-1] |= plHighRun << 12
					done = true
				}
			}
		}

		if !done && nz > 0 {
			for ; nz > 0; nz -= plMaxCount {
				ll = append(ll, plWord(plZeroRun, int64(min(plMaxCount, nz))))
			}
			// a zero run of exactly 4095 cannot absorb the following pixel
			if last := len(ll) - 1; np == 1 && pv > 0 && ll[last] < plMaxCount {
				ll[last] += plZerosHigh<<12 + 1
				done = true
			}
		}

		if !done {
			for ; np > 0; np -= plMaxCount {
				ll = append(ll, plWord(plHighRun, int64(min(plMaxCount, np))))
			}
		}

		x1 = ip + 1
		iz = x1
		pv = nv
	}

	total := len(ll)
	ll[3] = int16(total % 32768)
	ll[4] = int16(total / 32768)

	return ll
}

func plioDecode(ll []int16, npix int) ([]int64, error) {
	if len(ll) < 3 {
		return nil, fmt.Errorf("plio: line list of %d words: %w", len(ll), errs.ErrCorruptStream)
	}

	var length, first int
	if ll[2] > 0 {
		// old-style header: length in word 3, data from word 4
		length, first = int(ll[2]), 3
	} else {
		if len(ll) < plHeaderSize {
			return nil, fmt.Errorf("plio: truncated header: %w", errs.ErrCorruptStream)
		}
		if ll[3] < 0 || ll[4] < 0 || ll[1] < plHeaderSize {
			return nil, fmt.Errorf("plio: malformed header: %w", errs.ErrCorruptStream)
		}
		length, first = int(ll[4])<<15+int(ll[3]), int(ll[1])
	}
	if length > len(ll) || first > length {
		return nil, fmt.Errorf("plio: header declares %d words, have %d: %w", length, len(ll), errs.ErrCorruptStream)
	}

	out := make([]int64, npix)
	op := 0
	x1 := 1
	pv := int64(1)

	for ip := first; ip < length && x1 <= npix; ip++ {
		word := ll[ip]
		if word < 0 {
			return nil, fmt.Errorf("plio: negative word at %d: %w", ip, errs.ErrCorruptStream)
		}
		opcode := int(word) >> 12
		data := int64(word) & plMaxCount

		switch opcode {
		case plZeroRun, plHighRun, plZerosHigh:
			x2 := x1 + int(data) - 1
			i2 := min(x2, npix)
			if np := i2 - x1 + 1; np > 0 {
				if opcode == plHighRun {
					for i := op; i < op+np; i++ {
						out[i] = pv
					}
				} else if opcode == plZerosHigh && i2 == x2 {
					out[op+np-1] = pv
				}
				op += np
			}
			x1 = x2 + 1
		case plSetHigh:
			if ip+1 >= length {
				return nil, fmt.Errorf("plio: set-high word without operand: %w", errs.ErrCorruptStream)
			}
			ip++
			pv = int64(ll[ip])<<12 + data
		case plIncHigh:
			pv += data
		case plDecHigh:
			pv -= data
		case plIncHighOne, plDecHighOne:
			if opcode == plIncHighOne {
				pv += data
			} else {
				pv -= data
			}
			if x1 <= npix {
				out[op] = pv
				op++
			}
			x1++
		}

		if pv < 0 || pv >= PLIOMaxValue {
			return nil, fmt.Errorf("plio: high value %d out of range: %w", pv, errs.ErrCorruptStream)
		}
	}

	return out, nil
}
