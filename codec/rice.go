package codec

import (
	"errors"
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/bitio"
	"github.com/arloliu/fitstile/internal/pool"
)

// riceParams are the split-field widths for one integer width.
type riceParams struct {
	fsBits uint // bits used to code the split position
	fsMax  int  // split position that marks an uncoded block
	bBits  uint // integer width in bits
}

func riceParamsFor(bytePix int) riceParams {
	switch bytePix {
	case 1:
		return riceParams{fsBits: 3, fsMax: 6, bBits: 8}
	case 2:
		return riceParams{fsBits: 4, fsMax: 14, bBits: 16}
	default:
		return riceParams{fsBits: 5, fsMax: 25, bBits: 32}
	}
}

// Rice implements RICE_1. Pixels are coded as differences from their
// predecessor, wrapped to the configured width, in blocks that each choose
// the split position giving the shortest code.
type Rice struct {
	blockSize int
	bytePix   int
}

var (
	_ Codec         = (*Rice)(nil)
	_ Parameterized = (*Rice)(nil)
)

func NewRice(cfg Config) *Rice {
	return &Rice{blockSize: cfg.BlockSize, bytePix: cfg.BytePix}
}

func (r *Rice) Type() format.CompressionType { return format.CompressionRice }

func (r *Rice) Params() []Param {
	params := []Param{{Name: "BLOCKSIZE", Value: int64(r.blockSize)}}
	if r.bytePix != 0 {
		params = append(params, Param{Name: "BYTEPIX", Value: int64(r.bytePix)})
	}

	return params
}

// widthFor returns the coding width in bytes for an element kind.
func (r *Rice) widthFor(kind format.ElementKind) int {
	if r.bytePix != 0 {
		return r.bytePix
	}
	switch kind {
	case format.KindUint8:
		return 1
	case format.KindInt16:
		return 2
	default:
		return 4
	}
}

// riceRange is the value range a width can carry for a kind. Unsigned bytes
// are zero-extended on decode, every other kind is sign-extended.
func riceRange(kind format.ElementKind, bytePix int) (lo, hi int64) {
	bitsN := uint(8 * bytePix)
	if kind == format.KindUint8 {
		return 0, 1<<bitsN - 1
	}

	return -(1 << (bitsN - 1)), 1<<(bitsN-1) - 1
}

func (r *Rice) Compress(src buffer.Buffer, _ []int) ([]byte, error) {
	if err := requireInteger(format.CompressionRice, src.Kind()); err != nil {
		return nil, err
	}
	vals, err := buffer.Int64s(src)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("rice: empty tile: %w", errs.ErrLengthMismatch)
	}

	bytePix := r.widthFor(src.Kind())
	lo, hi := riceRange(src.Kind(), bytePix)
	for i, v := range vals {
		if v < lo || v > hi {
			return nil, fmt.Errorf("rice: pixel %d value %d exceeds %d-byte range: %w",
				i, v, bytePix, errs.ErrValueOutOfRange)
		}
	}

	return riceEncode(vals, r.blockSize, riceParamsFor(bytePix)), nil
}

func riceEncode(vals []int64, blockSize int, p riceParams) []byte {
	mask := uint64(1)<<p.bBits - 1
	w := bitio.NewWriter(len(vals)*int(p.bBits)/8/2 + 8)

	last := uint64(vals[0]) & mask
	w.WriteBits(uint32(last), p.bBits)

	diffs, release := pool.Int64s.Get(blockSize)
	defer release()

	for start := 0; start < len(vals); start += blockSize {
		block := min(blockSize, len(vals)-start)
		sum := 0.0
		for j := range block {
			next := uint64(vals[start+j]) & mask
			d := zigzag((next-last)&mask, p.bBits)
			diffs[j] = int64(d)
			sum += float64(d)
			last = next
		}

		// split position estimate from the mean mapped difference
		fs := 0
		dpsum := (sum - float64(block/2) - 1) / float64(block)
		if dpsum < 0 {
			dpsum = 0
		}
		if dpsum >= float64(uint64(1)<<32) {
			fs = p.fsMax
		} else {
			for psum := uint32(dpsum) >> 1; psum > 0; psum >>= 1 {
				fs++
			}
		}

		switch {
		case fs >= p.fsMax:
			w.WriteBits(uint32(p.fsMax+1), p.fsBits)
			for j := range block {
				w.WriteBits(uint32(diffs[j]), p.bBits)
			}
		case fs == 0 && sum == 0:
			w.WriteBits(0, p.fsBits)
		default:
			w.WriteBits(uint32(fs+1), p.fsBits)
			low := uint32(1)<<uint(fs) - 1
			for j := range block {
				d := uint64(diffs[j])
				w.WriteUnary(int(d >> uint(fs)))
				if fs > 0 {
					w.WriteBits(uint32(d)&low, uint(fs))
				}
			}
		}
	}

	return w.Bytes()
}

// zigzag maps a width-bit two's complement difference onto an unsigned value
// so that small magnitudes of either sign get small codes.
func zigzag(d uint64, width uint) uint64 {
	mask := uint64(1)<<width - 1
	if d>>(width-1)&1 == 1 {
		return ^(d << 1) & mask
	}

	return (d << 1) & mask
}

func unzigzag(u uint64, width uint) uint64 {
	mask := uint64(1)<<width - 1
	if u&1 == 0 {
		return (u >> 1) & mask
	}

	return ^(u >> 1) & mask
}

func (r *Rice) Decompress(data []byte, n int, kind format.ElementKind, _ []int) (buffer.Buffer, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if err := requireInteger(format.CompressionRice, kind); err != nil {
		return nil, err
	}

	bytePix := r.widthFor(kind)
	vals, err := riceDecode(data, n, r.blockSize, riceParamsFor(bytePix))
	if err != nil {
		return nil, err
	}

	width := uint(8 * bytePix)
	if kind != format.KindUint8 {
		shift := 64 - width
		for i, v := range vals {
			vals[i] = v << shift >> shift
		}
	}

	out, err := buffer.FromInt64s(kind, vals)
	if err != nil {
		return nil, fmt.Errorf("rice: %v: %w", err, errs.ErrCorruptStream)
	}

	return out, nil
}

func riceDecode(data []byte, n, blockSize int, p riceParams) ([]int64, error) {
	mask := uint64(1)<<p.bBits - 1
	rd := bitio.NewReader(data)
	out := make([]int64, n)

	first, err := rd.ReadBits(p.bBits)
	if err != nil {
		return nil, riceCorrupt(err)
	}
	last := uint64(first)

	for i := 0; i < n; {
		code, err := rd.ReadBits(p.fsBits)
		if err != nil {
			return nil, riceCorrupt(err)
		}
		fs := int(code) - 1
		end := min(i+blockSize, n)

		switch {
		case fs < 0:
			for ; i < end; i++ {
				out[i] = int64(last)
			}
		case fs == p.fsMax:
			for ; i < end; i++ {
				d, err := rd.ReadBits(p.bBits)
				if err != nil {
					return nil, riceCorrupt(err)
				}
				last = (last + unzigzag(uint64(d), p.bBits)) & mask
				out[i] = int64(last)
			}
		case fs > p.fsMax:
			return nil, fmt.Errorf("rice: block at pixel %d has split %d beyond %d: %w",
				i, fs, p.fsMax, errs.ErrCorruptStream)
		default:
			for ; i < end; i++ {
				top, err := rd.ReadUnary()
				if err != nil {
					return nil, riceCorrupt(err)
				}
				if uint(bitsLen(uint64(top)))+uint(fs) > p.bBits {
					return nil, fmt.Errorf("rice: difference overflows %d bits at pixel %d: %w",
						p.bBits, i, errs.ErrCorruptStream)
				}
				low, err := rd.ReadBits(uint(fs))
				if err != nil {
					return nil, riceCorrupt(err)
				}
				d := uint64(top)<<uint(fs) | uint64(low)
				last = (last + unzigzag(d, p.bBits)) & mask
				out[i] = int64(last)
			}
		}
	}

	return out, nil
}

func bitsLen(v uint64) int {
	n := 0
	for ; v > 0; v >>= 1 {
		n++
	}

	return n
}

func riceCorrupt(err error) error {
	if errors.Is(err, bitio.ErrUnderflow) {
		return fmt.Errorf("rice: stream ends before the last pixel: %w", errs.ErrCorruptStream)
	}

	return fmt.Errorf("rice: %v: %w", err, errs.ErrCorruptStream)
}
