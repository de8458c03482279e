package codec

import (
	"fmt"
	"math/bits"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/bitio"
)

var hcMagic = [2]byte{0xDD, 0x99}

// Huffman codes for the 4-bit quadtree symbols, packed low bit first.
var (
	hcCode  = [16]uint32{0x3e, 0x00, 0x01, 0x08, 0x02, 0x09, 0x1a, 0x1b, 0x03, 0x1c, 0x0a, 0x1d, 0x0b, 0x1e, 0x3f, 0x0c}
	hcNCode = [16]uint{6, 3, 3, 4, 3, 4, 5, 5, 3, 5, 4, 5, 4, 5, 6, 4}
)

// HCompress implements HCOMPRESS_1: an H-transform of the 2-D tile, optional
// digitization by Scale, and quadtree coding of the coefficient bit planes.
type HCompress struct {
	scale  int
	smooth bool
}

var (
	_ Codec         = (*HCompress)(nil)
	_ Parameterized = (*HCompress)(nil)
)

func NewHCompress(cfg Config) *HCompress {
	return &HCompress{scale: cfg.Scale, smooth: cfg.Smooth}
}

func (h *HCompress) Type() format.CompressionType { return format.CompressionHCompress }

func (h *HCompress) Params() []Param {
	smooth := int64(0)
	if h.smooth {
		smooth = 1
	}

	return []Param{
		{Name: "SCALE", Value: int64(h.scale)},
		{Name: "SMOOTH", Value: smooth},
	}
}

// planeDims returns the number of rows and the row length of a tile. Axes
// beyond the second must have extent 1.
func planeDims(shape []int) (rows, cols int, err error) {
	if len(shape) < 2 {
		return 0, 0, fmt.Errorf("hcompress: %d-D tile: %w", len(shape), errs.ErrUnsupportedRank)
	}
	for i := 2; i < len(shape); i++ {
		if shape[i] != 1 {
			return 0, 0, fmt.Errorf("hcompress: axis %d has extent %d: %w", i+1, shape[i], errs.ErrUnsupportedRank)
		}
	}
	if shape[0] < 2 || shape[1] < 2 {
		return 0, 0, fmt.Errorf("hcompress: %dx%d tile is not two-dimensional: %w",
			shape[0], shape[1], errs.ErrUnsupportedRank)
	}

	return shape[1], shape[0], nil
}

func (h *HCompress) Compress(src buffer.Buffer, shape []int) ([]byte, error) {
	if err := requireInteger(format.CompressionHCompress, src.Kind()); err != nil {
		return nil, err
	}
	nx, ny, err := planeDims(shape)
	if err != nil {
		return nil, err
	}
	if nx*ny != src.Len() {
		return nil, fmt.Errorf("hcompress: tile shape %v holds %d pixels, buffer has %d: %w",
			shape, nx*ny, src.Len(), errs.ErrLengthMismatch)
	}

	a, err := buffer.Int64s(src)
	if err != nil {
		return nil, err
	}

	htrans(a, nx, ny)
	digitize(a, h.scale)

	return hcEncode(a, nx, ny, h.scale), nil
}

// log2Ceil returns ceil(log2(n)) for n >= 1, and 0 below that.
func log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}

	return bits.Len(uint(n - 1))
}

// htrans applies the forward H-transform in place. a holds nx rows of ny
// pixels.
func htrans(a []int64, nx, ny int) {
	log2n := log2Ceil(max(nx, ny))
	tmp := make([]int64, (max(nx, ny)+1)/2+1)

	shift := uint(0)
	mask := int64(-2)
	mask2 := mask << 1
	prnd := int64(1)
	prnd2 := prnd << 1
	nrnd2 := prnd2 - 1

	nxtop, nytop := nx, ny
	for k := 0; k < log2n; k++ {
		oddx, oddy := nxtop%2, nytop%2

		i := 0
		for ; i < nxtop-oddx; i += 2 {
			s00 := i * ny
			s10 := s00 + ny
			for j := 0; j < nytop-oddy; j += 2 {
				h0 := (a[s10+1] + a[s10] + a[s00+1] + a[s00]) >> shift
				hx := (a[s10+1] + a[s10] - a[s00+1] - a[s00]) >> shift
				hy := (a[s10+1] - a[s10] + a[s00+1] - a[s00]) >> shift
				hc := (a[s10+1] - a[s10] - a[s00+1] + a[s00]) >> shift

				a[s10+1] = hc
				a[s10] = roundDown(hx, prnd, 0) & mask
				a[s00+1] = roundDown(hy, prnd, 0) & mask
				a[s00] = roundDown(h0, prnd2, nrnd2) & mask2
				s00 += 2
				s10 += 2
			}
			if oddy == 1 {
				h0 := (a[s10] + a[s00]) << (1 - shift)
				hx := (a[s10] - a[s00]) << (1 - shift)
				a[s10] = roundDown(hx, prnd, 0) & mask
				a[s00] = roundDown(h0, prnd2, nrnd2) & mask2
			}
		}
		if oddx == 1 {
			s00 := i * ny
			j := 0
			for ; j < nytop-oddy; j += 2 {
				h0 := (a[s00+1] + a[s00]) << (1 - shift)
				hy := (a[s00+1] - a[s00]) << (1 - shift)
				a[s00+1] = roundDown(hy, prnd, 0) & mask
				a[s00] = roundDown(h0, prnd2, nrnd2) & mask2
				s00 += 2
			}
			if oddy == 1 {
				h0 := a[s00] << (2 - shift)
				a[s00] = roundDown(h0, prnd2, nrnd2) & mask2
			}
		}

		for i := 0; i < nxtop; i++ {
			shuffle(a[ny*i:], nytop, 1, tmp)
		}
		for j := 0; j < nytop; j++ {
			shuffle(a[j:], nxtop, ny, tmp)
		}

		nxtop = (nxtop + 1) >> 1
		nytop = (nytop + 1) >> 1
		shift = 1
		mask = mask2
		prnd = prnd2
		mask2 <<= 1
		prnd2 <<= 1
		nrnd2 = prnd2 - 1
	}
}

// roundDown adds pos to non-negative values and neg to negative ones.
func roundDown(v, pos, neg int64) int64 {
	if v >= 0 {
		return v + pos
	}

	return v + neg
}

// shuffle moves the odd elements of the n-element stride-n2 vector in a to
// its second half.
func shuffle(a []int64, n, n2 int, tmp []int64) {
	t := 0
	for i := 1; i < n; i += 2 {
		tmp[t] = a[i*n2]
		t++
	}
	p1 := n2
	for i := 2; i < n; i += 2 {
		a[p1] = a[i*n2]
		p1 += n2
	}
	t = 0
	for i := 1; i < n; i += 2 {
		a[p1] = tmp[t]
		p1 += n2
		t++
	}
}

// digitize divides every coefficient by scale, rounding half away from zero.
func digitize(a []int64, scale int) {
	if scale <= 1 {
		return
	}
	s := int64(scale)
	d := (s+1)/2 - 1
	for i, v := range a {
		if v > 0 {
			a[i] = (v + d) / s
		} else {
			a[i] = (v - d) / s
		}
	}
}

func hcEncode(a []int64, nx, ny, scale int) []byte {
	nel := nx * ny
	w := bitio.NewWriter(nel/2 + 64)

	w.WriteBits(uint32(hcMagic[0]), 8)
	w.WriteBits(uint32(hcMagic[1]), 8)
	w.WriteBits(uint32(int32(nx)), 32)
	w.WriteBits(uint32(int32(ny)), 32)
	w.WriteBits(uint32(int32(scale)), 32)
	sum := uint64(a[0])
	w.WriteBits(uint32(sum>>32), 32)
	w.WriteBits(uint32(sum), 32)
	a[0] = 0

	// sign bits of the non-zero coefficients, replaced by magnitudes
	signs := bitio.NewWriter((nel + 7) / 8)
	for i, v := range a {
		switch {
		case v > 0:
			signs.WriteBits(0, 1)
		case v < 0:
			signs.WriteBits(1, 1)
			a[i] = -v
		}
	}

	nx2, ny2 := (nx+1)/2, (ny+1)/2
	var vmax [3]int64
	for k := 0; k < nx; k++ {
		for j := 0; j < ny; j++ {
			q := 0
			if j >= ny2 {
				q++
			}
			if k >= nx2 {
				q++
			}
			vmax[q] = max(vmax[q], a[k*ny+j])
		}
	}
	var planes [3]int
	for q := range vmax {
		planes[q] = bits.Len64(uint64(vmax[q]))
		w.WriteBits(uint32(planes[q]), 8)
	}

	qtreeEncode(w, a, ny, nx2, ny2, planes[0])
	qtreeEncode(w, a[ny2:], ny, nx2, ny/2, planes[1])
	qtreeEncode(w, a[ny*nx2:], ny, nx/2, ny2, planes[1])
	qtreeEncode(w, a[ny*nx2+ny2:], ny, nx/2, ny/2, planes[2])
	w.WriteBits(0, 4)

	out := w.Bytes()

	return append(out, signs.Bytes()...)
}

// qtreeEncode codes the bit planes of the nqx by nqy block of a whose rows
// are n apart.
func qtreeEncode(w *bitio.Writer, a []int64, n, nqx, nqy, nbitplanes int) {
	log2n := log2Ceil(max(nqx, nqy))
	nqx2, nqy2 := (nqx+1)/2, (nqy+1)/2
	bmax := (nqx2*nqy2 + 1) / 2
	scratch := make([]byte, max(2*bmax, nqx2*nqy2, 1))

	for bit := nbitplanes - 1; bit >= 0; bit-- {
		enc := quadCodeBuffer{bmax: bmax}

		qtreeOneBit(a, n, nqx, nqy, scratch, uint(bit))
		nx, ny := (nqx+1)>>1, (nqy+1)>>1
		direct := enc.copy(scratch[:nx*ny])
		for k := 1; k < log2n && !direct; k++ {
			qtreeReduce(scratch, ny, nx, ny, scratch)
			nx, ny = (nx+1)>>1, (ny+1)>>1
			direct = enc.copy(scratch[:nx*ny])
		}

		if direct {
			writeBitmapDirect(w, a, n, nqx, nqy, scratch, uint(bit))
			continue
		}

		w.WriteBits(0xF, 4)
		switch {
		case enc.pending > 0:
			w.WriteBits(uint32(enc.bits)&(1<<enc.pending-1), enc.pending)
		case len(enc.out) == 0:
			w.WriteBits(hcCode[0], hcNCode[0])
		}
		for i := len(enc.out) - 1; i >= 0; i-- {
			w.WriteBits(uint32(enc.out[i]), 8)
		}
	}
}

// quadCodeBuffer collects Huffman codes low bit first; the bytes are written
// out in reverse order so the decoder meets the coarsest level first.
type quadCodeBuffer struct {
	out     []byte
	bits    uint64
	pending uint
	bmax    int
}

// copy appends the codes of the non-zero symbols and reports whether the
// quadtree has grown past the size of a direct bitmap.
func (q *quadCodeBuffer) copy(sym []byte) bool {
	for _, s := range sym {
		if s == 0 {
			continue
		}
		q.bits |= uint64(hcCode[s]) << q.pending
		q.pending += hcNCode[s]
		if q.pending >= 8 {
			q.out = append(q.out, byte(q.bits))
			if len(q.out) >= q.bmax {
				return true
			}
			q.bits >>= 8
			q.pending -= 8
		}
	}

	return false
}

func writeBitmapDirect(w *bitio.Writer, a []int64, n, nqx, nqy int, scratch []byte, bit uint) {
	w.WriteBits(0, 4)
	qtreeOneBit(a, n, nqx, nqy, scratch, bit)
	for _, s := range scratch[:((nqx+1)/2)*((nqy+1)/2)] {
		w.WriteBits(uint32(s), 4)
	}
}

func bitOf(v int64, bit uint) byte {
	return byte(v>>bit) & 1
}

// qtreeOneBit gathers bit plane bit of each 2x2 block of a into one 4-bit
// symbol of b.
func qtreeOneBit(a []int64, n, nx, ny int, b []byte, bit uint) {
	k := 0
	i := 0
	for ; i < nx-1; i += 2 {
		s00 := n * i
		s10 := s00 + n
		j := 0
		for ; j < ny-1; j += 2 {
			b[k] = bitOf(a[s10+1], bit) | bitOf(a[s10], bit)<<1 | bitOf(a[s00+1], bit)<<2 | bitOf(a[s00], bit)<<3
			k++
			s00 += 2
			s10 += 2
		}
		if j < ny {
			b[k] = bitOf(a[s10], bit)<<1 | bitOf(a[s00], bit)<<3
			k++
		}
	}
	if i < nx {
		s00 := n * i
		j := 0
		for ; j < ny-1; j += 2 {
			b[k] = bitOf(a[s00+1], bit)<<2 | bitOf(a[s00], bit)<<3
			k++
			s00 += 2
		}
		if j < ny {
			b[k] = bitOf(a[s00], bit) << 3
		}
	}
}

func nonZero(v byte) byte {
	if v != 0 {
		return 1
	}

	return 0
}

// qtreeReduce ORs each 2x2 block of symbols into a single presence symbol.
// b may alias a.
func qtreeReduce(a []byte, n, nx, ny int, b []byte) {
	k := 0
	i := 0
	for ; i < nx-1; i += 2 {
		s00 := n * i
		s10 := s00 + n
		j := 0
		for ; j < ny-1; j += 2 {
			b[k] = nonZero(a[s10+1]) | nonZero(a[s10])<<1 | nonZero(a[s00+1])<<2 | nonZero(a[s00])<<3
			k++
			s00 += 2
			s10 += 2
		}
		if j < ny {
			b[k] = nonZero(a[s10])<<1 | nonZero(a[s00])<<3
			k++
		}
	}
	if i < nx {
		s00 := n * i
		j := 0
		for ; j < ny-1; j += 2 {
			b[k] = nonZero(a[s00+1])<<2 | nonZero(a[s00])<<3
			k++
			s00 += 2
		}
		if j < ny {
			b[k] = nonZero(a[s00]) << 3
		}
	}
}

// clampTo limits v to the range of an integer kind.
func clampTo(kind format.ElementKind, v int64) int64 {
	lo, hi := buffer.IntRange(kind)
	return min(max(v, lo), hi)
}
