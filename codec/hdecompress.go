package codec

import (
	"errors"
	"fmt"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/bitio"
)

func (h *HCompress) Decompress(data []byte, n int, kind format.ElementKind, shape []int) (buffer.Buffer, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if err := requireInteger(format.CompressionHCompress, kind); err != nil {
		return nil, err
	}
	if shape != nil {
		if _, _, err := planeDims(shape); err != nil {
			return nil, err
		}
	}

	a, nx, ny, scale, err := hcDecode(data)
	if err != nil {
		return nil, err
	}
	if nx*ny != n {
		return nil, fmt.Errorf("hcompress: stream holds %dx%d pixels, want %d: %w", nx, ny, n, errs.ErrLengthMismatch)
	}

	undigitize(a, scale)
	hinv(a, nx, ny, h.smooth, scale)

	for i, v := range a {
		a[i] = clampTo(kind, v)
	}

	return buffer.FromInt64s(kind, a)
}

// maxHCPixels bounds the tile size accepted from a stream header.
const maxHCPixels = 1 << 28

func hcCorrupt(err error) error {
	if errors.Is(err, bitio.ErrUnderflow) {
		return fmt.Errorf("hcompress: stream ends early: %w", errs.ErrCorruptStream)
	}

	return err
}

func hcDecode(data []byte) (a []int64, nx, ny, scale int, err error) {
	rd := bitio.NewReader(data)

	var hdr [5]uint32
	widths := [5]uint{8, 8, 32, 32, 32}
	for i, w := range widths {
		if hdr[i], err = rd.ReadBits(w); err != nil {
			return nil, 0, 0, 0, hcCorrupt(err)
		}
	}
	if byte(hdr[0]) != hcMagic[0] || byte(hdr[1]) != hcMagic[1] {
		return nil, 0, 0, 0, fmt.Errorf("hcompress: bad magic %#02x%02x: %w", hdr[0], hdr[1], errs.ErrCorruptStream)
	}
	nx, ny, scale = int(int32(hdr[2])), int(int32(hdr[3])), int(int32(hdr[4]))
	if nx <= 0 || ny <= 0 || nx*ny > maxHCPixels || scale < 0 {
		return nil, 0, 0, 0, fmt.Errorf("hcompress: header %dx%d scale %d: %w", nx, ny, scale, errs.ErrCorruptStream)
	}

	hiSum, err := rd.ReadBits(32)
	if err != nil {
		return nil, 0, 0, 0, hcCorrupt(err)
	}
	loSum, err := rd.ReadBits(32)
	if err != nil {
		return nil, 0, 0, 0, hcCorrupt(err)
	}
	sum := int64(uint64(hiSum)<<32 | uint64(loSum))

	var planes [3]int
	for q := range planes {
		v, err := rd.ReadBits(8)
		if err != nil {
			return nil, 0, 0, 0, hcCorrupt(err)
		}
		if v > 62 {
			return nil, 0, 0, 0, fmt.Errorf("hcompress: %d bit planes: %w", v, errs.ErrCorruptStream)
		}
		planes[q] = int(v)
	}

	a = make([]int64, nx*ny)
	nx2, ny2 := (nx+1)/2, (ny+1)/2
	quadrants := []struct {
		off, nqx, nqy, planes int
	}{
		{0, nx2, ny2, planes[0]},
		{ny2, nx2, ny / 2, planes[1]},
		{ny * nx2, nx / 2, ny2, planes[1]},
		{ny*nx2 + ny2, nx / 2, ny / 2, planes[2]},
	}
	for _, q := range quadrants {
		if err := qtreeDecode(rd, a[q.off:], ny, q.nqx, q.nqy, q.planes); err != nil {
			return nil, 0, 0, 0, hcCorrupt(err)
		}
	}

	eof, err := rd.ReadBits(4)
	if err != nil {
		return nil, 0, 0, 0, hcCorrupt(err)
	}
	if eof != 0 {
		return nil, 0, 0, 0, fmt.Errorf("hcompress: missing end-of-planes marker: %w", errs.ErrCorruptStream)
	}

	rd.AlignByte()
	for i, v := range a {
		if v == 0 {
			continue
		}
		sign, err := rd.ReadBit()
		if err != nil {
			return nil, 0, 0, 0, hcCorrupt(err)
		}
		if sign == 1 {
			a[i] = -v
		}
	}
	a[0] = sum

	return a, nx, ny, scale, nil
}

func qtreeDecode(rd *bitio.Reader, a []int64, n, nqx, nqy, nbitplanes int) error {
	log2n := log2Ceil(max(nqx, nqy))
	nqx2, nqy2 := (nqx+1)/2, (nqy+1)/2
	scratch := make([]byte, max(nqx2*nqy2, 1))

	for bit := nbitplanes - 1; bit >= 0; bit-- {
		mode, err := rd.ReadBits(4)
		if err != nil {
			return err
		}

		switch mode {
		case 0:
			for i := range scratch[:nqx2*nqy2] {
				v, err := rd.ReadBits(4)
				if err != nil {
					return err
				}
				scratch[i] = byte(v)
			}
		case 0xF:
			if scratch[0], err = readHuffman(rd); err != nil {
				return err
			}
			nx, ny := 1, 1
			nfx, nfy := nqx, nqy
			c := 1 << log2n
			for k := 1; k < log2n; k++ {
				c >>= 1
				nx <<= 1
				ny <<= 1
				if nfx <= c {
					nx--
				} else {
					nfx -= c
				}
				if nfy <= c {
					ny--
				} else {
					nfy -= c
				}
				if err := qtreeExpand(rd, scratch, nx, ny); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("hcompress: bad bit plane code %#x: %w", mode, errs.ErrCorruptStream)
		}

		qtreeBitIns(scratch, nqx, nqy, a, n, uint(bit))
	}

	return nil
}

// qtreeExpand expands the (nx+1)/2 by (ny+1)/2 symbols in s to nx by ny
// presence bits and replaces every set bit by the next Huffman symbol, read
// from the last position backwards.
func qtreeExpand(rd *bitio.Reader, s []byte, nx, ny int) error {
	qtreeCopy(s, nx, ny, s, ny)
	for i := nx*ny - 1; i >= 0; i-- {
		if s[i] == 0 {
			continue
		}
		v, err := readHuffman(rd)
		if err != nil {
			return err
		}
		s[i] = v
	}

	return nil
}

// qtreeCopy spreads each 4-bit symbol of a over the 2x2 block it describes
// in b, whose rows are n apart. b may alias a.
func qtreeCopy(a []byte, nx, ny int, b []byte, n int) {
	nx2, ny2 := (nx+1)/2, (ny+1)/2
	k := ny2*(nx2-1) + ny2 - 1
	for i := nx2 - 1; i >= 0; i-- {
		s00 := 2 * (n*i + ny2 - 1)
		for j := ny2 - 1; j >= 0; j-- {
			b[s00] = a[k]
			k--
			s00 -= 2
		}
	}

	i := 0
	for ; i < nx-1; i += 2 {
		s00 := n * i
		s10 := s00 + n
		j := 0
		for ; j < ny-1; j += 2 {
			v := b[s00]
			b[s10+1] = v & 1
			b[s10] = (v >> 1) & 1
			b[s00+1] = (v >> 2) & 1
			b[s00] = (v >> 3) & 1
			s00 += 2
			s10 += 2
		}
		if j < ny {
			v := b[s00]
			b[s10] = (v >> 1) & 1
			b[s00] = (v >> 3) & 1
		}
	}
	if i < nx {
		s00 := n * i
		j := 0
		for ; j < ny-1; j += 2 {
			v := b[s00]
			b[s00+1] = (v >> 2) & 1
			b[s00] = (v >> 3) & 1
			s00 += 2
		}
		if j < ny {
			b[s00] = (b[s00] >> 3) & 1
		}
	}
}

// qtreeBitIns ORs the 2x2 bit blocks described by the symbols of a into bit
// plane bit of b, whose rows are n apart.
func qtreeBitIns(a []byte, nx, ny int, b []int64, n int, bit uint) {
	put := func(idx int, v byte) {
		b[idx] |= int64(v&1) << bit
	}

	k := 0
	i := 0
	for ; i < nx-1; i += 2 {
		s00 := n * i
		j := 0
		for ; j < ny-1; j += 2 {
			v := a[k]
			put(s00+n+1, v)
			put(s00+n, v>>1)
			put(s00+1, v>>2)
			put(s00, v>>3)
			s00 += 2
			k++
		}
		if j < ny {
			v := a[k]
			put(s00+n, v>>1)
			put(s00, v>>3)
			k++
		}
	}
	if i < nx {
		s00 := n * i
		j := 0
		for ; j < ny-1; j += 2 {
			v := a[k]
			put(s00+1, v>>2)
			put(s00, v>>3)
			s00 += 2
			k++
		}
		if j < ny {
			put(s00, a[k]>>3)
		}
	}
}

// readHuffman decodes one quadtree symbol.
func readHuffman(rd *bitio.Reader) (byte, error) {
	c, err := rd.ReadBits(3)
	if err != nil {
		return 0, err
	}
	if c < 4 {
		return 1 << c, nil
	}

	next := func() error {
		b, err := rd.ReadBit()
		c = c<<1 | b
		return err
	}

	if err := next(); err != nil {
		return 0, err
	}
	switch c {
	case 8:
		return 3, nil
	case 9:
		return 5, nil
	case 10:
		return 10, nil
	case 11:
		return 12, nil
	case 12:
		return 15, nil
	}

	if err := next(); err != nil {
		return 0, err
	}
	switch c {
	case 26:
		return 6, nil
	case 27:
		return 7, nil
	case 28:
		return 9, nil
	case 29:
		return 11, nil
	case 30:
		return 13, nil
	}

	if err := next(); err != nil {
		return 0, err
	}
	if c == 62 {
		return 0, nil
	}

	return 14, nil
}

func undigitize(a []int64, scale int) {
	if scale <= 1 {
		return
	}
	for i := range a {
		a[i] *= int64(scale)
	}
}

// hinv applies the inverse H-transform in place, optionally smoothing the
// coefficients at each level.
func hinv(a []int64, nx, ny int, smooth bool, scale int) {
	nmax := max(nx, ny)
	log2n := log2Ceil(nmax)
	if log2n == 0 {
		return
	}
	tmp := make([]int64, (nmax+1)/2+1)

	shift := uint(1)
	bit0 := int64(1) << uint(log2n-1)
	bit1 := bit0 << 1
	bit2 := bit0 << 2
	mask0 := -bit0
	mask1 := mask0 << 1
	mask2 := mask0 << 2
	prnd0 := bit0 >> 1
	prnd1 := bit1 >> 1
	prnd2 := bit2 >> 1
	nrnd0 := prnd0 - 1
	nrnd1 := prnd1 - 1
	nrnd2 := prnd2 - 1

	a[0] = roundDown(a[0], prnd2, nrnd2) & mask2

	nxtop, nytop := 1, 1
	nxf, nyf := nx, ny
	c := 1 << log2n
	for k := log2n - 1; k >= 0; k-- {
		c >>= 1
		nxtop <<= 1
		nytop <<= 1
		if nxf <= c {
			nxtop--
		} else {
			nxf -= c
		}
		if nyf <= c {
			nytop--
		} else {
			nyf -= c
		}
		if k == 0 {
			nrnd0 = 0
			shift = 2
		}

		for i := 0; i < nxtop; i++ {
			unshuffle(a[ny*i:], nytop, 1, tmp)
		}
		for j := 0; j < nytop; j++ {
			unshuffle(a[j:], nxtop, ny, tmp)
		}

		if smooth {
			hsmooth(a, nxtop, nytop, ny, scale)
		}

		oddx, oddy := nxtop%2, nytop%2
		i := 0
		for ; i < nxtop-oddx; i += 2 {
			s00 := ny * i
			s10 := s00 + ny
			for j := 0; j < nytop-oddy; j += 2 {
				h0 := a[s00]
				hx := roundDown(a[s10], prnd1, nrnd1) & mask1
				hy := roundDown(a[s00+1], prnd1, nrnd1) & mask1
				hc := roundDown(a[s10+1], prnd0, nrnd0) & mask0

				lowbit0 := hc & bit0
				hx = towardZero(hx, lowbit0)
				hy = towardZero(hy, lowbit0)

				lowbit1 := (hc ^ hx ^ hy) & bit1
				switch {
				case h0 >= 0:
					h0 += lowbit0 - lowbit1
				case lowbit0 == 0:
					h0 += lowbit1
				default:
					h0 += lowbit0 - lowbit1
				}

				a[s10+1] = (h0 + hx + hy + hc) >> shift
				a[s10] = (h0 + hx - hy - hc) >> shift
				a[s00+1] = (h0 - hx + hy - hc) >> shift
				a[s00] = (h0 - hx - hy + hc) >> shift
				s00 += 2
				s10 += 2
			}
			if oddy == 1 {
				h0 := a[s00]
				hx := roundDown(a[s10], prnd1, nrnd1) & mask1
				lowbit1 := hx & bit1
				h0 = towardZero(h0, lowbit1)
				a[s10] = (h0 + hx) >> shift
				a[s00] = (h0 - hx) >> shift
			}
		}
		if oddx == 1 {
			s00 := ny * i
			j := 0
			for ; j < nytop-oddy; j += 2 {
				h0 := a[s00]
				hy := roundDown(a[s00+1], prnd1, nrnd1) & mask1
				lowbit1 := hy & bit1
				h0 = towardZero(h0, lowbit1)
				a[s00+1] = (h0 + hy) >> shift
				a[s00] = (h0 - hy) >> shift
				s00 += 2
			}
			if oddy == 1 {
				a[s00] >>= shift
			}
		}

		bit2 = bit1
		bit1 = bit0
		bit0 >>= 1
		mask1 = mask0
		mask0 >>= 1
		prnd1 = prnd0
		prnd0 >>= 1
		nrnd1 = nrnd0
		nrnd0 = prnd0 - 1
	}
}

// towardZero moves v toward zero by d.
func towardZero(v, d int64) int64 {
	if v >= 0 {
		return v - d
	}

	return v + d
}

// unshuffle reverses shuffle: the second half of the n-element stride-n2
// vector moves back to the odd positions.
func unshuffle(a []int64, n, n2 int, tmp []int64) {
	nhalf := (n + 1) >> 1
	t := 0
	for i := nhalf; i < n; i++ {
		tmp[t] = a[i*n2]
		t++
	}
	for i := nhalf - 1; i >= 0; i-- {
		a[2*i*n2] = a[i*n2]
	}
	t = 0
	for i := 1; i < n; i += 2 {
		a[i*n2] = tmp[t]
		t++
	}
}

// hsmooth interpolates the coefficients of the nxtop by nytop block within
// the change permitted by the digitization scale.
func hsmooth(a []int64, nxtop, nytop, ny, scale int) {
	smax := int64(scale >> 1)
	if smax <= 0 {
		return
	}
	ny2 := ny << 1

	limit := func(s int64, shift uint) int64 {
		if s >= 0 {
			s >>= shift
		} else {
			s = (s + (1<<shift - 1)) >> shift
		}

		return min(max(s, -smax), smax)
	}

	for i := 2; i < nxtop-2; i += 2 {
		s00 := ny * i
		s10 := s00 + ny
		for j := 0; j < nytop; j += 2 {
			hm, h0, hp := a[s00-ny2], a[s00], a[s00+ny2]
			diff := hp - hm
			dmax := max(min(hp-h0, h0-hm), 0) << 2
			dmin := min(max(hp-h0, h0-hm), 0) << 2
			if dmin < dmax {
				diff = max(min(diff, dmax), dmin)
				a[s10] += limit(diff-(a[s10]<<3), 3)
			}
			s00 += 2
			s10 += 2
		}
	}

	for i := 0; i < nxtop; i += 2 {
		s00 := ny*i + 2
		for j := 2; j < nytop-2; j += 2 {
			hm, h0, hp := a[s00-2], a[s00], a[s00+2]
			diff := hp - hm
			dmax := max(min(hp-h0, h0-hm), 0) << 2
			dmin := min(max(hp-h0, h0-hm), 0) << 2
			if dmin < dmax {
				diff = max(min(diff, dmax), dmin)
				a[s00+1] += limit(diff-(a[s00+1]<<3), 3)
			}
			s00 += 2
		}
	}

	for i := 2; i < nxtop-2; i += 2 {
		s00 := ny*i + 2
		s10 := s00 + ny
		for j := 2; j < nytop-2; j += 2 {
			hmm := a[s00-ny2-2]
			hpm := a[s00+ny2-2]
			hmp := a[s00-ny2+2]
			hpp := a[s00+ny2+2]
			h0 := a[s00]
			diff := hpp + hmm - hmp - hpm
			hx2 := a[s10] << 1
			hy2 := a[s00+1] << 1

			m1 := min(max(hpp-h0, 0)-hx2-hy2, max(h0-hpm, 0)+hx2-hy2)
			m2 := min(max(h0-hmp, 0)-hx2+hy2, max(hmm-h0, 0)+hx2+hy2)
			dmax := min(m1, m2) << 4
			m1 = max(min(hpp-h0, 0)-hx2-hy2, min(h0-hpm, 0)+hx2-hy2)
			m2 = max(min(h0-hmp, 0)-hx2+hy2, min(hmm-h0, 0)+hx2+hy2)
			dmin := max(m1, m2) << 4
			if dmin < dmax {
				diff = max(min(diff, dmax), dmin)
				a[s10+1] += limit(diff-(a[s10+1]<<6), 6)
			}
			s00 += 2
			s10 += 2
		}
	}
}
