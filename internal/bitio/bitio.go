// Package bitio implements MSB-first bit streams for the entropy coders.
package bitio

import (
	"errors"
	"math/bits"
)

// ErrUnderflow is returned when a read runs past the end of the input.
var ErrUnderflow = errors.New("bitio: read past end of stream")

// Writer accumulates bits most-significant first.
type Writer struct {
	buf  []byte
	acc  uint64
	nacc uint
}

// NewWriter returns a writer whose output buffer starts with capacity hint.
func NewWriter(hint int) *Writer {
	return &Writer{buf: make([]byte, 0, hint)}
}

// WriteBits writes the low n bits of v, n <= 32.
func (w *Writer) WriteBits(v uint32, n uint) {
	if n == 0 {
		return
	}
	w.acc = w.acc<<n | uint64(v)&(1<<n-1)
	w.nacc += n
	for w.nacc >= 8 {
		w.nacc -= 8
		w.buf = append(w.buf, byte(w.acc>>w.nacc))
	}
}

// WriteUnary writes zeros followed by a single one bit.
func (w *Writer) WriteUnary(zeros int) {
	for zeros >= 32 {
		w.WriteBits(0, 32)
		zeros -= 32
	}
	w.WriteBits(1, uint(zeros)+1)
}

// WriteByte appends a whole byte at the current bit position.
func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint32(b), 8)
	return nil
}

// Len returns the number of bits written so far.
func (w *Writer) Len() int {
	return len(w.buf)*8 + int(w.nacc)
}

// Bytes flushes a partial byte, padded with zero bits, and returns the output.
func (w *Writer) Bytes() []byte {
	if w.nacc > 0 {
		w.buf = append(w.buf, byte(w.acc<<(8-w.nacc)))
		w.acc, w.nacc = 0, 0
	}

	return w.buf
}

// Reader consumes bits most-significant first.
type Reader struct {
	data []byte
	pos  int  // next byte to load
	acc  uint64
	nacc uint
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) fill(n uint) bool {
	for r.nacc < n {
		if r.pos >= len(r.data) {
			return false
		}
		r.acc = r.acc<<8 | uint64(r.data[r.pos])
		r.pos++
		r.nacc += 8
	}

	return true
}

// ReadBits reads n bits, n <= 32.
func (r *Reader) ReadBits(n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if !r.fill(n) {
		return 0, ErrUnderflow
	}
	r.nacc -= n

	return uint32(r.acc>>r.nacc) & uint32(1<<n-1), nil
}

func (r *Reader) ReadBit() (uint32, error) {
	return r.ReadBits(1)
}

// ReadUnary counts zero bits up to and including the terminating one bit and
// returns the number of zeros.
func (r *Reader) ReadUnary() (int, error) {
	zeros := 0
	for {
		if r.nacc == 0 && !r.fill(8) {
			return 0, ErrUnderflow
		}
		window := r.acc << (64 - r.nacc)
		if window != 0 {
			lz := uint(bits.LeadingZeros64(window))
			zeros += int(lz)
			r.nacc -= lz + 1
			r.acc &= 1<<r.nacc - 1

			return zeros, nil
		}
		zeros += int(r.nacc)
		r.acc, r.nacc = 0, 0
	}
}

// AlignByte discards the bits remaining in the current byte.
func (r *Reader) AlignByte() {
	drop := r.nacc % 8
	r.nacc -= drop
	r.acc &= 1<<r.nacc - 1
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return (len(r.data)-r.pos)*8 + int(r.nacc)
}
