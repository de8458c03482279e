// Package buffer provides the typed numeric buffer that carries pixel data
// through the tiled compression engine.
//
// A Buffer is a contiguous array of a single primitive kind. The concrete type
// is the generic slice Of[T]; code that needs the elements asserts back to the
// slice with As, and code that only routes data keeps the Buffer interface.
package buffer

import (
	"fmt"
	"math"

	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Number is the set of element types a Buffer can hold.
type Number interface {
	uint8 | int16 | int32 | int64 | float32 | float64
}

// Buffer is a typed array with element-count and byte-size queries.
type Buffer interface {
	Kind() format.ElementKind
	Len() int
	ByteSize() int
}

// Of is the Buffer implementation for element type T.
type Of[T Number] []T

var (
	_ Buffer = Of[uint8](nil)
	_ Buffer = Of[float64](nil)
)

func (b Of[T]) Kind() format.ElementKind { return KindOf[T]() }

func (b Of[T]) Len() int { return len(b) }

func (b Of[T]) ByteSize() int { return len(b) * KindOf[T]().Size() }

// KindOf returns the element kind of T.
func KindOf[T Number]() format.ElementKind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return format.KindUint8
	case int16:
		return format.KindInt16
	case int32:
		return format.KindInt32
	case int64:
		return format.KindInt64
	case float32:
		return format.KindFloat32
	case float64:
		return format.KindFloat64
	}

	return format.KindUnknown
}

// Wrap returns s as a Buffer without copying.
func Wrap[T Number](s []T) Of[T] {
	return Of[T](s)
}

// As returns the underlying slice when b holds elements of type T.
func As[T Number](b Buffer) ([]T, bool) {
	s, ok := b.(Of[T])
	return s, ok
}

// New allocates a zeroed buffer of n elements of the given kind.
func New(kind format.ElementKind, n int) (Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("buffer length %d: %w", n, errs.ErrLengthMismatch)
	}

	switch kind {
	case format.KindUint8:
		return make(Of[uint8], n), nil
	case format.KindInt16:
		return make(Of[int16], n), nil
	case format.KindInt32:
		return make(Of[int32], n), nil
	case format.KindInt64:
		return make(Of[int64], n), nil
	case format.KindFloat32:
		return make(Of[float32], n), nil
	case format.KindFloat64:
		return make(Of[float64], n), nil
	default:
		return nil, fmt.Errorf("element kind %s: %w", kind, errs.ErrKindMismatch)
	}
}

// Clone returns a deep copy of b.
func Clone(b Buffer) Buffer {
	switch s := b.(type) {
	case Of[uint8]:
		return append(Of[uint8](nil), s...)
	case Of[int16]:
		return append(Of[int16](nil), s...)
	case Of[int32]:
		return append(Of[int32](nil), s...)
	case Of[int64]:
		return append(Of[int64](nil), s...)
	case Of[float32]:
		return append(Of[float32](nil), s...)
	case Of[float64]:
		return append(Of[float64](nil), s...)
	}

	return nil
}

// IntRange returns the representable range of an integer kind.
func IntRange(kind format.ElementKind) (lo, hi int64) {
	switch kind {
	case format.KindUint8:
		return 0, math.MaxUint8
	case format.KindInt16:
		return math.MinInt16, math.MaxInt16
	case format.KindInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// Int64s widens an integer buffer to int64. Float buffers are rejected with
// ErrKindMismatch.
func Int64s(b Buffer) ([]int64, error) {
	switch s := b.(type) {
	case Of[uint8]:
		return widen(s), nil
	case Of[int16]:
		return widen(s), nil
	case Of[int32]:
		return widen(s), nil
	case Of[int64]:
		return append([]int64(nil), s...), nil
	}

	return nil, fmt.Errorf("integer view of %s buffer: %w", b.Kind(), errs.ErrKindMismatch)
}

func widen[T uint8 | int16 | int32](s []T) []int64 {
	out := make([]int64, len(s))
	for i, v := range s {
		out[i] = int64(v)
	}

	return out
}

// FromInt64s narrows vals into a new buffer of an integer kind. A value
// outside the kind's range fails with ErrValueOutOfRange.
func FromInt64s(kind format.ElementKind, vals []int64) (Buffer, error) {
	if !kind.IsInteger() {
		return nil, fmt.Errorf("integer narrowing to %s: %w", kind, errs.ErrKindMismatch)
	}

	lo, hi := IntRange(kind)
	for i, v := range vals {
		if v < lo || v > hi {
			return nil, fmt.Errorf("element %d value %d does not fit %s: %w", i, v, kind, errs.ErrValueOutOfRange)
		}
	}

	switch kind {
	case format.KindUint8:
		return narrow[uint8](vals), nil
	case format.KindInt16:
		return narrow[int16](vals), nil
	case format.KindInt32:
		return narrow[int32](vals), nil
	default:
		return Of[int64](append([]int64(nil), vals...)), nil
	}
}

func narrow[T uint8 | int16 | int32](vals []int64) Of[T] {
	out := make(Of[T], len(vals))
	for i, v := range vals {
		out[i] = T(v)
	}

	return out
}

// Float64s returns the elements of any buffer as float64 values.
func Float64s(b Buffer) []float64 {
	switch s := b.(type) {
	case Of[uint8]:
		return toFloat(s)
	case Of[int16]:
		return toFloat(s)
	case Of[int32]:
		return toFloat(s)
	case Of[int64]:
		return toFloat(s)
	case Of[float32]:
		return toFloat(s)
	case Of[float64]:
		return append([]float64(nil), s...)
	}

	return nil
}

func toFloat[T Number](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}

	return out
}

// AppendBytes appends the big-endian representation of b to dst.
func AppendBytes(dst []byte, b Buffer) []byte {
	e := endian.FITS()
	switch s := b.(type) {
	case Of[uint8]:
		return append(dst, s...)
	case Of[int16]:
		return endian.AppendInt16s(e, dst, s)
	case Of[int32]:
		return endian.AppendInt32s(e, dst, s)
	case Of[int64]:
		return endian.AppendInt64s(e, dst, s)
	case Of[float32]:
		return endian.AppendFloat32s(e, dst, s)
	case Of[float64]:
		return endian.AppendFloat64s(e, dst, s)
	}

	return dst
}

// FromBytes decodes n big-endian elements of the given kind. data must hold
// exactly n elements, otherwise ErrLengthMismatch is returned.
func FromBytes(kind format.ElementKind, data []byte, n int) (Buffer, error) {
	size := kind.Size()
	if size == 0 {
		return nil, fmt.Errorf("element kind %s: %w", kind, errs.ErrKindMismatch)
	}
	if n < 0 || len(data) != n*size {
		return nil, fmt.Errorf("got %d bytes, want %d elements of %s: %w",
			len(data), n, kind, errs.ErrLengthMismatch)
	}

	out, err := New(kind, n)
	if err != nil {
		return nil, err
	}

	e := endian.FITS()
	switch s := out.(type) {
	case Of[uint8]:
		copy(s, data)
	case Of[int16]:
		endian.DecodeInt16s(e, s, data)
	case Of[int32]:
		endian.DecodeInt32s(e, s, data)
	case Of[int64]:
		endian.DecodeInt64s(e, s, data)
	case Of[float32]:
		endian.DecodeFloat32s(e, s, data)
	case Of[float64]:
		endian.DecodeFloat64s(e, s, data)
	}

	return out, nil
}
