package pool

import "sync"

// SlicePool recycles scratch slices of T between tile operations.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool returns an empty pool.
func NewSlicePool[T any]() *SlicePool[T] {
	return &SlicePool[T]{
		pool: sync.Pool{New: func() any { return &[]T{} }},
	}
}

// Get returns a slice of exactly size elements and a cleanup function that
// must be called, typically with defer, once the slice is no longer used.
// Elements are not zeroed when a pooled slice is reused.
//
//	diffs, release := pool.Int64s.Get(n)
//	defer release()
func (p *SlicePool[T]) Get(size int) ([]T, func()) {
	ptr, _ := p.pool.Get().(*[]T)
	if cap(*ptr) < size {
		*ptr = make([]T, size)
	} else {
		*ptr = (*ptr)[:size]
	}

	return *ptr, func() { p.pool.Put(ptr) }
}

// Shared scratch pools used by the codecs and the quantizer.
var (
	Int32s   = NewSlicePool[int32]()
	Int64s   = NewSlicePool[int64]()
	Float64s = NewSlicePool[float64]()
)
