package table

import (
	"fmt"
	"sync"

	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/internal/hash"
)

// Heap is the append-only byte area behind the variable-length columns. All
// methods are safe for concurrent use; appends are the only mutations and
// never move bytes that were handed out before.
type Heap struct {
	mu   sync.RWMutex
	data []byte
}

func NewHeap() *Heap {
	return &Heap{}
}

// HeapFrom adopts data, typically read from a file, as a heap.
func HeapFrom(data []byte) *Heap {
	return &Heap{data: data}
}

// Append copies p to the end of the heap and returns its location, with
// Count in bytes.
func (h *Heap) Append(p []byte) Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := Descriptor{Count: int64(len(p)), Offset: int64(len(h.data))}
	h.data = append(h.data, p...)

	return d
}

// appendBelow is Append that refuses to start p past maxOffset, leaving the
// heap untouched.
func (h *Heap) appendBelow(p []byte, maxOffset int64) (Descriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off := int64(len(h.data)); off > maxOffset {
		return Descriptor{}, fmt.Errorf("heap offset %d past %d: %w", off, maxOffset, errs.ErrValueOutOfRange)
	}
	d := Descriptor{Count: int64(len(p)), Offset: int64(len(h.data))}
	h.data = append(h.data, p...)

	return d, nil
}

// Bytes returns n bytes at offset. The slice aliases the heap and must not be
// modified.
func (h *Heap) Bytes(offset, n int64) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if offset < 0 || n < 0 || offset+n > int64(len(h.data)) {
		return nil, fmt.Errorf("range %d+%d outside heap of %d bytes: %w", offset, n, len(h.data), errs.ErrInvalidTable)
	}

	return h.data[offset : offset+n : offset+n], nil
}

func (h *Heap) Len() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return int64(len(h.data))
}

// Data returns the whole heap. The slice aliases the heap.
func (h *Heap) Data() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.data
}

// Fingerprint returns the xxHash64 of the heap contents.
func (h *Heap) Fingerprint() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return hash.Sum(h.data)
}
