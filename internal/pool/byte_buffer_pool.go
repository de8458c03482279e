package pool

import (
	"io"
	"sync"
)

// Default sizes for the shared byte buffer pools.
const (
	TileBufferDefaultSize   = 1024 * 64        // 64KiB
	TileBufferMaxThreshold  = 1024 * 1024 * 4  // 4MiB
	TableBufferDefaultSize  = 1024 * 1024      // 1MiB
	TableBufferMaxThreshold = 1024 * 1024 * 64 // 64MiB
)

// ByteBuffer is a growable byte slice that can be recycled through a
// ByteBufferPool.
type ByteBuffer struct {
	B []byte
}

func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

func (bb *ByteBuffer) Bytes() []byte { return bb.B }

func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Reset empties the buffer and keeps its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Grow ensures room for n more bytes. Small buffers grow by the tile default
// size, larger ones by a quarter of their capacity.
func (bb *ByteBuffer) Grow(n int) {
	if cap(bb.B)-len(bb.B) >= n {
		return
	}

	by := TileBufferDefaultSize
	if cap(bb.B) > 4*TileBufferDefaultSize {
		by = cap(bb.B) / 4
	}
	by = max(by, n)

	grown := make([]byte, len(bb.B), len(bb.B)+by)
	copy(grown, bb.B)
	bb.B = grown
}

func (bb *ByteBuffer) Write(p []byte) (int, error) {
	bb.Grow(len(p))
	bb.B = append(bb.B, p...)

	return len(p), nil
}

// WriteZeros appends n zero bytes.
func (bb *ByteBuffer) WriteZeros(n int) {
	bb.Grow(n)
	for range n {
		bb.B = append(bb.B, 0)
	}
}

func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool recycles ByteBuffers and drops those that grew past the
// threshold.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

func NewByteBufferPool(defaultSize, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

func (p *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)
	return bb
}

func (p *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold {
		return
	}
	bb.Reset()
	p.pool.Put(bb)
}

var (
	tilePool  = NewByteBufferPool(TileBufferDefaultSize, TileBufferMaxThreshold)
	tablePool = NewByteBufferPool(TableBufferDefaultSize, TableBufferMaxThreshold)
)

// GetTileBuffer returns a buffer sized for one encoded tile.
func GetTileBuffer() *ByteBuffer { return tilePool.Get() }

func PutTileBuffer(bb *ByteBuffer) { tilePool.Put(bb) }

// GetTableBuffer returns a buffer sized for a serialized binary table.
func GetTableBuffer() *ByteBuffer { return tablePool.Get() }

func PutTableBuffer(bb *ByteBuffer) { tablePool.Put(bb) }
