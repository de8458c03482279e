package compress

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

const (
	// maxLZ4Block bounds the decoded size accepted from a stream header.
	maxLZ4Block = 1 << 30

	lz4ModeBlock  = 0x0
	lz4ModeStored = 0x1
	lz4HeaderSize = 5
)

// LZ4Compressor is an LZ4 block codec. Each output starts with the decoded
// length as a big-endian uint32 and a mode byte, so decompression can size
// its buffer exactly and incompressible input can be stored verbatim.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(dst, uint32(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[lz4HeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 || n >= len(data) {
		dst[4] = lz4ModeStored
		n = copy(dst[lz4HeaderSize:], data)
	}

	return dst[:lz4HeaderSize+n], nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4 block shorter than its header")
	}

	size := binary.BigEndian.Uint32(data)
	if size > maxLZ4Block {
		return nil, fmt.Errorf("lz4 block declares %d bytes", size)
	}

	payload := data[lz4HeaderSize:]
	switch data[4] {
	case lz4ModeStored:
		return append([]byte(nil), payload...), nil
	case lz4ModeBlock:
	default:
		return nil, fmt.Errorf("lz4 block has unknown mode %#x", data[4])
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}

	return out[:n], nil
}
