package compress

// NoOpCompressor passes bytes through unchanged. It backs the NOCOMPRESS
// tile algorithm.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns a copy of data, so the heap never aliases a caller buffer.
func (NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Decompress returns data itself. Callers decode it into a fresh typed
// buffer, so sharing the heap bytes is safe.
func (NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
