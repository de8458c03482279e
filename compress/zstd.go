package compress

// ZstdCompressor is the Zstandard codec behind the ZSTD_1 extension
// algorithm. The pure-Go klauspost implementation is used by default; building
// with the gozstd tag and cgo enabled switches to the libzstd binding.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
