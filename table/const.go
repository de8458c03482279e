package table

// Column names of the tile compression convention.
const (
	ColCompressedData     = "COMPRESSED_DATA"
	ColGzipCompressedData = "GZIP_COMPRESSED_DATA"
	ColUncompressedData   = "UNCOMPRESSED_DATA"
	ColNullPixelMask      = "NULL_PIXEL_MASK"
	ColZScale             = "ZSCALE"
	ColZZero              = "ZZERO"
	ColZBlank             = "ZBLANK"
)

// Descriptor sizes in the main table.
const (
	DescriptorPSize = 8  // two 32-bit integers
	DescriptorQSize = 16 // two 64-bit integers
)
