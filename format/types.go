// Package format defines the enumerations shared across the tiled compression
// engine: pixel element kinds, tile compression algorithms, byte-stream
// compressors, quantization methods and null pixel policies.
package format

import "strings"

type (
	ElementKind       uint8
	CompressionType   uint8
	StreamCompression uint8
	QuantizeMethod    uint8
	NullPolicy        uint8
)

const (
	KindUnknown ElementKind = 0x0
	KindUint8   ElementKind = 0x1 // KindUint8 is BITPIX 8, unsigned bytes.
	KindInt16   ElementKind = 0x2 // KindInt16 is BITPIX 16.
	KindInt32   ElementKind = 0x3 // KindInt32 is BITPIX 32.
	KindInt64   ElementKind = 0x4 // KindInt64 is BITPIX 64.
	KindFloat32 ElementKind = 0x5 // KindFloat32 is BITPIX -32.
	KindFloat64 ElementKind = 0x6 // KindFloat64 is BITPIX -64.
)

// Tile compression algorithms, as named by the ZCMPTYPE keyword.
const (
	CompressionUnknown   CompressionType = 0x0
	CompressionRice      CompressionType = 0x1 // RICE_1
	CompressionGzip1     CompressionType = 0x2 // GZIP_1
	CompressionGzip2     CompressionType = 0x3 // GZIP_2
	CompressionHCompress CompressionType = 0x4 // HCOMPRESS_1
	CompressionPLIO      CompressionType = 0x5 // PLIO_1
	CompressionNone      CompressionType = 0x6 // NOCOMPRESS

	// Extension algorithms. They are not part of the FITS convention and
	// other readers will not understand them.
	CompressionZstd CompressionType = 0x10 // ZSTD_1
	CompressionLZ4  CompressionType = 0x11 // LZ4_1
	CompressionS2   CompressionType = 0x12 // S2_1
)

// Byte-stream compressors used underneath the byte-oriented tile codecs.
const (
	StreamNone StreamCompression = 0x1
	StreamGzip StreamCompression = 0x2
	StreamZstd StreamCompression = 0x3
	StreamS2   StreamCompression = 0x4
	StreamLZ4  StreamCompression = 0x5
)

const (
	// QuantizeOff stores floating-point tiles without quantization.
	QuantizeOff QuantizeMethod = 0x0
	// QuantizeLossless uses scale 1 and zero 0, exact for integer-valued floats.
	QuantizeLossless   QuantizeMethod = 0x1
	NoDither           QuantizeMethod = 0x2
	SubtractiveDither1 QuantizeMethod = 0x3
	SubtractiveDither2 QuantizeMethod = 0x4
)

const (
	// NullSentinel substitutes a reserved integer for undefined pixels.
	NullSentinel NullPolicy = 0x1
	// NullMaskColumn stores the undefined positions in a NULL_PIXEL_MASK column.
	NullMaskColumn NullPolicy = 0x2
)

// Bitpix returns the FITS BITPIX value of the kind, or 0 for KindUnknown.
func (k ElementKind) Bitpix() int {
	switch k {
	case KindUint8:
		return 8
	case KindInt16:
		return 16
	case KindInt32:
		return 32
	case KindInt64:
		return 64
	case KindFloat32:
		return -32
	case KindFloat64:
		return -64
	default:
		return 0
	}
}

// Size returns the element width in bytes.
func (k ElementKind) Size() int {
	b := k.Bitpix()
	if b < 0 {
		b = -b
	}

	return b / 8
}

func (k ElementKind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

func (k ElementKind) IsInteger() bool {
	return k >= KindUint8 && k <= KindInt64
}

func (k ElementKind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "Unknown"
	}
}

// KindFromBitpix maps a BITPIX value to its element kind.
func KindFromBitpix(bitpix int) ElementKind {
	switch bitpix {
	case 8:
		return KindUint8
	case 16:
		return KindInt16
	case 32:
		return KindInt32
	case 64:
		return KindInt64
	case -32:
		return KindFloat32
	case -64:
		return KindFloat64
	default:
		return KindUnknown
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionRice:
		return "RICE_1"
	case CompressionGzip1:
		return "GZIP_1"
	case CompressionGzip2:
		return "GZIP_2"
	case CompressionHCompress:
		return "HCOMPRESS_1"
	case CompressionPLIO:
		return "PLIO_1"
	case CompressionNone:
		return "NOCOMPRESS"
	case CompressionZstd:
		return "ZSTD_1"
	case CompressionLZ4:
		return "LZ4_1"
	case CompressionS2:
		return "S2_1"
	default:
		return "Unknown"
	}
}

// IntegerOnly reports whether the algorithm only accepts integer pixels.
func (c CompressionType) IntegerOnly() bool {
	return c == CompressionRice || c == CompressionHCompress || c == CompressionPLIO
}

// ParseCompressionType resolves a ZCMPTYPE value. Matching ignores case and
// surrounding blanks, and accepts RICE_ONE as the historical alias of RICE_1.
func ParseCompressionType(name string) CompressionType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "RICE_1", "RICE_ONE":
		return CompressionRice
	case "GZIP_1":
		return CompressionGzip1
	case "GZIP_2":
		return CompressionGzip2
	case "HCOMPRESS_1":
		return CompressionHCompress
	case "PLIO_1":
		return CompressionPLIO
	case "NOCOMPRESS":
		return CompressionNone
	case "ZSTD_1":
		return CompressionZstd
	case "LZ4_1":
		return CompressionLZ4
	case "S2_1":
		return CompressionS2
	default:
		return CompressionUnknown
	}
}

func (s StreamCompression) String() string {
	switch s {
	case StreamNone:
		return "None"
	case StreamGzip:
		return "Gzip"
	case StreamZstd:
		return "Zstd"
	case StreamS2:
		return "S2"
	case StreamLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// String returns the ZQUANTIZ keyword value. QuantizeLossless is written as
// NO_DITHER because a scale of 1 and zero of 0 is an ordinary undithered
// quantization to any reader.
func (q QuantizeMethod) String() string {
	switch q {
	case QuantizeOff:
		return "NONE"
	case QuantizeLossless, NoDither:
		return "NO_DITHER"
	case SubtractiveDither1:
		return "SUBTRACTIVE_DITHER_1"
	case SubtractiveDither2:
		return "SUBTRACTIVE_DITHER_2"
	default:
		return "Unknown"
	}
}

// Dithered reports whether the method adds a subtractive dither offset.
func (q QuantizeMethod) Dithered() bool {
	return q == SubtractiveDither1 || q == SubtractiveDither2
}

// ParseQuantizeMethod resolves a ZQUANTIZ value; ok is false for unknown names.
func ParseQuantizeMethod(name string) (QuantizeMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NONE":
		return QuantizeOff, true
	case "NO_DITHER":
		return NoDither, true
	case "SUBTRACTIVE_DITHER_1":
		return SubtractiveDither1, true
	case "SUBTRACTIVE_DITHER_2":
		return SubtractiveDither2, true
	default:
		return QuantizeOff, false
	}
}

func (n NullPolicy) String() string {
	switch n {
	case NullSentinel:
		return "Sentinel"
	case NullMaskColumn:
		return "MaskColumn"
	default:
		return "Unknown"
	}
}
