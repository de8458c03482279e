// Package endian provides byte order utilities for the typed pixel arrays that
// the tiled compression engine moves between memory and compressed streams.
//
// FITS stores every multi-byte value big-endian, so FITS() is the engine used
// throughout the module. The typed helpers append or decode whole arrays and
// are shared by the pixel buffers, the byte-oriented codecs and the binary
// table writer.
//
//	engine := endian.FITS()
//	raw := endian.AppendInt32s(engine, nil, pixels)
//	back := make([]int32, len(pixels))
//	endian.DecodeInt32s(engine, back, raw)
//
// All functions in this package are safe for concurrent use.
package endian

import (
	"encoding/binary"
	"math"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface. binary.BigEndian and binary.LittleEndian satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// FITS returns the byte order mandated for FITS data arrays and heaps.
func FITS() EndianEngine {
	return binary.BigEndian
}

// AppendInt16s appends src to dst in the engine's byte order.
func AppendInt16s(e EndianEngine, dst []byte, src []int16) []byte {
	dst = grow(dst, 2*len(src))
	for _, v := range src {
		dst = e.AppendUint16(dst, uint16(v))
	}

	return dst
}

func AppendInt32s(e EndianEngine, dst []byte, src []int32) []byte {
	dst = grow(dst, 4*len(src))
	for _, v := range src {
		dst = e.AppendUint32(dst, uint32(v))
	}

	return dst
}

func AppendInt64s(e EndianEngine, dst []byte, src []int64) []byte {
	dst = grow(dst, 8*len(src))
	for _, v := range src {
		dst = e.AppendUint64(dst, uint64(v))
	}

	return dst
}

func AppendFloat32s(e EndianEngine, dst []byte, src []float32) []byte {
	dst = grow(dst, 4*len(src))
	for _, v := range src {
		dst = e.AppendUint32(dst, math.Float32bits(v))
	}

	return dst
}

func AppendFloat64s(e EndianEngine, dst []byte, src []float64) []byte {
	dst = grow(dst, 8*len(src))
	for _, v := range src {
		dst = e.AppendUint64(dst, math.Float64bits(v))
	}

	return dst
}

// DecodeInt16s fills dst from src. src must hold at least 2*len(dst) bytes.
func DecodeInt16s(e EndianEngine, dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(e.Uint16(src[2*i:]))
	}
}

func DecodeInt32s(e EndianEngine, dst []int32, src []byte) {
	for i := range dst {
		dst[i] = int32(e.Uint32(src[4*i:]))
	}
}

func DecodeInt64s(e EndianEngine, dst []int64, src []byte) {
	for i := range dst {
		dst[i] = int64(e.Uint64(src[8*i:]))
	}
}

func DecodeFloat32s(e EndianEngine, dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(e.Uint32(src[4*i:]))
	}
}

func DecodeFloat64s(e EndianEngine, dst []float64, src []byte) {
	for i := range dst {
		dst[i] = math.Float64frombits(e.Uint64(src[8*i:]))
	}
}

func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) >= n {
		return dst
	}
	out := make([]byte, len(dst), len(dst)+n)
	copy(out, dst)

	return out
}
