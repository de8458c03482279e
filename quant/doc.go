// Package quant converts floating-point tiles to scaled integers and back.
//
// The scale of a tile is derived from a robust estimate of its background
// noise (median absolute differences of neighbouring pixels) divided by the
// configured quantization level, so that noisier tiles are stored with
// coarser steps. Optional subtractive dithering adds a reproducible random
// offset in [0, 1) before rounding and removes it again on restore; the
// offsets come from the fixed FITS random sequence and depend only on the
// dither seed, the tile index and the pixel position.
package quant
