// Package hash fingerprints heap contents and descriptor layouts so that two
// compression runs can be compared without holding both outputs.
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the xxHash64 of data.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Digest accumulates an ordered sequence of blobs. Each blob is framed by its
// length, so ("ab","c") and ("a","bc") produce different fingerprints.
type Digest struct {
	d   *xxhash.Digest
	len [8]byte
}

func NewDigest() *Digest {
	return &Digest{d: xxhash.New()}
}

// Add feeds one blob into the digest.
func (g *Digest) Add(blob []byte) {
	binary.BigEndian.PutUint64(g.len[:], uint64(len(blob)))
	_, _ = g.d.Write(g.len[:])
	_, _ = g.d.Write(blob)
}

// AddUint64 feeds a fixed-width value, such as a descriptor offset.
func (g *Digest) AddUint64(v uint64) {
	binary.BigEndian.PutUint64(g.len[:], v)
	_, _ = g.d.Write(g.len[:])
}

func (g *Digest) Sum64() uint64 {
	return g.d.Sum64()
}
