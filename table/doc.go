// Package table models the FITS binary table that carries a compressed
// image: one row per tile, fixed-width cells in the main table, and a heap
// holding the variable-length compressed blobs.
//
// Variable-length cells are stored as descriptors, a pair of element count
// and heap byte offset, in either the 32-bit P form or the 64-bit Q form.
// The heap is append-only while a table is written; descriptors handed out
// earlier stay valid.
//
// Layout of a marshaled table, all values big-endian:
//
//	┌──────────────────────────────┐
//	│ row 0: cell 0 | cell 1 | ... │  NAXIS1 bytes per row
//	│ row 1                        │
//	│ ...                          │  NAXIS2 rows
//	├──────────────────────────────┤  THEAP = NAXIS1 * NAXIS2
//	│ heap                         │  PCOUNT bytes
//	└──────────────────────────────┘
package table
