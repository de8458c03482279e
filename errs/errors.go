// Package errs defines the error kinds reported by the tiled compression
// engine. Every error returned by the engine matches exactly one of the
// sentinel values below through errors.Is.
package errs

import "errors"

var (
	// ErrInvalidGeometry reports a non-positive image or tile extent, or a
	// rank mismatch between image and tile dimensions.
	ErrInvalidGeometry = errors.New("invalid tile geometry")
	// ErrDegenerateRange reports an empty tile handed to the quantizer.
	ErrDegenerateRange = errors.New("degenerate quantization range")
	// ErrNonFinite reports a tile whose scale or zero point cannot be computed.
	ErrNonFinite = errors.New("non-finite quantization parameters")

	ErrUnsupportedRank = errors.New("unsupported tile rank")
	ErrValueOutOfRange = errors.New("pixel value out of codec range")
	ErrLengthMismatch  = errors.New("decoded length mismatch")
	ErrCorruptStream   = errors.New("corrupt compressed stream")
	ErrTileFailure     = errors.New("tile operation failed")

	ErrInvalidOption  = errors.New("invalid option")
	ErrUnknownCodec   = errors.New("unknown compression algorithm")
	ErrInvalidTable   = errors.New("invalid compressed table")
	ErrMissingKeyword = errors.New("missing required keyword")
	ErrKindMismatch   = errors.New("element kind mismatch")
)

// kinds lists the sentinels in the order Kind resolves them.
var kinds = []error{
	ErrInvalidGeometry,
	ErrDegenerateRange,
	ErrNonFinite,
	ErrUnsupportedRank,
	ErrValueOutOfRange,
	ErrLengthMismatch,
	ErrCorruptStream,
	ErrInvalidOption,
	ErrUnknownCodec,
	ErrInvalidTable,
	ErrMissingKeyword,
	ErrKindMismatch,
}

// Kind returns the sentinel that err matches, ErrTileFailure when it matches
// none of the specific kinds, or nil for a nil error.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}

	return ErrTileFailure
}
