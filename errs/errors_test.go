package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	require.Nil(t, Kind(nil))
	require.Equal(t, ErrCorruptStream, Kind(fmt.Errorf("rice block 3: %w", ErrCorruptStream)))
	require.Equal(t, ErrTileFailure, Kind(errors.New("boom")))
}

func TestTileError(t *testing.T) {
	err := &TileError{Index: 7, State: "Coding", Err: fmt.Errorf("hcompress: %w", ErrUnsupportedRank)}

	require.ErrorIs(t, err, ErrTileFailure)
	require.ErrorIs(t, err, ErrUnsupportedRank)
	require.Equal(t, ErrUnsupportedRank, err.Kind())
	require.Contains(t, err.Error(), "tile 7")

	var te *TileError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &te))
	require.Equal(t, 7, te.Index)
}

func TestTileErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Nil(t, NewTileErrors([]*TileError{nil, nil}))
	})

	t.Run("sorted", func(t *testing.T) {
		es := NewTileErrors([]*TileError{
			nil,
			{Index: 5, State: "Coding", Err: ErrValueOutOfRange},
			{Index: 2, State: "Transforming", Err: ErrNonFinite},
		})
		require.Equal(t, []int{2, 5}, es.Indices())
		require.ErrorIs(t, es, ErrValueOutOfRange)
		require.ErrorIs(t, es, ErrNonFinite)
		require.Contains(t, es.Error(), "2 tiles failed")
	})
}
