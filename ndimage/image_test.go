package ndimage

import (
	"testing"

	"github.com/arloliu/fitstile/buffer"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	img, err := New(format.KindFloat32, 4, 3)
	require.NoError(t, err)
	require.Equal(t, 12, img.Len())
	require.Equal(t, format.KindFloat32, img.Kind())
	require.NoError(t, img.Validate())

	_, err = New(format.KindInt16, 4, 0)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)

	_, err = New(format.KindInt16)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)
}

func TestFromSlice(t *testing.T) {
	img, err := FromSlice([]int16{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)
	require.Equal(t, buffer.Wrap([]int16{1, 2, 3, 4, 5, 6}), img.Data)

	_, err = FromSlice([]int16{1, 2, 3}, 2, 2)
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}

func TestIndex(t *testing.T) {
	img, err := New(format.KindUint8, 4, 3, 2)
	require.NoError(t, err)

	idx, err := img.Index(1, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 1+4*(2+3*1), idx)

	_, err = img.Index(4, 0, 0)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)
	_, err = img.Index(0, 0)
	require.ErrorIs(t, err, errs.ErrInvalidGeometry)
}

func TestBlank(t *testing.T) {
	img, err := FromSlice([]int32{1, -1}, 2)
	require.NoError(t, err)
	img.WithBlank(-1)
	require.Equal(t, int64(-1), *img.Blank)
	require.NoError(t, img.Validate())

	f, err := FromSlice([]float32{1}, 1)
	require.NoError(t, err)
	require.ErrorIs(t, f.WithBlank(0).Validate(), errs.ErrInvalidOption)
}
