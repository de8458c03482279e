package table

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

func TestDescriptor(t *testing.T) {
	engine := endian.FITS()

	t.Run("PForm", func(t *testing.T) {
		b, err := Descriptor{Count: 3, Offset: 258}.AppendTo(nil, FormP, engine)
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 3, 0, 0, 1, 2}, b)

		d, err := ParseDescriptor(b, FormP, engine)
		require.NoError(t, err)
		require.Equal(t, Descriptor{Count: 3, Offset: 258}, d)
	})

	t.Run("QForm", func(t *testing.T) {
		want := Descriptor{Count: 1 << 33, Offset: 1<<40 + 5}
		b, err := want.AppendTo(nil, FormQ, engine)
		require.NoError(t, err)
		require.Len(t, b, DescriptorQSize)

		d, err := ParseDescriptor(b, FormQ, engine)
		require.NoError(t, err)
		require.Equal(t, want, d)
	})

	t.Run("PFormOverflow", func(t *testing.T) {
		_, err := Descriptor{Count: 1, Offset: math.MaxInt32 + 1}.AppendTo(nil, FormP, engine)
		require.ErrorIs(t, err, errs.ErrValueOutOfRange)
	})

	t.Run("Short", func(t *testing.T) {
		_, err := ParseDescriptor([]byte{0, 0, 0, 1}, FormP, engine)
		require.ErrorIs(t, err, errs.ErrInvalidTable)
	})

	t.Run("Negative", func(t *testing.T) {
		_, err := ParseDescriptor([]byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}, FormP, engine)
		require.ErrorIs(t, err, errs.ErrInvalidTable)
	})
}

func TestHeap(t *testing.T) {
	h := NewHeap()
	a := h.Append([]byte("abc"))
	b := h.Append([]byte("xyz"))

	require.Equal(t, Descriptor{Count: 3, Offset: 0}, a)
	require.Equal(t, Descriptor{Count: 3, Offset: 3}, b)
	require.Equal(t, []byte("abcxyz"), h.Data())
	require.EqualValues(t, 6, h.Len())

	got, err := h.Bytes(3, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), got)

	_, err = h.Bytes(4, 3)
	require.ErrorIs(t, err, errs.ErrInvalidTable)

	require.Equal(t, HeapFrom([]byte("abcxyz")).Fingerprint(), h.Fingerprint())
}

func TestHeapAppendBelow(t *testing.T) {
	h := HeapFrom([]byte("12345"))

	d, err := h.appendBelow([]byte("ab"), 5)
	require.NoError(t, err)
	require.Equal(t, Descriptor{Count: 2, Offset: 5}, d)

	// a refused append leaves no orphan bytes behind
	_, err = h.appendBelow([]byte("cd"), 6)
	require.ErrorIs(t, err, errs.ErrValueOutOfRange)
	require.EqualValues(t, 7, h.Len())
	require.Equal(t, []byte("12345ab"), h.Data())
}

func TestHeapConcurrentAppend(t *testing.T) {
	h := NewHeap()
	var wg sync.WaitGroup
	descs := make([]Descriptor, 64)
	for i := range descs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			descs[i] = h.Append([]byte{byte(i), byte(i)})
		}()
	}
	wg.Wait()

	require.EqualValues(t, 128, h.Len())
	for i, d := range descs {
		got, err := h.Bytes(d.Offset, d.Count)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i), byte(i)}, got)
	}
}

func TestParseTForm(t *testing.T) {
	tests := []struct {
		in   string
		kind format.ElementKind
		form DescriptorForm
		err  bool
	}{
		{in: "1PB(120)", kind: format.KindUint8, form: FormP},
		{in: "1PI", kind: format.KindInt16, form: FormP},
		{in: "1QB(9)", kind: format.KindUint8, form: FormQ},
		{in: "PJ", kind: format.KindInt32, form: FormP},
		{in: "1D", kind: format.KindFloat64},
		{in: "K", kind: format.KindInt64},
		{in: " 1e ", kind: format.KindFloat32},
		{in: "", err: true},
		{in: "1PX", err: true},
		{in: "1PB(x)", err: true},
		{in: "1PB12", err: true},
		{in: "2D", err: true},
		{in: "1P", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, form, err := ParseTForm(tt.in)
			if tt.err {
				require.ErrorIs(t, err, errs.ErrInvalidTable)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.kind, kind)
			require.Equal(t, tt.form, form)
		})
	}
}

func buildTable(t *testing.T) *Table {
	t.Helper()

	tbl := New(3)
	data, err := tbl.AddVarColumn(ColCompressedData, format.KindUint8, FormP)
	require.NoError(t, err)
	mask, err := tbl.AddVarColumn(ColNullPixelMask, format.KindInt16, FormQ)
	require.NoError(t, err)
	scale, err := tbl.AddScalarColumn(ColZScale, format.KindFloat64)
	require.NoError(t, err)
	blank, err := tbl.AddScalarColumn(ColZBlank, format.KindInt32)
	require.NoError(t, err)

	require.NoError(t, data.Set(0, []byte{1, 2, 3}))
	require.NoError(t, data.Set(2, []byte{4, 5}))
	require.NoError(t, mask.Set(1, []byte{0, 1, 0, 0}))
	for row := range 3 {
		require.NoError(t, scale.SetFloat(row, 0.25*float64(row+1)))
		require.NoError(t, blank.SetInt(row, -int64(row)))
	}

	return tbl
}

func TestTableLayout(t *testing.T) {
	tbl := buildTable(t)

	require.Equal(t, 3, tbl.NRows())
	require.Equal(t, DescriptorPSize+DescriptorQSize+8+4, tbl.RowBytes())

	l := tbl.Layout()
	require.Equal(t, []ColumnSpec{
		{Name: ColCompressedData, TForm: "1PB(3)"},
		{Name: ColNullPixelMask, TForm: "1QI(2)"},
		{Name: ColZScale, TForm: "1D"},
		{Name: ColZBlank, TForm: "1J"},
	}, l.Columns)
	require.EqualValues(t, 3*tbl.RowBytes(), l.HeapOffset)

	h := tbl.Keywords()
	back, err := h.Layout()
	require.NoError(t, err)
	require.Equal(t, l, back)

	pcount, err := h.Int("PCOUNT")
	require.NoError(t, err)
	require.EqualValues(t, 9, pcount)
}

func TestTableMarshalRoundTrip(t *testing.T) {
	tbl := buildTable(t)

	raw, err := tbl.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, tbl.RowBytes()*3+9)
	// First row starts with the P descriptor of COMPRESSED_DATA.
	require.Equal(t, []byte{0, 0, 0, 3, 0, 0, 0, 0}, raw[:8])

	back, err := UnmarshalTable(raw, tbl.Layout())
	require.NoError(t, err)
	require.Equal(t, tbl.Fingerprint(), back.Fingerprint())

	data, err := back.VarColumn(ColCompressedData)
	require.NoError(t, err)
	got, err := data.Get(2)
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5}, got)
	got, err = data.Get(1)
	require.NoError(t, err)
	require.Empty(t, got)

	mask, err := back.VarColumn(ColNullPixelMask)
	require.NoError(t, err)
	d, err := mask.Descriptor(1)
	require.NoError(t, err)
	require.Equal(t, Descriptor{Count: 2, Offset: 5}, d)

	scale, err := back.ScalarColumn(ColZScale)
	require.NoError(t, err)
	v, err := scale.Float(2)
	require.NoError(t, err)
	require.InDelta(t, 0.75, v, 0)

	blank, err := back.ScalarColumn("zblank")
	require.NoError(t, err)
	iv, err := blank.Int(2)
	require.NoError(t, err)
	require.EqualValues(t, -2, iv)

	sum, err := back.DataSum()
	require.NoError(t, err)
	require.Equal(t, Checksum(raw), sum)
}

func TestUnmarshalTableErrors(t *testing.T) {
	tbl := buildTable(t)
	raw, err := tbl.MarshalBinary()
	require.NoError(t, err)

	t.Run("HeapBeforeRows", func(t *testing.T) {
		l := tbl.Layout()
		l.HeapOffset = 4
		_, err := UnmarshalTable(raw, l)
		require.ErrorIs(t, err, errs.ErrInvalidTable)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := UnmarshalTable(raw[:tbl.RowBytes()*3+2], tbl.Layout())
		require.ErrorIs(t, err, errs.ErrInvalidTable)
	})

	t.Run("BadTForm", func(t *testing.T) {
		l := tbl.Layout()
		l.Columns[0].TForm = "1PZ"
		_, err := UnmarshalTable(raw, l)
		require.ErrorIs(t, err, errs.ErrInvalidTable)
	})
}

func TestColumnErrors(t *testing.T) {
	tbl := New(2)
	vc, err := tbl.AddVarColumn(ColCompressedData, format.KindInt16, FormP)
	require.NoError(t, err)
	sc, err := tbl.AddScalarColumn(ColZBlank, format.KindInt16)
	require.NoError(t, err)

	_, err = tbl.AddVarColumn("compressed_data", format.KindUint8, FormP)
	require.ErrorIs(t, err, errs.ErrInvalidTable)
	_, err = tbl.AddVarColumn("X", format.KindUint8, DescriptorForm('Z'))
	require.ErrorIs(t, err, errs.ErrInvalidTable)

	require.ErrorIs(t, vc.Set(0, []byte{1, 2, 3}), errs.ErrLengthMismatch)
	require.ErrorIs(t, vc.Set(2, []byte{1, 2}), errs.ErrInvalidTable)
	require.ErrorIs(t, vc.SetDescriptor(0, Descriptor{Count: 4, Offset: 0}), errs.ErrInvalidTable)

	require.ErrorIs(t, sc.SetInt(0, 40000), errs.ErrValueOutOfRange)
	require.ErrorIs(t, sc.SetFloat(0, 1.5), errs.ErrValueOutOfRange)
	require.NoError(t, sc.SetFloat(0, -3))
	v, err := sc.Int(0)
	require.NoError(t, err)
	require.EqualValues(t, -3, v)

	_, err = tbl.ScalarColumn(ColCompressedData)
	require.ErrorIs(t, err, errs.ErrInvalidTable)
	_, err = tbl.VarColumn(ColZBlank)
	require.ErrorIs(t, err, errs.ErrInvalidTable)
	_, err = tbl.VarColumn("MISSING")
	require.ErrorIs(t, err, errs.ErrInvalidTable)
}

func TestChecksum(t *testing.T) {
	require.Equal(t, uint32(0), Checksum(nil))
	require.Equal(t, uint32(0x01020304), Checksum([]byte{1, 2, 3, 4}))
	// Zero padding of a partial word.
	require.Equal(t, uint32(0x01020000), Checksum([]byte{1, 2}))
	// End-around carry.
	require.Equal(t, uint32(2), Checksum([]byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 2}))
}

func TestHeader(t *testing.T) {
	var h Header
	h.Set("zimage", true)
	h.Set("ZCMPTYPE", "RICE_1")
	h.Set("ZBITPIX", 16)
	h.Set("ZVAL1", 32.0)
	h.Set("ZBITPIX", -32)

	require.Len(t, h, 4)
	require.Equal(t, "ZIMAGE", h[0].Name)

	b, err := h.Bool("ZIMAGE")
	require.NoError(t, err)
	require.True(t, b)

	bp, err := h.Int("zbitpix")
	require.NoError(t, err)
	require.EqualValues(t, -32, bp)

	bs, err := h.Int("ZVAL1")
	require.NoError(t, err)
	require.EqualValues(t, 32, bs)

	f, err := h.Float("ZBITPIX")
	require.NoError(t, err)
	require.InDelta(t, -32.0, f, 0)

	s, err := h.String("ZCMPTYPE")
	require.NoError(t, err)
	require.Equal(t, "RICE_1", s)

	_, err = h.Int("ZNAXIS")
	require.ErrorIs(t, err, errs.ErrMissingKeyword)
	_, err = h.Int("ZCMPTYPE")
	require.ErrorIs(t, err, errs.ErrInvalidTable)
	_, err = h.String("ZBITPIX")
	require.ErrorIs(t, err, errs.ErrInvalidTable)

	h.Delete("ZVAL1")
	require.False(t, h.Has("ZVAL1"))

	var o Header
	o.Set("ZCMPTYPE", "GZIP_1")
	o.Set("ZQUANTIZ", "NO_DITHER")
	h.Merge(o)
	s, _ = h.String("ZCMPTYPE")
	require.Equal(t, "GZIP_1", s)
	require.True(t, h.Has("ZQUANTIZ"))
}

func BenchmarkMarshalBinary(b *testing.B) {
	tbl := New(1024)
	col, _ := tbl.AddVarColumn(ColCompressedData, format.KindUint8, FormP)
	blob := make([]byte, 512)
	for row := range 1024 {
		_ = col.Set(row, blob)
	}

	for b.Loop() {
		_, _ = tbl.MarshalBinary()
	}
}
