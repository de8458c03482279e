package table

import (
	"fmt"
	"strings"

	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
	"github.com/arloliu/fitstile/internal/hash"
	"github.com/arloliu/fitstile/internal/pool"
)

// Table is a binary table with a fixed number of rows.
type Table struct {
	nrows  int
	heap   *Heap
	cols   []Column
	byName map[string]Column
}

// New creates an empty table with nrows rows and an empty heap.
func New(nrows int) *Table {
	return &Table{
		nrows:  nrows,
		heap:   NewHeap(),
		byName: make(map[string]Column),
	}
}

func (t *Table) NRows() int { return t.nrows }

func (t *Table) Heap() *Heap { return t.heap }

// Columns returns the columns in definition order.
func (t *Table) Columns() []Column { return t.cols }

// Column looks a column up by name, ignoring case.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.byName[strings.ToUpper(name)]
	return c, ok
}

func (t *Table) add(c Column) error {
	key := strings.ToUpper(c.Name())
	if key == "" {
		return fmt.Errorf("empty column name: %w", errs.ErrInvalidTable)
	}
	if _, dup := t.byName[key]; dup {
		return fmt.Errorf("duplicate column %s: %w", c.Name(), errs.ErrInvalidTable)
	}
	t.cols = append(t.cols, c)
	t.byName[key] = c

	return nil
}

// AddVarColumn adds a variable-length column of elem-typed cells.
func (t *Table) AddVarColumn(name string, elem format.ElementKind, form DescriptorForm) (*VarColumn, error) {
	if _, ok := kindLetter(elem); !ok {
		return nil, fmt.Errorf("column %s: element kind %s: %w", name, elem, errs.ErrInvalidTable)
	}
	if !form.valid() {
		return nil, fmt.Errorf("column %s: descriptor form %q: %w", name, form, errs.ErrInvalidTable)
	}
	c := &VarColumn{name: name, elem: elem, form: form, heap: t.heap, descs: make([]Descriptor, t.nrows)}
	if err := t.add(c); err != nil {
		return nil, err
	}

	return c, nil
}

// AddScalarColumn adds a fixed-width numeric column.
func (t *Table) AddScalarColumn(name string, kind format.ElementKind) (*ScalarColumn, error) {
	if _, ok := kindLetter(kind); !ok {
		return nil, fmt.Errorf("column %s: kind %s: %w", name, kind, errs.ErrInvalidTable)
	}
	c := &ScalarColumn{name: name, kind: kind}
	if kind.IsFloat() {
		c.floats = make([]float64, t.nrows)
	} else {
		c.ints = make([]int64, t.nrows)
	}
	if err := t.add(c); err != nil {
		return nil, err
	}

	return c, nil
}

// VarColumn returns the named variable-length column.
func (t *Table) VarColumn(name string) (*VarColumn, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %s: %w", name, errs.ErrInvalidTable)
	}
	vc, ok := c.(*VarColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is not variable-length: %w", name, errs.ErrInvalidTable)
	}

	return vc, nil
}

// ScalarColumn returns the named fixed-width column.
func (t *Table) ScalarColumn(name string) (*ScalarColumn, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %s: %w", name, errs.ErrInvalidTable)
	}
	sc, ok := c.(*ScalarColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is not a scalar column: %w", name, errs.ErrInvalidTable)
	}

	return sc, nil
}

// RowBytes returns NAXIS1, the width of one main-table row.
func (t *Table) RowBytes() int {
	n := 0
	for _, c := range t.cols {
		n += c.Width()
	}

	return n
}

// ColumnSpec names one column of a Layout.
type ColumnSpec struct {
	Name  string
	TForm string
}

// Layout is what the table header says about the data: enough to parse a
// marshaled table back.
type Layout struct {
	NRows   int
	Columns []ColumnSpec
	// HeapOffset is THEAP. Zero means the heap starts right after the rows.
	HeapOffset int64
}

// Layout describes the table as it would be marshaled now.
func (t *Table) Layout() Layout {
	l := Layout{NRows: t.nrows, HeapOffset: int64(t.RowBytes() * t.nrows)}
	for _, c := range t.cols {
		l.Columns = append(l.Columns, ColumnSpec{Name: c.Name(), TForm: c.TForm()})
	}

	return l
}

// Keywords returns the structural header keywords of the table.
func (t *Table) Keywords() Header {
	var h Header
	h.Set("NAXIS1", t.RowBytes())
	h.Set("NAXIS2", t.nrows)
	h.Set("PCOUNT", t.heap.Len())
	h.Set("TFIELDS", len(t.cols))
	for i, c := range t.cols {
		h.Set(fmt.Sprintf("TTYPE%d", i+1), c.Name())
		h.Set(fmt.Sprintf("TFORM%d", i+1), c.TForm())
	}
	h.Set("THEAP", t.RowBytes()*t.nrows)

	return h
}

// MarshalBinary writes the rows followed by the heap, big-endian.
func (t *Table) MarshalBinary() ([]byte, error) {
	engine := endian.FITS()
	bb := pool.GetTableBuffer()
	defer pool.PutTableBuffer(bb)

	heap := t.heap.Data()
	bb.Grow(t.RowBytes()*t.nrows + len(heap))

	var err error
	for row := 0; row < t.nrows; row++ {
		for _, c := range t.cols {
			if bb.B, err = c.appendCell(bb.B, row, engine); err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
		}
	}
	_, _ = bb.Write(heap)

	out := make([]byte, bb.Len())
	copy(out, bb.Bytes())

	return out, nil
}

// UnmarshalTable parses data written by MarshalBinary, or read from a file,
// using the layout taken from the header. The heap aliases data.
func UnmarshalTable(data []byte, layout Layout) (*Table, error) {
	if layout.NRows < 0 {
		return nil, fmt.Errorf("NAXIS2 %d: %w", layout.NRows, errs.ErrInvalidTable)
	}

	t := New(layout.NRows)
	for _, spec := range layout.Columns {
		kind, form, err := ParseTForm(spec.TForm)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", spec.Name, err)
		}
		if form != 0 {
			_, err = t.AddVarColumn(spec.Name, kind, form)
		} else {
			_, err = t.AddScalarColumn(spec.Name, kind)
		}
		if err != nil {
			return nil, err
		}
	}

	rowBytes := t.RowBytes()
	mainSize := int64(rowBytes) * int64(layout.NRows)
	heapStart := layout.HeapOffset
	if heapStart == 0 {
		heapStart = mainSize
	}
	if heapStart < mainSize || heapStart > int64(len(data)) {
		return nil, fmt.Errorf("THEAP %d outside [%d, %d]: %w", heapStart, mainSize, len(data), errs.ErrInvalidTable)
	}
	t.heap = HeapFrom(data[heapStart:])
	for _, c := range t.cols {
		if vc, ok := c.(*VarColumn); ok {
			vc.heap = t.heap
		}
	}

	engine := endian.FITS()
	for row := 0; row < layout.NRows; row++ {
		off := row * rowBytes
		for _, c := range t.cols {
			if err := c.parseCell(data[off:off+c.Width()], row, engine); err != nil {
				return nil, err
			}
			off += c.Width()
		}
	}

	return t, nil
}

// Fingerprint hashes every descriptor and the heap, so two tables written
// from the same image compare equal regardless of how they were scheduled.
func (t *Table) Fingerprint() uint64 {
	d := hash.NewDigest()
	for _, c := range t.cols {
		vc, ok := c.(*VarColumn)
		if !ok {
			continue
		}
		for _, desc := range vc.descs {
			d.AddUint64(uint64(desc.Count))
			d.AddUint64(uint64(desc.Offset))
		}
	}
	d.AddUint64(t.heap.Fingerprint())

	return d.Sum64()
}

// DataSum returns the FITS DATASUM of the marshaled table: the 32-bit ones'
// complement sum of its big-endian words, the last word zero padded.
func (t *Table) DataSum() (uint32, error) {
	data, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}

	return Checksum(data), nil
}

// Checksum returns the 32-bit ones' complement sum of data as big-endian
// words.
func Checksum(data []byte) uint32 {
	var sum uint64
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		sum += uint64(data[i])<<24 | uint64(data[i+1])<<16 | uint64(data[i+2])<<8 | uint64(data[i+3])
	}
	if rest := data[n:]; len(rest) > 0 {
		var w [4]byte
		copy(w[:], rest)
		sum += uint64(w[0])<<24 | uint64(w[1])<<16 | uint64(w[2])<<8 | uint64(w[3])
	}
	for sum>>32 != 0 {
		sum = sum&0xffffffff + sum>>32
	}

	return uint32(sum)
}
