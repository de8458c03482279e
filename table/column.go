package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/format"
)

// Column is one field of the binary table.
type Column interface {
	Name() string
	// TForm returns the FITS TFORMn value of the column.
	TForm() string
	// Width returns the number of main-table bytes the column takes per row.
	Width() int

	appendCell(dst []byte, row int, engine endian.EndianEngine) ([]byte, error)
	parseCell(src []byte, row int, engine endian.EndianEngine) error
}

// kindLetter maps element kinds to TFORM type codes.
func kindLetter(k format.ElementKind) (byte, bool) {
	switch k {
	case format.KindUint8:
		return 'B', true
	case format.KindInt16:
		return 'I', true
	case format.KindInt32:
		return 'J', true
	case format.KindInt64:
		return 'K', true
	case format.KindFloat32:
		return 'E', true
	case format.KindFloat64:
		return 'D', true
	default:
		return 0, false
	}
}

func letterKind(c byte) format.ElementKind {
	switch c {
	case 'B':
		return format.KindUint8
	case 'I':
		return format.KindInt16
	case 'J':
		return format.KindInt32
	case 'K':
		return format.KindInt64
	case 'E':
		return format.KindFloat32
	case 'D':
		return format.KindFloat64
	default:
		return format.KindUnknown
	}
}

// ParseTForm decodes a TFORMn value. form is zero for fixed-width scalar
// columns. Repeat counts other than 1 are rejected; the tile compression
// tables never use them.
func ParseTForm(tform string) (kind format.ElementKind, form DescriptorForm, err error) {
	s := strings.ToUpper(strings.TrimSpace(tform))
	if strings.HasPrefix(s, "1") {
		s = s[1:]
	}
	if s == "" {
		return format.KindUnknown, 0, fmt.Errorf("TFORM %q: %w", tform, errs.ErrInvalidTable)
	}

	if f := DescriptorForm(s[0]); f.valid() {
		if len(s) < 2 {
			return format.KindUnknown, 0, fmt.Errorf("TFORM %q: %w", tform, errs.ErrInvalidTable)
		}
		kind = letterKind(s[1])
		rest := s[2:]
		if rest != "" {
			if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
				return format.KindUnknown, 0, fmt.Errorf("TFORM %q: %w", tform, errs.ErrInvalidTable)
			}
			if _, perr := strconv.ParseInt(rest[1:len(rest)-1], 10, 64); perr != nil {
				return format.KindUnknown, 0, fmt.Errorf("TFORM %q: %w", tform, errs.ErrInvalidTable)
			}
		}
		form = f
	} else {
		if len(s) != 1 {
			return format.KindUnknown, 0, fmt.Errorf("TFORM %q: %w", tform, errs.ErrInvalidTable)
		}
		kind = letterKind(s[0])
	}
	if kind == format.KindUnknown {
		return format.KindUnknown, 0, fmt.Errorf("TFORM %q: unknown type: %w", tform, errs.ErrInvalidTable)
	}

	return kind, form, nil
}

// VarColumn is a variable-length array column whose cells live in the heap.
type VarColumn struct {
	name  string
	elem  format.ElementKind
	form  DescriptorForm
	heap  *Heap
	descs []Descriptor
}

func (c *VarColumn) Name() string { return c.name }

// Elem returns the kind of the cell elements.
func (c *VarColumn) Elem() format.ElementKind { return c.elem }

func (c *VarColumn) Form() DescriptorForm { return c.form }

func (c *VarColumn) Width() int { return c.form.Size() }

// TForm returns e.g. "1PB(1234)", with the largest element count in
// parentheses.
func (c *VarColumn) TForm() string {
	letter, _ := kindLetter(c.elem)
	return fmt.Sprintf("1%c%c(%d)", c.form, letter, c.MaxCount())
}

// MaxCount returns the largest element count of any cell.
func (c *VarColumn) MaxCount() int64 {
	var m int64
	for _, d := range c.descs {
		m = max(m, d.Count)
	}

	return m
}

// Set appends p to the heap and points the row at it. p holds big-endian
// elements and its length must be a multiple of the element size. An empty p
// leaves the cell empty without touching the heap.
func (c *VarColumn) Set(row int, p []byte) error {
	if err := c.checkRow(row); err != nil {
		return err
	}
	size := c.elem.Size()
	if len(p)%size != 0 {
		return fmt.Errorf("column %s: %d bytes is not a multiple of %d: %w", c.name, len(p), size, errs.ErrLengthMismatch)
	}
	if len(p) == 0 {
		c.descs[row] = Descriptor{}
		return nil
	}

	maxOffset := int64(math.MaxInt64)
	if c.form == FormP {
		if len(p)/size > math.MaxInt32 {
			return fmt.Errorf("column %s: %d elements beyond the P form range: %w", c.name, len(p)/size, errs.ErrValueOutOfRange)
		}
		maxOffset = math.MaxInt32
	}

	d, err := c.heap.appendBelow(p, maxOffset)
	if err != nil {
		return fmt.Errorf("column %s: %w", c.name, err)
	}
	d.Count /= int64(size)
	c.descs[row] = d

	return nil
}

// SetDescriptor points the row at an existing heap range.
func (c *VarColumn) SetDescriptor(row int, d Descriptor) error {
	if err := c.checkRow(row); err != nil {
		return err
	}
	if d.Count > 0 && d.End(c.elem.Size()) > c.heap.Len() {
		return fmt.Errorf("column %s row %d: descriptor %+v beyond heap: %w", c.name, row, d, errs.ErrInvalidTable)
	}
	c.descs[row] = d

	return nil
}

func (c *VarColumn) Descriptor(row int) (Descriptor, error) {
	if err := c.checkRow(row); err != nil {
		return Descriptor{}, err
	}

	return c.descs[row], nil
}

// Get returns the bytes of a cell. The slice aliases the heap.
func (c *VarColumn) Get(row int) ([]byte, error) {
	if err := c.checkRow(row); err != nil {
		return nil, err
	}
	d := c.descs[row]
	if d.Count == 0 {
		return nil, nil
	}

	return c.heap.Bytes(d.Offset, d.Count*int64(c.elem.Size()))
}

func (c *VarColumn) checkRow(row int) error {
	if row < 0 || row >= len(c.descs) {
		return fmt.Errorf("column %s: row %d of %d: %w", c.name, row, len(c.descs), errs.ErrInvalidTable)
	}

	return nil
}

func (c *VarColumn) appendCell(dst []byte, row int, engine endian.EndianEngine) ([]byte, error) {
	return c.descs[row].AppendTo(dst, c.form, engine)
}

func (c *VarColumn) parseCell(src []byte, row int, engine endian.EndianEngine) error {
	d, err := ParseDescriptor(src, c.form, engine)
	if err != nil {
		return fmt.Errorf("column %s row %d: %w", c.name, row, err)
	}

	return c.SetDescriptor(row, d)
}

// ScalarColumn is a fixed-width numeric column with one value per row.
// Integer kinds keep exact int64 values, float kinds keep float64.
type ScalarColumn struct {
	name   string
	kind   format.ElementKind
	ints   []int64
	floats []float64
}

func (c *ScalarColumn) Name() string { return c.name }

func (c *ScalarColumn) Kind() format.ElementKind { return c.kind }

func (c *ScalarColumn) Width() int { return c.kind.Size() }

func (c *ScalarColumn) TForm() string {
	letter, _ := kindLetter(c.kind)
	return "1" + string(letter)
}

func (c *ScalarColumn) rows() int {
	if c.kind.IsFloat() {
		return len(c.floats)
	}

	return len(c.ints)
}

func (c *ScalarColumn) checkRow(row int) error {
	if row < 0 || row >= c.rows() {
		return fmt.Errorf("column %s: row %d of %d: %w", c.name, row, c.rows(), errs.ErrInvalidTable)
	}

	return nil
}

// SetFloat stores v. On an integer column v must be integral and in range.
func (c *ScalarColumn) SetFloat(row int, v float64) error {
	if err := c.checkRow(row); err != nil {
		return err
	}
	if c.kind.IsFloat() {
		c.floats[row] = v
		return nil
	}
	if v != math.Trunc(v) || math.IsNaN(v) {
		return fmt.Errorf("column %s: %v is not an integer: %w", c.name, v, errs.ErrValueOutOfRange)
	}

	return c.SetInt(row, int64(v))
}

// SetInt stores v, checking it against the column's integer range.
func (c *ScalarColumn) SetInt(row int, v int64) error {
	if err := c.checkRow(row); err != nil {
		return err
	}
	if c.kind.IsFloat() {
		c.floats[row] = float64(v)
		return nil
	}
	if !fitsKind(c.kind, v) {
		return fmt.Errorf("column %s: %d does not fit %s: %w", c.name, v, c.kind, errs.ErrValueOutOfRange)
	}
	c.ints[row] = v

	return nil
}

func (c *ScalarColumn) Float(row int) (float64, error) {
	if err := c.checkRow(row); err != nil {
		return 0, err
	}
	if c.kind.IsFloat() {
		return c.floats[row], nil
	}

	return float64(c.ints[row]), nil
}

func (c *ScalarColumn) Int(row int) (int64, error) {
	if err := c.checkRow(row); err != nil {
		return 0, err
	}
	if c.kind.IsFloat() {
		return int64(c.floats[row]), nil
	}

	return c.ints[row], nil
}

func fitsKind(k format.ElementKind, v int64) bool {
	switch k {
	case format.KindUint8:
		return v >= 0 && v <= math.MaxUint8
	case format.KindInt16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case format.KindInt32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	default:
		return true
	}
}

func (c *ScalarColumn) appendCell(dst []byte, row int, engine endian.EndianEngine) ([]byte, error) {
	switch c.kind {
	case format.KindUint8:
		return append(dst, byte(c.ints[row])), nil
	case format.KindInt16:
		return engine.AppendUint16(dst, uint16(c.ints[row])), nil
	case format.KindInt32:
		return engine.AppendUint32(dst, uint32(c.ints[row])), nil
	case format.KindInt64:
		return engine.AppendUint64(dst, uint64(c.ints[row])), nil
	case format.KindFloat32:
		return engine.AppendUint32(dst, math.Float32bits(float32(c.floats[row]))), nil
	case format.KindFloat64:
		return engine.AppendUint64(dst, math.Float64bits(c.floats[row])), nil
	default:
		return dst, fmt.Errorf("column %s: %w", c.name, errs.ErrInvalidTable)
	}
}

func (c *ScalarColumn) parseCell(src []byte, row int, engine endian.EndianEngine) error {
	if len(src) < c.Width() {
		return fmt.Errorf("column %s row %d: short cell: %w", c.name, row, errs.ErrInvalidTable)
	}
	switch c.kind {
	case format.KindUint8:
		c.ints[row] = int64(src[0])
	case format.KindInt16:
		c.ints[row] = int64(int16(engine.Uint16(src)))
	case format.KindInt32:
		c.ints[row] = int64(int32(engine.Uint32(src)))
	case format.KindInt64:
		c.ints[row] = int64(engine.Uint64(src))
	case format.KindFloat32:
		c.floats[row] = float64(math.Float32frombits(engine.Uint32(src)))
	case format.KindFloat64:
		c.floats[row] = math.Float64frombits(engine.Uint64(src))
	default:
		return fmt.Errorf("column %s: %w", c.name, errs.ErrInvalidTable)
	}

	return nil
}
