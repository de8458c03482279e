package table

import (
	"fmt"
	"math"

	"github.com/arloliu/fitstile/endian"
	"github.com/arloliu/fitstile/errs"
)

// DescriptorForm is the TFORM letter of a variable-length column.
type DescriptorForm byte

const (
	FormP DescriptorForm = 'P'
	FormQ DescriptorForm = 'Q'
)

// Size returns the number of main-table bytes a descriptor occupies.
func (f DescriptorForm) Size() int {
	if f == FormQ {
		return DescriptorQSize
	}

	return DescriptorPSize
}

func (f DescriptorForm) valid() bool { return f == FormP || f == FormQ }

// Descriptor locates one cell's elements in the heap.
type Descriptor struct {
	Count  int64 // elements
	Offset int64 // bytes from the heap start
}

// End returns the heap offset just past the cell for elements of elemSize
// bytes.
func (d Descriptor) End(elemSize int) int64 {
	return d.Offset + d.Count*int64(elemSize)
}

// AppendTo appends the descriptor in the given form.
func (d Descriptor) AppendTo(dst []byte, form DescriptorForm, engine endian.EndianEngine) ([]byte, error) {
	if d.Count < 0 || d.Offset < 0 {
		return dst, fmt.Errorf("descriptor %+v: %w", d, errs.ErrInvalidTable)
	}
	if form == FormQ {
		dst = engine.AppendUint64(dst, uint64(d.Count))
		return engine.AppendUint64(dst, uint64(d.Offset)), nil
	}
	if d.Count > math.MaxInt32 || d.Offset > math.MaxInt32 {
		return dst, fmt.Errorf("descriptor %+v does not fit the P form: %w", d, errs.ErrValueOutOfRange)
	}
	dst = engine.AppendUint32(dst, uint32(d.Count))

	return engine.AppendUint32(dst, uint32(d.Offset)), nil
}

// ParseDescriptor reads one descriptor of the given form from the start of
// data.
func ParseDescriptor(data []byte, form DescriptorForm, engine endian.EndianEngine) (Descriptor, error) {
	if len(data) < form.Size() {
		return Descriptor{}, fmt.Errorf("descriptor needs %d bytes, have %d: %w", form.Size(), len(data), errs.ErrInvalidTable)
	}

	var d Descriptor
	if form == FormQ {
		d = Descriptor{Count: int64(engine.Uint64(data[0:8])), Offset: int64(engine.Uint64(data[8:16]))}
	} else {
		d = Descriptor{Count: int64(int32(engine.Uint32(data[0:4]))), Offset: int64(int32(engine.Uint32(data[4:8])))}
	}
	if d.Count < 0 || d.Offset < 0 {
		return Descriptor{}, fmt.Errorf("negative descriptor %+v: %w", d, errs.ErrInvalidTable)
	}

	return d, nil
}
