package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/arloliu/fitstile/errs"
)

// Keyword is one header card. Value is an int64, float64, string or bool;
// Set normalizes other integer types to int64.
type Keyword struct {
	Name  string
	Value any
}

// Header is an ordered list of keywords. Names are upper case and unique.
type Header []Keyword

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case uint8:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// Set replaces the value of name, or appends a new keyword.
func (h *Header) Set(name string, value any) {
	name = strings.ToUpper(name)
	value = normalize(value)
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Keyword{Name: name, Value: value})
}

// Delete removes name if present.
func (h *Header) Delete(name string) {
	name = strings.ToUpper(name)
	for i := range *h {
		if (*h)[i].Name == name {
			*h = append((*h)[:i], (*h)[i+1:]...)
			return
		}
	}
}

func (h Header) Lookup(name string) (any, bool) {
	name = strings.ToUpper(name)
	for _, k := range h {
		if k.Name == name {
			return k.Value, true
		}
	}

	return nil, false
}

func (h Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

func (h Header) get(name string) (any, error) {
	v, ok := h.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", strings.ToUpper(name), errs.ErrMissingKeyword)
	}

	return v, nil
}

// Int returns an integer keyword. Integral float values are accepted.
func (h Header) Int(name string) (int64, error) {
	v, err := h.get(name)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
			return int64(x), nil
		}
	}

	return 0, fmt.Errorf("%s = %v is not an integer: %w", name, v, errs.ErrInvalidTable)
}

func (h Header) Float(name string) (float64, error) {
	v, err := h.get(name)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}

	return 0, fmt.Errorf("%s = %v is not a number: %w", name, v, errs.ErrInvalidTable)
}

func (h Header) String(name string) (string, error) {
	v, err := h.get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s = %v is not a string: %w", name, v, errs.ErrInvalidTable)
	}

	return s, nil
}

func (h Header) Bool(name string) (bool, error) {
	v, err := h.get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s = %v is not logical: %w", name, v, errs.ErrInvalidTable)
	}

	return b, nil
}

// Merge sets every keyword of o on h, in o's order.
func (h *Header) Merge(o Header) {
	for _, k := range o {
		h.Set(k.Name, k.Value)
	}
}

// Layout rebuilds the table layout from structural keywords.
func (h Header) Layout() (Layout, error) {
	nrows, err := h.Int("NAXIS2")
	if err != nil {
		return Layout{}, err
	}
	nfields, err := h.Int("TFIELDS")
	if err != nil {
		return Layout{}, err
	}

	l := Layout{NRows: int(nrows)}
	for i := 1; i <= int(nfields); i++ {
		name, err := h.String(fmt.Sprintf("TTYPE%d", i))
		if err != nil {
			return Layout{}, err
		}
		tform, err := h.String(fmt.Sprintf("TFORM%d", i))
		if err != nil {
			return Layout{}, err
		}
		l.Columns = append(l.Columns, ColumnSpec{Name: name, TForm: tform})
	}
	if h.Has("THEAP") {
		if l.HeapOffset, err = h.Int("THEAP"); err != nil {
			return Layout{}, err
		}
	}

	return l, nil
}
