package errs

import (
	"fmt"
	"sort"
	"strings"
)

// TileError wraps the failure of a single tile operation with the tile index
// and the state the operation was in when it failed.
type TileError struct {
	Index int
	State string
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d failed while %s: %v", e.Index, e.State, e.Err)
}

// Unwrap exposes both the tile failure marker and the originating error.
func (e *TileError) Unwrap() []error {
	return []error{ErrTileFailure, e.Err}
}

// Kind returns the originating error kind.
func (e *TileError) Kind() error {
	return Kind(e.Err)
}

// TileErrors aggregates the failures of a collect-all run, sorted by tile index.
type TileErrors []*TileError

// NewTileErrors drops nil entries and sorts the remainder by tile index.
// It returns nil when no failure remains.
func NewTileErrors(list []*TileError) TileErrors {
	out := make(TileErrors, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out
}

func (es TileErrors) Error() string {
	switch len(es) {
	case 0:
		return "no tile failures"
	case 1:
		return es[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tiles failed:", len(es))
	for _, e := range es {
		sb.WriteString("\n\t")
		sb.WriteString(e.Error())
	}

	return sb.String()
}

func (es TileErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}

	return out
}

// Indices returns the failed tile indices in ascending order.
func (es TileErrors) Indices() []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.Index
	}

	return out
}
