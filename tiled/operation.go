package tiled

import (
	"fmt"
	"time"

	"github.com/arloliu/fitstile/errs"
	"github.com/arloliu/fitstile/quant"
	"github.com/arloliu/fitstile/tile"
)

// step is one stage of a tile operation. It works on the operation's tile
// buffer and fills in its report.
type step func(op *operation) error

// operation is bound to exactly one tile and is not reused.
type operation struct {
	dir     direction
	buf     *tile.Buffer
	state   State
	history []State
	report  TileReport
	started time.Time
}

func newOperation(dir direction, t tile.Tile, src tile.Source) *operation {
	return &operation{
		dir:     dir,
		buf:     tile.NewBuffer(t, src),
		state:   StatePending,
		history: []State{StatePending},
		report:  TileReport{Tile: t},
	}
}

func (op *operation) Tile() tile.Tile { return op.buf.Tile() }

func (op *operation) State() State { return op.state }

// next returns the state that follows the current one on success.
func (op *operation) next() State {
	steps := op.dir.steps()
	if op.state == StatePending {
		return steps[0]
	}
	for i, s := range steps {
		if s == op.state {
			if i == len(steps)-1 {
				return StateDone
			}
			return steps[i+1]
		}
	}

	return op.state
}

// transition moves to s. Only the next state of the direction's sequence
// or Failed may follow a non-terminal state.
func (op *operation) transition(s State) error {
	if op.state.Terminal() {
		return fmt.Errorf("tile %d: transition %s -> %s after completion", op.Tile().Index, op.state, s)
	}
	if s != StateFailed && s != op.next() {
		return fmt.Errorf("tile %d: illegal transition %s -> %s", op.Tile().Index, op.state, s)
	}
	op.state = s
	op.history = append(op.history, s)

	return nil
}

// run executes the four steps in the direction's order. The tile buffer is
// released whatever the outcome.
func (op *operation) run(steps [4]step) *errs.TileError {
	op.started = time.Now()
	defer op.buf.Release()

	for _, fn := range steps {
		if err := op.transition(op.next()); err != nil {
			return op.fail(err)
		}
		if err := fn(op); err != nil {
			return op.fail(err)
		}
	}
	_ = op.transition(StateDone)
	op.finish(nil)

	return nil
}

func (op *operation) fail(err error) *errs.TileError {
	te := &errs.TileError{Index: op.Tile().Index, State: op.state.String(), Err: err}
	_ = op.transition(StateFailed)
	op.finish(te)

	return te
}

func (op *operation) finish(te *errs.TileError) {
	op.report.State = op.state
	op.report.History = op.history
	op.report.Err = te
	op.report.Duration = time.Since(op.started)
}

// TileReport describes how one tile went.
type TileReport struct {
	Tile    tile.Tile
	State   State
	History []State
	// Column names the table column that holds the tile's pixels.
	Column string
	// Bytes is the size of the tile's compressed pixel blob.
	Bytes int
	// Fallback is set when a float tile could not be quantized and was
	// stored losslessly instead.
	Fallback bool
	// Quantized is set when Params hold the tile's ZSCALE and ZZERO.
	Quantized bool
	Params    quant.Params
	// Nulls counts the undefined pixels of the tile.
	Nulls    int
	Duration time.Duration
	Err      *errs.TileError
}

// Report collects the per-tile outcome of one run, in tile index order.
type Report struct {
	Tiles    []TileReport
	Failures errs.TileErrors
}

// Done returns the number of tiles that completed.
func (r *Report) Done() int {
	n := 0
	for _, t := range r.Tiles {
		if t.State == StateDone {
			n++
		}
	}

	return n
}

// Failed returns the indices of failed tiles in ascending order.
func (r *Report) Failed() []int {
	return r.Failures.Indices()
}

// Fallbacks returns the indices of tiles stored with the lossless fallback.
func (r *Report) Fallbacks() []int {
	var out []int
	for _, t := range r.Tiles {
		if t.Fallback {
			out = append(out, t.Tile.Index)
		}
	}

	return out
}
