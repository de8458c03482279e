package tiled

// State is the lifecycle state of one tile operation.
type State uint8

const (
	StatePending State = iota
	StateBuffering
	StateTransforming
	StateCoding
	StateCommitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateBuffering:
		return "Buffering"
	case StateTransforming:
		return "Transforming"
	case StateCoding:
		return "Coding"
	case StateCommitting:
		return "Committing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// direction fixes the order of the working states.
type direction uint8

const (
	directionCompress direction = iota
	directionDecompress
)

func (d direction) String() string {
	if d == directionDecompress {
		return "decompress"
	}

	return "compress"
}

var (
	compressSteps   = [...]State{StateBuffering, StateTransforming, StateCoding, StateCommitting}
	decompressSteps = [...]State{StateBuffering, StateCoding, StateTransforming, StateCommitting}
)

func (d direction) steps() [4]State {
	if d == directionDecompress {
		return decompressSteps
	}

	return compressSteps
}
