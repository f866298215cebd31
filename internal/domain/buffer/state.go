package buffer

import "fmt"

// State represents the lifecycle position of one slot
type State int

const (
	StateEmpty State = iota
	StateProducing
	StateCompleted
	StateConsuming
	StateConsumed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateProducing:
		return "producing"
	case StateCompleted:
		return "completed"
	case StateConsuming:
		return "consuming"
	case StateConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its label
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state label
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range States() {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown slot state %q", string(text))
}

// States lists every state in lifecycle order
func States() []State {
	return []State{StateEmpty, StateProducing, StateCompleted, StateConsuming, StateConsumed}
}

// Producible reports whether a producer may claim a slot in this state
func (s State) Producible() bool {
	return s == StateEmpty || s == StateConsumed
}

// InFlight reports whether a worker currently owns a slot in this state
func (s State) InFlight() bool {
	return s == StateProducing || s == StateConsuming
}

// Holding reports whether the slot carries an item that was produced but not yet consumed
func (s State) Holding() bool {
	return s == StateCompleted || s == StateConsuming
}

// CanTransition reports whether to is a legal successor of s
func (s State) CanTransition(to State) bool {
	switch s {
	case StateEmpty, StateConsumed:
		return to == StateProducing
	case StateProducing:
		return to == StateCompleted
	case StateCompleted:
		return to == StateConsuming
	case StateConsuming:
		return to == StateConsumed
	default:
		return false
	}
}
