package model

// State is the shared lifecycle of records that are never hard-deleted.
type State string

const (
	StateActive   State = "ACTIVE"
	StateDisabled State = "DISABLED"
	StateVoided   State = "VOIDED"
)

// transitions lists every legal lifecycle move. VOIDED is terminal.
var transitions = map[State][]State{
	StateActive:   {StateDisabled, StateVoided},
	StateDisabled: {StateActive},
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateActive, StateDisabled, StateVoided:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
