package session

import "fmt"

// State is the lifecycle position of a per-request Session.
type State string

const (
	StateUnstarted State = "unstarted"
	StateActive    State = "active"
	StateSaved     State = "saved"
	StateDiscarded State = "discarded"
)

type event string

const (
	eventStart   event = "start"
	eventSave    event = "save"
	eventDiscard event = "discard"
)

// transitions maps [from][event] to the target state.
var transitions = map[State]map[event]State{
	StateUnstarted: {
		eventStart:   StateActive,
		eventDiscard: StateDiscarded,
	},
	StateActive: {
		eventSave:    StateSaved,
		eventDiscard: StateDiscarded,
	},
}

// next resolves a transition or reports why it is not available.
func next(from State, ev event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	switch {
	case from == StateUnstarted:
		return from, ErrNotStarted
	case from == StateActive && ev == eventStart:
		return from, ErrAlreadyStarted
	case from == StateSaved || from == StateDiscarded:
		return from, ErrSessionClosed
	default:
		return from, fmt.Errorf("session: no transition from %q on %q", from, ev)
	}
}

// requireActive guards every operation that needs a started, open session.
func requireActive(s State) error {
	switch s {
	case StateActive:
		return nil
	case StateUnstarted:
		return ErrNotStarted
	default:
		return ErrSessionClosed
	}
}
