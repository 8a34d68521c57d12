// Package lifecycle implements the state machine that drives a contract call
// from its signature to its confirmation.
//
// The machine moves from Idle to Submitting when the call is handed to the
// signing agent, then to AwaitingConfirmation once the backend accepted the
// transaction, and finally to one of the terminal states Succeeded or Failed.
// The transitions are defined by a pure function so that the rules can be
// verified independently of the agent and the backend.
//
// Waiting for the agent or the backend has no timeout. Only the context of
// the caller can stop it.
//
// Documentation Last Review: 15.10.2026
//
package lifecycle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"
)

// Phase is the type of the different possible phases of a transaction.
type Phase byte

const (
	// Idle is the phase before the call is submitted.
	Idle Phase = iota
	// Submitting is the phase where the call waits for the agent approval and
	// the acceptance of the backend.
	Submitting
	// AwaitingConfirmation is the phase where the transaction has a hash and
	// waits to be included.
	AwaitingConfirmation
	// Succeeded is the terminal phase of a confirmed transaction.
	Succeeded
	// Failed is the terminal phase of a declined, refused or reverted
	// transaction.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the state of a transaction. The hash is known from the
// AwaitingConfirmation phase and the failure is only set in the Failed phase.
type State struct {
	Phase   Phase
	Hash    common.Hash
	Failure Failure
}

// Terminal returns true if the state cannot change anymore.
func (s State) Terminal() bool {
	return s.Phase == Succeeded || s.Phase == Failed
}

// String returns a short description of the state.
func (s State) String() string {
	switch s.Phase {
	case AwaitingConfirmation, Succeeded:
		return fmt.Sprintf("%v(%s)", s.Phase, s.Hash.Hex())
	case Failed:
		return fmt.Sprintf("%v(%v: %s)", s.Phase, s.Failure.Kind, s.Failure.Message)
	default:
		return s.Phase.String()
	}
}

// EventKind is the type of events that move the state machine.
type EventKind byte

const (
	// EventSubmit is the start of the submission.
	EventSubmit EventKind = iota
	// EventSent is the acceptance of the transaction by the backend.
	EventSent
	// EventConfirmed is the successful inclusion of the transaction.
	EventConfirmed
	// EventFailed is any failure of the submission or the confirmation.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSubmit:
		return "submit"
	case EventSent:
		return "sent"
	case EventConfirmed:
		return "confirmed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is an input of the state machine.
type Event struct {
	Kind    EventKind
	Hash    common.Hash
	Failure Failure
}

// Submit returns the event starting the submission.
func Submit() Event {
	return Event{Kind: EventSubmit}
}

// Sent returns the event of a transaction accepted by the backend.
func Sent(hash common.Hash) Event {
	return Event{Kind: EventSent, Hash: hash}
}

// Confirmed returns the event of a successful inclusion.
func Confirmed() Event {
	return Event{Kind: EventConfirmed}
}

// Fail returns the event of a failure.
func Fail(f Failure) Event {
	return Event{Kind: EventFailed, Failure: f}
}

// Transition returns the state after the event, or an error if the event is
// not allowed in the current state. A terminal state accepts no event.
func Transition(s State, e Event) (State, error) {
	switch {
	case s.Phase == Idle && e.Kind == EventSubmit:
		return State{Phase: Submitting}, nil

	case s.Phase == Submitting && e.Kind == EventSent:
		return State{Phase: AwaitingConfirmation, Hash: e.Hash}, nil

	case s.Phase == AwaitingConfirmation && e.Kind == EventConfirmed:
		return State{Phase: Succeeded, Hash: s.Hash}, nil

	case (s.Phase == Submitting || s.Phase == AwaitingConfirmation) && e.Kind == EventFailed:
		return State{Phase: Failed, Hash: s.Hash, Failure: e.Failure}, nil
	}

	return s, xerrors.Errorf("invalid transition from %v on %v", s.Phase, e.Kind)
}
