// Package send implements optimistic message sending.
//
// Every send is a small state machine, Idle → Optimistic → Confirmed or
// Failed, advanced by the pure Reduce function. The Controller performs the
// side effects (cache writes, the network call, notifications) around it.
package send

import (
	"fmt"

	"client_go/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateOptimistic
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type EventKind int

const (
	EventSubmitted EventKind = iota
	EventSucceeded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSubmitted:
		return "submitted"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event drives an Op forward.
type Event struct {
	Kind        EventKind
	Placeholder domain.Message
	Confirmed   *domain.Message
	Err         error
}

// Op is the state of one send.
type Op struct {
	CorrelationID  string
	ConversationID int64
	Content        string
	State          State
	Placeholder    domain.Message
	Confirmed      *domain.Message
	Err            error
}

// Terminal reports whether the op has settled.
func (o Op) Terminal() bool {
	return o.State == StateConfirmed || o.State == StateFailed
}

// Reduce applies ev to op and returns the next op. It has no side effects.
func Reduce(op Op, ev Event) (Op, error) {
	switch {
	case op.State == StateIdle && ev.Kind == EventSubmitted:
		if ev.Placeholder.OptimisticID != op.CorrelationID || ev.Placeholder.ID != 0 {
			return op, fmt.Errorf("%w: placeholder must carry correlation id %q", domain.ErrInvalidTransition, op.CorrelationID)
		}
		op.State = StateOptimistic
		op.Placeholder = ev.Placeholder
		return op, nil

	case op.State == StateOptimistic && ev.Kind == EventSucceeded:
		if ev.Confirmed == nil || ev.Confirmed.ID == 0 {
			return op, fmt.Errorf("%w: confirmation without message id", domain.ErrMalformedResponse)
		}
		confirmed := *ev.Confirmed
		confirmed.OptimisticID = ""
		op.State = StateConfirmed
		op.Confirmed = &confirmed
		return op, nil

	case op.State == StateOptimistic && ev.Kind == EventFailed:
		op.State = StateFailed
		op.Err = ev.Err
		return op, nil
	}
	return op, fmt.Errorf("%w: %s on %s", domain.ErrInvalidTransition, ev.Kind, op.State)
}
