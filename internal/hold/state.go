package hold

import (
	"time"

	"github.com/google/uuid"
)

// Action is a lifecycle event applied to a pending hold.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionExpire  Action = "expire"
	ActionCancel  Action = "cancel"
)

// ParseResponseAction accepts the two actions a holdee may take.
func ParseResponseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAccept, ActionDecline:
		return a, nil
	}
	return "", invalid(ErrInvalidAction, "action must be accept or decline, got %q", s)
}

type role int

const (
	roleHoldee role = iota
	roleRequester
	roleSystem
)

// ExpiryGuard tells the repository which expiry condition must still hold
// when the conditional update is written.
type ExpiryGuard int

const (
	GuardNone ExpiryGuard = iota
	GuardUnexpired
	GuardExpired
)

type rule struct {
	to    Status
	event EventType
	actor role
	guard ExpiryGuard
}

// The conflict guard on accept needs the persisted hold set and is applied by
// the service under the holdee lock.
var transitions = map[Action]rule{
	ActionAccept:  {to: StatusAccepted, event: EventAccepted, actor: roleHoldee, guard: GuardUnexpired},
	ActionDecline: {to: StatusDeclined, event: EventDeclined, actor: roleHoldee, guard: GuardUnexpired},
	ActionExpire:  {to: StatusExpired, event: EventExpired, actor: roleSystem, guard: GuardExpired},
	ActionCancel:  {to: StatusCancelled, event: EventCancelled, actor: roleRequester, guard: GuardNone},
}

// Step is the outcome of a legal transition.
type Step struct {
	From  Status
	To    Status
	Event EventType
	Guard ExpiryGuard
}

// Transition checks that actor may apply a to h at now. It returns
// ErrForbidden, *AlreadyResolvedError, *ExpiredError or ErrNotYetExpired when
// the move is not in the table.
func Transition(h Hold, a Action, actor uuid.UUID, now time.Time) (Step, error) {
	r, ok := transitions[a]
	if !ok {
		return Step{}, invalid(ErrInvalidAction, "unknown action %q", a)
	}

	switch r.actor {
	case roleHoldee:
		if actor != h.HoldeeID {
			return Step{}, ErrForbidden
		}
	case roleRequester:
		if actor != h.RequesterID {
			return Step{}, ErrForbidden
		}
	}

	if h.Status != StatusPending {
		return Step{}, resolvedError(h, r.guard)
	}

	expired := !now.Before(h.ExpiresAt)
	switch r.guard {
	case GuardUnexpired:
		if expired {
			return Step{}, &ExpiredError{HoldID: h.ID, ExpiresAt: h.ExpiresAt}
		}
	case GuardExpired:
		if !expired {
			return Step{}, ErrNotYetExpired
		}
	}

	return Step{From: StatusPending, To: r.to, Event: r.event, Guard: r.guard}, nil
}

// resolvedError explains why a hold that left pending cannot take a move
// with the given guard. An answer to a hold the sweeper already expired is
// reported as expired rather than resolved.
func resolvedError(h Hold, guard ExpiryGuard) error {
	if h.Status == StatusExpired && guard == GuardUnexpired {
		return &ExpiredError{HoldID: h.ID, ExpiresAt: h.ExpiresAt}
	}
	return &AlreadyResolvedError{HoldID: h.ID, Current: h.Status}
}
