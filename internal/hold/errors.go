package hold

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("hold not found")
	ErrForbidden       = errors.New("actor is not allowed to perform this action")
	ErrAlreadyResolved = errors.New("hold already resolved")
	ErrExpired         = errors.New("hold expired")
	ErrConflict        = errors.New("window overlaps an accepted hold")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrSelfHold        = errors.New("requester cannot hold their own calendar")
	ErrInvalidAction   = errors.New("invalid action")
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidFilter   = errors.New("holdee_id or requester_id is required")
	ErrNotYetExpired   = errors.New("hold has not reached its expiry")
	ErrLockNotAcquired = errors.New("holdee lock not acquired")

	// ErrStatusChanged is returned by Repository.TransitionStatus when the row
	// no longer matches the expected status or expiry guard.
	ErrStatusChanged = errors.New("hold status changed concurrently")
)

// AlreadyResolvedError reports the status a hold was already in.
type AlreadyResolvedError struct {
	HoldID  uuid.UUID
	Current Status
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("hold %s already resolved: status is %s", e.HoldID, e.Current)
}

func (e *AlreadyResolvedError) Is(target error) bool {
	return target == ErrAlreadyResolved
}

// ConflictError names the accepted hold that occupies the requested window.
type ConflictError struct {
	HoldID            uuid.UUID
	ConflictingHoldID uuid.UUID
	Start             Date
	End               Date
}

func (e *ConflictError) Error() string {
	if e.ConflictingHoldID == uuid.Nil {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("window overlaps accepted hold %s (%s to %s)", e.ConflictingHoldID, e.Start, e.End)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type ExpiredError struct {
	HoldID    uuid.UUID
	ExpiresAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("hold %s expired at %s", e.HoldID, e.ExpiresAt.Format(time.RFC3339))
}

func (e *ExpiredError) Is(target error) bool {
	return target == ErrExpired
}

// ValidationError wraps a validation sentinel with a human readable reason.
type ValidationError struct {
	Err    error
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Reason: fmt.Sprintf(format, args...)}
}
