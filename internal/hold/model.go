package hold

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts only the five known statuses.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusDeclined, StatusExpired, StatusCancelled:
		return st, true
	}
	return "", false
}

// IsTerminal is true for every status except pending.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Hold is a requester's claim on a window of the holdee's calendar.
type Hold struct {
	ID              uuid.UUID
	RequesterID     uuid.UUID
	HoldeeID        uuid.UUID
	StartDate       Date
	EndDate         Date
	Status          Status
	ExpiresAt       time.Time
	ResponseMessage *string
	RespondedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Overlaps reports whether h covers any day of [start, end].
func (h Hold) Overlaps(start, end Date) bool {
	return Overlaps(h.StartDate, h.EndDate, start, end)
}

// EventType names a lifecycle event handed to the notifier and the event log.
type EventType string

const (
	EventCreated   EventType = "created"
	EventAccepted  EventType = "accepted"
	EventDeclined  EventType = "declined"
	EventExpired   EventType = "expired"
	EventCancelled EventType = "cancelled"
)

// Event is the snapshot passed to a Notifier after a transition commits.
type Event struct {
	Type       EventType
	Hold       Hold
	OccurredAt time.Time
}

type EventLog struct {
	ID        int64
	EventType EventType
	HoldID    uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// ListFilter selects holds for the read endpoints. One of HoldeeID or
// RequesterID is required.
type ListFilter struct {
	HoldeeID    *uuid.UUID
	RequesterID *uuid.UUID
	Status      *Status
	Limit       int
	Offset      int
}

// WithPageDefaults returns f with the default page size applied, the limit
// capped and a negative offset reset to zero.
func (f ListFilter) WithPageDefaults() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
