package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

// Message is the wire form of a hold lifecycle event.
type Message struct {
	EventType       string     `json:"event_type"`
	OccurredAt      time.Time  `json:"occurred_at"`
	HoldID          uuid.UUID  `json:"hold_id"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	HoldeeID        uuid.UUID  `json:"holdee_id"`
	StartDate       hold.Date  `json:"start_date"`
	EndDate         hold.Date  `json:"end_date"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ResponseMessage *string    `json:"response_message,omitempty"`
}

func NewMessage(ev hold.Event) Message {
	h := ev.Hold
	return Message{
		EventType:       string(ev.Type),
		OccurredAt:      ev.OccurredAt,
		HoldID:          h.ID,
		RequesterID:     h.RequesterID,
		HoldeeID:        h.HoldeeID,
		StartDate:       h.StartDate,
		EndDate:         h.EndDate,
		Status:          string(h.Status),
		ExpiresAt:       h.ExpiresAt,
		RespondedAt:     h.RespondedAt,
		ResponseMessage: h.ResponseMessage,
	}
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
