package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type CreateHoldRequest struct {
	RequesterID string `json:"requester_id" validate:"required,uuid"`
	HoldeeID    string `json:"holdee_id" validate:"required,uuid"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type RespondRequest struct {
	Action  string  `json:"action" validate:"required,oneof=accept decline"`
	Message *string `json:"message" validate:"omitempty,max=1000"`
}

type HoldResponse struct {
	ID              uuid.UUID  `json:"id"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	HoldeeID        uuid.UUID  `json:"holdee_id"`
	StartDate       hold.Date  `json:"start_date"`
	EndDate         hold.Date  `json:"end_date"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ResponseMessage *string    `json:"response_message,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ListHoldsResponse struct {
	Holds  []HoldResponse `json:"holds"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type ConflictDetail struct {
	HoldID    uuid.UUID `json:"hold_id"`
	StartDate hold.Date `json:"start_date"`
	EndDate   hold.Date `json:"end_date"`
}

type ErrorResponse struct {
	Error         string          `json:"error"`
	Details       string          `json:"details,omitempty"`
	CurrentStatus string          `json:"current_status,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Conflict      *ConflictDetail `json:"conflict,omitempty"`
}

func toHoldResponse(h hold.Hold) HoldResponse {
	return HoldResponse{
		ID:              h.ID,
		RequesterID:     h.RequesterID,
		HoldeeID:        h.HoldeeID,
		StartDate:       h.StartDate,
		EndDate:         h.EndDate,
		Status:          string(h.Status),
		ExpiresAt:       h.ExpiresAt,
		ResponseMessage: h.ResponseMessage,
		RespondedAt:     h.RespondedAt,
		CreatedAt:       h.CreatedAt,
	}
}
