package notify

import (
	"context"
	"log"

	"github.com/hackgods/availability-holds/internal/hold"
)

// LogNotifier writes events to the process log. Used when no broker is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev hold.Event) error {
	n.logger.Printf("hold_event type=%s hold_id=%s holdee_id=%s requester_id=%s status=%s window=%s..%s",
		ev.Type, ev.Hold.ID, ev.Hold.HoldeeID, ev.Hold.RequesterID, ev.Hold.Status, ev.Hold.StartDate, ev.Hold.EndDate)
	return nil
}
