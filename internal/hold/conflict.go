package hold

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AcceptedReader returns accepted holds of a holdee whose range may overlap
// [start, end]. Implementations may over-select; the checker filters.
type AcceptedReader interface {
	ListAcceptedOverlapping(ctx context.Context, holdeeID uuid.UUID, start, end Date) ([]Hold, error)
}

type ConflictChecker struct {
	reader AcceptedReader
}

func NewConflictChecker(reader AcceptedReader) *ConflictChecker {
	return &ConflictChecker{reader: reader}
}

// HasConflict looks for an accepted hold of holdeeID that overlaps
// [start, end], ignoring excludeID. The first overlapping hold is returned.
func (c *ConflictChecker) HasConflict(ctx context.Context, holdeeID uuid.UUID, start, end Date, excludeID uuid.UUID) (*Hold, bool, error) {
	accepted, err := c.reader.ListAcceptedOverlapping(ctx, holdeeID, start, end)
	if err != nil {
		return nil, false, fmt.Errorf("list accepted holds: %w", err)
	}

	for i := range accepted {
		h := accepted[i]
		if h.ID == excludeID || h.HoldeeID != holdeeID || h.Status != StatusAccepted {
			continue
		}
		if h.Overlaps(start, end) {
			return &h, true, nil
		}
	}
	return nil, false, nil
}
