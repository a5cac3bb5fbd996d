package hold

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate is a compare-and-swap on a hold's status. It applies only if
// the row is still in From and the expiry guard holds at At.
type StatusUpdate struct {
	ID      uuid.UUID
	From    Status
	To      Status
	Guard   ExpiryGuard
	At      time.Time
	Message *string
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	AcceptedReader

	CreateHold(ctx context.Context, h Hold) (*Hold, error)
	GetHoldByID(ctx context.Context, id uuid.UUID) (*Hold, error)
	ListHolds(ctx context.Context, f ListFilter) ([]Hold, error)

	// TransitionStatus returns ErrStatusChanged when the conditional update
	// matched no row, and ErrConflict when the store itself rejects an
	// overlapping accepted hold.
	TransitionStatus(ctx context.Context, u StatusUpdate) (*Hold, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Hold, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Notifier receives every committed transition. Its result is only logged.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
