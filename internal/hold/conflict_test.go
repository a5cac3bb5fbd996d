package hold

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestConflictChecker(t *testing.T) {
	t.Parallel()

	holdee, other := uuid.New(), uuid.New()
	accepted := Hold{ID: uuid.New(), HoldeeID: holdee, StartDate: MustDate("2025-06-01"), EndDate: MustDate("2025-06-05"), Status: StatusAccepted}
	pending := Hold{ID: uuid.New(), HoldeeID: holdee, StartDate: MustDate("2025-06-10"), EndDate: MustDate("2025-06-12"), Status: StatusPending}
	declined := Hold{ID: uuid.New(), HoldeeID: holdee, StartDate: MustDate("2025-06-20"), EndDate: MustDate("2025-06-21"), Status: StatusDeclined}
	otherHoldee := Hold{ID: uuid.New(), HoldeeID: other, StartDate: MustDate("2025-07-01"), EndDate: MustDate("2025-07-03"), Status: StatusAccepted}

	checker := NewConflictChecker(newFakeRepo(accepted, pending, declined, otherHoldee))
	ctx := context.Background()

	tests := []struct {
		name       string
		holdee     uuid.UUID
		start, end string
		exclude    uuid.UUID
		want       bool
	}{
		{"overlaps accepted", holdee, "2025-06-04", "2025-06-10", uuid.Nil, true},
		{"touches accepted end", holdee, "2025-06-05", "2025-06-05", uuid.Nil, true},
		{"day after accepted", holdee, "2025-06-06", "2025-06-09", uuid.Nil, false},
		{"pending holds never conflict", holdee, "2025-06-10", "2025-06-12", uuid.Nil, false},
		{"declined holds never conflict", holdee, "2025-06-20", "2025-06-20", uuid.Nil, false},
		{"excluded hold ignored", holdee, "2025-06-01", "2025-06-05", accepted.ID, false},
		{"other holdee ignored", holdee, "2025-07-01", "2025-07-03", uuid.Nil, false},
		{"empty calendar", uuid.New(), "2025-06-01", "2025-06-30", uuid.Nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			found, ok, err := checker.HasConflict(ctx, tt.holdee, MustDate(tt.start), MustDate(tt.end), tt.exclude)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if ok != tt.want {
				t.Fatalf("expected conflict=%v, got %v", tt.want, ok)
			}
			if ok && found.ID != accepted.ID {
				t.Fatalf("expected conflicting hold %s, got %s", accepted.ID, found.ID)
			}
		})
	}

	t.Run("repeatable", func(t *testing.T) {
		t.Parallel()
		for i := 0; i < 3; i++ {
			if _, ok, _ := checker.HasConflict(ctx, holdee, MustDate("2025-06-02"), MustDate("2025-06-02"), uuid.Nil); !ok {
				t.Fatalf("expected conflict on call %d", i)
			}
		}
	})
}
