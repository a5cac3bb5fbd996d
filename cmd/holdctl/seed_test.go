package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type stubCreator struct {
	createErr  error
	respondErr error
	creates    int
	responses  int
}

func (s *stubCreator) CreateHold(_ context.Context, in hold.CreateHoldInput) (*hold.Hold, error) {
	s.creates++
	if in.StartDate.After(in.EndDate) {
		return nil, errors.New("bad range")
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &hold.Hold{ID: uuid.New(), HoldeeID: in.HoldeeID, Status: hold.StatusPending}, nil
}

func (s *stubCreator) Respond(_ context.Context, in hold.RespondInput) (*hold.Hold, error) {
	s.responses++
	if s.respondErr != nil {
		return nil, s.respondErr
	}
	return &hold.Hold{ID: in.HoldID}, nil
}

func TestSeedHolds(t *testing.T) {
	t.Parallel()

	t.Run("creates and answers", func(t *testing.T) {
		t.Parallel()
		svc := &stubCreator{}
		stats, err := seedHolds(context.Background(), svc, seedOptions{Holdees: 3, HoldsPerHoldee: 5, RespondRatio: 1, Seed: 7})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.Created != 15 || svc.creates != 15 {
			t.Fatalf("expected 15 holds, got %+v", stats)
		}
		if stats.Accepted+stats.Declined != 15 || svc.responses != 15 {
			t.Fatalf("expected every hold answered, got %+v", stats)
		}
	})

	t.Run("counts conflicts", func(t *testing.T) {
		t.Parallel()
		svc := &stubCreator{respondErr: &hold.ConflictError{}}
		stats, err := seedHolds(context.Background(), svc, seedOptions{Holdees: 1, HoldsPerHoldee: 4, RespondRatio: 1, Seed: 7})
		if err != nil {
			t.Fatalf("expected conflicts to be tolerated, got %v", err)
		}
		if stats.Conflicts != 4 {
			t.Fatalf("expected 4 conflicts, got %+v", stats)
		}
	})

	t.Run("stops on infrastructure errors", func(t *testing.T) {
		t.Parallel()
		svc := &stubCreator{createErr: errors.New("connection refused")}
		if _, err := seedHolds(context.Background(), svc, seedOptions{Holdees: 1, HoldsPerHoldee: 4, Seed: 7}); err == nil {
			t.Fatalf("expected error")
		}
		if svc.creates != 1 {
			t.Fatalf("expected seed to stop after the first failure, made %d calls", svc.creates)
		}
	})
}
