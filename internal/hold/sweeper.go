package hold

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// SweepExpired retires every pending hold whose deadline has passed and
// returns how many this pass claimed. Candidates are read in batches until a
// short batch comes back. Each hold is claimed with the same conditional
// update used by Respond, so concurrent passes never double count.
//
// Notifications are sent once all claims are written, so a slow notifier
// cannot use up the caller's deadline before the sweep is done.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var claimed []Hold
	defer func() {
		for _, h := range claimed {
			s.publish(ctx, EventExpired, h, map[string]any{"reason": "sweep"})
		}
	}()

	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return len(claimed), err
		}

		candidates, err := s.repo.FindExpiredPending(ctx, now, s.sweepBatch)
		if err != nil {
			return len(claimed), fmt.Errorf("find expired pending holds: %w", err)
		}

		n, err := s.claimExpired(ctx, candidates, now, &claimed)
		if err != nil {
			return len(claimed), err
		}

		// A short batch means nothing is left. A full batch with no claims
		// means the rest failed or was taken by another pass.
		if len(candidates) < s.sweepBatch || n == 0 {
			if batch > 1 {
				log.Printf("sweep finished after %d batches, expired=%d", batch, len(claimed))
			}
			return len(claimed), nil
		}
	}
}

func (s *Service) claimExpired(ctx context.Context, candidates []Hold, now time.Time, claimed *[]Hold) (int, error) {
	n := 0
	for _, h := range candidates {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		step, err := Transition(h, ActionExpire, uuid.Nil, now)
		if err != nil {
			if !errors.Is(err, ErrAlreadyResolved) {
				log.Printf("skipping hold %s during sweep: %v", h.ID, err)
			}
			continue
		}

		updated, err := s.repo.TransitionStatus(ctx, StatusUpdate{
			ID:    h.ID,
			From:  step.From,
			To:    step.To,
			Guard: step.Guard,
			At:    now,
		})
		if err != nil {
			if !errors.Is(err, ErrStatusChanged) {
				log.Printf("failed to expire hold %s: %v", h.ID, err)
			}
			continue
		}

		n++
		*claimed = append(*claimed, *updated)
	}
	return n, nil
}
