package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type seedOptions struct {
	Holdees        int
	HoldsPerHoldee int
	RespondRatio   float64
	Seed           int64
}

type seedStats struct {
	Created   int
	Accepted  int
	Declined  int
	Conflicts int
}

type holdCreator interface {
	CreateHold(ctx context.Context, in hold.CreateHoldInput) (*hold.Hold, error)
	Respond(ctx context.Context, in hold.RespondInput) (*hold.Hold, error)
}

// seedHolds requests random windows over the next two months and answers
// some of them, so the resulting calendars mix every status but expired.
func seedHolds(ctx context.Context, svc holdCreator, opts seedOptions) (seedStats, error) {
	var stats seedStats

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(uint64(seed))

	requesters := make([]uuid.UUID, opts.Holdees*2)
	for i := range requesters {
		requesters[i] = uuid.New()
	}

	today := hold.DateOf(time.Now().UTC())
	log.Printf("seeding %d holds across %d calendars", opts.Holdees*opts.HoldsPerHoldee, opts.Holdees)

	for i := 0; i < opts.Holdees; i++ {
		holdee := uuid.New()

		for j := 0; j < opts.HoldsPerHoldee; j++ {
			start := today.AddDays(faker.Number(1, 60))
			created, err := svc.CreateHold(ctx, hold.CreateHoldInput{
				RequesterID: requesters[faker.Number(0, len(requesters)-1)],
				HoldeeID:    holdee,
				StartDate:   start,
				EndDate:     start.AddDays(faker.Number(0, 6)),
			})
			if err != nil {
				if errors.Is(err, hold.ErrConflict) {
					stats.Conflicts++
					continue
				}
				return stats, err
			}
			stats.Created++

			if faker.Float64() >= opts.RespondRatio {
				continue
			}

			in := hold.RespondInput{HoldID: created.ID, ActorID: holdee, Action: hold.ActionAccept}
			if faker.Bool() {
				msg := faker.Phrase()
				in.Action = hold.ActionDecline
				in.Message = &msg
			}

			_, err = svc.Respond(ctx, in)
			switch {
			case err == nil && in.Action == hold.ActionAccept:
				stats.Accepted++
			case err == nil:
				stats.Declined++
			case errors.Is(err, hold.ErrConflict):
				stats.Conflicts++
			default:
				return stats, err
			}
		}
	}

	log.Println("seed complete")
	return stats, nil
}
