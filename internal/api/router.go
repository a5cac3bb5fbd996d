package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

// HoldService is the slice of *hold.Service the handlers need.
type HoldService interface {
	CreateHold(ctx context.Context, in hold.CreateHoldInput) (*hold.Hold, error)
	GetHold(ctx context.Context, id uuid.UUID) (*hold.Hold, error)
	ListHolds(ctx context.Context, f hold.ListFilter) ([]hold.Hold, error)
	Respond(ctx context.Context, in hold.RespondInput) (*hold.Hold, error)
	Cancel(ctx context.Context, holdID, actorID uuid.UUID) (*hold.Hold, error)
}

type RouterConfig struct {
	Service  HoldService
	Postgres Pinger
	Redis    Pinger // nil when no backend uses Redis
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Hold endpoints
	h := newHoldHandlers(cfg.Service)
	r.Route("/holds", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/respond", h.respond)
		r.Post("/{id}/cancel", h.cancel)
	})

	return r
}
