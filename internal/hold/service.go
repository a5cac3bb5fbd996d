package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/clock"
)

const (
	defaultHoldTTL       = 48 * time.Hour
	defaultNotifyTimeout = 5 * time.Second
	defaultSweepBatch    = 500
	defaultListLimit     = 20
	maxListLimit         = 100
)

type Service struct {
	repo     Repository
	locker   Locker
	notifier Notifier
	clock    clock.Clock
	checker  *ConflictChecker

	holdTTL        time.Duration
	notifyTimeout  time.Duration
	sweepBatch     int
	rejectOccupied bool
}

type Option func(*Service)

// WithHoldTTL overrides how long a new hold waits for an answer.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithRejectOccupied makes CreateHold fail with a ConflictError when an
// accepted hold already covers part of the window.
func WithRejectOccupied(reject bool) Option {
	return func(s *Service) {
		s.rejectOccupied = reject
	}
}

// WithSweepBatchSize caps how many holds one sweep pass claims.
func WithSweepBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

func NewService(repo Repository, locker Locker, notifier Notifier, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		locker:        locker,
		notifier:      notifier,
		clock:         clk,
		checker:       NewConflictChecker(repo),
		holdTTL:       defaultHoldTTL,
		notifyTimeout: defaultNotifyTimeout,
		sweepBatch:    defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HoldTTL is the offset from creation at which new holds expire.
func (s *Service) HoldTTL() time.Duration {
	return s.holdTTL
}

type CreateHoldInput struct {
	RequesterID uuid.UUID
	HoldeeID    uuid.UUID
	StartDate   Date
	EndDate     Date
}

// CreateHold places a pending hold on the holdee's calendar.
// The conflict check here is advisory. Several pending holds may compete for
// the same days and are resolved when the holdee accepts one of them; a window
// that is already accepted is only refused when WithRejectOccupied is set.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (*Hold, error) {
	now := s.clock.Now()
	if err := validateCreate(in, DateOf(now)); err != nil {
		return nil, err
	}

	existing, occupied, err := s.checker.HasConflict(ctx, in.HoldeeID, in.StartDate, in.EndDate, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if occupied && s.rejectOccupied {
		return nil, conflictWith(uuid.Nil, existing)
	}

	created, err := s.repo.CreateHold(ctx, Hold{
		ID:          uuid.New(),
		RequesterID: in.RequesterID,
		HoldeeID:    in.HoldeeID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      StatusPending,
		ExpiresAt:   now.Add(s.holdTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create hold: %w", err)
	}

	payload := map[string]any{
		"requester_id": created.RequesterID.String(),
		"holdee_id":    created.HoldeeID.String(),
		"start_date":   created.StartDate.String(),
		"end_date":     created.EndDate.String(),
		"expires_at":   created.ExpiresAt,
	}
	if occupied {
		log.Printf("hold %s overlaps accepted hold %s, accept will conflict", created.ID, existing.ID)
		payload["occupied_by"] = existing.ID.String()
	}
	s.publish(ctx, EventCreated, *created, payload)

	return created, nil
}

func validateCreate(in CreateHoldInput, today Date) error {
	if in.RequesterID == uuid.Nil || in.HoldeeID == uuid.Nil {
		return invalid(ErrInvalidID, "requester_id and holdee_id are required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return invalid(ErrInvalidRange, "start_date and end_date are required")
	}
	if in.StartDate.After(in.EndDate) {
		return invalid(ErrInvalidRange, "start date %s is after end date %s", in.StartDate, in.EndDate)
	}
	if in.StartDate.Before(today) {
		return invalid(ErrInvalidRange, "start date %s is in the past", in.StartDate)
	}
	if in.RequesterID == in.HoldeeID {
		return ErrSelfHold
	}
	return nil
}

type RespondInput struct {
	HoldID  uuid.UUID
	ActorID uuid.UUID
	Action  Action
	Message *string
}

// Respond applies the holdee's accept or decline. Accepting re-runs the
// conflict check against persisted state while the holdee lock is held, so
// two overlapping holds can never both end up accepted.
func (s *Service) Respond(ctx context.Context, in RespondInput) (*Hold, error) {
	if in.Action != ActionAccept && in.Action != ActionDecline {
		return nil, invalid(ErrInvalidAction, "action must be accept or decline, got %q", in.Action)
	}

	h, err := s.load(ctx, in.HoldID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	step, err := Transition(*h, in.Action, in.ActorID, now)
	if err != nil {
		if errors.Is(err, ErrExpired) && h.Status == StatusPending {
			s.expireLazily(ctx, *h, now)
		}
		return nil, err
	}

	var updated *Hold
	if in.Action == ActionDecline {
		updated, err = s.commit(ctx, *h, step, now, in.Message)
	} else {
		err = s.locker.WithHoldeeLock(ctx, h.HoldeeID, func(lockCtx context.Context) error {
			existing, found, err := s.checker.HasConflict(lockCtx, h.HoldeeID, h.StartDate, h.EndDate, h.ID)
			if err != nil {
				return fmt.Errorf("check conflicts: %w", err)
			}
			if found {
				return conflictWith(h.ID, existing)
			}
			updated, err = s.commit(lockCtx, *h, step, s.clock.Now(), in.Message)
			return err
		})
	}
	if err != nil {
		if errors.Is(err, ErrExpired) {
			s.expireLazily(ctx, *h, s.clock.Now())
		}
		return nil, err
	}

	payload := map[string]any{"actor_id": in.ActorID.String()}
	if in.Message != nil {
		payload["message"] = *in.Message
	}
	s.publish(ctx, step.Event, *updated, payload)

	return updated, nil
}

// Cancel withdraws a pending hold on behalf of its requester.
func (s *Service) Cancel(ctx context.Context, holdID, actorID uuid.UUID) (*Hold, error) {
	h, err := s.load(ctx, holdID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	step, err := Transition(*h, ActionCancel, actorID, now)
	if err != nil {
		return nil, err
	}

	updated, err := s.commit(ctx, *h, step, now, nil)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, step.Event, *updated, map[string]any{"actor_id": actorID.String()})
	return updated, nil
}

func (s *Service) GetHold(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return s.load(ctx, id)
}

// ListHolds returns holds of one holdee or one requester, newest first.
func (s *Service) ListHolds(ctx context.Context, f ListFilter) ([]Hold, error) {
	if f.HoldeeID == nil && f.RequesterID == nil {
		return nil, ErrInvalidFilter
	}
	holds, err := s.repo.ListHolds(ctx, f.WithPageDefaults())
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return holds, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Hold, error) {
	h, err := s.repo.GetHoldByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load hold: %w", err)
	}
	return h, nil
}

// commit writes step as a conditional update and translates a lost race
// into the error the caller would have seen had it read the newer state.
func (s *Service) commit(ctx context.Context, h Hold, step Step, at time.Time, msg *string) (*Hold, error) {
	updated, err := s.repo.TransitionStatus(ctx, StatusUpdate{
		ID:      h.ID,
		From:    step.From,
		To:      step.To,
		Guard:   step.Guard,
		At:      at,
		Message: msg,
	})
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrStatusChanged):
		return nil, s.explainStale(ctx, h.ID, step.Guard, at)
	case errors.Is(err, ErrConflict):
		existing, found, cerr := s.checker.HasConflict(ctx, h.HoldeeID, h.StartDate, h.EndDate, h.ID)
		if cerr == nil && found {
			return nil, conflictWith(h.ID, existing)
		}
		return nil, &ConflictError{HoldID: h.ID}
	default:
		return nil, fmt.Errorf("transition hold %s to %s: %w", h.ID, step.To, err)
	}
}

func (s *Service) explainStale(ctx context.Context, id uuid.UUID, guard ExpiryGuard, at time.Time) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != StatusPending {
		return resolvedError(*current, guard)
	}
	if guard == GuardUnexpired && !at.Before(current.ExpiresAt) {
		return &ExpiredError{HoldID: id, ExpiresAt: current.ExpiresAt}
	}
	return fmt.Errorf("hold %s: %w", id, ErrStatusChanged)
}

// expireLazily retires a hold that was answered after its deadline.
// Losing the race to the sweeper is fine.
func (s *Service) expireLazily(ctx context.Context, h Hold, now time.Time) {
	updated, err := s.repo.TransitionStatus(ctx, StatusUpdate{
		ID:    h.ID,
		From:  StatusPending,
		To:    StatusExpired,
		Guard: GuardExpired,
		At:    now,
	})
	if err != nil {
		if !errors.Is(err, ErrStatusChanged) {
			log.Printf("failed to mark hold %s as expired during respond: %v", h.ID, err)
		}
		return
	}
	s.publish(ctx, EventExpired, *updated, map[string]any{"reason": "respond_after_expiry"})
}

// publish records the event and hands it to the notifier. Neither step can
// fail the transition that has already been committed.
func (s *Service) publish(ctx context.Context, typ EventType, h Hold, payload map[string]any) {
	ctx = context.WithoutCancel(ctx)
	s.logEvent(ctx, typ, h, payload)

	if s.notifier == nil {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notifier panicked on %s for hold %s: %v", typ, h.ID, r)
		}
	}()

	if err := s.notifier.Notify(nctx, Event{Type: typ, Hold: h, OccurredAt: s.clock.Now()}); err != nil {
		log.Printf("failed to notify %s for hold %s: %v", typ, h.ID, err)
	}
}

func (s *Service) logEvent(ctx context.Context, typ EventType, h Hold, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(h.Status)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", typ, err)
		data = nil
	}

	ev := EventLog{
		EventType: typ,
		HoldID:    h.ID,
		Payload:   data,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for hold %s: %v", typ, h.ID, err)
	}
}

func conflictWith(holdID uuid.UUID, existing *Hold) error {
	return &ConflictError{
		HoldID:            holdID,
		ConflictingHoldID: existing.ID,
		Start:             existing.StartDate,
		End:               existing.EndDate,
	}
}
