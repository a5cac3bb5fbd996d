package hold

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository with the same conditional update
// semantics as the Postgres one. Each method is atomic on its own; nothing
// spans two calls, so races between check and write are the service's job.
type fakeRepo struct {
	mu     sync.Mutex
	holds  map[uuid.UUID]Hold
	events []EventLog

	// enforceNoOverlap emulates the exclusion constraint on accepted rows.
	enforceNoOverlap bool
	// readDelay widens the window between the conflict read and the write.
	readDelay time.Duration

	findErr        error
	insertEventErr error
	// beforeTransition runs under the repo lock before the conditional update.
	beforeTransition func(u StatusUpdate, holds map[uuid.UUID]Hold) error
}

func newFakeRepo(holds ...Hold) *fakeRepo {
	r := &fakeRepo{holds: make(map[uuid.UUID]Hold)}
	for _, h := range holds {
		r.holds[h.ID] = h
	}
	return r
}

func (f *fakeRepo) CreateHold(_ context.Context, h Hold) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.holds[h.ID]; exists {
		return nil, errors.New("duplicate id")
	}
	f.holds[h.ID] = h
	return &h, nil
}

func (f *fakeRepo) GetHoldByID(_ context.Context, id uuid.UUID) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (f *fakeRepo) ListAcceptedOverlapping(_ context.Context, holdeeID uuid.UUID, start, end Date) ([]Hold, error) {
	f.mu.Lock()
	var out []Hold
	for _, h := range f.holds {
		if h.HoldeeID == holdeeID && h.Status == StatusAccepted && h.Overlaps(start, end) {
			out = append(out, h)
		}
	}
	f.mu.Unlock()

	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	return out, nil
}

func (f *fakeRepo) ListHolds(_ context.Context, flt ListFilter) ([]Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Hold
	for _, h := range f.holds {
		if flt.HoldeeID != nil && h.HoldeeID != *flt.HoldeeID {
			continue
		}
		if flt.RequesterID != nil && h.RequesterID != *flt.RequesterID {
			continue
		}
		if flt.Status != nil && h.Status != *flt.Status {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if flt.Offset >= len(out) {
		return nil, nil
	}
	out = out[flt.Offset:]
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeRepo) TransitionStatus(_ context.Context, u StatusUpdate) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.beforeTransition != nil {
		if err := f.beforeTransition(u, f.holds); err != nil {
			return nil, err
		}
	}

	h, ok := f.holds[u.ID]
	if !ok || h.Status != u.From {
		return nil, ErrStatusChanged
	}
	switch u.Guard {
	case GuardUnexpired:
		if !h.ExpiresAt.After(u.At) {
			return nil, ErrStatusChanged
		}
	case GuardExpired:
		if h.ExpiresAt.After(u.At) {
			return nil, ErrStatusChanged
		}
	}

	if f.enforceNoOverlap && u.To == StatusAccepted {
		for _, o := range f.holds {
			if o.ID != h.ID && o.HoldeeID == h.HoldeeID && o.Status == StatusAccepted && o.Overlaps(h.StartDate, h.EndDate) {
				return nil, ErrConflict
			}
		}
	}

	at := u.At
	h.Status = u.To
	h.UpdatedAt = at
	h.RespondedAt = &at
	h.ResponseMessage = u.Message
	f.holds[h.ID] = h
	return &h, nil
}

func (f *fakeRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}

	var out []Hold
	for _, h := range f.holds {
		if h.Status == StatusPending && !h.ExpiresAt.After(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertEventErr != nil {
		return f.insertEventErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) get(id uuid.UUID) Hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds[id]
}

func (f *fakeRepo) snapshot() []Hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Hold, 0, len(f.holds))
	for _, h := range f.holds {
		out = append(out, h)
	}
	return out
}

func (f *fakeRepo) eventTypes(holdID uuid.UUID) []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []EventType
	for _, ev := range f.events {
		if ev.HoldID == holdID {
			out = append(out, ev.EventType)
		}
	}
	return out
}

// recordingNotifier collects events and can be told to fail.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
	panic  bool
	// block makes Notify wait until its context is done.
	block bool
}

func (n *recordingNotifier) Notify(ctx context.Context, ev Event) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	fail, explode, block := n.err, n.panic, n.block
	n.mu.Unlock()

	if explode {
		panic("notifier exploded")
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return fail
}

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

// overlappingAccepted returns the first pair of accepted holds of one holdee
// that share a day.
func overlappingAccepted(holds []Hold) (Hold, Hold, bool) {
	byHoldee := make(map[uuid.UUID][]Hold)
	for _, h := range holds {
		if h.Status == StatusAccepted {
			byHoldee[h.HoldeeID] = append(byHoldee[h.HoldeeID], h)
		}
	}
	for _, list := range byHoldee {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if list[i].Overlaps(list[j].StartDate, list[j].EndDate) {
					return list[i], list[j], true
				}
			}
		}
	}
	return Hold{}, Hold{}, false
}
