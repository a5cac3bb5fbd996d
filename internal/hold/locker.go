package hold

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker serialises critical sections per holdee. fn runs only while the
// lock is held; implementations wait a bounded time and then fail.
type Locker interface {
	WithHoldeeLock(ctx context.Context, holdeeID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker is an in-process Locker for single instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*localLock
	wait  time.Duration
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns a locker that gives up after wait. A zero wait
// means wait for as long as ctx allows.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		locks: make(map[uuid.UUID]*localLock),
		wait:  wait,
	}
}

func (l *LocalLocker) WithHoldeeLock(ctx context.Context, holdeeID uuid.UUID, fn func(ctx context.Context) error) error {
	lk := l.acquireRef(holdeeID)
	defer l.releaseRef(holdeeID, lk)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case lk.ch <- struct{}{}:
	case <-waitCtx.Done():
		return fmt.Errorf("%w: holdee %s: %v", ErrLockNotAcquired, holdeeID, waitCtx.Err())
	}
	defer func() { <-lk.ch }()

	return fn(ctx)
}

func (l *LocalLocker) acquireRef(id uuid.UUID) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	return lk
}

func (l *LocalLocker) releaseRef(id uuid.UUID, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}
