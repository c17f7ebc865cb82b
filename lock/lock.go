package lock

import (
	"context"
	"sync"
	"time"
)

// Node is the per-store-node atomic lock primitive.
//
// Both store.Redis and store.Memory satisfy this interface. Acquire must be
// atomic (set-if-absent with expiry); Release and Extend must only succeed
// for the token that currently holds the key.
type Node interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

// Lock is a held mutual-exclusion lease on a named resource.
//
// A Lock is valid until its validity window elapses or Release is called.
// The background extender pushes the window forward while the holder is
// alive; if extension fails, Context is cancelled and the lock is considered
// lost.
type Lock struct {
	resource   string
	token      string
	ttl        time.Duration
	acquiredAt time.Time

	mu         sync.Mutex
	validUntil time.Time

	// ctx is cancelled when the lease is lost or released. Critical
	// sections that thread it through their writes are fenced after loss.
	ctx    context.Context
	cancel context.CancelFunc

	stopExtend chan struct{}
	extendOnce sync.Once
}

// Resource returns the locked resource name.
func (l *Lock) Resource() string { return l.resource }

// Token returns the unique holder token.
func (l *Lock) Token() string { return l.token }

// Context returns a context that is cancelled when the lease is lost,
// released, or fails to extend.
func (l *Lock) Context() context.Context { return l.ctx }

// ValidUntil returns the current end of the validity window.
func (l *Lock) ValidUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.validUntil
}

// Valid reports whether the lease is still within its validity window.
func (l *Lock) Valid(now time.Time) bool {
	return now.Before(l.ValidUntil())
}

func (l *Lock) setValidUntil(t time.Time) {
	l.mu.Lock()
	l.validUntil = t
	l.mu.Unlock()
}

// invalidate cancels the lease context and stops the background extender.
func (l *Lock) invalidate() {
	l.extendOnce.Do(func() { close(l.stopExtend) })
	l.cancel()
}
