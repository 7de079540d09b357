package admission

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultWindow is the fixed window length and the sweep interval.
	DefaultWindow = 60 * time.Second

	// DefaultLimit is used when a non-positive limit is configured.
	DefaultLimit = ProductionLimit

	// ProductionLimit is the per-window ceiling outside development.
	ProductionLimit = 10

	// DevelopmentLimit keeps iterative testing from tripping the limiter.
	DevelopmentLimit = 100
)

// Limiter is a fixed-window request counter keyed by client.
//
// State is process-local: several server instances each enforce their own
// limit, so the effective ceiling is approximate. That is accepted; the
// limiter sheds abuse, it does not meter usage.
type Limiter struct {
	mu     sync.Mutex
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter returns a Limiter backed by store. Non-positive limit or window
// fall back to DefaultLimit and DefaultWindow. A nil store gets an InMemoryStore.
func NewLimiter(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if store == nil {
		store = NewInMemoryStore()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured per-window ceiling.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// CheckAndConsume records one request for key and reports whether it is admitted.
// A rejected call does not touch the stored window.
func (l *Limiter) CheckAndConsume(key ClientKey) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.store.Get(key)
	if !ok || w.Expired(now) {
		w = Window{Count: 1, End: now.Add(l.window)}
		l.store.Set(key, w)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - 1, ResetTime: w.End}
	}

	if w.Count >= l.limit {
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, ResetTime: w.End}
	}

	w.Count++
	l.store.Set(key, w)
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - w.Count, ResetTime: w.End}
}

// Sweep deletes every window that has ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for _, key := range l.store.Keys() {
		if w, ok := l.store.Get(key); ok && w.Expired(now) {
			l.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.store.Keys())
}

// StartSweeper runs Sweep every window length until ctx is done.
// onSweep, if non-nil, receives the number of removed windows.
func (l *Limiter) StartSweeper(ctx context.Context, onSweep func(removed int)) {
	t := time.NewTicker(l.window)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := l.Sweep()
				if onSweep != nil {
					onSweep(n)
				}
			}
		}
	}()
}
