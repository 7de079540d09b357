package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// SlotPool is a finite set of in-flight download slots.
// Acquire blocks until a slot is free or ctx ends; release must be called exactly once.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

type chanPool struct {
	sem chan struct{}
}

// NewSlotPool returns a channel-backed pool with max slots.
func NewSlotPool(max int) SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// ConcurrencyOptions configures ConcurrencyMiddleware.
type ConcurrencyOptions struct {
	// Max is the number of concurrent downloads; <= 0 disables the cap.
	Max int
	// AcquireTimeout bounds the wait for a slot; <= 0 waits for the request context.
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware caps in-flight downloads per process and answers 503
// when no slot frees up in time.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	pool := NewSlotPool(opts.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if opts.AcquireTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.AcquireTimeout)
				defer cancel()
			}

			release, ok := pool.Acquire(ctx)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "server is busy with other downloads, try again shortly",
					"kind":  "busy",
				})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
