package ratelimit

import (
	"context"
	"net/http"
	"time"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// slots is a counting semaphore.
type slots chan struct{}

// acquire waits for a free slot until ctx is done. release must be called exactly once.
func (s slots) acquire(ctx context.Context) (release func(), ok bool) {
	select {
	case s <- struct{}{}:
		return func() { <-s }, true
	case <-ctx.Done():
		return nil, false
	}
}

// ConcurrencyMiddleware serves at most opts.Max requests at a time. A request
// that finds no free slot within AcquireTimeout is rejected; a non-positive
// timeout waits for as long as the request lives.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	pool := make(slots, opts.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if opts.AcquireTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.AcquireTimeout)
				defer cancel()
			}

			release, ok := pool.acquire(ctx)
			if !ok {
				reject(w, opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
