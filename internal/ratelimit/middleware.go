package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"http-primer/internal/metrics"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store               *Store
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// DefaultKeyFunc identifies the client by keyHeader when present, then by
// the first X-Forwarded-For entry when trusted, then by the remote host.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				w.Header().Set("X-RateLimit-RPS", strconv.FormatFloat(opts.Store.RPS(), 'f', -1, 64))
				w.Header().Set("X-RateLimit-Burst", strconv.Itoa(opts.Store.Burst()))
			}

			if !opts.Store.Allow(key) {
				metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
				// Whole seconds, rounded down.
				w.Header().Set("Retry-After", strconv.Itoa(int(opts.RetryAfter.Seconds())))
				reject(w, opts.RejectStatus)
				return
			}
			metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()

			next.ServeHTTP(w, r)
		})
	}
}

// reject answers in the API's error shape: {"detail": "<status text>"}.
func reject(w http.ResponseWriter, status int) {
	body, _ := json.Marshal(map[string]string{"detail": http.StatusText(status)})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
