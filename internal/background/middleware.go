package background

import (
	"context"
	"log/slog"
	"net/http"

	"http-primer/internal/domain"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID that deferred tasks are recorded under.
const RequestIDHeader = "X-Request-ID"

// Middleware gives every request a task list and dispatches it after the handler returns.
//
// The response is flushed before dispatching, so a response written with a
// Content-Length is complete on the wire before any of its tasks can start.
func Middleware(d domain.Dispatcher, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With("component", "background-middleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			tasks := NewTasks(requestID)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), tasks)))

			pending := tasks.seal()
			if len(pending) == 0 {
				return
			}

			if err := http.NewResponseController(w).Flush(); err != nil {
				logger.Debug("response writer cannot flush", "request_id", requestID, "error", err)
			}

			// The request context is cancelled as soon as we return; the tasks must outlive it.
			if err := d.Dispatch(context.WithoutCancel(r.Context()), pending); err != nil {
				logger.Warn("deferred tasks not dispatched", "request_id", requestID, "error", err)
			}
		})
	}
}
