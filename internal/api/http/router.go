// internal/api/http/router.go
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"http-primer/internal/metrics"
	"http-primer/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc handles a request and may return an error for the router to render.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Router registers route groups on a ServeMux and instruments every route.
type Router struct {
	mux         *http.ServeMux
	middlewares []func(http.Handler) http.Handler
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewRouter creates a Router. Middlewares run inside the per-route span, first one outermost.
func NewRouter(logger *slog.Logger, middlewares ...func(http.Handler) http.Handler) *Router {
	return &Router{
		mux:         http.NewServeMux(),
		middlewares: middlewares,
		logger:      logger.With("component", "router"),
		tracer:      otel.Tracer("http-primer-api"),
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, pattern := rt.mux.Handler(r); pattern == "" {
		// No route: the mux answers 404, or 405 with an Allow header.
		h.ServeHTTP(&fallbackResponseWriter{ResponseWriter: w}, r)
		return
	}
	rt.mux.ServeHTTP(w, r)
}

// fallbackResponseWriter turns the mux's plain-text 404/405 into {"detail": ...}.
type fallbackResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *fallbackResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.Header().Del("X-Content-Type-Options")
	writeJSON(w.ResponseWriter, statusCode, map[string]any{"detail": http.StatusText(statusCode)})
}

// Write drops the mux's own body once the JSON one is out.
func (w *fallbackResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return len(b), nil
}

// Handle registers h for method and pattern.
func (rt *Router) Handle(method, pattern string, h HandlerFunc) {
	var next http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			rt.renderError(w, r, err)
		}
	})
	for i := len(rt.middlewares) - 1; i >= 0; i-- {
		next = rt.middlewares[i](next)
	}
	rt.mux.Handle(method+" "+pattern, rt.instrument(pattern, next))
}

// Mount registers a plain handler, e.g. the metrics endpoint, without middlewares.
func (rt *Router) Mount(method, pattern string, h http.Handler) {
	rt.mux.Handle(method+" "+pattern, rt.instrument(pattern, h))
}

// route joins a group prefix and a path; the group root maps to the prefix itself.
func route(prefix, path string) string {
	if path == "/" {
		if prefix == "" {
			return "/{$}"
		}
		return prefix
	}
	return prefix + path
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *instrumentedResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (rt *Router) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := rt.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

func (rt *Router) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	var herr *HTTPError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verr.Details})
	case errors.As(err, &herr):
		writeJSON(w, herr.Status, map[string]any{"detail": herr.Detail})
	default:
		trace.SpanFromContext(r.Context()).RecordError(err)
		rt.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "Internal Server Error"})
	}
}
