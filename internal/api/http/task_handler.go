package http

import (
	"errors"
	"log/slog"
	"net/http"

	"http-primer/internal/domain"
	"http-primer/internal/usecase"
	"http-primer/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskHandler exposes the execution history of deferred tasks.
type TaskHandler struct {
	service *usecase.ExecutionService
	logger  *slog.Logger
}

func NewTaskHandler(service *usecase.ExecutionService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With("component", "task-handler"),
	}
}

func (h *TaskHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/"), h.handleListExecutions)
	rt.Handle(http.MethodGet, route(prefix, "/{id}"), h.handleGetExecution)
}

// handleListExecutions handles GET /tasks?page=&pageSize=
// Absent or out-of-range values fall back to the service defaults; non-integers are a 422.
func (h *TaskHandler) handleListExecutions(w http.ResponseWriter, r *http.Request) error {
	var c validation.Collector
	q := r.URL.Query()
	page := c.Int(q.Get("page"), q.Has("page"), "query", "page")
	pageSize := c.Int(q.Get("pageSize"), q.Has("pageSize"), "query", "pageSize")
	if err := c.Err(); err != nil {
		return err
	}

	records, err := h.service.List(r.Context(), deref(page), deref(pageSize))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, records)
	return nil
}

func (h *TaskHandler) handleGetExecution(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("execution.id", id))

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			h.logger.Warn("execution not found", "execution_id", id)
			return &HTTPError{Status: http.StatusNotFound, Detail: err.Error()}
		}
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
