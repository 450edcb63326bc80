package http

import (
	"log/slog"
	"net/http"

	"http-primer/internal/background"
	"http-primer/internal/domain"
	"http-primer/internal/usecase"
	"http-primer/internal/validation"
)

// Deps are the collaborators of the API.
type Deps struct {
	Logger     *slog.Logger
	Dispatcher domain.Dispatcher
	Executions *usecase.ExecutionService
	TimeBomb   domain.TaskFunc
	Metrics    http.Handler // optional
}

// NewAPI mounts every route group. Groups that share paths live under their own prefix.
func NewAPI(d Deps) http.Handler {
	validate := validation.New()
	rt := NewRouter(d.Logger, background.Middleware(d.Dispatcher, d.Logger))

	NewIntroHandler().RegisterRoutes(rt, "")
	NewParamsHandler(validate).RegisterRoutes(rt, "")
	NewBodyHandler(validate).RegisterRoutes(rt, "")
	NewResponseHandler(validate).RegisterRoutes(rt, "/response")
	NewSpecialHandler().RegisterRoutes(rt, "/special")
	NewBackgroundHandler(validate, d.TimeBomb, d.Logger).RegisterRoutes(rt, "/background")
	NewTaskHandler(d.Executions, d.Logger).RegisterRoutes(rt, "/tasks")

	if d.Metrics != nil {
		rt.Mount(http.MethodGet, "/metrics", d.Metrics)
	}
	return rt
}
