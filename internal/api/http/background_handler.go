package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"http-primer/internal/background"
	"http-primer/internal/domain"
	"http-primer/internal/validation"
)

// TimeBombTask is the name the delayed notice is registered and recorded under.
const TimeBombTask = "time_bomb"

// BackgroundHandler schedules a delayed notice and answers at once.
type BackgroundHandler struct {
	validate *validation.Validator
	bomb     domain.TaskFunc
	logger   *slog.Logger
}

func NewBackgroundHandler(validate *validation.Validator, bomb domain.TaskFunc, logger *slog.Logger) *BackgroundHandler {
	return &BackgroundHandler{
		validate: validate,
		bomb:     bomb,
		logger:   logger.With("component", "background-handler"),
	}
}

func (h *BackgroundHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/{count}"), h.handleBack)
}

func (h *BackgroundHandler) handleBack(w http.ResponseWriter, r *http.Request) error {
	var c validation.Collector
	in := countParams{Count: c.Int(r.PathValue("count"), true, "path", "count")}
	if err := c.Merge(h.validate.Struct(in)); err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}

	tasks, ok := background.FromContext(r.Context())
	if !ok {
		return errors.New("background middleware not installed")
	}
	if err := tasks.Add(TimeBombTask, h.bomb, *in.Count); err != nil {
		return fmt.Errorf("registering %s: %w", TimeBombTask, err)
	}
	h.logger.Debug("time bomb registered", "count", *in.Count, "request_id", tasks.RequestID())

	writeJSON(w, http.StatusOK, text("finish"))
	return nil
}
