package http

import (
	"fmt"
	"net/http"

	"http-primer/internal/shape"
	"http-primer/internal/validation"
)

// ParamsHandler demonstrates path and query parameters with constraints.
type ParamsHandler struct {
	validate *validation.Validator
}

func NewParamsHandler(validate *validation.Validator) *ParamsHandler {
	return &ParamsHandler{validate: validate}
}

func (h *ParamsHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/get/{path}"), h.handlePathAndQuery)
	rt.Handle(http.MethodGet, route(prefix, "/validation/{path}"), h.handleValidation)
}

// handlePathAndQuery: path is a string, query a required int, default_none optional.
func (h *ParamsHandler) handlePathAndQuery(w http.ResponseWriter, r *http.Request) error {
	var c validation.Collector
	q := r.URL.Query()

	in := pathAndQueryParams{
		Path:        r.PathValue("path"),
		Query:       c.Int(q.Get("query"), q.Has("query"), "query", "query"),
		DefaultNone: c.String(q.Get("default_none"), q.Has("default_none")),
	}
	if err := c.Merge(h.validate.Struct(in)); err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, text(fmt.Sprintf("hello, %s, %d and %s", in.Path, *in.Query, optionalString(in.DefaultNone))))
	return nil
}

// handleValidation: string 2..5 chars matching [a-c]+., integer 1 < x <= 3,
// alias-query defaults to "default".
func (h *ParamsHandler) handleValidation(w http.ResponseWriter, r *http.Request) error {
	var c validation.Collector
	q := r.URL.Query()

	in := validationParams{
		String:     c.String(q.Get("string"), q.Has("string")),
		Integer:    c.Int(q.Get("integer"), q.Has("integer"), "query", "integer"),
		AliasQuery: "default",
		Path:       c.Int(r.PathValue("path"), true, "path", "path"),
	}
	if q.Has("alias-query") {
		in.AliasQuery = q.Get("alias-query")
	}
	if err := c.Merge(h.validate.Struct(in)); err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}

	var str any
	if in.String != nil {
		str = *in.String
	}
	writeJSON(w, http.StatusOK, shape.Object{
		{Key: "string", Value: str},
		{Key: "integer", Value: *in.Integer},
		{Key: "alias-query", Value: in.AliasQuery},
		{Key: "path", Value: *in.Path},
	})
	return nil
}
