package http

import (
	"fmt"
	"net/http"

	"http-primer/internal/shape"
	"http-primer/internal/validation"
)

// itemOut is the response model of the shaping routes: aux defaults to 1.
var itemOut = shape.Model{
	Name: "ItemOut",
	Fields: []shape.Field{
		{Name: "strings", Kind: shape.String},
		{Name: "aux", Kind: shape.Int, Default: 1, HasDefault: true},
		{Name: "text", Kind: shape.String},
	},
}

// ResponseHandler demonstrates response models and status codes.
type ResponseHandler struct {
	validate *validation.Validator
}

func NewResponseHandler(validate *validation.Validator) *ResponseHandler {
	return &ResponseHandler{validate: validate}
}

func (h *ResponseHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/"), h.shaped(shape.Options{}))
	rt.Handle(http.MethodGet, route(prefix, "/unset"), h.shaped(shape.Options{ExcludeUnset: true}))
	rt.Handle(http.MethodGet, route(prefix, "/exclude"), h.shaped(shape.Options{Exclude: []string{"strings", "aux"}}))
	rt.Handle(http.MethodGet, route(prefix, "/include"), h.shaped(shape.Options{Include: []string{"text"}}))
	rt.Handle(http.MethodGet, route(prefix, "/status"), h.handleStatus)
}

// shaped returns a handler whose result, which carries an extra "integer"
// key, is projected onto itemOut with opts.
func (h *ResponseHandler) shaped(opts shape.Options) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var c validation.Collector
		q := r.URL.Query()

		in := itemParams{
			Strings: c.String(q.Get("strings"), q.Has("strings")),
			Integer: c.Int(q.Get("integer"), q.Has("integer"), "query", "integer"),
		}
		if err := c.Merge(h.validate.Struct(in)); err != nil {
			return err
		}
		if err := c.Err(); err != nil {
			return err
		}

		out, err := itemOut.Project(map[string]any{
			"text":    "hello world!",
			"strings": *in.Strings,
			"integer": *in.Integer,
		}, opts)
		if err != nil {
			return fmt.Errorf("shaping response: %w", err)
		}
		writeJSON(w, http.StatusOK, out)
		return nil
	}
}

// handleStatus: integer > 5 is an error, 1 is "created", anything else the default 200.
func (h *ResponseHandler) handleStatus(w http.ResponseWriter, r *http.Request) error {
	var c validation.Collector
	q := r.URL.Query()

	in := statusParams{Integer: c.Int(q.Get("integer"), q.Has("integer"), "query", "integer")}
	if err := c.Merge(h.validate.Struct(in)); err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}

	switch n := *in.Integer; {
	case n > 5:
		return &HTTPError{Status: http.StatusNotFound, Detail: "this is error messages"}
	case n == 1:
		writeJSON(w, http.StatusCreated, text("hello world, created!"))
	default:
		writeJSON(w, http.StatusOK, text("hello world!"))
	}
	return nil
}
