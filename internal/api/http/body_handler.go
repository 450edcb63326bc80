package http

import (
	"fmt"
	"net/http"

	"http-primer/internal/validation"
)

// BodyHandler demonstrates JSON request bodies: flat, embedded, nested and validated.
type BodyHandler struct {
	validate *validation.Validator
}

func NewBodyHandler(validate *validation.Validator) *BodyHandler {
	return &BodyHandler{validate: validate}
}

func (h *BodyHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodPost, route(prefix, "/post"), h.handleBody)
	rt.Handle(http.MethodPost, route(prefix, "/post/embed"), h.handleEmbeddedBody)
	rt.Handle(http.MethodPost, route(prefix, "/post/nested"), h.handleNestedBody)
	rt.Handle(http.MethodPost, route(prefix, "/validation"), h.handleValidatedBody)
}

// decode reads the body into dst and validates it; failures are located under "body".
func (h *BodyHandler) decode(r *http.Request, dst any) error {
	var c validation.Collector
	if c.DecodeJSON(r.Body, dst, "body") {
		if err := c.Merge(h.validate.Struct(dst, "body")); err != nil {
			return err
		}
	}
	return c.Err()
}

func dataText(d *Data) string {
	return fmt.Sprintf("hello, %s, %s, %s", *d.String, optionalInt(d.DefaultNone), intList(d.Lists))
}

func (h *BodyHandler) handleBody(w http.ResponseWriter, r *http.Request) error {
	var data Data
	if err := h.decode(r, &data); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, text(dataText(&data)))
	return nil
}

func (h *BodyHandler) handleEmbeddedBody(w http.ResponseWriter, r *http.Request) error {
	var body EmbeddedData
	if err := h.decode(r, &body); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, text(dataText(body.Data)))
	return nil
}

func (h *BodyHandler) handleNestedBody(w http.ResponseWriter, r *http.Request) error {
	var data NestedData
	if err := h.decode(r, &data); err != nil {
		return err
	}

	items := make([]string, len(data.SubDataList))
	for i, sub := range data.SubDataList {
		items[i] = modelRepr("subDict", sub.fields())
	}
	writeJSON(w, http.StatusOK, text(fmt.Sprintf("hello, %s, %s", modelStr(data.SubData.fields()), reprList(items))))
	return nil
}

func (h *BodyHandler) handleValidatedBody(w http.ResponseWriter, r *http.Request) error {
	var data ValidatedNestedData
	if err := h.decode(r, &data); err != nil {
		return err
	}

	items := make([]string, len(data.SubDataList))
	for i, sub := range data.SubDataList {
		items[i] = modelRepr("ValidatedSubData", sub.fields())
	}
	writeJSON(w, http.StatusOK, text(fmt.Sprintf("hello, %s, %s", modelStr(data.SubData.fields()), reprList(items))))
	return nil
}
