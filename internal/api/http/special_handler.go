package http

import (
	"fmt"
	"net/http"
)

// SpecialHandler reads a cookie and a header.
type SpecialHandler struct{}

func NewSpecialHandler() *SpecialHandler {
	return &SpecialHandler{}
}

func (h *SpecialHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/"), h.handleCookieAndHeader)
}

func (h *SpecialHandler) handleCookieAndHeader(w http.ResponseWriter, r *http.Request) error {
	var cookie, accept *string
	if c, err := r.Cookie("cookie"); err == nil {
		cookie = &c.Value
	}
	if values := r.Header.Values("Accept"); len(values) > 0 {
		accept = &values[0]
	}

	writeJSON(w, http.StatusOK, text(fmt.Sprintf("hello world, %s, %s!", optionalString(cookie), optionalString(accept))))
	return nil
}
