package http

import "net/http"

// IntroHandler serves the greeting route.
type IntroHandler struct{}

func NewIntroHandler() *IntroHandler {
	return &IntroHandler{}
}

func (h *IntroHandler) RegisterRoutes(rt *Router, prefix string) {
	rt.Handle(http.MethodGet, route(prefix, "/"), h.handleHello)
}

func (h *IntroHandler) handleHello(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, text("hello world!"))
	return nil
}
