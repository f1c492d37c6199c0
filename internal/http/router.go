package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds the endpoint handlers wired into the router.
type Handlers struct {
	// Webhook terminates POST /v1/webhooks/call.
	Webhook http.Handler

	// Stream terminates GET /v1/calls/{callID}/translations/stream.
	Stream http.Handler

	// TranscriptionCallback terminates POST /v1/webhooks/transcription.
	TranscriptionCallback http.Handler

	// Calls provisions and exposes call records.
	Calls *CallsHandler
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/webhooks/call", h.Webhook.ServeHTTP)
		r.Post("/webhooks/transcription", h.TranscriptionCallback.ServeHTTP)
		r.Post("/calls", h.Calls.Create)
		r.Get("/calls/{callID}", h.Calls.Get)
		r.Get("/calls/{callID}/translations/stream", h.Stream.ServeHTTP)
	})

	return r
}
