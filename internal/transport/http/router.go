package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridconsent/internal/transport/http/middleware"
)

// NewRouter assembles the public API. All business routes require party
// authentication; metrics and health stay open.
func NewRouter(h *Handler, signingKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePartyAuth(signingKey, h.log))

		r.Route("/v1/authorization-requests", func(r chi.Router) {
			r.Post("/", h.handleCreateRequest)
			r.Get("/{id}", h.handleGetRequest)
			r.Post("/{id}/accept", h.handleAcceptRequest)
			r.Post("/{id}/reject", h.handleRejectRequest)
		})

		r.Route("/v1/authorization-grants", func(r chi.Router) {
			r.Post("/{id}/consume", h.handleConsumeGrant)
			r.Get("/{id}/scopes", h.handleGetGrantScopes)
		})

		r.Route("/v1/signable-documents", func(r chi.Router) {
			r.Post("/", h.handleGenerateDocument)
			r.Get("/{id}", h.handleGetDocument)
			r.Post("/{id}/sign", h.handleSignDocument)
		})
	})

	return r
}
