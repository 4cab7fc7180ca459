package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apphttp "github.com/goliathlabs/bridge-tracker/pkg/app/http"
)

// NewRouter builds the chi router for the tracker API
func NewRouter(h *Handler, metricsEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", apphttp.HandleError(h.health))
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", apphttp.HandleError(h.listOperations))
			r.Get("/active", apphttp.HandleError(h.getActiveOperation))
			r.Put("/active", apphttp.HandleError(h.setActiveOperation))
			r.Get("/{id}", apphttp.HandleError(h.getOperation))
			r.Delete("/{id}", apphttp.HandleError(h.removeOperation))
		})

		r.Post("/transfers", apphttp.HandleError(h.createTransfer))
		r.Post("/approvals", apphttp.HandleError(h.createApproval))
		r.Post("/validate", apphttp.HandleError(h.validateTransfer))

		r.Get("/balances", apphttp.HandleError(h.getBalances))
		r.Get("/state", apphttp.HandleError(h.getState))
		r.Get("/history", apphttp.HandleError(h.getHistory))
	})

	return r
}
