package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mechnotech/alor-api/internal/auth"
	"github.com/mechnotech/alor-api/internal/version"
)

// sessionState is the part of *auth.Session the health check reads.
type sessionState interface {
	State() auth.State
	IssuedAt() time.Time
}

// newHealthHandler serves /health and the Prometheus metrics endpoint.
func newHealthHandler(session sessionState, gatherer prometheus.Gatherer, metricsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		state := session.State()

		health := struct {
			Status   string `json:"status"`
			Version  string `json:"version"`
			Session  string `json:"session"`
			IssuedAt string `json:"issued_at,omitempty"`
		}{
			Status:  "healthy",
			Version: version.Version,
			Session: state.String(),
		}
		if t := session.IssuedAt(); !t.IsZero() {
			health.IssuedAt = t.UTC().Format(time.RFC3339)
		}

		switch state {
		case auth.StateFailed:
			health.Status = "degraded"
		case auth.StateUninitialized:
			health.Status = "starting"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "starting" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	r.Method(http.MethodGet, metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
