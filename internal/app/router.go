package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marketpulse/marketpulse/internal/metrics"
	"github.com/marketpulse/marketpulse/internal/observability"
	"github.com/marketpulse/marketpulse/jobs"
)

// NewRouter constructs the chi.Router with marketpulse defaults: the base
// middleware stack, health and prometheus endpoints, and the bearer-guarded
// API subtree.
func NewRouter(cfg *Config, mw MiddlewareConfig, metricsHandler *metrics.Handler, jobsHandler *jobs.Handler, obs *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	for _, m := range MiddlewareStack(mw) {
		r.Use(m)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(BearerAuth(cfg, mw.Logger))
		metricsHandler.MountRoutes(api)
		if jobsHandler != nil {
			api.Route("/jobs", jobsHandler.MountRoutes)
		}
	})

	return r
}
