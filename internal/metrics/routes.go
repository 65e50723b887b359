package metrics

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the metrics API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/integrations/{integrationID}/recalculate", h.Recalculate)
	r.Get("/integrations/{integrationID}/runs/latest", h.LatestRun)
	r.Get("/integrations/{integrationID}/debug/{identifier}", h.Debug)
	r.Get("/runs/{runID}", h.RunByID)
}
