package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse/internal/platform/httpx"
	"github.com/marketpulse/marketpulse/internal/shared"
)

// Enqueuer submits a recalculation run for background execution. Satisfied by
// jobs.Client; kept as an interface so the handler stays queue-agnostic.
type Enqueuer interface {
	EnqueueRecalculate(ctx context.Context, integrationID, runID string) error
}

// Handler exposes the metrics pipeline over HTTP.
type Handler struct {
	logger   *slog.Logger
	enqueuer Enqueuer
	tracker  *RunTracker
	tracer   *Tracer
	validate *validator.Validate
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, enqueuer Enqueuer, tracker *RunTracker, tracer *Tracer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		enqueuer: enqueuer,
		tracker:  tracker,
		tracer:   tracer,
		validate: validator.New(),
	}
}

type recalculateRequest struct {
	IntegrationID string `json:"-" validate:"required,min=1,max=64"`
	RequestedBy   string `json:"requested_by" validate:"omitempty,max=120"`
}

type recalculateResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

// Recalculate queues a full recalculation run for the integration and
// returns the run ID to poll.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	req := recalculateRequest{IntegrationID: chi.URLParam(r, "integrationID")}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
			return
		}
		req.IntegrationID = chi.URLParam(r, "integrationID")
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	if err := h.tracker.Save(r.Context(), RunStatus{
		RunID:         runID,
		IntegrationID: req.IntegrationID,
		State:         RunStateQueued,
		StartedAt:     startedAt,
	}); err != nil {
		h.logger.Error("save queued run", slog.Any("error", err))
	}
	if err := h.enqueuer.EnqueueRecalculate(r.Context(), req.IntegrationID, runID); err != nil {
		h.logger.Error("enqueue recalculation", slog.String("integration_id", req.IntegrationID), slog.Any("error", err))
		// The queued status is already in the tracker; flip it to failed so
		// the run never looks pending for a job that was never accepted.
		if saveErr := h.tracker.Save(r.Context(), RunStatus{
			RunID:         runID,
			IntegrationID: req.IntegrationID,
			State:         RunStateFailed,
			Message:       "could not enqueue recalculation run",
			StartedAt:     startedAt,
		}); saveErr != nil {
			h.logger.Error("save failed run", slog.Any("error", saveErr))
		}
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue recalculation run")
		return
	}
	httpx.JSON(w, http.StatusAccepted, recalculateResponse{RunID: runID, State: RunStateQueued})
}

// RunByID returns the status of one run.
func (h *Handler) RunByID(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Run ID", "run id must be a UUID")
		return
	}
	status, err := h.tracker.Get(r.Context(), runID)
	if err != nil {
		h.respondError(w, "load run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

// LatestRun returns the integration's most recent run.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	status, err := h.tracker.Latest(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		h.respondError(w, "load latest run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

// Debug runs the tracer for one identifier and returns the full report,
// including the "Not Found" report when no offer matches.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	integrationID := chi.URLParam(r, "integrationID")
	identifier := chi.URLParam(r, "identifier")
	report, err := h.tracer.TraceProduct(r.Context(), integrationID, identifier)
	if err != nil {
		h.respondError(w, "trace product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
