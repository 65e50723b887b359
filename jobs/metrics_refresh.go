package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/marketpulse/marketpulse/internal/metrics"
	"github.com/marketpulse/marketpulse/internal/observability"
)

// NewRecalculateMetricsHandler builds the Asynq handler executing a full
// recalculation run and mirroring its progress into the run tracker. A
// malformed payload is never retried; a fatal run error is, so transient
// catalog-fetch failures recover on the next attempt.
func NewRecalculateMetricsHandler(svc *metrics.Service, tracker *metrics.RunTracker, obs *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecalculateMetricsPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RunID == "" {
			// Cron-scheduled runs arrive without a run ID.
			payload.RunID = uuid.NewString()
		}

		status := metrics.RunStatus{
			RunID:         payload.RunID,
			IntegrationID: payload.IntegrationID,
			State:         metrics.RunStateRunning,
			StartedAt:     time.Now().UTC(),
		}
		if err := tracker.Save(ctx, status); err != nil {
			logger.Warn("save run status", slog.Any("error", err))
		}

		start := time.Now()
		result, err := svc.RecalculateAll(ctx, payload.IntegrationID, func(p metrics.Progress) {
			status.Processed = p.Processed
			status.Total = p.Total
			if err := tracker.Save(ctx, status); err != nil {
				logger.Warn("save run progress", slog.Any("error", err))
			}
		})
		if err != nil {
			status.State = metrics.RunStateFailed
			status.Message = err.Error()
			if saveErr := tracker.Save(ctx, status); saveErr != nil {
				logger.Warn("save failed run", slog.Any("error", saveErr))
			}
			obs.ObserveRun("failed", 0, time.Since(start))
			return err
		}

		status.State = metrics.RunStateCompleted
		status.Total = result.Total
		status.Processed = result.Total
		status.Succeeded = result.Succeeded
		status.Errors = result.Errors
		status.Message = result.Message
		if err := tracker.Save(ctx, status); err != nil {
			logger.Warn("save completed run", slog.Any("error", err))
		}
		obs.ObserveRun("completed", result.Total, time.Since(start))
		logger.Info("recalculation task finished",
			slog.String("integration_id", payload.IntegrationID),
			slog.String("run_id", payload.RunID),
			slog.Int("succeeded", result.Succeeded),
			slog.Int("errors", len(result.Errors)))
		return nil
	}
}
