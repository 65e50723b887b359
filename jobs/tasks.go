package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRecalculateMetrics recomputes all offer metrics for one integration.
	TaskTypeRecalculateMetrics = "metrics:recalculate"
)

// RecalculateMetricsPayload identifies the integration and the run to report
// progress under.
type RecalculateMetricsPayload struct {
	IntegrationID string `json:"integration_id"`
	RunID         string `json:"run_id,omitempty"`
}

// NewRecalculateMetricsTask constructs an Asynq task.
func NewRecalculateMetricsTask(payload RecalculateMetricsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecalculateMetrics, data), nil
}

// EnqueueRecalculate enqueues a recalculation run. Satisfies metrics.Enqueuer.
func (c *Client) EnqueueRecalculate(ctx context.Context, integrationID, runID string) error {
	task, err := NewRecalculateMetricsTask(RecalculateMetricsPayload{IntegrationID: integrationID, RunID: runID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
