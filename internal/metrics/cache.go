package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/marketpulse/internal/shared"
)

// Run states stored by the tracker.
const (
	RunStateQueued    = "queued"
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// RunStatus is the externally visible state of one recalculation run.
type RunStatus struct {
	RunID         string     `json:"run_id"`
	IntegrationID string     `json:"integration_id"`
	State         string     `json:"state"`
	Processed     int        `json:"processed"`
	Total         int        `json:"total"`
	Succeeded     int        `json:"succeeded"`
	Errors        []RunError `json:"errors,omitempty"`
	Message       string     `json:"message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RunTracker persists run progress in Redis so API callers can poll a run
// started by the worker. Nil-safe: a tracker without a client is a no-op.
type RunTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunTracker instantiates the tracker.
func NewRunTracker(client *redis.Client, ttl time.Duration) *RunTracker {
	return &RunTracker{client: client, ttl: ttl}
}

func runKey(runID string) string {
	return "metrics:run:" + runID
}

func latestKey(integrationID string) string {
	return "metrics:latest:" + integrationID
}

// Save stores the status under its run key and marks it as the integration's
// latest run.
func (t *RunTracker) Save(ctx context.Context, status RunStatus) error {
	if t == nil || t.client == nil {
		return nil
	}
	status.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := t.client.Set(ctx, runKey(status.RunID), payload, t.ttl).Err(); err != nil {
		return err
	}
	return t.client.Set(ctx, latestKey(status.IntegrationID), status.RunID, t.ttl).Err()
}

// Get loads one run's status.
func (t *RunTracker) Get(ctx context.Context, runID string) (RunStatus, error) {
	if t == nil || t.client == nil {
		return RunStatus{}, shared.ErrNotFound
	}
	payload, err := t.client.Get(ctx, runKey(runID)).Bytes()
	if err == redis.Nil {
		return RunStatus{}, shared.ErrNotFound
	}
	if err != nil {
		return RunStatus{}, err
	}
	var status RunStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return RunStatus{}, err
	}
	return status, nil
}

// Latest resolves the integration's most recent run.
func (t *RunTracker) Latest(ctx context.Context, integrationID string) (RunStatus, error) {
	if t == nil || t.client == nil {
		return RunStatus{}, shared.ErrNotFound
	}
	runID, err := t.client.Get(ctx, latestKey(integrationID)).Result()
	if err == redis.Nil {
		return RunStatus{}, shared.ErrNotFound
	}
	if err != nil {
		return RunStatus{}, err
	}
	return t.Get(ctx, runID)
}
