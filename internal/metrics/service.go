package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// batchSize is the number of offers recalculated and committed together.
const batchSize = 50

// Progress is handed to the progress callback after every batch commit.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
}

// ProgressFunc receives cumulative progress. Optional.
type ProgressFunc func(Progress)

// RunError records one recoverable failure of a run: either a single offer's
// calculation or a whole batch's commit.
type RunError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// RunResult summarizes a recalculation run. Succeeded counts offers whose
// calculation succeeded, independent of whether the batch commit containing
// them later failed; commit failures appear in Errors instead.
type RunResult struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Errors    []RunError `json:"errors"`
	Message   string     `json:"message,omitempty"`
}

// Service orchestrates full-catalog recalculation runs.
type Service struct {
	offers OfferSource
	sink   MetricsSink
	calc   OfferCalculator
	logger *slog.Logger
}

// NewService wires the orchestrator.
func NewService(offers OfferSource, sink MetricsSink, calc OfferCalculator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{offers: offers, sink: sink, calc: calc, logger: logger}
}

// RecalculateAll recomputes and persists metrics for every offer of the
// integration. Batches run sequentially; offers within a batch run
// concurrently, each with its own accumulator. A failed offer or a failed
// batch commit is recorded and the run continues; only the initial catalog
// fetch is fatal.
func (s *Service) RecalculateAll(ctx context.Context, integrationID string, progress ProgressFunc) (RunResult, error) {
	offers, err := s.offers.ListOffers(ctx, integrationID)
	if err != nil {
		return RunResult{}, fmt.Errorf("metrics: list offers for %s: %w", integrationID, err)
	}
	if len(offers) == 0 {
		return RunResult{Message: "no offers found for integration"}, nil
	}

	result := RunResult{Total: len(offers)}
	processed := 0

	for start := 0; start < len(offers); start += batchSize {
		end := start + batchSize
		if end > len(offers) {
			end = len(offers)
		}
		batch := offers[start:end]
		batchNo := start/batchSize + 1

		updates := make([]*MetricsUpdate, len(batch))
		calcErrs := make([]error, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, offer := range batch {
			g.Go(func() error {
				m, err := s.calc.Calculate(gctx, integrationID, offer)
				if err != nil {
					calcErrs[i] = err
					return nil
				}
				updates[i] = &MetricsUpdate{OfferID: offer.ID, TSIN: offer.TSIN, Metrics: m}
				return nil
			})
		}
		_ = g.Wait()

		pending := make([]MetricsUpdate, 0, len(batch))
		for i, offer := range batch {
			if err := calcErrs[i]; err != nil {
				result.Errors = append(result.Errors, RunError{
					Identifier: offerIdentifier(offer),
					Message:    err.Error(),
				})
				continue
			}
			pending = append(pending, *updates[i])
			result.Succeeded++
		}

		if len(pending) > 0 {
			if err := s.sink.WriteBatch(ctx, integrationID, pending); err != nil {
				s.logger.Error("batch commit failed",
					slog.String("integration_id", integrationID),
					slog.Int("batch", batchNo),
					slog.Any("error", err))
				result.Errors = append(result.Errors, RunError{
					Identifier: fmt.Sprintf("batch %d", batchNo),
					Message:    err.Error(),
				})
			}
		}

		processed += len(batch)
		if progress != nil {
			progress(Progress{Processed: processed, Total: len(offers), Status: "batch committed"})
		}
	}

	s.logger.Info("recalculation run finished",
		slog.String("integration_id", integrationID),
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

func offerIdentifier(offer Offer) string {
	if offer.TSIN != "" {
		return offer.TSIN
	}
	if offer.SKU != "" {
		return offer.SKU
	}
	return fmt.Sprintf("offer %d", offer.ID)
}
