package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const metricsWindow = 30 * 24 * time.Hour

// Calculator derives one offer's metrics from its sale history. It reads but
// never writes; persistence belongs to the orchestrator.
type Calculator struct {
	sales  SaleSource
	logger *slog.Logger
	clock  func() time.Time
}

// NewCalculator constructs a Calculator.
func NewCalculator(sales SaleSource, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{sales: sales, logger: logger, clock: time.Now}
}

// Calculate computes derived metrics for a single offer. A missing TSIN or a
// failed sales query degrades to zero-sales metrics rather than failing the
// offer: stock-based status and the list-price fallback are still worth
// persisting. Only a cancelled run fails the offer outright.
func (c *Calculator) Calculate(ctx context.Context, integrationID string, offer Offer) (DerivedMetrics, error) {
	if err := ctx.Err(); err != nil {
		return DerivedMetrics{}, fmt.Errorf("metrics: calculate offer %d: %w", offer.ID, err)
	}
	now := c.clock().UTC()
	cutoff := now.Add(-metricsWindow)

	acc := NewAccumulator()
	if offer.TSIN == "" {
		c.logger.Warn("offer has no tsin, skipping sales lookup",
			slog.String("integration_id", integrationID),
			slog.String("sku", offer.SKU))
	} else {
		for _, rec := range c.querySales(ctx, integrationID, offer.TSIN) {
			sale := NormalizeSale(rec, offer.SellingPrice)
			acc = Fold(acc, sale, now, cutoff)
		}
	}
	return Derive(acc, offer, now), nil
}

// querySales tries each key-field variant in order and uses the first one
// that returns matches exclusively. Query errors are swallowed with a
// warning; the caller proceeds with zero sales.
func (c *Calculator) querySales(ctx context.Context, integrationID, tsin string) []RawSaleRecord {
	for _, field := range saleKeyFields {
		records, err := c.sales.ListSales(ctx, integrationID, field, tsin)
		if err != nil {
			c.logger.Warn("sales query failed, falling back to zero sales",
				slog.String("integration_id", integrationID),
				slog.String("tsin", tsin),
				slog.String("field", string(field)),
				slog.Any("error", err))
			return nil
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}
