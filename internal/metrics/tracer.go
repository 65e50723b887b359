package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/marketpulse/marketpulse/internal/shared"
)

// TraceStep is one entry of a debug trace: a named step, a human-readable
// detail line, and optionally a data snapshot. Fold steps also carry the
// accumulator before and after the record.
type TraceStep struct {
	Step   string         `json:"step"`
	Detail string         `json:"detail"`
	Data   map[string]any `json:"data,omitempty"`
	Before *Accumulator   `json:"before,omitempty"`
	After  *Accumulator   `json:"after,omitempty"`
}

// TraceReport is the full audit record of one offer's calculation.
type TraceReport struct {
	IntegrationID string          `json:"integration_id"`
	Identifier    string          `json:"identifier"`
	FoundBy       string          `json:"found_by"`
	Offer         *Offer          `json:"offer,omitempty"`
	Steps         []TraceStep     `json:"steps"`
	Metrics       *DerivedMetrics `json:"metrics,omitempty"`
}

// Tracer runs the same calculation as Calculator for exactly one offer while
// recording every state transition. Offer lookup tries TSIN first and falls
// back to SKU; sale matching always keys off the found offer's TSIN, since
// SKU-based sale matching was removed as unreliable.
type Tracer struct {
	offers  OfferSource
	sales   SaleSource
	logger  *slog.Logger
	clock   func() time.Time
	printer *message.Printer
}

// NewTracer constructs a Tracer.
func NewTracer(offers OfferSource, sales SaleSource, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		offers:  offers,
		sales:   sales,
		logger:  logger,
		clock:   time.Now,
		printer: message.NewPrinter(language.English),
	}
}

// TraceProduct produces the debug report for one identifier. A missing offer
// is not an error: the report comes back with FoundBy "Not Found" and no
// metrics.
func (t *Tracer) TraceProduct(ctx context.Context, integrationID, identifier string) (TraceReport, error) {
	report := TraceReport{IntegrationID: integrationID, Identifier: identifier}

	offer, foundBy, err := t.lookupOffer(ctx, integrationID, identifier)
	if err != nil {
		return report, err
	}
	report.FoundBy = foundBy
	if foundBy == "Not Found" {
		report.Steps = append(report.Steps, TraceStep{
			Step:   "lookup",
			Detail: t.printer.Sprintf("no offer found by TSIN or SKU for %q", identifier),
		})
		return report, nil
	}
	report.Offer = &offer
	report.Steps = append(report.Steps, TraceStep{
		Step:   "lookup",
		Detail: t.printer.Sprintf("offer found by %s: tsin=%s sku=%s", foundBy, offer.TSIN, offer.SKU),
		Data: map[string]any{
			"stock_total":   offer.StockTotal,
			"stock_on_way":  offer.StockOnWay,
			"selling_price": offer.SellingPrice,
			"status_text":   offer.StatusText,
		},
	})

	now := t.clock().UTC()
	cutoff := now.Add(-metricsWindow)
	acc := NewAccumulator()

	records, field := t.traceSalesQuery(ctx, &report, integrationID, offer.TSIN)
	for i, rec := range records {
		sale := NormalizeSale(rec, offer.SellingPrice)
		before := acc
		acc = Fold(acc, sale, now, cutoff)
		after := acc
		report.Steps = append(report.Steps, TraceStep{
			Step:   "fold",
			Detail: t.foldDetail(i, sale),
			Data:   map[string]any{"field": string(field), "record": map[string]any(rec)},
			Before: &before,
			After:  &after,
		})
	}

	m := Derive(acc, offer, now)
	report.Metrics = &m
	report.Steps = append(report.Steps, TraceStep{
		Step: "derive",
		Detail: t.printer.Sprintf("sold %d returned %d rate %.2f%% avg price %.2f require %d status %s",
			m.TotalSold, m.TotalReturn, m.ReturnRate, m.AvgSellingPrice, m.QtyRequire, m.ProductStatus),
	})
	return report, nil
}

func (t *Tracer) lookupOffer(ctx context.Context, integrationID, identifier string) (Offer, string, error) {
	offer, err := t.offers.GetOfferByTSIN(ctx, integrationID, identifier)
	if err == nil {
		return offer, "TSIN", nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Offer{}, "", err
	}
	offer, err = t.offers.GetOfferBySKU(ctx, integrationID, identifier)
	if err == nil {
		return offer, "SKU", nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Offer{}, "", err
	}
	return Offer{}, "Not Found", nil
}

func (t *Tracer) traceSalesQuery(ctx context.Context, report *TraceReport, integrationID, tsin string) ([]RawSaleRecord, SaleKeyField) {
	if tsin == "" {
		report.Steps = append(report.Steps, TraceStep{
			Step:   "sales_query",
			Detail: "offer has no tsin, sales lookup skipped",
		})
		return nil, ""
	}
	for _, field := range saleKeyFields {
		records, err := t.sales.ListSales(ctx, integrationID, field, tsin)
		if err != nil {
			report.Steps = append(report.Steps, TraceStep{
				Step:   "sales_query",
				Detail: t.printer.Sprintf("query by %s failed: %v; proceeding with zero sales", field, err),
			})
			return nil, field
		}
		report.Steps = append(report.Steps, TraceStep{
			Step:   "sales_query",
			Detail: t.printer.Sprintf("query by %s matched %d records", field, len(records)),
		})
		if len(records) > 0 {
			return records, field
		}
	}
	return nil, ""
}

func (t *Tracer) foldDetail(index int, sale NormalizedSale) string {
	kind := "sale"
	if sale.IsReturn {
		kind = "return"
	}
	if !sale.DateValid {
		return t.printer.Sprintf("record %d: %s of %d units skipped, unparseable date", index, kind, sale.Quantity)
	}
	return t.printer.Sprintf("record %d: %s of %d units at %.2f on %s",
		index, kind, sale.Quantity, sale.Price, sale.OrderDate.Format(time.RFC3339))
}
