package metrics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedTracer(offers OfferSource, sales SaleSource) *Tracer {
	tracer := NewTracer(offers, sales, slog.Default())
	tracer.clock = func() time.Time { return testNow }
	return tracer
}

func stepNames(report TraceReport) []string {
	names := make([]string, len(report.Steps))
	for i, s := range report.Steps {
		names[i] = s.Step
	}
	return names
}

func TestTraceProductFoundByTSIN(t *testing.T) {
	offers := &stubOfferSource{offers: []Offer{{ID: 1, TSIN: "1000123", SKU: "SKU-1", StockTotal: 10, SellingPrice: 100}}}
	sales := &stubSaleSource{records: map[SaleKeyField]map[string][]RawSaleRecord{
		FieldTSINID: {"1000123": {
			{"quantity": 5.0, "order_date": testNow.AddDate(0, 0, -10), "selling_price": 90.0},
			{"quantity": -2.0, "order_date": testNow.AddDate(0, 0, -5)},
		}},
	}}

	report, err := fixedTracer(offers, sales).TraceProduct(context.Background(), "acme", "1000123")
	require.NoError(t, err)
	require.Equal(t, "TSIN", report.FoundBy)
	require.NotNil(t, report.Offer)
	require.Equal(t, []string{"lookup", "sales_query", "fold", "fold", "derive"}, stepNames(report))

	fold := report.Steps[2]
	require.NotNil(t, fold.Before)
	require.NotNil(t, fold.After)
	require.Zero(t, fold.Before.TotalSold)
	require.Equal(t, 5, fold.After.TotalSold)

	require.NotNil(t, report.Metrics)
	require.InDelta(t, 40.0, report.Metrics.ReturnRate, 1e-9)
	require.InDelta(t, 90.0, report.Metrics.AvgSellingPrice, 1e-9)
}

func TestTraceProductMatchesCalculator(t *testing.T) {
	offer := Offer{ID: 2, TSIN: "55", StockTotal: 3, SellingPrice: 10}
	sales := &stubSaleSource{records: map[SaleKeyField]map[string][]RawSaleRecord{
		FieldTSIN: {"55": {{"quantity": 2.0, "order_date": testNow.AddDate(0, 0, -1)}}},
	}}
	offers := &stubOfferSource{offers: []Offer{offer}}

	report, err := fixedTracer(offers, sales).TraceProduct(context.Background(), "acme", "55")
	require.NoError(t, err)

	direct, err := fixedCalculator(sales).Calculate(context.Background(), "acme", offer)
	require.NoError(t, err)
	require.Equal(t, direct, *report.Metrics)
}

func TestTraceProductSKUFallbackForLookupOnly(t *testing.T) {
	offer := Offer{ID: 3, TSIN: "777", SKU: "SHOE-BLK-42", StockTotal: 6}
	offers := &stubOfferSource{offers: []Offer{offer}}
	sales := &stubSaleSource{records: map[SaleKeyField]map[string][]RawSaleRecord{
		FieldTSINID: {"777": {{"quantity": 1.0, "order_date": testNow.AddDate(0, 0, -2)}}},
	}}

	report, err := fixedTracer(offers, sales).TraceProduct(context.Background(), "acme", "SHOE-BLK-42")
	require.NoError(t, err)
	require.Equal(t, "SKU", report.FoundBy)
	// Sale matching still keys off the offer's TSIN, never the SKU.
	require.Equal(t, []SaleKeyField{FieldTSINID}, sales.queries)
	require.Equal(t, 1, report.Metrics.TotalSold)
}

func TestTraceProductNotFound(t *testing.T) {
	report, err := fixedTracer(&stubOfferSource{}, &stubSaleSource{}).TraceProduct(context.Background(), "acme", "nope")
	require.NoError(t, err, "missing product must not be an error")
	require.Equal(t, "Not Found", report.FoundBy)
	require.Nil(t, report.Offer)
	require.Nil(t, report.Metrics)
	require.Equal(t, []string{"lookup"}, stepNames(report))
}

func TestTraceProductOfferWithoutTSIN(t *testing.T) {
	offer := Offer{ID: 4, SKU: "BARE", StockTotal: 2, SellingPrice: 30}
	offers := &stubOfferSource{offers: []Offer{offer}}
	sales := &stubSaleSource{}

	report, err := fixedTracer(offers, sales).TraceProduct(context.Background(), "acme", "BARE")
	require.NoError(t, err)
	require.Equal(t, "SKU", report.FoundBy)
	require.Empty(t, sales.queries)
	require.Equal(t, NoOrderSentinel, report.Metrics.DaysSinceLastOrder)
	require.InDelta(t, 30.0, report.Metrics.AvgSellingPrice, 1e-9)
}
