package metrics

import "context"

// SaleKeyField names the sale-table column variant used to match records to
// an offer. Imports written before the schema consolidation store the
// identifier under tsin_id; newer ones under tsin.
type SaleKeyField string

const (
	FieldTSINID SaleKeyField = "tsin_id"
	FieldTSIN   SaleKeyField = "tsin"
)

// saleKeyFields is the query order: the first variant that yields matches is
// used exclusively.
var saleKeyFields = []SaleKeyField{FieldTSINID, FieldTSIN}

// OfferSource reads a tenant's marketplace listings.
type OfferSource interface {
	ListOffers(ctx context.Context, integrationID string) ([]Offer, error)
	GetOfferByTSIN(ctx context.Context, integrationID, tsin string) (Offer, error)
	GetOfferBySKU(ctx context.Context, integrationID, sku string) (Offer, error)
}

// SaleSource reads raw sale/return records matching one offer under one key
// field variant.
type SaleSource interface {
	ListSales(ctx context.Context, integrationID string, field SaleKeyField, tsin string) ([]RawSaleRecord, error)
}

// MetricsSink persists one batch of derived metrics atomically: either every
// update in the slice applies or none does.
type MetricsSink interface {
	WriteBatch(ctx context.Context, integrationID string, updates []MetricsUpdate) error
}

// OfferCalculator derives one offer's metrics. Satisfied by Calculator; the
// orchestrator depends on the interface so a failing calculation can be
// recorded per offer without aborting the batch.
type OfferCalculator interface {
	Calculate(ctx context.Context, integrationID string, offer Offer) (DerivedMetrics, error)
}
