package metrics

import "time"

// CalculationVersion tags every persisted metrics payload so downstream
// consumers can tell which revision of the pipeline produced it.
const CalculationVersion = "2.6-sku-fallback-removed"

// CalculationMethod identifies the join strategy used for sale matching.
// SKU-based sale matching was removed as unreliable; TSIN is the only
// trusted join key.
const CalculationMethod = "tsin"

// NoOrderSentinel is the initial DaysSinceLastOrder value, meaning no valid
// order was found for the offer.
const NoOrderSentinel = 999

// ProductStatus is the tri-state buyability classification.
type ProductStatus string

const (
	StatusBuyable    ProductStatus = "Buyable"
	StatusNotBuyable ProductStatus = "NotBuyable"
	StatusDisable    ProductStatus = "Disable"
)

// Offer is one tenant's marketplace listing of a product. Offers are the
// read-only input of a calculation run; stock and price default to zero when
// the source row carries no value.
type Offer struct {
	ID            int64
	IntegrationID string
	TSIN          string
	SKU           string
	Title         string
	StockTotal    int
	StockOnWay    int
	SellingPrice  float64
	StatusText    string
}

// RawSaleRecord is one order line as delivered by an import pipeline. Field
// names vary by source, so the payload stays a loose map until NormalizeSale
// turns it into a NormalizedSale.
type RawSaleRecord map[string]any

// NormalizedSale is the strict internal form of a sale/return record.
type NormalizedSale struct {
	Quantity  int
	OrderDate time.Time
	DateValid bool
	Price     float64
	IsReturn  bool
}

// Accumulator carries the running totals of one offer's calculation. It is
// folded over sale records as a value; one instance per offer per run.
type Accumulator struct {
	TotalSold          int
	TotalReturn        int
	Last30DaysSold     int
	Last30DaysReturn   int
	DaysSinceLastOrder int
	TotalSoldAmount    float64
}

// DerivedMetrics is the persisted per-offer output of a calculation run.
// Immutable once computed; the next run overwrites it.
type DerivedMetrics struct {
	AvgSellingPrice    float64       `json:"avg_selling_price"`
	TotalSold          int           `json:"total_sold"`
	TotalReturn        int           `json:"total_return"`
	Last30DaysSold     int           `json:"last_30_days_sold"`
	Last30DaysReturn   int           `json:"last_30_days_return"`
	DaysSinceLastOrder int           `json:"days_since_last_order"`
	ReturnRate         float64       `json:"return_rate"`
	QtyRequire         int           `json:"qty_require"`
	ProductStatus      ProductStatus `json:"product_status"`
	LastCalculated     time.Time     `json:"last_calculated"`
	CalculationMethod  string        `json:"calculation_method"`
	CalculationVersion string        `json:"calculation_version"`
}

// MetricsUpdate pairs an offer with its freshly derived metrics for the
// batched sink write.
type MetricsUpdate struct {
	OfferID int64
	TSIN    string
	Metrics DerivedMetrics
}
