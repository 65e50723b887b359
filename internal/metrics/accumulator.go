package metrics

import (
	"math"
	"strings"
	"time"
)

// stock thresholds for the status fallback when the marketplace status text
// is absent or unrecognized.
const lowStockThreshold = 5

// NewAccumulator returns the zero state for one offer's calculation.
func NewAccumulator() Accumulator {
	return Accumulator{DaysSinceLastOrder: NoOrderSentinel}
}

// Fold reduces one normalized sale into the accumulator and returns the new
// state. Records with an invalid date contribute nothing. DaysSinceLastOrder
// only ever decreases; future-dated records (negative day delta) never touch
// it. The 30-day window is inclusive at the cutoff instant.
func Fold(acc Accumulator, sale NormalizedSale, now, cutoff time.Time) Accumulator {
	if !sale.DateValid {
		return acc
	}

	daysDiff := int(math.Floor(now.Sub(sale.OrderDate).Hours() / 24))
	if daysDiff >= 0 && daysDiff < acc.DaysSinceLastOrder {
		acc.DaysSinceLastOrder = daysDiff
	}

	inWindow := !sale.OrderDate.Before(cutoff)
	if sale.IsReturn {
		qty := sale.Quantity
		if qty < 0 {
			qty = -qty
		}
		acc.TotalReturn += qty
		if inWindow {
			acc.Last30DaysReturn += qty
		}
		return acc
	}

	acc.TotalSold += sale.Quantity
	acc.TotalSoldAmount += float64(sale.Quantity) * sale.Price
	if inWindow {
		acc.Last30DaysSold += sale.Quantity
	}
	return acc
}

// Derive computes the persisted metrics from a finished accumulator and the
// offer's stock and price snapshot.
func Derive(acc Accumulator, offer Offer, now time.Time) DerivedMetrics {
	m := DerivedMetrics{
		TotalSold:          acc.TotalSold,
		TotalReturn:        acc.TotalReturn,
		Last30DaysSold:     acc.Last30DaysSold,
		Last30DaysReturn:   acc.Last30DaysReturn,
		DaysSinceLastOrder: acc.DaysSinceLastOrder,
		AvgSellingPrice:    offer.SellingPrice,
		ProductStatus:      StatusFor(offer.StatusText, offer.StockTotal),
		LastCalculated:     now,
		CalculationMethod:  CalculationMethod,
		CalculationVersion: CalculationVersion,
	}
	if acc.TotalSold > 0 {
		m.ReturnRate = float64(acc.TotalReturn) / float64(acc.TotalSold) * 100
		m.AvgSellingPrice = acc.TotalSoldAmount / float64(acc.TotalSold)
	}
	if need := acc.Last30DaysSold - offer.StockTotal - offer.StockOnWay; need > 0 {
		m.QtyRequire = need
	}
	return m
}

// StatusFor classifies buyability from the marketplace status text, falling
// back to stock thresholds when the text matches nothing. Substring checks
// run Disable, NotBuyable, Buyable in that order so "not buyable" never
// matches the buyable branch first.
func StatusFor(statusText string, stockTotal int) ProductStatus {
	status := strings.ToLower(statusText)
	switch {
	case strings.Contains(status, "disable"):
		return StatusDisable
	case strings.Contains(status, "not buyable"), strings.Contains(status, "notbuyable"):
		return StatusNotBuyable
	case strings.Contains(status, "buyable"):
		return StatusBuyable
	}
	switch {
	case stockTotal == 0:
		return StatusDisable
	case stockTotal < lowStockThreshold:
		return StatusNotBuyable
	default:
		return StatusBuyable
	}
}
