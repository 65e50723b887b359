package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func foldAll(t *testing.T, sales []NormalizedSale) Accumulator {
	t.Helper()
	cutoff := testNow.Add(-metricsWindow)
	acc := NewAccumulator()
	for _, sale := range sales {
		acc = Fold(acc, sale, testNow, cutoff)
	}
	return acc
}

func saleDaysAgo(days int, qty int, price float64) NormalizedSale {
	return NormalizedSale{
		Quantity:  qty,
		Price:     price,
		OrderDate: testNow.AddDate(0, 0, -days),
		DateValid: true,
	}
}

func TestDaysSinceLastOrderIsMinimumNonNegative(t *testing.T) {
	acc := foldAll(t, []NormalizedSale{
		saleDaysAgo(40, 1, 10),
		saleDaysAgo(5, 1, 10),
		saleDaysAgo(12, 1, 10),
		saleDaysAgo(-3, 1, 10), // future-dated, clock skew
	})
	require.Equal(t, 5, acc.DaysSinceLastOrder)
}

func TestDaysSinceLastOrderSentinelWhenNoValidDates(t *testing.T) {
	acc := foldAll(t, []NormalizedSale{
		{Quantity: 3, DateValid: false},
	})
	require.Equal(t, NoOrderSentinel, acc.DaysSinceLastOrder)
	require.Zero(t, acc.TotalSold)
}

func TestNegativeQuantityCountsAsReturnMagnitude(t *testing.T) {
	sale := saleDaysAgo(5, -3, 10)
	sale.IsReturn = true
	acc := foldAll(t, []NormalizedSale{sale})
	require.Equal(t, 3, acc.TotalReturn)
	require.Equal(t, 3, acc.Last30DaysReturn)
	require.Zero(t, acc.TotalSold)
}

func TestThirtyDayWindowBoundaryIsInclusive(t *testing.T) {
	cutoff := testNow.Add(-metricsWindow)

	atCutoff := NormalizedSale{Quantity: 2, OrderDate: cutoff, DateValid: true, Price: 10}
	justBefore := NormalizedSale{Quantity: 3, OrderDate: cutoff.Add(-time.Millisecond), DateValid: true, Price: 10}

	acc := NewAccumulator()
	acc = Fold(acc, atCutoff, testNow, cutoff)
	acc = Fold(acc, justBefore, testNow, cutoff)

	require.Equal(t, 5, acc.TotalSold)
	require.Equal(t, 2, acc.Last30DaysSold)
}

func TestFoldAccumulatesSoldAmount(t *testing.T) {
	acc := foldAll(t, []NormalizedSale{
		saleDaysAgo(3, 2, 50),
		saleDaysAgo(4, 1, 80),
	})
	require.Equal(t, 3, acc.TotalSold)
	require.InDelta(t, 180.0, acc.TotalSoldAmount, 1e-9)
}

func TestDeriveInvariants(t *testing.T) {
	offer := Offer{StockTotal: 10, StockOnWay: 0, SellingPrice: 100}

	t.Run("zero sales keeps list price and zero rate", func(t *testing.T) {
		acc := NewAccumulator()
		acc.TotalReturn = 4
		m := Derive(acc, offer, testNow)
		require.Zero(t, m.ReturnRate)
		require.InDelta(t, 100.0, m.AvgSellingPrice, 1e-9)
	})

	t.Run("qty require never negative", func(t *testing.T) {
		acc := NewAccumulator()
		acc.Last30DaysSold = 5
		m := Derive(acc, offer, testNow)
		require.Zero(t, m.QtyRequire)
	})

	t.Run("qty require covers the window deficit", func(t *testing.T) {
		acc := NewAccumulator()
		acc.Last30DaysSold = 25
		m := Derive(acc, Offer{StockTotal: 10, StockOnWay: 5}, testNow)
		require.Equal(t, 10, m.QtyRequire)
	})

	t.Run("return rate can exceed 100", func(t *testing.T) {
		acc := NewAccumulator()
		acc.TotalSold = 2
		acc.TotalReturn = 3
		m := Derive(acc, offer, testNow)
		require.InDelta(t, 150.0, m.ReturnRate, 1e-9)
	})

	t.Run("version tag persisted", func(t *testing.T) {
		m := Derive(NewAccumulator(), offer, testNow)
		require.Equal(t, CalculationVersion, m.CalculationVersion)
		require.Equal(t, CalculationMethod, m.CalculationMethod)
	})
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		statusText string
		stock      int
		want       ProductStatus
	}{
		{"Buyable", 0, StatusBuyable},
		{"Not Buyable", 50, StatusNotBuyable},
		{"Disabled by seller", 50, StatusDisable},
		{"Disabled but buyable soon", 50, StatusDisable}, // Disable checked first
		{"", 0, StatusDisable},
		{"", 4, StatusNotBuyable},
		{"", 5, StatusBuyable},
		{"unknown status", 12, StatusBuyable},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, StatusFor(tc.statusText, tc.stock), "status=%q stock=%d", tc.statusText, tc.stock)
	}
}
