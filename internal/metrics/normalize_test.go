package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeQuantityPrecedence(t *testing.T) {
	sale := NormalizeSale(RawSaleRecord{"quantity": 3.0, "quantity_sold": 9.0}, 0)
	require.Equal(t, 3, sale.Quantity)

	sale = NormalizeSale(RawSaleRecord{"quantity_sold": 4.0, "units_sold": 7.0}, 0)
	require.Equal(t, 4, sale.Quantity)

	sale = NormalizeSale(RawSaleRecord{"units_sold": 7.0}, 0)
	require.Equal(t, 7, sale.Quantity)
}

func TestNormalizeQuantityDefaultsToOne(t *testing.T) {
	sale := NormalizeSale(RawSaleRecord{"order_date": time.Now()}, 0)
	require.Equal(t, 1, sale.Quantity)
}

func TestNormalizeDateForms(t *testing.T) {
	ts := time.Date(2026, 5, 10, 8, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
	}{
		{"native", ts},
		{"rfc3339", "2026-05-10T08:30:00Z"},
		{"sql", "2026-05-10 08:30:00"},
		{"unix seconds", float64(ts.Unix())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sale := NormalizeSale(RawSaleRecord{"order_date": tc.value}, 0)
			require.True(t, sale.DateValid)
			require.True(t, sale.OrderDate.Equal(ts), "got %v", sale.OrderDate)
		})
	}
}

func TestNormalizeDatePrecedence(t *testing.T) {
	sale := NormalizeSale(RawSaleRecord{
		"sale_date":  "2026-01-01",
		"order_date": "2026-02-02",
		"created_at": "2026-03-03",
	}, 0)
	require.True(t, sale.DateValid)
	require.Equal(t, 2026, sale.OrderDate.Year())
	require.Equal(t, time.February, sale.OrderDate.Month())
}

func TestNormalizeUnparseableDate(t *testing.T) {
	sale := NormalizeSale(RawSaleRecord{"order_date": "next tuesday", "quantity": 5.0}, 0)
	require.False(t, sale.DateValid)
	require.Equal(t, 5, sale.Quantity)
}

func TestNormalizePriceFallback(t *testing.T) {
	sale := NormalizeSale(RawSaleRecord{"selling_price": 90.0}, 100)
	require.InDelta(t, 90.0, sale.Price, 1e-9)

	sale = NormalizeSale(RawSaleRecord{}, 100)
	require.InDelta(t, 100.0, sale.Price, 1e-9)
}

func TestReturnSignalsAreIndependent(t *testing.T) {
	cases := []struct {
		name string
		raw  RawSaleRecord
		qty  int
	}{
		{"explicit flag", RawSaleRecord{"is_return": true}, 1},
		{"return status set", RawSaleRecord{"return_status": "approved"}, 1},
		{"order status text", RawSaleRecord{"order_status": "Returned to seller"}, 1},
		{"general status text", RawSaleRecord{"status": "RETURN pending"}, 1},
		{"negative quantity", RawSaleRecord{}, -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, IsReturnRecord(tc.raw, tc.qty))
		})
	}

	require.False(t, IsReturnRecord(RawSaleRecord{"is_return": false, "return_status": "  ", "status": "Shipped"}, 2))
}
