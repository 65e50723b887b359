package metrics

import (
	"strconv"
	"strings"
	"time"
)

// Field precedence for normalization. Earlier names win; the lists mirror the
// schemas produced by the known import pipelines.
var (
	quantityFields = []string{"quantity", "quantity_sold", "units_sold"}
	dateFields     = []string{"order_date", "sale_date", "created_at"}
	priceFields    = []string{"selling_price", "price"}
)

// dateLayouts accepted for string order dates, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// NormalizeSale maps a loose sale/return payload to a NormalizedSale.
// A record with no quantity field counts as one unit. A record whose date
// cannot be resolved gets DateValid=false and must contribute nothing to any
// date-dependent total.
func NormalizeSale(raw RawSaleRecord, fallbackPrice float64) NormalizedSale {
	qty := 1
	if v, ok := numberField(raw, quantityFields...); ok {
		qty = int(v)
	}

	sale := NormalizedSale{
		Quantity: qty,
		Price:    fallbackPrice,
		IsReturn: IsReturnRecord(raw, qty),
	}
	if v, ok := numberField(raw, priceFields...); ok {
		sale.Price = v
	}
	if ts, ok := orderDate(raw); ok {
		sale.OrderDate = ts
		sale.DateValid = true
	}
	return sale
}

// IsReturnRecord reports whether the record represents a return. Any one of
// four independent signals is enough.
func IsReturnRecord(raw RawSaleRecord, quantity int) bool {
	return hasReturnFlag(raw) ||
		hasReturnStatus(raw) ||
		statusMentionsReturn(raw) ||
		quantityNegative(quantity)
}

func hasReturnFlag(raw RawSaleRecord) bool {
	v, ok := raw["is_return"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func hasReturnStatus(raw RawSaleRecord) bool {
	s, ok := stringField(raw, "return_status")
	return ok && strings.TrimSpace(s) != ""
}

func statusMentionsReturn(raw RawSaleRecord) bool {
	for _, key := range []string{"order_status", "status"} {
		if s, ok := stringField(raw, key); ok {
			if strings.Contains(strings.ToLower(s), "return") {
				return true
			}
		}
	}
	return false
}

func quantityNegative(quantity int) bool {
	return quantity < 0
}

func orderDate(raw RawSaleRecord) (time.Time, bool) {
	for _, key := range dateFields {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		return parseOrderDate(v)
	}
	return time.Time{}, false
}

// parseOrderDate coerces the value forms the import pipelines deliver:
// native timestamps, unix seconds, and a handful of string layouts.
func parseOrderDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case int64:
		return time.Unix(val, 0), val != 0
	case float64:
		return time.Unix(int64(val), 0), val != 0
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func numberField(raw RawSaleRecord, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val, true
		case float32:
			return float64(val), true
		case int:
			return float64(val), true
		case int32:
			return float64(val), true
		case int64:
			return float64(val), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func stringField(raw RawSaleRecord, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
