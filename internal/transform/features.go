package transform

import (
	"math"
	"sort"
	"time"

	"salesdw/internal/frame"
)

// Feature column names appended by Engineer, in order.
var FeatureColumns = []string{
	"shipping_days",
	"profit_margin",
	"is_profitable",
	"discount_category",
	"order_value_segment",
	"date_key",
}

// maxTextLen caps every text value before load (target columns are
// NVARCHAR(255)).
const maxTextLen = 255

// Engineer appends the derived feature columns to a normalized frame and
// truncates all text values. Cardinality is unchanged.
//
// The order-value threshold is a single batch-wide 75th percentile of sales,
// computed once before any row is classified; classification is deliberately
// two-phase and never per-row-local.
func Engineer(f *frame.Frame) *frame.Frame {
	threshold, hasThreshold := salesThreshold(f)

	orderIdx, hasOrder := f.ColumnIndex("order_date")
	shipIdx, hasShip := f.ColumnIndex("ship_date")
	salesIdx, hasSales := f.ColumnIndex("sales")
	profitIdx, hasProfit := f.ColumnIndex("profit")
	discountIdx, hasDiscount := f.ColumnIndex("discount")

	for i, r := range f.Rows {
		var orderDate, shipDate time.Time
		var orderOK, shipOK bool
		if hasOrder {
			orderDate, orderOK = r[orderIdx].(time.Time)
		}
		if hasShip {
			shipDate, shipOK = r[shipIdx].(time.Time)
		}

		var sales, profit, discount float64
		var salesOK, profitOK, discountOK bool
		if hasSales {
			sales, salesOK = r[salesIdx].(float64)
		}
		if hasProfit {
			profit, profitOK = r[profitIdx].(float64)
		}
		if hasDiscount {
			discount, discountOK = r[discountIdx].(float64)
		}

		var shippingDays int64
		if orderOK && shipOK {
			shippingDays = int64(shipDate.Sub(orderDate) / (24 * time.Hour))
		}

		margin := 0.0
		if salesOK && profitOK && sales != 0 {
			m := profit / sales * 100
			if !math.IsInf(m, 0) && !math.IsNaN(m) {
				margin = m
			}
		}

		var profitable int64
		if profitOK && profit > 0 {
			profitable = 1
		}

		segment := "Standard Value"
		if hasThreshold && salesOK && sales > threshold {
			segment = "High Value"
		}

		var dateKey int64
		if orderOK {
			dateKey = DateKey(orderDate)
		}

		f.Rows[i] = append(r,
			shippingDays,
			margin,
			profitable,
			discountCategory(discount, discountOK),
			segment,
			dateKey,
		)
	}
	f.Columns = append(f.Columns, FeatureColumns...)

	truncateText(f)
	return f
}

// DateKey encodes a date as YYYYMMDD.
func DateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// discountCategory buckets a discount rate. A missing discount fails both
// numeric guards and falls through to "High", matching the legacy classifier.
func discountCategory(discount float64, ok bool) string {
	switch {
	case ok && discount == 0:
		return "No Discount"
	case ok && discount < 0.2:
		return "Low"
	default:
		return "High"
	}
}

// salesThreshold computes the batch 75th percentile of sales with linear
// interpolation between closest ranks. Missing sales values are skipped.
// The second return is false when the batch has no sales values at all.
func salesThreshold(f *frame.Frame) (float64, bool) {
	idx, ok := f.ColumnIndex("sales")
	if !ok {
		return 0, false
	}
	values := make([]float64, 0, len(f.Rows))
	for _, r := range f.Rows {
		if v, ok := r[idx].(float64); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return Quantile(values, 0.75), true
}

// Quantile returns the p-quantile of values using linear interpolation,
// the same scheme the original batch classifier used. values is copied,
// not mutated. Panics are avoided by clamping p to [0, 1].
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// truncateText caps every string value in the frame at maxTextLen runes.
func truncateText(f *frame.Frame) {
	for _, r := range f.Rows {
		for i, v := range r {
			s, ok := v.(string)
			if !ok || len(s) <= maxTextLen {
				continue
			}
			runes := []rune(s)
			if len(runes) > maxTextLen {
				r[i] = string(runes[:maxTextLen])
			}
		}
	}
}
