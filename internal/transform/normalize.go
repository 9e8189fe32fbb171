// Package transform canonicalizes raw source rows and derives the analytic
// feature columns consumed by the star builders.
package transform

import (
	"strconv"
	"strings"
	"time"

	"salesdw/internal/frame"
)

// DefaultDateLayouts is the ordered set of layouts tried when parsing
// order_date / ship_date. The source data ships with several regional
// formats; first layout that parses wins.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"02.01.2006",
	"2006-01-02 15:04:05",
}

// Columns coerced during normalization. Identifier columns are upper-cased
// for case-insensitive matching in the store; measures are parsed to their
// numeric types so feature arithmetic never operates on strings.
var (
	upperIDColumns = []string{"customer_id", "product_id"}
	dateColumns    = []string{"order_date", "ship_date"}
	floatColumns   = []string{"sales", "discount", "profit", "shipping_cost"}
	intColumns     = []string{"row_id", "quantity"}
)

// NormalizeName lower-cases a column name and replaces '.', ' ' and '-'
// with underscores.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// Normalize canonicalizes the frame in place: column names are normalized,
// identifier values upper-cased, date columns parsed (unparsable values
// become nil rather than erroring) and measure columns coerced to numbers.
// Row count is unchanged.
func Normalize(f *frame.Frame, dateLayouts []string) *frame.Frame {
	if len(dateLayouts) == 0 {
		dateLayouts = DefaultDateLayouts
	}

	for i, c := range f.Columns {
		f.Columns[i] = NormalizeName(c)
	}

	for _, col := range upperIDColumns {
		if i, ok := f.ColumnIndex(col); ok {
			for _, r := range f.Rows {
				if s, ok := r[i].(string); ok {
					r[i] = strings.ToUpper(s)
				}
			}
		}
	}

	for _, col := range dateColumns {
		if i, ok := f.ColumnIndex(col); ok {
			for _, r := range f.Rows {
				r[i] = parseDate(r[i], dateLayouts)
			}
		}
	}

	for _, col := range floatColumns {
		if i, ok := f.ColumnIndex(col); ok {
			for _, r := range f.Rows {
				r[i] = parseFloat(r[i])
			}
		}
	}

	for _, col := range intColumns {
		if i, ok := f.ColumnIndex(col); ok {
			for _, r := range f.Rows {
				r[i] = parseInt(r[i])
			}
		}
	}

	return f
}

// parseDate returns a time.Time for the first layout that parses, or nil.
func parseDate(v any, layouts []string) any {
	s, ok := v.(string)
	if !ok {
		if _, isTime := v.(time.Time); isTime {
			return v
		}
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}

func parseFloat(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return t
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func parseInt(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return t
	case float64:
		return int64(t)
	case string:
		s := strings.TrimSpace(t)
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n
		}
		// Exported spreadsheets sometimes carry integer ids as "123.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		return int64(f)
	default:
		return nil
	}
}
