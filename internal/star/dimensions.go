// Package star builds the dimension and fact tables of the sales star schema
// from an engineered feature frame. Surrogate keys are assigned in first-seen
// input order so reruns over identical input produce identical tables.
package star

import (
	"errors"
	"fmt"
	"time"

	"salesdw/internal/frame"
	"salesdw/internal/transform"
)

// ErrDuplicateDateKey signals that date-dimension construction produced a
// repeated DateKey. That means the range generator is broken; the run must
// abort rather than repair it silently.
var ErrDuplicateDateKey = errors.New("star: duplicate DateKey in date dimension")

// Target table names.
const (
	TableDate     = "Dim_Date"
	TableCustomer = "Dim_Customer"
	TableProduct  = "Dim_Product"
	TableShipMode = "Dim_ShipMode"
	TableLocation = "Dim_Location"
	TableFact     = "Fact_Sales"
)

// locationCandidates are the source columns that can form the location
// natural key, in schema order. Whichever subset exists in the source
// becomes the composite key; the dimension adapts to the available columns.
var locationCandidates = []string{"city", "state", "country", "region", "market", "postal_code"}

var locationRenames = map[string]string{
	"city":        "City",
	"state":       "State",
	"country":     "Country",
	"region":      "Region",
	"market":      "Market",
	"postal_code": "PostalCode",
}

// Dimensions holds the five dimension tables plus the location natural-key
// column set the fact builder must join on.
type Dimensions struct {
	Date     *frame.Frame
	Customer *frame.Frame
	Product  *frame.Frame
	ShipMode *frame.Frame
	Location *frame.Frame

	// LocationKeys are the normalized source column names that formed the
	// location composite key, in candidate order.
	LocationKeys []string
}

// BuildDimensions derives all five dimension tables from the feature frame.
func BuildDimensions(f *frame.Frame) (*Dimensions, error) {
	date, err := buildDateDimension(f)
	if err != nil {
		return nil, err
	}

	customer, err := buildKeyedDimension(f,
		[]string{"customer_id", "customer_name", "segment"},
		map[string]string{"customer_id": "CustomerID", "customer_name": "CustomerName", "segment": "Segment"},
		"customer_id",
	)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", TableCustomer, err)
	}

	product, err := buildKeyedDimension(f,
		[]string{"product_id", "product_name", "category", "sub_category"},
		map[string]string{"product_id": "ProductID", "product_name": "ProductName", "category": "Category", "sub_category": "SubCategory"},
		"product_id",
	)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", TableProduct, err)
	}

	shipMode, err := buildShipModeDimension(f)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", TableShipMode, err)
	}

	location, keys, err := buildLocationDimension(f)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", TableLocation, err)
	}

	return &Dimensions{
		Date:         date,
		Customer:     customer,
		Product:      product,
		ShipMode:     shipMode,
		Location:     location,
		LocationKeys: keys,
	}, nil
}

// buildDateDimension emits one row per calendar day over the inclusive
// [min(order_date), max(order_date)] range, preceded by the DateKey=0
// sentinel. When the batch has no parseable order dates the table contains
// only the sentinel.
func buildDateDimension(f *frame.Frame) (*frame.Frame, error) {
	out := frame.New("DateKey", "Date", "Year", "Quarter", "Month", "MonthName", "Day", "Weekday", "IsWeekend")
	out.Append([]any{int64(0), nil, nil, nil, nil, "Unknown", nil, nil, nil})

	minDate, maxDate, ok := orderDateRange(f)
	if ok {
		for d := minDate; !d.After(maxDate); d = d.AddDate(0, 0, 1) {
			wd := d.Weekday()
			out.Append([]any{
				transform.DateKey(d),
				d,
				int64(d.Year()),
				int64((int(d.Month())-1)/3 + 1),
				int64(d.Month()),
				d.Month().String(),
				int64(d.Day()),
				wd.String(),
				wd == time.Saturday || wd == time.Sunday,
			})
		}
	}

	seen := make(map[int64]struct{}, out.Len())
	for _, r := range out.Rows {
		k := r[0].(int64)
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: DateKey=%d", ErrDuplicateDateKey, k)
		}
		seen[k] = struct{}{}
	}

	return out, nil
}

func orderDateRange(f *frame.Frame) (minDate, maxDate time.Time, ok bool) {
	idx, has := f.ColumnIndex("order_date")
	if !has {
		return minDate, maxDate, false
	}
	for _, r := range f.Rows {
		d, isDate := r[idx].(time.Time)
		if !isDate {
			continue
		}
		if !ok {
			minDate, maxDate, ok = d, d, true
			continue
		}
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}
	return minDate, maxDate, ok
}

// buildKeyedDimension projects the given columns, drops fully duplicate rows,
// then deduplicates again on the natural key alone. The second pass guards
// against rows that repeat the key with conflicting attributes; the first
// occurrence wins.
func buildKeyedDimension(f *frame.Frame, columns []string, renames map[string]string, key string) (*frame.Frame, error) {
	dim, err := f.Select(columns...)
	if err != nil {
		return nil, err
	}
	dim, err = dim.DropDuplicates()
	if err != nil {
		return nil, err
	}
	dim, err = dim.DropDuplicates(key)
	if err != nil {
		return nil, err
	}
	dim.RenameColumns(renames)
	return dim, nil
}

// buildShipModeDimension assigns sequential surrogate ids (1..N) to distinct
// ship-mode values in first-seen order.
func buildShipModeDimension(f *frame.Frame) (*frame.Frame, error) {
	src, err := f.Select("ship_mode")
	if err != nil {
		return nil, err
	}
	src, err = src.DropDuplicates()
	if err != nil {
		return nil, err
	}

	out := frame.New("ShipModeID", "ShipMode")
	for i, r := range src.Rows {
		out.Append([]any{int64(i + 1), r[0]})
	}
	return out, nil
}

// buildLocationDimension projects whichever candidate location columns exist,
// deduplicates the composite tuples and assigns sequential surrogate ids in
// first-seen order. The returned keys are the source columns actually used.
func buildLocationDimension(f *frame.Frame) (*frame.Frame, []string, error) {
	var keys []string
	for _, c := range locationCandidates {
		if f.HasColumn(c) {
			keys = append(keys, c)
		}
	}
	if len(keys) == 0 {
		return frame.New("LocationID"), nil, nil
	}

	src, err := f.Select(keys...)
	if err != nil {
		return nil, nil, err
	}
	src, err = src.DropDuplicates()
	if err != nil {
		return nil, nil, err
	}

	columns := append([]string{"LocationID"}, keys...)
	out := frame.New(columns...)
	for i, r := range src.Rows {
		row := make([]any, 0, len(r)+1)
		row = append(row, int64(i+1))
		row = append(row, r...)
		out.Append(row)
	}
	out.RenameColumns(locationRenames)
	return out, keys, nil
}
