package star

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"salesdw/internal/frame"
)

// FactColumns is the fixed projection order of Fact_Sales.
var FactColumns = []string{
	"RowID", "OrderID", "DateKey", "CustomerID", "ProductID", "LocationID", "ShipModeID",
	"Sales", "Quantity", "Discount", "Profit", "ShippingCost",
	"shipping_days", "profit_margin", "is_profitable", "discount_category", "order_value_segment",
}

// factSources maps fact columns to their feature-frame source columns.
// LocationID and ShipModeID are resolved by lookup, not projection.
var factSources = map[string]string{
	"RowID":               "row_id",
	"OrderID":             "order_id",
	"DateKey":             "date_key",
	"CustomerID":          "customer_id",
	"ProductID":           "product_id",
	"Sales":               "sales",
	"Quantity":            "quantity",
	"Discount":            "discount",
	"Profit":              "profit",
	"ShippingCost":        "shipping_cost",
	"shipping_days":       "shipping_days",
	"profit_margin":       "profit_margin",
	"is_profitable":       "is_profitable",
	"discount_category":   "discount_category",
	"order_value_segment": "order_value_segment",
}

// BuildFactSales resolves dimension foreign keys against the ship-mode and
// location dimensions, deduplicates by RowID (first occurrence wins) and
// projects the fixed fact column list.
//
// An unmatched non-empty natural key yields a NULL foreign key and the row is
// still loaded; with strict=true it aborts instead. A nil natural key always
// resolves to NULL, in both modes.
func BuildFactSales(feat *frame.Frame, dims *Dimensions, strict bool) (*frame.Frame, error) {
	shipIdx, err := shipModeIndex(dims.ShipMode)
	if err != nil {
		return nil, err
	}
	locIdx, err := locationIndex(dims.Location)
	if err != nil {
		return nil, err
	}

	srcIdx := make([]int, len(FactColumns))
	for i, col := range FactColumns {
		srcIdx[i] = -1
		if src, ok := factSources[col]; ok {
			if j, has := feat.ColumnIndex(src); has {
				srcIdx[i] = j
			}
		}
	}
	shipCol, hasShipCol := feat.ColumnIndex("ship_mode")
	locCols := make([]int, len(dims.LocationKeys))
	for i, k := range dims.LocationKeys {
		j, ok := feat.ColumnIndex(k)
		if !ok {
			// Both the dimension and the fact derive from the same frame in
			// the same run, so a missing key column is a wiring bug.
			return nil, fmt.Errorf("star: location key column %q missing from feature frame", k)
		}
		locCols[i] = j
	}

	out := frame.New(FactColumns...)
	out.Rows = make([][]any, 0, feat.Len())
	seenRowIDs := make(map[string]struct{}, feat.Len())

	locKey := make([]any, len(locCols))
	for _, r := range feat.Rows {
		row := make([]any, len(FactColumns))
		for i, col := range FactColumns {
			switch col {
			case "ShipModeID":
				if !hasShipCol || r[shipCol] == nil {
					continue
				}
				id, ok := shipIdx[frame.CanonicalKey(r[shipCol])]
				if !ok {
					if strict {
						return nil, fmt.Errorf("star: unresolved ship_mode %v", r[shipCol])
					}
					continue
				}
				row[i] = id

			case "LocationID":
				if len(locCols) == 0 {
					continue
				}
				for k, j := range locCols {
					locKey[k] = r[j]
				}
				id, ok := locIdx[xxh3.HashString128(frame.CanonicalKey(locKey...))]
				if !ok {
					if strict {
						return nil, fmt.Errorf("star: unresolved location tuple %v", locKey)
					}
					continue
				}
				row[i] = id

			default:
				if srcIdx[i] >= 0 {
					row[i] = r[srcIdx[i]]
				}
			}
		}

		ridKey := frame.CanonicalKey(row[0])
		if _, dup := seenRowIDs[ridKey]; dup {
			continue
		}
		seenRowIDs[ridKey] = struct{}{}
		out.Append(row)
	}

	return out, nil
}

// shipModeIndex maps each dimension natural key to its surrogate id.
func shipModeIndex(dim *frame.Frame) (map[string]int64, error) {
	idCol, ok := dim.ColumnIndex("ShipModeID")
	if !ok {
		return nil, fmt.Errorf("star: ship-mode dimension missing ShipModeID")
	}
	keyCol, ok := dim.ColumnIndex("ShipMode")
	if !ok {
		return nil, fmt.Errorf("star: ship-mode dimension missing ShipMode")
	}

	out := make(map[string]int64, dim.Len())
	for _, r := range dim.Rows {
		out[frame.CanonicalKey(r[keyCol])] = r[idCol].(int64)
	}
	return out, nil
}

// locationIndex maps the 128-bit hash of each composite location tuple to its
// surrogate id. The tuple is every dimension column except LocationID, in
// dimension order, which is the same order the fact rows build their key in.
func locationIndex(dim *frame.Frame) (map[xxh3.Uint128]int64, error) {
	idCol, ok := dim.ColumnIndex("LocationID")
	if !ok {
		return nil, fmt.Errorf("star: location dimension missing LocationID")
	}

	keyCols := make([]int, 0, len(dim.Columns)-1)
	for i := range dim.Columns {
		if i != idCol {
			keyCols = append(keyCols, i)
		}
	}

	out := make(map[xxh3.Uint128]int64, dim.Len())
	key := make([]any, len(keyCols))
	for _, r := range dim.Rows {
		for i, j := range keyCols {
			key[i] = r[j]
		}
		out[xxh3.HashString128(frame.CanonicalKey(key...))] = r[idCol].(int64)
	}
	return out, nil
}
