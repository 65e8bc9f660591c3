// Package dimension builds the warehouse dimension tables: employees,
// customers, products and time. Builders are pure functions over tables; they
// report recoverable problems to a diag.Collector and always return a table
// with the full dimension schema, possibly with no rows.
package dimension

import (
	"warehouse/internal/table"
)

// Dimension table names.
const (
	Employees = "dim_employees"
	Customers = "dim_customers"
	Products  = "dim_products"
	Time      = "dim_time"
)

// firstRowByKey indexes t by the canonical key of col, keeping the first row
// for duplicate keys.
func firstRowByKey(t *table.Table, col string) map[string]int {
	out := make(map[string]int, t.Len())
	ix := t.Index(col)
	if ix < 0 {
		return out
	}
	for i, row := range t.Rows {
		k := table.Key(row[ix])
		if k == "" {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = i
		}
	}
	return out
}

// text returns the trimmed string form of v, or nil.
func text(v any) any {
	if s, ok := table.AsString(v); ok {
		return s
	}
	return nil
}

func textOr(v any, def string) any {
	if s, ok := table.AsString(v); ok {
		return s
	}
	return def
}

// joined concatenates two labels with sep. A missing part makes the whole
// label missing.
func joined(a, b any, sep string) any {
	x, ok1 := table.AsString(a)
	y, ok2 := table.AsString(b)
	if !ok1 || !ok2 {
		return nil
	}
	return x + sep + y
}

// lookupRow returns the row of t whose key column matches k, or -1.
func lookupRow(idx map[string]int, k string) int {
	if i, ok := idx[k]; ok {
		return i
	}
	return -1
}

func hasAll(t *table.Table, cols ...string) (string, bool) {
	for _, c := range cols {
		if !t.Has(c) {
			return c, false
		}
	}
	return "", true
}
