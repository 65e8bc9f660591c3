package fact

import (
	"warehouse/internal/table"
)

// LinkTime returns a copy of facts with date_id bound through the month of
// OrderDate, joined on dim_time.year_month. Orders without a date, or whose
// month is absent from dimTime, keep a null date_id.
func LinkTime(facts, dimTime *table.Table) *table.Table {
	ids := map[string]any{}
	for i := range dimTime.Rows {
		ym, ok := table.AsString(dimTime.Value(i, "year_month"))
		if !ok {
			continue
		}
		if _, dup := ids[ym]; !dup {
			ids[ym] = dimTime.Value(i, DateID)
		}
	}
	return link(facts, func(row []any, date, _ int) any {
		ym, ok := YearMonth(row[date])
		if !ok {
			return nil
		}
		return ids[ym]
	})
}

// LinkTimeBySequence binds date_id through order_sequence. It pairs with a
// synthetic time dimension where month n belongs to the n-th order.
func LinkTimeBySequence(facts, dimTime *table.Table) *table.Table {
	ids := map[string]any{}
	for i := range dimTime.Rows {
		k := table.Key(dimTime.Value(i, OrderSequence))
		if _, dup := ids[k]; k != "" && !dup {
			ids[k] = dimTime.Value(i, DateID)
		}
	}
	return link(facts, func(row []any, _, seq int) any {
		return ids[table.Key(row[seq])]
	})
}

func link(facts *table.Table, lookup func(row []any, date, seq int) any) *table.Table {
	out := facts.Clone(facts.Name)
	col := out.Index(DateID)
	if col < 0 {
		return out
	}
	date, seq := out.Index(OrderDate), out.Index(OrderSequence)
	for _, row := range out.Rows {
		row[col] = nil
		if date < 0 || seq < 0 {
			continue
		}
		row[col] = lookup(row, date, seq)
	}
	return out
}
