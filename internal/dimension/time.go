package dimension

import (
	"fmt"
	"sort"
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/fact"
	"warehouse/internal/table"
)

var timeColumns = []table.Column{
	{Name: fact.DateID, Type: table.Int},
	{Name: "full_date", Type: table.Time},
	{Name: "year", Type: table.Int},
	{Name: "quarter", Type: table.Int},
	{Name: "month", Type: table.Int},
	{Name: "month_name", Type: table.String},
	{Name: "year_month", Type: table.String},
	{Name: "quarter_name", Type: table.String},
	{Name: "month_year", Type: table.String},
	{Name: fact.OrderSequence, Type: table.Int},
	{Name: "orders_count", Type: table.Int},
	{Name: "shipped_orders_count", Type: table.Int},
	{Name: "monthly_revenue", Type: table.Float},
	{Name: "delivery_rate", Type: table.Float},
}

// monthStats counts distinct orders so shipped never exceeds orders.
type monthStats struct {
	orders  map[string]bool
	shipped map[string]bool
	revenue float64
}

func newMonthStats() *monthStats {
	return &monthStats{orders: map[string]bool{}, shipped: map[string]bool{}}
}

func (m *monthStats) add(facts *table.Table, i int) {
	k := table.Key(facts.Value(i, fact.OrderID))
	if k == "" {
		return
	}
	m.orders[k] = true
	if shipped, _ := facts.Value(i, fact.IsShipped).(bool); shipped {
		m.shipped[k] = true
	}
	if f, ok := table.AsFloat(facts.Value(i, fact.TotalAmount)); ok {
		m.revenue += f
	}
}

// DeliveryRate is shipped/orders as a percentage, 0 when there are no
// orders.
func DeliveryRate(shipped, orders int64) float64 {
	if orders <= 0 {
		return 0
	}
	return float64(shipped) * 100 / float64(orders)
}

// BuildTime builds a month-grain dim_time from the distinct months of the
// fact OrderDates, in chronological order, with monthly order, shipment and
// revenue rollups.
func BuildTime(facts *table.Table, issues *diag.Collector) *table.Table {
	out := table.New(Time, timeColumns...)
	if facts.Len() == 0 {
		return out
	}

	months := map[time.Time]*monthStats{}
	for i := range facts.Rows {
		ts, ok := facts.Value(i, fact.OrderDate).(time.Time)
		if !ok {
			continue
		}
		m := firstOfMonth(ts)
		if months[m] == nil {
			months[m] = newMonthStats()
		}
		months[m].add(facts, i)
	}
	if len(months) == 0 {
		issues.Add(diag.DegenerateAggregate, Time, "orders=%d none with a valid OrderDate, time dimension empty", facts.Len())
		return out
	}

	keys := make([]time.Time, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	for i, m := range keys {
		appendMonth(out, m, int64(i+1), months[m])
	}
	return out
}

// BuildSyntheticTime builds the legacy time dimension that assigns every
// order its own month: the last order gets the anchor month and each earlier
// order the month before. Rollups come from the fact with the same
// order_sequence.
func BuildSyntheticTime(facts *table.Table, anchor time.Time) *table.Table {
	out := table.New(Time, timeColumns...)
	n := facts.Len()
	if n == 0 {
		return out
	}

	bySeq := make(map[int64]int, n)
	for i := range facts.Rows {
		if seq, ok := table.AsInt(facts.Value(i, fact.OrderSequence)); ok {
			bySeq[seq] = i
		}
	}

	last := firstOfMonth(anchor)
	for i := 0; i < n; i++ {
		seq := int64(i + 1)
		m := last.AddDate(0, -(n - 1 - i), 0)
		st := newMonthStats()
		if row, ok := bySeq[seq]; ok {
			st.add(facts, row)
		}
		appendMonth(out, m, seq, st)
	}
	return out
}

func appendMonth(out *table.Table, m time.Time, seq int64, st *monthStats) {
	quarter := (int(m.Month())-1)/3 + 1
	orders, shipped := int64(len(st.orders)), int64(len(st.shipped))
	out.Append(
		fact.DateIDOf(m),
		m,
		int64(m.Year()),
		int64(quarter),
		int64(m.Month()),
		m.Format("January"),
		m.Format("2006-01"),
		fmt.Sprintf("Q%d %d", quarter, m.Year()),
		m.Format("Jan 2006"),
		seq,
		orders,
		shipped,
		st.revenue,
		DeliveryRate(shipped, orders),
	)
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
