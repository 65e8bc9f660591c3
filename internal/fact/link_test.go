package fact

import (
	"testing"
	"time"

	"warehouse/internal/table"
)

func factsFor(dates ...any) *table.Table {
	orders := ordersTable()
	for i, d := range dates {
		orders.Append(i+1, "C", "1", d, nil, nil, nil, nil)
	}
	return Build(orders, table.Empty("d"), table.Empty("p"), table.Empty("c"), nil)
}

func TestLinkTime_JoinsOnYearMonth(t *testing.T) {
	t.Parallel()

	facts := factsFor("1996-07-04", "1996-08-20", nil, "1996-09-01")
	dim := table.New("dim_time", table.Strings(DateID, "year_month", OrderSequence)...)
	dim.Append(int64(199607), "1996-07", int64(1))
	dim.Append(int64(199608), "1996-08", int64(2))

	got := LinkTime(facts, dim)

	want := []any{int64(199607), int64(199608), nil, nil}
	for i, w := range want {
		if g := got.Value(i, DateID); g != w {
			t.Errorf("row %d: date_id=%v, want %v", i, g, w)
		}
	}
	if len(got.Columns) != len(Columns) {
		t.Fatalf("join columns leaked: %v", got.ColumnNames())
	}
	if facts.Value(0, DateID) != nil {
		t.Fatalf("input facts mutated")
	}
}

func TestLinkTimeBySequence(t *testing.T) {
	t.Parallel()

	facts := factsFor("1996-07-04", "1996-07-05")
	dim := table.New("dim_time", table.Strings(DateID, "year_month", OrderSequence)...)
	dim.Append(int64(202510), "2025-10", int64(1))
	dim.Append(int64(202511), "2025-11", int64(2))

	got := LinkTimeBySequence(facts, dim)
	if got.Value(0, DateID) != int64(202510) || got.Value(1, DateID) != int64(202511) {
		t.Fatalf("rows=%v", got.Rows)
	}
}

func TestLinkTime_EmptyDimension(t *testing.T) {
	t.Parallel()

	facts := factsFor("1996-07-04")
	got := LinkTime(facts, table.Empty("dim_time"))
	if got.Len() != 1 || got.Value(0, DateID) != nil {
		t.Fatalf("rows=%v", got.Rows)
	}
}

func TestDateIDOf(t *testing.T) {
	t.Parallel()

	if got := DateIDOf(time.Date(1998, 5, 6, 0, 0, 0, 0, time.UTC)); got != 199805 {
		t.Fatalf("got %d", got)
	}
}
