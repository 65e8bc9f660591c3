package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"warehouse/internal/storage"
)

// boolPtr is a tiny helper to avoid repeating &[]bool literals in tests.
func boolPtr(v bool) *bool { return &v }

func openTemp(t *testing.T) (storage.Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse", "northwind_bi.db")
	w, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(w.Close)
	return w, path
}

func dimSpec() storage.TableSpec {
	return storage.TableSpec{
		Name: "dim_time",
		Columns: []storage.ColumnSpec{
			{Name: "date_id", Type: storage.TypeBigint, Nullable: boolPtr(false)},
			{Name: "full_date", Type: storage.TypeTimestamp},
			{Name: "year_month", Type: storage.TypeText},
			{Name: "delivery_rate", Type: storage.TypeDouble},
			{Name: "has_orders", Type: storage.TypeBoolean},
		},
	}
}

func TestReplaceTable_WritesAndReplaces(t *testing.T) {
	t.Parallel()

	w, path := openTemp(t)
	ctx := context.Background()
	july := time.Date(1996, 7, 1, 0, 0, 0, 0, time.UTC)

	rows := [][]any{
		{int64(199607), july, "1996-07", 70.0, true},
		{int64(199608), july.AddDate(0, 1, 0), "1996-08", 0.0, false},
	}
	n, err := w.ReplaceTable(ctx, dimSpec(), rows)
	if err != nil || n != 2 {
		t.Fatalf("first write n=%d err=%v", n, err)
	}
	// A rerun fully replaces the table.
	n, err = w.ReplaceTable(ctx, dimSpec(), rows[:1])
	if err != nil || n != 1 {
		t.Fatalf("second write n=%d err=%v", n, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM dim_time`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("count=%d err=%v", count, err)
	}
	var fullDate, ym string
	var rate float64
	var has int64
	if err := db.QueryRow(`SELECT full_date, year_month, delivery_rate, has_orders FROM dim_time`).Scan(&fullDate, &ym, &rate, &has); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.HasPrefix(fullDate, "1996-07-01") || ym != "1996-07" || rate != 70.0 || has != 1 {
		t.Fatalf("row=%s %s %v %d", fullDate, ym, rate, has)
	}
}

func TestReplaceTable_ChunksLargeInserts(t *testing.T) {
	t.Parallel()

	w, _ := openTemp(t)
	rows := make([][]any, 1000)
	for i := range rows {
		rows[i] = []any{int64(i), nil, nil, nil, nil}
	}
	n, err := w.ReplaceTable(context.Background(), dimSpec(), rows)
	if err != nil || n != 1000 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := buildCreateTableSQL(dimSpec())
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	for _, want := range []string{`CREATE TABLE "dim_time"`, `"date_id" INTEGER NOT NULL`, `"full_date" TIMESTAMP`, `"delivery_rate" REAL`, `"has_orders" INTEGER`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %s", want, got)
		}
	}

	bad := []storage.TableSpec{
		{Name: "", Columns: dimSpec().Columns},
		{Name: "t"},
		{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: "uuid"}}},
		{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeText}, {Name: "A", Type: storage.TypeText}}},
	}
	for _, spec := range bad {
		if _, err := buildCreateTableSQL(spec); err == nil {
			t.Fatalf("expected error for %+v", spec)
		}
	}
}

func TestFormatSQLiteTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC), "1996-07-04 00:00:00"},
		{time.Date(1996, 7, 4, 1, 0, 0, 0, time.FixedZone("X", 3600)), "1996-07-04 00:00:00"},
		{time.Date(2026, 1, 27, 12, 17, 8, 500000000, time.UTC), "2026-01-27 12:17:08.5"},
	}
	for _, tc := range tests {
		if got := formatSQLiteTime(tc.in); got != tc.want {
			t.Errorf("formatSQLiteTime(%v)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileDir(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"data/warehouse/northwind_bi.db": "data/warehouse",
		"bi.db":                          "",
		":memory:":                       "",
		"file:bi.db?cache=shared":        "",
	}
	for in, want := range tests {
		if got := fileDir(in); got != want {
			t.Errorf("fileDir(%q)=%q, want %q", in, got, want)
		}
	}
}
