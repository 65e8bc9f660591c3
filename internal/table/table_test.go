package table

import (
	"testing"
	"time"
)

func TestKey_CanonicalAcrossSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "padded_string", in: "  ALFKI ", want: "ALFKI"},
		{name: "numeric_string", in: "10248", want: "10248"},
		{name: "float_string", in: "10248.0", want: "10248"},
		{name: "int64", in: int64(10248), want: "10248"},
		{name: "int", in: 7, want: "7"},
		{name: "integral_float", in: float64(7), want: "7"},
		{name: "fractional_float", in: 7.5, want: "7.5"},
		{name: "bytes", in: []byte(" 42 "), want: "42"},
		{name: "exponent_kept_verbatim", in: "1e3", want: "1e3"},
		{name: "zero_padded_kept", in: "007", want: "007"},
		{name: "zero", in: "0", want: "0"},
		{name: "signed_kept", in: "+7", want: "+7"},
		{name: "territory_code", in: " 06897 ", want: "06897"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Key(tc.in); got != tc.want {
				t.Fatalf("Key(%#v)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAsFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{in: "12.50", want: 12.5, wantOK: true},
		{in: "$1,234.50", want: 1234.5, wantOK: true},
		{in: int64(3), want: 3, wantOK: true},
		{in: "", wantOK: false},
		{in: "abc", wantOK: false},
		{in: "NaN", wantOK: false},
		{in: nil, wantOK: false},
	}
	for _, tc := range tests {
		got, ok := AsFloat(tc.in)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Fatalf("AsFloat(%#v)=(%v,%v), want (%v,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestAsInt(t *testing.T) {
	t.Parallel()

	if n, ok := AsInt("15"); !ok || n != 15 {
		t.Fatalf("AsInt(\"15\")=(%d,%v)", n, ok)
	}
	if n, ok := AsInt(float64(4)); !ok || n != 4 {
		t.Fatalf("AsInt(4.0)=(%d,%v)", n, ok)
	}
	if _, ok := AsInt(4.25); ok {
		t.Fatalf("AsInt(4.25) should not be integral")
	}
	if _, ok := AsInt(true); ok {
		t.Fatalf("AsInt(true) should report false")
	}
}

func TestAsBool(t *testing.T) {
	t.Parallel()

	for _, in := range []any{true, "TRUE", "1", "-1", "yes", int64(1), 1.0} {
		if b, ok := AsBool(in); !ok || !b {
			t.Fatalf("AsBool(%#v)=(%v,%v), want true", in, b, ok)
		}
	}
	for _, in := range []any{false, "0", "no", int64(0)} {
		if b, ok := AsBool(in); !ok || b {
			t.Fatalf("AsBool(%#v)=(%v,%v), want false", in, b, ok)
		}
	}
	if _, ok := AsBool("maybe"); ok {
		t.Fatalf("AsBool(maybe) should report false")
	}
}

func TestAsTime_Layouts(t *testing.T) {
	t.Parallel()

	want := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{
		"1996-07-04",
		"1996-07-04 00:00:00",
		"1996-07-04 00:00:00.000",
		"1996-07-04T00:00:00Z",
		"7/4/1996",
		"7/4/1996 12:00:00 AM",
		want,
	} {
		got, ok := AsTime(in)
		if !ok {
			t.Fatalf("AsTime(%#v) failed", in)
		}
		if !got.Equal(want) {
			t.Fatalf("AsTime(%#v)=%s, want %s", in, got, want)
		}
	}

	for _, in := range []any{nil, "", "not a date", int64(5), time.Time{}} {
		if _, ok := AsTime(in); ok {
			t.Fatalf("AsTime(%#v) should fail", in)
		}
	}
}

func TestID(t *testing.T) {
	t.Parallel()

	if got := ID("10248"); got != int64(10248) {
		t.Fatalf("ID(\"10248\")=%#v", got)
	}
	if got := ID(" VINET "); got != "VINET" {
		t.Fatalf("ID(VINET)=%#v", got)
	}
	if got := ID("   "); got != nil {
		t.Fatalf("ID(blank)=%#v, want nil", got)
	}
	if got := ID(" 007 "); got != "007" {
		t.Fatalf("ID(\"007\")=%#v, want the code kept as text", got)
	}
	if got := ID("10248.0"); got != int64(10248) {
		t.Fatalf("ID(\"10248.0\")=%#v", got)
	}
	if got := ID(int64(7)); got != int64(7) {
		t.Fatalf("ID(int64)=%#v", got)
	}
}

func TestRename_SkipsAbsentAndCollisions(t *testing.T) {
	t.Parallel()

	src := New("Orders_A", Strings("Order ID", "Ship Name", "OrderID")...)
	src.Append("1", "x", "1")

	got, skipped := src.Rename(map[string]string{
		"Ship Name": "ShipName",
		"Order ID":  "OrderID",
		"Missing":   "Whatever",
	})

	if got.Index("ShipName") != 1 {
		t.Fatalf("ShipName not renamed: %v", got.ColumnNames())
	}
	if !got.Has("Order ID") {
		t.Fatalf("colliding rename should keep the original name: %v", got.ColumnNames())
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped=%v, want one collision", skipped)
	}
	if src.Columns[1].Name != "Ship Name" {
		t.Fatalf("Rename mutated the input table")
	}
}

func TestRegistry_PutReplaceKeepsOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Put(New("a"))
	r.Put(New("b"))
	r.Put(New("a", Column{Name: "x"}))

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names()=%v", names)
	}
	if !r.Table("a").Has("x") {
		t.Fatalf("Put did not replace table a")
	}
	if r.Table("missing").Loaded() {
		t.Fatalf("missing table should be empty")
	}
}

func TestAppend_PanicsOnWidthMismatch(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New("t", Strings("a", "b")...).Append(1)
}
