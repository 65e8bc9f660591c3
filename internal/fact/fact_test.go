package fact

import (
	"math"
	"testing"
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/table"
)

func ordersTable(rows ...[]any) *table.Table {
	t := table.New("Orders", table.Strings("OrderID", "CustomerID", "EmployeeID", "OrderDate", "RequiredDate", "ShippedDate", "Freight", "ShipCountry")...)
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func lineItemsTable(rows ...[]any) *table.Table {
	t := table.New("OrderDetails", table.Strings("OrderID", "ProductID", "UnitPrice", "Quantity", "Discount")...)
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func catalogTables() (*table.Table, *table.Table) {
	products := table.New("Products_B", table.Strings("ProductID", "CategoryID")...)
	products.Append("11", "4")
	products.Append("42", "5")
	products.Append("72", "4")
	products.Append("14", "7")
	categories := table.New("Categories_B", table.Strings("CategoryID", "CategoryName")...)
	categories.Append("4", "Dairy Products")
	categories.Append("5", "Grains/Cereals")
	categories.Append("7", "Produce")
	return products, categories
}

func row(t *table.Table, col, id string) int {
	for i := range t.Rows {
		if table.Key(t.Value(i, col)) == id {
			return i
		}
	}
	return -1
}

func TestBuild_KPIsAndAggregates(t *testing.T) {
	t.Parallel()

	orders := ordersTable(
		[]any{"10248", "VINET", "5", "1996-07-04", "1996-08-01", "1996-07-16", "32.38", "France"},
		[]any{"10249", "TOMSP", "6", "1996-07-05", "1996-08-16", "1996-07-10", "11.61", "Germany"},
		[]any{"10250", "HANAR", "4", "1996-07-08", "1996-07-10", "1996-07-12", "", "Brazil"},
	)
	items := lineItemsTable(
		[]any{"10248", "11", "14", "12", "0"},
		[]any{"10248", "42", "9.8", "10", "0.1"},
		[]any{"10248", "72", "34.8", "5", nil},
		[]any{"10249", "14", "18.6", "9", "0"},
		[]any{"10250", "41", nil, "10", "0"},
	)
	products, categories := catalogTables()

	c := diag.NewCollector(nil)
	got := Build(orders, items, products, categories, c)

	if got.Len() != 3 {
		t.Fatalf("rows=%d", got.Len())
	}

	i := row(got, OrderID, "10248")
	if got.Value(i, OrderID) != int64(10248) || got.Value(i, CustomerID) != "VINET" || got.Value(i, EmployeeID) != int64(5) {
		t.Fatalf("ids=%v", got.Rows[i][:3])
	}
	if v := got.Value(i, TotalAmount).(float64); math.Abs(v-58.6) > 1e-9 {
		t.Fatalf("total_amount=%v", v)
	}
	if got.Value(i, "total_quantity") != int64(27) {
		t.Fatalf("total_quantity=%v", got.Value(i, "total_quantity"))
	}
	if v := got.Value(i, "avg_discount").(float64); math.Abs(v-0.05) > 1e-9 {
		t.Fatalf("avg_discount=%v", v)
	}
	if got.Value(i, Category) != "Dairy Products" || got.Value(i, "unique_products_count") != int64(3) {
		t.Fatalf("category=%v distinct=%v", got.Value(i, Category), got.Value(i, "unique_products_count"))
	}
	if got.Value(i, ShippingDelay) != int64(12) || got.Value(i, FulfilledDelay) != int64(-16) {
		t.Fatalf("delays=%v,%v", got.Value(i, ShippingDelay), got.Value(i, FulfilledDelay))
	}
	if got.Value(i, OnTimeStatus) != false || got.Value(i, "is_fulfilled_on_time") != true || got.Value(i, IsShipped) != true {
		t.Fatalf("flags=%v", got.Rows[i])
	}

	j := row(got, OrderID, "10250")
	if got.Value(j, "Freight") != 0.0 {
		t.Fatalf("freight must fill to 0, got %v", got.Value(j, "Freight"))
	}
	if got.Value(j, Category) != UnknownCategory || got.Value(j, "unique_products_count") != int64(1) {
		t.Fatalf("uncategorized order: %v", got.Rows[j])
	}
	if got.Value(j, "is_fulfilled_on_time") != false || got.Value(j, FulfilledDelay) != int64(2) {
		t.Fatalf("late order: %v", got.Rows[j])
	}
	if got.Value(j, DateID) != nil {
		t.Fatalf("date_id must stay null until linked")
	}
}

func TestBuild_OrderWithoutLineItems(t *testing.T) {
	t.Parallel()

	orders := ordersTable(
		[]any{"1", "C1", "1", "1997-01-02", "1997-01-30", nil, "5", "UK"},
		[]any{"2", "C1", "1", "1997-01-03", "1997-01-30", "1997-01-05", "5", "UK"},
	)
	items := lineItemsTable([]any{"2", "11", "10", "1", "0"})
	products, categories := catalogTables()

	c := diag.NewCollector(nil)
	got := Build(orders, items, products, categories, c)

	if got.Len() != 2 {
		t.Fatalf("every order must have a fact row, got %d", got.Len())
	}
	i := row(got, OrderID, "1")
	want := map[string]any{
		TotalAmount:             0.0,
		"total_quantity":        int64(0),
		"avg_discount":          0.0,
		Category:                UnknownCategory,
		"unique_products_count": int64(1),
		IsShipped:               false,
		ShippingDelay:           NotApplicable,
		FulfilledDelay:          NotApplicable,
		OnTimeStatus:            false,
		"is_fulfilled_on_time":  false,
	}
	for col, w := range want {
		if g := got.Value(i, col); g != w {
			t.Errorf("%s=%v, want %v", col, g, w)
		}
	}
	if c.Count(diag.DegenerateAggregate) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
}

func TestBuild_WithoutProductData(t *testing.T) {
	t.Parallel()

	orders := ordersTable([]any{"1", "C1", "1", "1997-01-02", nil, nil, nil, nil})
	items := lineItemsTable(
		[]any{"1", "11", "10", "1", "0"},
		[]any{"1", "42", "5", "2", "0.2"},
	)

	got := Build(orders, items, table.Empty("Products_B"), table.Empty("Categories_B"), nil)

	if got.Value(0, Category) != UnknownCategory || got.Value(0, "unique_products_count") != int64(1) {
		t.Fatalf("row=%v", got.Rows[0])
	}
	if got.Value(0, TotalAmount) != 15.0 || got.Value(0, "total_quantity") != int64(3) {
		t.Fatalf("row=%v", got.Rows[0])
	}
}

func TestBuild_SortsByOrderDateNullsLast(t *testing.T) {
	t.Parallel()

	orders := ordersTable(
		[]any{"3", nil, nil, "1997-03-01", nil, nil, nil, nil},
		[]any{"9", nil, nil, "not a date", nil, nil, nil, nil},
		[]any{"1", nil, nil, "1996-07-04", nil, nil, nil, nil},
		[]any{"2", nil, nil, "1996-07-04", nil, nil, nil, nil},
	)
	c := diag.NewCollector(nil)
	got := Build(orders, table.Empty("OrderDetails"), table.Empty("p"), table.Empty("c"), c)

	wantIDs := []int64{1, 2, 3, 9}
	for i, w := range wantIDs {
		if got.Value(i, OrderID) != w {
			t.Fatalf("position %d: id=%v, want %d", i, got.Value(i, OrderID), w)
		}
		if got.Value(i, OrderSequence) != int64(i+1) {
			t.Fatalf("position %d: sequence=%v", i, got.Value(i, OrderSequence))
		}
	}
	if got.Value(3, OrderDate) != nil {
		t.Fatalf("unparseable date must be null")
	}
	if c.Count(diag.UnparseableValue) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
	if c.Count(diag.DegenerateAggregate) != 0 {
		t.Fatalf("absent line items source is not reported per order")
	}
}

func TestBuild_CategoryTieBreaksLexicographically(t *testing.T) {
	t.Parallel()

	orders := ordersTable([]any{"1", nil, nil, "1997-01-02", nil, nil, nil, nil})
	items := lineItemsTable(
		[]any{"1", "14", "1", "1", "0"},
		[]any{"1", "11", "1", "1", "0"},
	)
	products, categories := catalogTables()
	got := Build(orders, items, products, categories, nil)

	if got.Value(0, Category) != "Dairy Products" {
		t.Fatalf("category=%v", got.Value(0, Category))
	}
}

func TestBuild_CompletenessProperty(t *testing.T) {
	t.Parallel()

	orders := ordersTable()
	for i := 0; i < 50; i++ {
		date := any(time.Date(1996, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
		if i%7 == 0 {
			date = nil
		}
		orders.Append(i+1, "C", "1", date, nil, nil, nil, nil)
	}
	got := Build(orders, table.Empty("d"), table.Empty("p"), table.Empty("c"), nil)

	if got.Len() != orders.Len() {
		t.Fatalf("rows=%d, want %d", got.Len(), orders.Len())
	}
	numeric := []string{TotalAmount, "total_quantity", "avg_discount", ShippingDelay, FulfilledDelay, "Freight", "unique_products_count"}
	for i := range got.Rows {
		for _, col := range numeric {
			if got.Value(i, col) == nil {
				t.Fatalf("row %d: %s is null", i, col)
			}
		}
	}
}

func TestBuild_MissingOrderKey(t *testing.T) {
	t.Parallel()

	orders := table.New("Orders", table.Strings("Order Number")...)
	orders.Append("1")
	c := diag.NewCollector(nil)
	got := Build(orders, table.Empty("d"), table.Empty("p"), table.Empty("c"), c)

	if got.Len() != 0 || len(got.Columns) != len(Columns) {
		t.Fatalf("got %d rows, %d cols", got.Len(), len(got.Columns))
	}
	if c.Count(diag.MissingKeyColumn) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
}

func TestDaysBetween_Floors(t *testing.T) {
	t.Parallel()

	base := time.Date(1996, 7, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		to   time.Time
		want int64
	}{
		{base.Add(36 * time.Hour), 1},
		{base.Add(-12 * time.Hour), -1},
		{base, 0},
		{base.AddDate(0, 0, 8), 8},
	}
	for _, tc := range tests {
		to := tc.to
		if got := *daysBetween(&base, &to); got != tc.want {
			t.Errorf("%v: got %d, want %d", tc.to, got, tc.want)
		}
	}
	if daysBetween(nil, &base) != nil {
		t.Fatalf("nil side must give nil")
	}
}
