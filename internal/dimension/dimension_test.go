package dimension

import (
	"math"
	"testing"
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/fact"
	"warehouse/internal/table"
)

func build(name string, cols []string, rows ...[]any) *table.Table {
	t := table.New(name, table.Strings(cols...)...)
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func TestPriceTier_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price float64
		ok    bool
		want  string
	}{
		{0, false, Budget},
		{-3, true, Budget},
		{0, true, Budget},
		{2.5, true, Budget},
		{9.99, true, Budget},
		{10, true, Economy},
		{25, true, Economy},
		{25.01, true, Standard},
		{50, true, Standard},
		{50.01, true, Premium},
		{100, true, Premium},
		{100.01, true, Luxury},
		{263.5, true, Luxury},
	}
	for _, tc := range tests {
		if got := PriceTier(tc.price, tc.ok); got != tc.want {
			t.Errorf("PriceTier(%v, %v)=%s, want %s", tc.price, tc.ok, got, tc.want)
		}
	}
}

func TestPriceTier_Total(t *testing.T) {
	t.Parallel()

	valid := map[string]bool{Budget: true, Economy: true, Standard: true, Premium: true, Luxury: true}
	for p := -50.0; p < 400; p += 0.37 {
		if !valid[PriceTier(p, true)] {
			t.Fatalf("price %v has no tier", p)
		}
	}
}

func TestStockStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		stock, reorder    int64
		hasStock, hasReor bool
		want              string
	}{
		{"zero stock", 0, 10, true, true, OutOfStock},
		{"below reorder", 3, 10, true, true, LowStock},
		{"at reorder", 10, 10, true, true, InStock},
		{"unknown stock", 0, 10, false, true, InStock},
		{"unknown reorder", 3, 0, true, false, InStock},
	}
	for _, tc := range tests {
		if got := StockStatus(tc.stock, tc.hasStock, tc.reorder, tc.hasReor); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestBuildProducts(t *testing.T) {
	t.Parallel()

	products := build("Products_B",
		[]string{"ProductID", "ProductName", "SupplierID", "CategoryID", "QuantityPerUnit", "UnitPrice", "UnitsInStock", "UnitsOnOrder", "ReorderLevel", "Discontinued"},
		[]any{"1", "Chai", "1", "1", "10 boxes x 20 bags", "18.00", "39", "0", "10", "0"},
		[]any{"9", "Mishi Kobe Niku", "4", "6", "18 - 500 g pkgs.", "97.00", "29", "0", "0", "1"},
		[]any{"17", "Alice Mutton", "7", "6", "20 - 1 kg tins", "50.00", "0", "0", "0", "1"},
		[]any{"99", "Mystery", "42", "99", nil, nil, nil, nil, nil, nil},
	)
	categories := build("Categories_B", []string{"CategoryID", "CategoryName"},
		[]any{"1", "Beverages"}, []any{"6", "Meat/Poultry"})
	suppliers := build("Suppliers_B", []string{"SupplierID", "CompanyName", "Country"},
		[]any{"1", "Exotic Liquids", "UK"}, []any{"4", "Tokyo Traders", "Japan"}, []any{"7", "Pavlova, Ltd.", "Australia"})

	c := diag.NewCollector(nil)
	got := BuildProducts(products, categories, suppliers, c)

	if got.Name != Products || got.Len() != 4 {
		t.Fatalf("name=%s rows=%d", got.Name, got.Len())
	}
	checks := []struct {
		row  int
		col  string
		want any
	}{
		{0, "ProductID", int64(1)},
		{0, "CategoryName", "Beverages"},
		{0, "SupplierCompany", "Exotic Liquids"},
		{0, "price_range", Economy},
		{0, "stock_status", InStock},
		{0, "is_discontinued", false},
		{1, "price_range", Premium},
		{1, "is_discontinued", true},
		{2, "price_range", Standard},
		{2, "stock_status", OutOfStock},
		{3, "CategoryName", nil},
		{3, "SupplierCompany", UnknownSupplier},
		{3, "SupplierCountry", UnknownCountry},
		{3, "price_range", Budget},
		{3, "stock_status", InStock},
		{3, "UnitPrice", nil},
	}
	for _, ck := range checks {
		if g := got.Value(ck.row, ck.col); g != ck.want {
			t.Errorf("row %d %s=%v, want %v", ck.row, ck.col, g, ck.want)
		}
	}
	if c.Count(diag.UnparseableValue) != 1 {
		t.Fatalf("missing price must be reported: %v", c.Issues())
	}
}

func TestBuildProducts_NoSuppliersAndMissingCategories(t *testing.T) {
	t.Parallel()

	products := build("Products_B", []string{"ProductID", "CategoryID", "SupplierID", "UnitPrice"},
		[]any{"1", "1", "1", "10"})
	categories := build("Categories_B", []string{"CategoryID", "CategoryName"}, []any{"1", "Beverages"})

	got := BuildProducts(products, categories, table.Empty("Suppliers_B"), nil)
	if got.Value(0, "SupplierCompany") != UnknownSupplier || got.Value(0, "SupplierCountry") != UnknownCountry {
		t.Fatalf("row=%v", got.Rows[0])
	}

	empty := BuildProducts(products, table.Empty("Categories_B"), table.Empty("Suppliers_B"), nil)
	if empty.Len() != 0 || len(empty.Columns) != len(productColumns) {
		t.Fatalf("expected empty typed dimension, got %d rows %d cols", empty.Len(), len(empty.Columns))
	}
}

func TestBuildProducts_DiscontinuedOnlyWhenFlagIsOne(t *testing.T) {
	t.Parallel()

	products := build("Products_B", []string{"ProductID", "CategoryID", "UnitPrice", "Discontinued"},
		[]any{"1", "1", "10", "2"},
		[]any{"2", "1", "10", int64(1)},
		[]any{"3", "1", "10", "-1"},
		[]any{"4", "1", "10", "yes"},
		[]any{"5", "1", "10", true},
		[]any{"6", "1", "10", "1.0"},
	)
	categories := build("Categories_B", []string{"CategoryID", "CategoryName"}, []any{"1", "Beverages"})

	c := diag.NewCollector(nil)
	got := BuildProducts(products, categories, table.Empty("Suppliers_B"), c)

	want := []bool{false, true, true, false, true, true}
	for i, w := range want {
		if g := got.Value(i, "is_discontinued"); g != w {
			t.Errorf("row %d is_discontinued=%v, want %v", i, g, w)
		}
	}
	if got.Value(3, "Discontinued") != nil {
		t.Errorf("unparseable flag should be nil, got %v", got.Value(3, "Discontinued"))
	}
	if c.Count(diag.UnparseableValue) != 1 {
		t.Fatalf("textual flag must be reported: %v", c.Issues())
	}
}

func TestBuildEmployees(t *testing.T) {
	t.Parallel()

	employees := build("Employees",
		[]string{"EmployeeID", "LastName", "FirstName", "Title", "City", "Region", "Country", "HireDate"},
		[]any{"1", "Davolio", "Nancy", "Sales Representative", "Seattle", "WA", "USA", "1992-05-01"},
		[]any{"5", "Buchanan", "Steven", "Sales Manager", "London", nil, "UK", "1993-10-17"},
		[]any{"10", "New", "Hire", nil, nil, nil, "UK", "soon"},
	)
	assignments := build("EmployeeTerritories_B", []string{"EmployeeID", "TerritoryID"},
		[]any{"1", "06897"}, []any{"1", "19713"}, []any{"1", "19713"},
		[]any{"5", "02903"}, []any{"5", "99999"},
	)
	territories := build("Territories_B", []string{"TerritoryID", "TerritoryDescription", "RegionID"},
		[]any{"06897", "Wilton  ", "1"}, []any{"19713", "Neward", "1"}, []any{"02903", "Providence", "3"},
	)
	regions := build("Region_B", []string{"RegionID", "RegionDescription"},
		[]any{"1", "Eastern"}, []any{"3", "Northern"},
	)

	c := diag.NewCollector(nil)
	got := BuildEmployees(employees, assignments, territories, regions, c)

	if got.Len() != 3 {
		t.Fatalf("rows=%d", got.Len())
	}
	checks := []struct {
		row  int
		col  string
		want any
	}{
		{0, "EmployeeID", int64(1)},
		{0, "full_name", "Nancy Davolio"},
		{0, "location", "Seattle, USA"},
		{0, "work_territories", "Wilton, Neward, Neward"},
		{0, "work_regions", "Eastern"},
		{0, "HireDate", time.Date(1992, 5, 1, 0, 0, 0, 0, time.UTC)},
		{1, "Region", UnknownRegion},
		{1, "work_territories", "Providence"},
		{1, "work_regions", "Northern"},
		{2, "work_territories", NoTerritory},
		{2, "work_regions", NoRegion},
		{2, "location", nil},
		{2, "HireDate", nil},
	}
	for _, ck := range checks {
		if g := got.Value(ck.row, ck.col); g != ck.want {
			t.Errorf("row %d %s=%v, want %v", ck.row, ck.col, g, ck.want)
		}
	}
	if c.Count(diag.UnparseableValue) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
}

func TestBuildEmployees_MissingTerritoryKey(t *testing.T) {
	t.Parallel()

	employees := build("Employees", []string{"EmployeeID", "FirstName", "LastName"}, []any{"1", "A", "B"})
	assignments := build("EmployeeTerritories_B", []string{"EmployeeID", "Territory"}, []any{"1", "x"})

	c := diag.NewCollector(nil)
	got := BuildEmployees(employees, assignments, table.Empty("Territories_B"), table.Empty("Region_B"), c)

	if got.Value(0, "work_territories") != NoTerritory || got.Value(0, "work_regions") != NoRegion {
		t.Fatalf("row=%v", got.Rows[0])
	}
	if c.Count(diag.MissingKeyColumn) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
}

func TestBuildCustomers(t *testing.T) {
	t.Parallel()

	customers := build("Customers",
		[]string{"CustomerID", "CompanyName", "ContactName", "City", "Country", "FirstName", "LastName"},
		[]any{"ALFKI", "Alfreds Futterkiste", "Maria Anders", "Berlin", "Germany", nil, nil},
		[]any{"27", "Company AA", nil, "Portland", nil, "Karen", "Toh"},
		[]any{"PARIS", "Paris spécialités", "Marie Bertrand", "Paris", "France", nil, nil},
	)
	orders := build("Orders", []string{"OrderID", "CustomerID", "OrderDate"},
		[]any{"10643", "ALFKI", "1997-08-25"},
		[]any{"10692", "ALFKI", "1997-10-03"},
		[]any{"10702", "ALFKI", "1997-10-13 00:00:00"},
		[]any{"10835", "ALFKI", "garbage"},
		[]any{"30", "27.0", "1/15/2006"},
	)

	got := BuildCustomers(customers, orders, nil)

	checks := []struct {
		row  int
		col  string
		want any
	}{
		{0, "total_orders", int64(3)},
		{0, "first_order_date", time.Date(1997, 8, 25, 0, 0, 0, 0, time.UTC)},
		{0, "last_order_date", time.Date(1997, 10, 13, 0, 0, 0, 0, time.UTC)},
		{0, "location", "Berlin, Germany"},
		{1, "CustomerID", int64(27)},
		{1, "ContactName", "Karen Toh"},
		{1, "total_orders", int64(1)},
		{1, "location", nil},
		{2, "total_orders", int64(0)},
		{2, "first_order_date", nil},
		{2, "last_order_date", nil},
	}
	for _, ck := range checks {
		if g := got.Value(ck.row, ck.col); g != ck.want {
			t.Errorf("row %d %s=%v, want %v", ck.row, ck.col, g, ck.want)
		}
	}
}

func factsWith(rows ...[]any) *table.Table {
	t := table.New(fact.Table, fact.Columns...)
	for _, r := range rows {
		cells := make([]any, len(fact.Columns))
		cells[t.Index(fact.OrderID)] = r[0]
		cells[t.Index(fact.OrderDate)] = r[1]
		cells[t.Index(fact.IsShipped)] = r[2]
		cells[t.Index(fact.TotalAmount)] = r[3]
		cells[t.Index(fact.OrderSequence)] = r[4]
		t.Append(cells...)
	}
	return t
}

func TestBuildTime_MonthlyRollups(t *testing.T) {
	t.Parallel()

	july := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)
	var rows [][]any
	for i := 0; i < 10; i++ {
		rows = append(rows, []any{int64(100 + i), july.AddDate(0, 0, i), i < 7, 10.0, int64(i + 1)})
	}
	rows = append(rows, []any{int64(200), time.Date(1996, 9, 2, 0, 0, 0, 0, time.UTC), false, 5.0, int64(11)})
	rows = append(rows, []any{int64(300), nil, false, 1.0, int64(12)})

	got := BuildTime(factsWith(rows...), nil)

	if got.Len() != 2 {
		t.Fatalf("months=%d", got.Len())
	}
	want := []map[string]any{
		{
			fact.DateID: int64(199607), "year_month": "1996-07", "quarter": int64(3),
			"quarter_name": "Q3 1996", "month_year": "Jul 1996", "month_name": "July",
			fact.OrderSequence: int64(1), "orders_count": int64(10), "shipped_orders_count": int64(7),
			"monthly_revenue": 100.0, "delivery_rate": 70.0,
			"full_date": time.Date(1996, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			fact.DateID: int64(199609), "year_month": "1996-09", fact.OrderSequence: int64(2),
			"orders_count": int64(1), "shipped_orders_count": int64(0), "delivery_rate": 0.0,
		},
	}
	for i, w := range want {
		for col, v := range w {
			if g := got.Value(i, col); g != v {
				t.Errorf("month %d %s=%v, want %v", i, col, g, v)
			}
		}
	}
}

func TestBuildTime_NoValidDates(t *testing.T) {
	t.Parallel()

	c := diag.NewCollector(nil)
	got := BuildTime(factsWith([]any{int64(1), nil, false, 0.0, int64(1)}), c)
	if got.Len() != 0 || len(got.Columns) != len(timeColumns) {
		t.Fatalf("rows=%d cols=%d", got.Len(), len(got.Columns))
	}
	if c.Count(diag.DegenerateAggregate) != 1 {
		t.Fatalf("issues=%v", c.Issues())
	}
	if BuildTime(table.Empty(fact.Table), c).Len() != 0 {
		t.Fatalf("empty facts must give empty dimension")
	}
}

func TestDeliveryRate_Finite(t *testing.T) {
	t.Parallel()

	for orders := int64(0); orders < 20; orders++ {
		for shipped := int64(0); shipped <= orders; shipped++ {
			r := DeliveryRate(shipped, orders)
			if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 || r > 100 {
				t.Fatalf("DeliveryRate(%d,%d)=%v", shipped, orders, r)
			}
		}
	}
	if DeliveryRate(7, 10) != 70.0 {
		t.Fatalf("got %v", DeliveryRate(7, 10))
	}
}

func TestBuildSyntheticTime(t *testing.T) {
	t.Parallel()

	facts := factsWith(
		[]any{int64(1), time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC), true, 10.0, int64(1)},
		[]any{int64(2), time.Date(1996, 7, 5, 0, 0, 0, 0, time.UTC), false, 20.0, int64(2)},
		[]any{int64(3), nil, true, 30.0, int64(3)},
	)
	got := BuildSyntheticTime(facts, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	wantIDs := []int64{202411, 202412, 202501}
	for i, w := range wantIDs {
		if got.Value(i, fact.DateID) != w {
			t.Fatalf("row %d date_id=%v, want %d", i, got.Value(i, fact.DateID), w)
		}
		if got.Value(i, fact.OrderSequence) != int64(i+1) || got.Value(i, "orders_count") != int64(1) {
			t.Fatalf("row %d=%v", i, got.Rows[i])
		}
	}
	if got.Value(2, "delivery_rate") != 100.0 || got.Value(1, "delivery_rate") != 0.0 {
		t.Fatalf("rates=%v,%v", got.Value(1, "delivery_rate"), got.Value(2, "delivery_rate"))
	}
}
