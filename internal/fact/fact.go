// Package fact builds fact_orders, one row per unified order carrying the
// shipment KPIs and line-item aggregates, and binds it to the time dimension.
package fact

import (
	"math"
	"sort"
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/table"
)

// Table is the registry and warehouse name of the fact table.
const Table = "fact_orders"

// Fact column names referenced outside this package.
const (
	OrderID        = "order_id"
	CustomerID     = "customer_id"
	EmployeeID     = "employee_id"
	OrderDate      = "OrderDate"
	RequiredDate   = "RequiredDate"
	ShippedDate    = "ShippedDate"
	IsShipped      = "is_shipped"
	TotalAmount    = "total_amount"
	Category       = "primary_category"
	OrderSequence  = "order_sequence"
	DateID         = "date_id"
	OnTimeStatus   = "on_time_status"
	ShippingDelay  = "shipping_delay_days"
	FulfilledDelay = "fulfillment_delay_days"
)

// Columns is the fixed fact schema.
var Columns = []table.Column{
	{Name: OrderID},
	{Name: CustomerID},
	{Name: EmployeeID},
	{Name: OrderDate, Type: table.Time},
	{Name: RequiredDate, Type: table.Time},
	{Name: ShippedDate, Type: table.Time},
	{Name: "ShipCountry", Type: table.String},
	{Name: "ShipCity", Type: table.String},
	{Name: "ShipRegion", Type: table.String},
	{Name: "Freight", Type: table.Float},
	{Name: "ShipName", Type: table.String},
	{Name: "ShipAddress", Type: table.String},
	{Name: IsShipped, Type: table.Bool},
	{Name: ShippingDelay, Type: table.Int},
	{Name: FulfilledDelay, Type: table.Int},
	{Name: OnTimeStatus, Type: table.Bool},
	{Name: "is_fulfilled_on_time", Type: table.Bool},
	{Name: TotalAmount, Type: table.Float},
	{Name: "total_quantity", Type: table.Int},
	{Name: "avg_discount", Type: table.Float},
	{Name: Category, Type: table.String},
	{Name: "unique_products_count", Type: table.Int},
	{Name: OrderSequence, Type: table.Int},
	{Name: DateID, Type: table.Int},
}

// NotApplicable marks a delay that cannot be computed.
const NotApplicable int64 = -1

// OnTimeShippingDays is the largest order-to-ship delay counted as on time.
const OnTimeShippingDays = 7

// UnknownCategory is used when an order has no categorized line item.
const UnknownCategory = "Unknown"

var shipText = []string{"ShipCountry", "ShipCity", "ShipRegion", "ShipName", "ShipAddress"}

type order struct {
	id, customer, employee any
	ordered                *time.Time
	required               *time.Time
	shipped                *time.Time
	text                   []any
	freight                float64
	key                    string
}

// Build derives fact_orders from the unified orders and line items. Products
// and categories are optional; when either is not loaded the category and
// distinct-product aggregates fall back to "Unknown" and 1.
func Build(orders, lineItems, products, categories *table.Table, issues *diag.Collector) *table.Table {
	out := table.New(Table, Columns...)
	if !orders.Loaded() {
		return out
	}
	if !orders.Has("OrderID") {
		issues.Add(diag.MissingKeyColumn, orders.Name, "column=OrderID fact table left empty")
		return out
	}

	bad := diag.Unparseable{}
	rows := make([]order, 0, orders.Len())
	for i := range orders.Rows {
		o := order{
			id:       table.ID(orders.Value(i, "OrderID")),
			customer: table.ID(orders.Value(i, "CustomerID")),
			employee: table.ID(orders.Value(i, "EmployeeID")),
			ordered:  parseDate(orders.Value(i, "OrderDate"), "OrderDate", bad),
			required: parseDate(orders.Value(i, "RequiredDate"), "RequiredDate", bad),
			shipped:  parseDate(orders.Value(i, "ShippedDate"), "ShippedDate", bad),
			key:      table.Key(orders.Value(i, "OrderID")),
		}
		for _, c := range shipText {
			if s, ok := table.AsString(orders.Value(i, c)); ok {
				o.text = append(o.text, s)
			} else {
				o.text = append(o.text, nil)
			}
		}
		raw := orders.Value(i, "Freight")
		if f, ok := table.AsFloat(raw); ok {
			o.freight = f
		} else if !table.Blank(raw) {
			bad["Freight"]++
		}
		rows = append(rows, o)
	}
	bad.Report(issues, orders.Name)

	cat := newCatalog(products, categories, issues)
	sums := aggregate(lineItems, cat, issues)

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].ordered, rows[j].ordered
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})

	missing := 0
	for i, o := range rows {
		shippingDelay := daysBetween(o.ordered, o.shipped)
		fulfillDelay := daysBetween(o.required, o.shipped)

		t, ok := sums[o.key]
		if !ok {
			missing++
		}
		category, distinct := t.category(), t.distinct()
		if !cat.loaded() {
			category, distinct = UnknownCategory, 1
		}

		out.Append(
			o.id, o.customer, o.employee,
			timeCell(o.ordered), timeCell(o.required), timeCell(o.shipped),
			o.text[0], o.text[1], o.text[2],
			o.freight,
			o.text[3], o.text[4],
			o.shipped != nil,
			orNA(shippingDelay),
			orNA(fulfillDelay),
			shippingDelay != nil && *shippingDelay <= OnTimeShippingDays,
			fulfillDelay != nil && *fulfillDelay <= 0,
			t.amount,
			int64(math.Round(t.quantity)),
			t.avgDiscount(),
			category,
			distinct,
			int64(i+1),
			nil,
		)
	}
	if missing > 0 && lineItems.Loaded() {
		issues.Add(diag.DegenerateAggregate, Table, "orders=%d without line items, totals defaulted to 0", missing)
	}
	return out
}

func parseDate(v any, col string, bad diag.Unparseable) *time.Time {
	if table.Blank(v) {
		return nil
	}
	t, ok := table.AsTime(v)
	if !ok {
		bad[col]++
		return nil
	}
	return &t
}

func timeCell(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// daysBetween is the whole-day difference to-from, floored like a calendar
// day count. Nil when either side is missing.
func daysBetween(from, to *time.Time) *int64 {
	if from == nil || to == nil {
		return nil
	}
	d := int64(math.Floor(to.Sub(*from).Hours() / 24))
	return &d
}

func orNA(d *int64) int64 {
	if d == nil {
		return NotApplicable
	}
	return *d
}

// catalog resolves a product key to its category name.
type catalog struct {
	categoryOf map[string]string
	ok         bool
}

func newCatalog(products, categories *table.Table, issues *diag.Collector) catalog {
	c := catalog{categoryOf: map[string]string{}}
	if !products.Loaded() || !categories.Loaded() {
		return c
	}
	c.ok = true
	if !products.Has("ProductID") || !products.Has("CategoryID") || !categories.Has("CategoryID") {
		issues.Add(diag.MissingKeyColumn, products.Name, "columns=ProductID,CategoryID category lookup skipped")
		return c
	}
	names := map[string]string{}
	for i := range categories.Rows {
		k := table.Key(categories.Value(i, "CategoryID"))
		if _, dup := names[k]; dup {
			continue
		}
		if s, ok := table.AsString(categories.Value(i, "CategoryName")); ok {
			names[k] = s
		}
	}
	for i := range products.Rows {
		p := table.Key(products.Value(i, "ProductID"))
		if _, dup := c.categoryOf[p]; dup {
			continue
		}
		if name, ok := names[table.Key(products.Value(i, "CategoryID"))]; ok {
			c.categoryOf[p] = name
		}
	}
	return c
}

func (c catalog) loaded() bool { return c.ok }

type totals struct {
	amount    float64
	quantity  float64
	discSum   float64
	discN     int
	cats      map[string]int
	products  map[string]bool
	lineItems int
}

func (t totals) avgDiscount() float64 {
	if t.discN == 0 {
		return 0
	}
	return t.discSum / float64(t.discN)
}

// category is the most frequent category name; ties resolve to the
// lexicographically smallest.
func (t totals) category() string {
	best, n := "", 0
	for name, c := range t.cats {
		if c > n || (c == n && name < best) {
			best, n = name, c
		}
	}
	if n == 0 {
		return UnknownCategory
	}
	return best
}

// distinct counts distinct products. Orders with no line items get 1.
func (t totals) distinct() int64 {
	if t.lineItems == 0 {
		return 1
	}
	return int64(len(t.products))
}

func aggregate(lineItems *table.Table, cat catalog, issues *diag.Collector) map[string]totals {
	out := map[string]totals{}
	if !lineItems.Loaded() {
		return out
	}
	if !lineItems.Has("OrderID") {
		issues.Add(diag.MissingKeyColumn, lineItems.Name, "column=OrderID line items ignored")
		return out
	}

	bad := diag.Unparseable{}
	for i := range lineItems.Rows {
		k := table.Key(lineItems.Value(i, "OrderID"))
		if k == "" {
			continue
		}
		t := out[k]
		if t.cats == nil {
			t.cats = map[string]int{}
			t.products = map[string]bool{}
		}
		t.lineItems++

		t.amount += number(lineItems.Value(i, "UnitPrice"), "UnitPrice", bad, nil)
		t.quantity += number(lineItems.Value(i, "Quantity"), "Quantity", bad, nil)
		var has bool
		d := number(lineItems.Value(i, "Discount"), "Discount", bad, &has)
		if has {
			t.discSum += d
			t.discN++
		}
		if p := table.Key(lineItems.Value(i, "ProductID")); p != "" {
			t.products[p] = true
			if name, ok := cat.categoryOf[p]; ok {
				t.cats[name]++
			}
		}
		out[k] = t
	}
	bad.Report(issues, lineItems.Name)
	return out
}

// number parses a numeric cell, counting non-blank failures. Missing values
// contribute 0; has reports whether a value was present.
func number(v any, col string, bad diag.Unparseable, has *bool) float64 {
	f, ok := table.AsFloat(v)
	if !ok && !table.Blank(v) {
		bad[col]++
	}
	if has != nil {
		*has = ok
	}
	if !ok {
		return 0
	}
	return f
}

// YearMonth formats a fact OrderDate cell as the dim_time join key.
func YearMonth(v any) (string, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return "", false
	}
	return t.Format("2006-01"), true
}

// DateIDOf is the integer month key YYYYMM.
func DateIDOf(t time.Time) int64 {
	return int64(t.Year()*100 + int(t.Month()))
}
