package dimension

import (
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/table"
)

var customerColumns = []table.Column{
	{Name: "CustomerID"},
	{Name: "CompanyName", Type: table.String},
	{Name: "ContactName", Type: table.String},
	{Name: "ContactTitle", Type: table.String},
	{Name: "City", Type: table.String},
	{Name: "Region", Type: table.String},
	{Name: "Country", Type: table.String},
	{Name: "PostalCode", Type: table.String},
	{Name: "location", Type: table.String},
	{Name: "total_orders", Type: table.Int},
	{Name: "first_order_date", Type: table.Time},
	{Name: "last_order_date", Type: table.Time},
}

type orderStats struct {
	count       int64
	first, last time.Time
}

// BuildCustomers builds dim_customers from the unified customers, with order
// count and first/last order date taken from orders whose OrderDate parses.
// Customers without such orders get 0 and null dates.
func BuildCustomers(customers, orders *table.Table, issues *diag.Collector) *table.Table {
	out := table.New(Customers, customerColumns...)
	if !customers.Loaded() {
		return out
	}
	if !customers.Has("CustomerID") {
		issues.Add(diag.MissingKeyColumn, customers.Name, "column=CustomerID customer dimension left empty")
		return out
	}

	stats := customerOrderStats(orders, issues)

	for i := range customers.Rows {
		id := customers.Value(i, "CustomerID")
		city, country := customers.Value(i, "City"), customers.Value(i, "Country")

		// Source A carries the contact as separate first and last names.
		contact := text(customers.Value(i, "ContactName"))
		if contact == nil {
			contact = joined(customers.Value(i, "FirstName"), customers.Value(i, "LastName"), " ")
		}

		var total int64
		var first, last any
		if s, ok := stats[table.Key(id)]; ok {
			total, first, last = s.count, s.first, s.last
		}

		out.Append(
			table.ID(id),
			text(customers.Value(i, "CompanyName")),
			contact,
			text(customers.Value(i, "ContactTitle")),
			text(city),
			text(customers.Value(i, "Region")),
			text(country),
			text(customers.Value(i, "PostalCode")),
			joined(city, country, ", "),
			total,
			first,
			last,
		)
	}
	return out
}

// customerOrderStats aggregates orders per customer key. Unparseable order
// dates are skipped here and reported by the fact builder.
func customerOrderStats(orders *table.Table, issues *diag.Collector) map[string]*orderStats {
	out := map[string]*orderStats{}
	if !orders.Loaded() {
		return out
	}
	if col, ok := hasAll(orders, "CustomerID", "OrderDate"); !ok {
		issues.Add(diag.MissingKeyColumn, orders.Name, "column=%s customer order stats skipped", col)
		return out
	}
	for i := range orders.Rows {
		k := table.Key(orders.Value(i, "CustomerID"))
		ts, ok := table.AsTime(orders.Value(i, "OrderDate"))
		if k == "" || !ok {
			continue
		}
		s := out[k]
		if s == nil {
			out[k] = &orderStats{count: 1, first: ts, last: ts}
			continue
		}
		s.count++
		if ts.Before(s.first) {
			s.first = ts
		}
		if ts.After(s.last) {
			s.last = ts
		}
	}
	return out
}
