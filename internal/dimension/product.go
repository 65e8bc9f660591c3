package dimension

import (
	"warehouse/internal/diag"
	"warehouse/internal/table"
)

const (
	UnknownSupplier = "Unknown Supplier"
	UnknownCountry  = "Unknown Country"
)

// Price tiers.
const (
	Budget   = "Budget"
	Economy  = "Economy"
	Standard = "Standard"
	Premium  = "Premium"
	Luxury   = "Luxury"
)

// Stock statuses.
const (
	OutOfStock = "Out of Stock"
	LowStock   = "Low Stock"
	InStock    = "In Stock"
)

var productColumns = []table.Column{
	{Name: "ProductID"},
	{Name: "ProductName", Type: table.String},
	{Name: "CategoryID"},
	{Name: "CategoryName", Type: table.String},
	{Name: "SupplierID"},
	{Name: "SupplierCompany", Type: table.String},
	{Name: "SupplierCountry", Type: table.String},
	{Name: "UnitPrice", Type: table.Float},
	{Name: "UnitsInStock", Type: table.Int},
	{Name: "UnitsOnOrder", Type: table.Int},
	{Name: "ReorderLevel", Type: table.Int},
	{Name: "Discontinued", Type: table.Bool},
	{Name: "QuantityPerUnit", Type: table.String},
	{Name: "price_range", Type: table.String},
	{Name: "stock_status", Type: table.String},
	{Name: "is_discontinued", Type: table.Bool},
}

// PriceTier classifies a unit price. It is total: a missing, zero or
// negative price is Budget.
//
//	price < 10        Budget
//	10 <= price <= 25 Economy
//	25 < price <= 50  Standard
//	50 < price <= 100 Premium
//	price > 100       Luxury
func PriceTier(price float64, ok bool) string {
	switch {
	case !ok || price < 10:
		return Budget
	case price <= 25:
		return Economy
	case price <= 50:
		return Standard
	case price <= 100:
		return Premium
	default:
		return Luxury
	}
}

// StockStatus classifies stock against the reorder level. Unknown stock or
// reorder level is In Stock.
func StockStatus(stock int64, hasStock bool, reorder int64, hasReorder bool) string {
	switch {
	case hasStock && stock == 0:
		return OutOfStock
	case hasStock && hasReorder && stock < reorder:
		return LowStock
	default:
		return InStock
	}
}

// BuildProducts builds dim_products. Products and categories are both
// required; without either the dimension is empty. Suppliers are optional.
func BuildProducts(products, categories, suppliers *table.Table, issues *diag.Collector) *table.Table {
	out := table.New(Products, productColumns...)
	if !products.Loaded() || !categories.Loaded() {
		return out
	}
	if !products.Has("ProductID") {
		issues.Add(diag.MissingKeyColumn, products.Name, "column=ProductID product dimension left empty")
		return out
	}
	if !categories.Has("CategoryID") {
		issues.Add(diag.MissingKeyColumn, categories.Name, "column=CategoryID category join skipped")
	}
	if suppliers.Loaded() && !suppliers.Has("SupplierID") {
		issues.Add(diag.MissingKeyColumn, suppliers.Name, "column=SupplierID supplier join skipped")
		suppliers = table.Empty(suppliers.Name)
	}

	catIdx := firstRowByKey(categories, "CategoryID")
	supIdx := firstRowByKey(suppliers, "SupplierID")

	bad := diag.Unparseable{}
	for i := range products.Rows {
		categoryName := any(nil)
		if c := lookupRow(catIdx, table.Key(products.Value(i, "CategoryID"))); c >= 0 {
			categoryName = text(categories.Value(c, "CategoryName"))
		}

		company, country := any(UnknownSupplier), any(UnknownCountry)
		if s := lookupRow(supIdx, table.Key(products.Value(i, "SupplierID"))); s >= 0 {
			company = textOr(suppliers.Value(s, "CompanyName"), UnknownSupplier)
			country = textOr(suppliers.Value(s, "Country"), UnknownCountry)
		}

		// A missing price is reported too: it silently lands in Budget.
		price, hasPrice := table.AsFloat(products.Value(i, "UnitPrice"))
		if !hasPrice {
			bad["UnitPrice"]++
		}
		stock, hasStock := parseInt(products.Value(i, "UnitsInStock"), "UnitsInStock", bad)
		onOrder, hasOnOrder := parseInt(products.Value(i, "UnitsOnOrder"), "UnitsOnOrder", bad)
		reorder, hasReorder := parseInt(products.Value(i, "ReorderLevel"), "ReorderLevel", bad)

		var discontinued any
		isDiscontinued := false
		if raw := products.Value(i, "Discontinued"); !table.Blank(raw) {
			if b, ok := discontinuedFlag(raw); ok {
				discontinued, isDiscontinued = b, b
			} else {
				bad["Discontinued"]++
			}
		}

		out.Append(
			table.ID(products.Value(i, "ProductID")),
			text(products.Value(i, "ProductName")),
			table.ID(products.Value(i, "CategoryID")),
			categoryName,
			table.ID(products.Value(i, "SupplierID")),
			company,
			country,
			orNil(price, hasPrice),
			orNil(stock, hasStock),
			orNil(onOrder, hasOnOrder),
			orNil(reorder, hasReorder),
			discontinued,
			text(products.Value(i, "QuantityPerUnit")),
			PriceTier(price, hasPrice),
			StockStatus(stock, hasStock, reorder, hasReorder),
			isDiscontinued,
		)
	}
	bad.Report(issues, products.Name)
	return out
}

func parseInt(v any, col string, bad diag.Unparseable) (int64, bool) {
	n, ok := table.AsInt(v)
	if !ok && !table.Blank(v) {
		bad[col]++
	}
	return n, ok
}

func orNil[T any](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// discontinuedFlag reads the Discontinued flag: set only when it equals 1, or
// -1 as Access exports true. Other integers read as not discontinued.
func discontinuedFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	n, ok := table.AsInt(v)
	if !ok {
		return false, false
	}
	return n == 1 || n == -1, true
}
