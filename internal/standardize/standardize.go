// Package standardize renames source A column labels to the canonical names
// used by source B and every later stage. It does nothing else: no type
// coercion, no merging.
package standardize

import (
	"warehouse/internal/table"
)

// Defaults are the source A (Access export) renames per entity.
var Defaults = map[string]map[string]string{
	"Customers": {
		"ID":              "CustomerID",
		"Company":         "CompanyName",
		"Last Name":       "LastName",
		"First Name":      "FirstName",
		"E-mail Address":  "Email",
		"Job Title":       "ContactTitle",
		"Business Phone":  "Phone",
		"Address":         "Address",
		"City":            "City",
		"State/Province":  "Region",
		"ZIP/Postal Code": "PostalCode",
		"Country/Region":  "Country",
	},
	"Orders": {
		"Order ID":             "OrderID",
		"Employee ID":          "EmployeeID",
		"Customer ID":          "CustomerID",
		"Order Date":           "OrderDate",
		"Shipped Date":         "ShippedDate",
		"Ship Name":            "ShipName",
		"Ship Address":         "ShipAddress",
		"Ship City":            "ShipCity",
		"Ship State/Province":  "ShipRegion",
		"Ship ZIP/Postal Code": "ShipPostalCode",
		"Ship Country/Region":  "ShipCountry",
		"Shipping Fee":         "Freight",
	},
	"OrderDetails": {
		"ID":         "OrderDetailID",
		"Order ID":   "OrderID",
		"Product ID": "ProductID",
		"Quantity":   "Quantity",
		"Unit Price": "UnitPrice",
		"Discount":   "Discount",
	},
	"Employees": {
		"ID":              "EmployeeID",
		"Last Name":       "LastName",
		"First Name":      "FirstName",
		"E-mail Address":  "Email",
		"Job Title":       "Title",
		"Business Phone":  "HomePhone",
		"Address":         "Address",
		"City":            "City",
		"State/Province":  "Region",
		"ZIP/Postal Code": "PostalCode",
		"Country/Region":  "Country",
	},
}

// Standardizer applies per-entity rename tables.
type Standardizer struct {
	mappings map[string]map[string]string
}

// New merges overrides over Defaults. An override entry replaces the default
// target for the same source column.
func New(overrides map[string]map[string]string) *Standardizer {
	m := make(map[string]map[string]string, len(Defaults))
	for entity, pairs := range Defaults {
		m[entity] = copyMap(pairs)
	}
	for entity, pairs := range overrides {
		if m[entity] == nil {
			m[entity] = map[string]string{}
		}
		for from, to := range pairs {
			m[entity][from] = to
		}
	}
	return &Standardizer{mappings: m}
}

// Apply returns t with columns renamed for entity. Entities without a mapping
// and mapping entries for absent columns are no-ops. Renames that would
// collide with an existing column are skipped and returned.
func (s *Standardizer) Apply(entity string, t *table.Table) (*table.Table, []string) {
	mapping, ok := s.mappings[entity]
	if !ok || !t.Loaded() {
		return t, nil
	}
	return t.Rename(mapping)
}

// Mapping returns a copy of the rename table for entity.
func (s *Standardizer) Mapping(entity string) map[string]string {
	return copyMap(s.mappings[entity])
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
