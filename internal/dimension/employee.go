package dimension

import (
	"strings"

	"warehouse/internal/diag"
	"warehouse/internal/table"
)

const (
	NoTerritory   = "No Territory"
	NoRegion      = "No Region"
	UnknownRegion = "Unknown"
)

var employeeColumns = []table.Column{
	{Name: "EmployeeID"},
	{Name: "LastName", Type: table.String},
	{Name: "FirstName", Type: table.String},
	{Name: "Title", Type: table.String},
	{Name: "City", Type: table.String},
	{Name: "Region", Type: table.String},
	{Name: "Country", Type: table.String},
	{Name: "HireDate", Type: table.Time},
	{Name: "full_name", Type: table.String},
	{Name: "location", Type: table.String},
	{Name: "work_territories", Type: table.String},
	{Name: "work_regions", Type: table.String},
}

type coverage struct {
	territories []string
	regions     []string
}

// BuildEmployees builds dim_employees, one row per employee, with the
// territories and regions each employee covers. Territory names are listed in
// assignment order and may repeat; region names are distinct in first-seen
// order.
func BuildEmployees(employees, assignments, territories, regions *table.Table, issues *diag.Collector) *table.Table {
	out := table.New(Employees, employeeColumns...)
	if !employees.Loaded() {
		return out
	}
	if !employees.Has("EmployeeID") {
		issues.Add(diag.MissingKeyColumn, employees.Name, "column=EmployeeID employee dimension left empty")
		return out
	}

	cov := employeeCoverage(assignments, territories, regions, issues)

	bad := diag.Unparseable{}
	for i := range employees.Rows {
		id := employees.Value(i, "EmployeeID")
		first, last := employees.Value(i, "FirstName"), employees.Value(i, "LastName")
		city, country := employees.Value(i, "City"), employees.Value(i, "Country")

		var hired any
		if raw := employees.Value(i, "HireDate"); !table.Blank(raw) {
			if ts, ok := table.AsTime(raw); ok {
				hired = ts
			} else {
				bad["HireDate"]++
			}
		}

		terr, reg := NoTerritory, NoRegion
		if c, ok := cov[table.Key(id)]; ok {
			if len(c.territories) > 0 {
				terr = strings.Join(c.territories, ", ")
			}
			if len(c.regions) > 0 {
				reg = strings.Join(c.regions, ", ")
			}
		}

		out.Append(
			table.ID(id),
			text(last),
			text(first),
			text(employees.Value(i, "Title")),
			text(city),
			textOr(employees.Value(i, "Region"), UnknownRegion),
			text(country),
			hired,
			joined(first, last, " "),
			joined(city, country, ", "),
			terr,
			reg,
		)
	}
	bad.Report(issues, employees.Name)
	return out
}

// employeeCoverage joins assignments to territories (TerritoryID) and
// territories to regions (RegionID), grouped by employee key.
func employeeCoverage(assignments, territories, regions *table.Table, issues *diag.Collector) map[string]*coverage {
	out := map[string]*coverage{}
	if !assignments.Loaded() {
		return out
	}
	if col, ok := hasAll(assignments, "EmployeeID", "TerritoryID"); !ok {
		issues.Add(diag.MissingKeyColumn, assignments.Name, "column=%s territory join skipped", col)
		return out
	}
	if territories.Loaded() && !territories.Has("TerritoryID") {
		issues.Add(diag.MissingKeyColumn, territories.Name, "column=TerritoryID territory join skipped")
		return out
	}
	if regions.Loaded() && territories.Loaded() && (!regions.Has("RegionID") || !territories.Has("RegionID")) {
		issues.Add(diag.MissingKeyColumn, regions.Name, "column=RegionID region join skipped")
		regions = table.Empty(regions.Name)
	}

	terrIdx := firstRowByKey(territories, "TerritoryID")
	regIdx := firstRowByKey(regions, "RegionID")

	for i := range assignments.Rows {
		emp := table.Key(assignments.Value(i, "EmployeeID"))
		if emp == "" {
			continue
		}
		c := out[emp]
		if c == nil {
			c = &coverage{}
			out[emp] = c
		}

		t := lookupRow(terrIdx, table.Key(assignments.Value(i, "TerritoryID")))
		if t < 0 {
			continue
		}
		if s, ok := table.AsString(territories.Value(t, "TerritoryDescription")); ok {
			c.territories = append(c.territories, s)
		}
		r := lookupRow(regIdx, table.Key(territories.Value(t, "RegionID")))
		if r < 0 {
			continue
		}
		if s, ok := table.AsString(regions.Value(r, "RegionDescription")); ok && !contains(c.regions, s) {
			c.regions = append(c.regions, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
