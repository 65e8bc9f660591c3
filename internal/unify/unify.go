// Package unify reconciles an entity's two source extracts into one table.
//
// Two policies exist. Keyed entities (customers, orders, employees) take
// source B as the base and append only source A rows whose business key B
// does not have. Order line items share no natural key across sources, so
// they are concatenated.
package unify

import (
	"warehouse/internal/table"
)

type Policy int

const (
	ByKey Policy = iota
	Concat
)

func (p Policy) String() string {
	if p == Concat {
		return "concat"
	}
	return "by_key"
}

// Rule says how one entity is unified.
type Rule struct {
	Entity string
	Policy Policy
	Key    string
}

// Rules covers every entity that exists on both sides.
var Rules = []Rule{
	{Entity: "Customers", Policy: ByKey, Key: "CustomerID"},
	{Entity: "Orders", Policy: ByKey, Key: "OrderID"},
	{Entity: "Employees", Policy: ByKey, Key: "EmployeeID"},
	{Entity: "OrderDetails", Policy: Concat},
}

// RuleFor returns the rule for entity, if any.
func RuleFor(entity string) (Rule, bool) {
	for _, r := range Rules {
		if r.Entity == entity {
			return r, true
		}
	}
	return Rule{}, false
}

// Stats describes how a unified table was assembled.
type Stats struct {
	FromB int
	FromA int
	// OverlapA counts A rows dropped because B has the key.
	OverlapA int
	// DuplicateA counts A rows dropped because an earlier A row had the key.
	DuplicateA int
	// BlankKeyA counts A rows dropped because their key is empty.
	BlankKeyA int
	// MissingKey names the side ("A", "B" or "A,B") lacking the key column
	// when the union was skipped.
	MissingKey string
}

// Unify builds the unified table named name from a and b. It never fails:
// when a keyed union is impossible it degrades to B alone (or A when B has
// no rows) and records the reason in Stats.MissingKey.
func Unify(name string, rule Rule, a, b *table.Table) (*table.Table, Stats) {
	if rule.Policy == Concat {
		return concat(name, a, b)
	}
	return byKey(name, rule.Key, a, b)
}

func byKey(name, key string, a, b *table.Table) (*table.Table, Stats) {
	var st Stats

	// One side absent entirely: the other side is the result.
	if !b.Loaded() {
		return passthrough(name, a, &st.FromA), st
	}
	if !a.Loaded() {
		return passthrough(name, b, &st.FromB), st
	}

	ai, bi := a.Index(key), b.Index(key)
	if ai < 0 || bi < 0 {
		switch {
		case ai < 0 && bi < 0:
			st.MissingKey = "A,B"
		case ai < 0:
			st.MissingKey = "A"
		default:
			st.MissingKey = "B"
		}
		if b.Len() == 0 {
			return passthrough(name, a, &st.FromA), st
		}
		return passthrough(name, b, &st.FromB), st
	}

	out, fromA := mergeSchema(name, a, b)

	inB := make(map[string]bool, b.Len())
	for _, row := range b.Rows {
		out.Rows = append(out.Rows, widen(row, len(out.Columns)))
		inB[table.Key(row[bi])] = true
		st.FromB++
	}

	seen := make(map[string]bool, a.Len())
	for _, row := range a.Rows {
		k := table.Key(row[ai])
		switch {
		case k == "":
			st.BlankKeyA++
			continue
		case inB[k]:
			st.OverlapA++
			continue
		case seen[k]:
			st.DuplicateA++
			continue
		}
		seen[k] = true
		out.Rows = append(out.Rows, project(row, fromA, len(out.Columns)))
		st.FromA++
	}
	return out, st
}

func concat(name string, a, b *table.Table) (*table.Table, Stats) {
	var st Stats
	switch {
	case !a.Loaded() && !b.Loaded():
		return table.Empty(name), st
	case !a.Loaded():
		return passthrough(name, b, &st.FromB), st
	case !b.Loaded():
		return passthrough(name, a, &st.FromA), st
	}

	out, fromA := mergeSchema(name, a, b)
	for _, row := range b.Rows {
		out.Rows = append(out.Rows, widen(row, len(out.Columns)))
		st.FromB++
	}
	for _, row := range a.Rows {
		out.Rows = append(out.Rows, project(row, fromA, len(out.Columns)))
		st.FromA++
	}
	return out, st
}

// mergeSchema returns an empty table with B's columns followed by A's
// columns that B lacks, and for every A column its position in the result.
func mergeSchema(name string, a, b *table.Table) (*table.Table, []int) {
	cols := append([]table.Column(nil), b.Columns...)
	pos := make([]int, len(a.Columns))
	for i, c := range a.Columns {
		if j := b.Index(c.Name); j >= 0 {
			pos[i] = j
			continue
		}
		pos[i] = len(cols)
		cols = append(cols, c)
	}
	return table.New(name, cols...), pos
}

func passthrough(name string, t *table.Table, counter *int) *table.Table {
	if !t.Loaded() {
		return table.Empty(name)
	}
	out := t.Clone(name)
	*counter = out.Len()
	return out
}

func widen(row []any, width int) []any {
	out := make([]any, width)
	copy(out, row)
	return out
}

func project(row []any, pos []int, width int) []any {
	out := make([]any, width)
	for i, v := range row {
		out[pos[i]] = v
	}
	return out
}
