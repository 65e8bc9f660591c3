// Package probe profiles loaded extracts: per-column inferred types, fill
// and distinct counts, and the health of the entity's business key. It is
// best-effort and never fails.
package probe

import (
	"time"

	"warehouse/internal/table"
	"warehouse/internal/unify"
)

// Inferred column types, most specific first.
const (
	TypeInteger   = "integer"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeFloat     = "float"
	TypeText      = "text"
)

// Column is the profile of one column.
type Column struct {
	Name     string
	Type     string
	Filled   int
	Distinct int
}

// Profile describes one table.
type Profile struct {
	Table   string
	Entity  string
	Rows    int
	Columns []Column

	// Key is the unify key for Entity; empty for entities unified by
	// concatenation or passed through.
	Key           string
	KeyPresent    bool
	KeyBlank      int
	KeyDuplicates int

	// Candidate is the most distinct column, a hint when Key is absent.
	Candidate string
}

// Table profiles t, which holds extracts of entity.
func Table(entity string, t *table.Table) Profile {
	p := Profile{Table: t.Name, Entity: entity, Rows: t.Len()}

	best := 0
	for i, name := range t.ColumnNames() {
		c := profileColumn(name, t, i)
		p.Columns = append(p.Columns, c)
		if c.Distinct > best {
			best, p.Candidate = c.Distinct, name
		}
	}

	rule, ok := unify.RuleFor(entity)
	if !ok || rule.Key == "" {
		return p
	}
	p.Key = rule.Key
	if !t.Has(rule.Key) {
		return p
	}
	p.KeyPresent = true
	seen := map[string]bool{}
	for i := range t.Rows {
		k := table.Key(t.Value(i, rule.Key))
		switch {
		case k == "":
			p.KeyBlank++
		case seen[k]:
			p.KeyDuplicates++
		default:
			seen[k] = true
		}
	}
	return p
}

func profileColumn(name string, t *table.Table, col int) Column {
	c := Column{Name: name, Type: TypeText}
	allInt, allBool, allDate, allTS, allFloat := true, true, true, true, true
	distinct := map[string]bool{}

	for _, row := range t.Rows {
		if col >= len(row) || table.Blank(row[col]) {
			continue
		}
		v := row[col]
		c.Filled++
		distinct[table.Key(v)] = true

		if allInt {
			_, isBool := v.(bool)
			_, ok := table.AsInt(v)
			allInt = ok && !isBool
		}
		if allBool {
			allBool = looksBool(v)
		}
		if allDate || allTS {
			ts, ok := table.AsTime(v)
			allTS = allTS && ok
			allDate = allDate && ok && ts.Equal(ts.Truncate(24*time.Hour))
		}
		if allFloat {
			_, ok := table.AsFloat(v)
			allFloat = ok
		}
	}
	c.Distinct = len(distinct)
	if c.Filled == 0 {
		return c
	}

	switch {
	case allInt:
		c.Type = TypeInteger
	case allBool:
		c.Type = TypeBoolean
	case allDate:
		c.Type = TypeDate
	case allTS:
		c.Type = TypeTimestamp
	case allFloat:
		c.Type = TypeFloat
	}
	return c
}

// looksBool accepts real booleans and textual spellings. Numbers are left to
// the integer and float checks.
func looksBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		_, ok := table.AsBool(t)
		return ok
	}
	return false
}
