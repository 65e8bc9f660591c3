// Package storage defines the warehouse writer contract and the backend
// registry. Backends live in sub-packages and register themselves from init.
package storage

import (
	"warehouse/internal/table"
)

// Logical column types. Backends map them to their own DDL types.
const (
	TypeText      = "text"
	TypeBigint    = "bigint"
	TypeDouble    = "double"
	TypeBoolean   = "boolean"
	TypeTimestamp = "timestamp"
)

type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// ColumnNames returns the column names in order.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// SpecFor derives the table spec from a table's logical column types.
// Untyped columns (identifiers mixing numeric and text keys) are stored as
// text.
func SpecFor(t *table.Table) TableSpec {
	spec := TableSpec{Name: t.Name, Columns: make([]ColumnSpec, len(t.Columns))}
	for i, c := range t.Columns {
		spec.Columns[i] = ColumnSpec{Name: c.Name, Type: logicalType(c.Type)}
	}
	return spec
}

func logicalType(t table.Type) string {
	switch t {
	case table.Int:
		return TypeBigint
	case table.Float:
		return TypeDouble
	case table.Bool:
		return TypeBoolean
	case table.Time:
		return TypeTimestamp
	default:
		return TypeText
	}
}
