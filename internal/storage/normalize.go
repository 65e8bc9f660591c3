package storage

import (
	"context"
	"fmt"

	"warehouse/internal/table"
)

// NormalizeValue converts a cell to the Go type a backend expects for the
// logical column type: string, int64, float64, bool or time.Time (UTC).
// Values that cannot be represented become nil, so NaN never reaches a store.
func NormalizeValue(typ string, v any) any {
	if v == nil {
		return nil
	}
	switch typ {
	case TypeBigint:
		if n, ok := table.AsInt(v); ok {
			return n
		}
	case TypeDouble:
		if f, ok := table.AsFloat(v); ok {
			return f
		}
	case TypeBoolean:
		if b, ok := table.AsBool(v); ok {
			return b
		}
	case TypeTimestamp:
		if ts, ok := table.AsTime(v); ok {
			return ts
		}
	default:
		if s, ok := table.AsString(v); ok {
			return s
		}
	}
	return nil
}

// NormalizeRow applies NormalizeValue to every cell of row.
func NormalizeRow(spec TableSpec, row []any) []any {
	out := make([]any, len(spec.Columns))
	for i, c := range spec.Columns {
		if i < len(row) {
			out[i] = NormalizeValue(c.Type, row[i])
		}
	}
	return out
}

// WriteTable replaces t in the warehouse through w.
func WriteTable(ctx context.Context, w Writer, t *table.Table) (int64, error) {
	if w == nil {
		return 0, fmt.Errorf("storage: nil writer")
	}
	spec := SpecFor(t)
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = NormalizeRow(spec, r)
	}
	return w.ReplaceTable(ctx, spec, rows)
}
