package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// database/sql drivers for relational extracts
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"warehouse/internal/config"
	"warehouse/internal/table"
)

// DriverName maps config driver aliases to registered database/sql names.
func DriverName(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "sqlserver", "mssql":
		return "sqlserver"
	case "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

// extractQuery returns the configured query, or SELECT * over the configured
// table (defaulting to the entity name). SQL Server names are bracket-quoted
// so tables such as "Order Details" work unchanged.
func extractQuery(s config.Source) string {
	if strings.TrimSpace(s.Query) != "" {
		return s.Query
	}
	name := s.Table
	if name == "" {
		name = s.Entity
	}
	return "SELECT * FROM " + quoteTable(DriverName(s.Driver), name)
}

func quoteTable(driver, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if driver == "sqlserver" {
			p = strings.Trim(p, "[]")
			parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
		} else {
			p = strings.Trim(p, `"`)
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

// QueryTable runs q and materializes the full result set. Driver specific
// cell types are folded into the table cell types.
func QueryTable(ctx context.Context, db *sqlx.DB, name, q string) (*table.Table, error) {
	rows, err := db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("source: query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: columns %s: %w", name, err)
	}
	out := table.New(name, table.Strings(cols...)...)

	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("source: scan %s: %w", name, err)
		}
		for i, v := range vals {
			vals[i] = cell(v)
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: rows %s: %w", name, err)
	}
	return out, nil
}

func cell(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint8:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
