package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"warehouse/internal/storage"
)

// Writer implements storage.Writer for PostgreSQL. Rows are loaded with
// COPY inside the same transaction that recreates the table.
type Writer struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Writer{pool: pool}, nil
}

func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}

// ReplaceTable drops, recreates and COPYs spec.Name in one transaction.
// Schema-qualified names ("bi.fact_orders") get their schema created first.
func (w *Writer) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin %s: %w", spec.Name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, q := range stmts {
		if _, err := tx.Exec(ctx, q); err != nil {
			return 0, fmt.Errorf("postgres: %s: %w", q, err)
		}
	}

	schema, name := splitQualifiedName(spec.Name)
	ident := pgx.Identifier{name}
	if schema != "" {
		ident = pgx.Identifier{schema, name}
	}
	n, err := tx.CopyFrom(ctx, ident, spec.ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy %s: %w", spec.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit %s: %w", spec.Name, err)
	}
	return n, nil
}

// buildReplaceSQL returns the statements run before COPY: optional schema
// creation, DROP TABLE IF EXISTS and CREATE TABLE.
func buildReplaceSQL(spec storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("postgres: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("postgres: table %s has no columns", spec.Name)
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("postgres: table %s: %w", spec.Name, err)
		}
		defs = append(defs, def)
	}

	var out []string
	schema, _ := splitQualifiedName(spec.Name)
	if schema != "" {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schema))
	}
	table := qualifiedIdent(spec.Name)
	out = append(out,
		"DROP TABLE IF EXISTS "+table,
		fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", ")),
	)
	return out, nil
}

func buildColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("column name is empty")
	}
	typ, err := pgType(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", c.Name, err)
	}
	def := pgIdent(c.Name) + " " + typ
	if c.Nullable != nil && !*c.Nullable {
		def += " NOT NULL"
	}
	return def, nil
}

func pgType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "text", nil
	case storage.TypeBigint:
		return "bigint", nil
	case storage.TypeDouble:
		return "double precision", nil
	case storage.TypeBoolean:
		return "boolean", nil
	case storage.TypeTimestamp:
		return "timestamp", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", logical)
	}
}

// pgIdent quotes an identifier, escaping embedded double quotes.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func qualifiedIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// splitQualifiedName splits "schema.table" into its parts. Unqualified names
// return an empty schema.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, "."); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	}
	return "", name
}
