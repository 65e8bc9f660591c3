package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"warehouse/internal/storage"
)

// maxParams stays under SQL Server's limit of 2100 parameters per request.
const maxParams = 2000

// Writer implements storage.Writer for Microsoft SQL Server.
//
// A replace runs as one transaction:
//  1. drop the table when OBJECT_ID finds it
//  2. create it from the spec
//  3. insert rows with parameterized multi-row VALUES statements, chunked so
//     each statement stays under the parameter limit
type Writer struct {
	db        dbConn
	batchSize int
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Writer using database/sql and the "sqlserver" driver and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Writer{db: &sqlDB{db: raw}, batchSize: cfg.BatchSize}, nil
}

// Close releases database resources held by this writer.
func (w *Writer) Close() {
	if w == nil || w.db == nil {
		return
	}
	_ = w.db.Close()
}

// ReplaceTable drops, recreates and fills spec.Name in one transaction.
func (w *Writer) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (n int64, err error) {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin %s: %w", spec.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, buildDropSQL(spec.Name)); err != nil {
		return 0, fmt.Errorf("mssql: drop table %s: %w", spec.Name, err)
	}
	if _, err = tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}

	perStmt := storage.RowsPerStatement(maxParams, len(spec.Columns), w.batchSize)
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		q, args := buildBulkInsertSQL(spec.Name, spec.ColumnNames(), rows[start:end])
		res, execErr := tx.ExecContext(ctx, q, args...)
		if execErr != nil {
			err = fmt.Errorf("mssql: insert %s rows %d-%d: %w", spec.Name, start, end-1, execErr)
			return 0, err
		}
		affected, aerr := res.RowsAffected()
		if aerr != nil {
			affected = int64(end - start)
		}
		n += affected
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit %s: %w", spec.Name, err)
	}
	return n, nil
}

// buildDropSQL drops the table only when it exists.
func buildDropSQL(tableName string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
	)
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", spec.Name)
	}
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", mssqlTableIdent(spec.Name), strings.Join(defs, ", ")), nil
}

// mssqlColumnDef builds a SQL Server column definition from storage.ColumnSpec.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	typ, err := mssqlType(c.Type)
	if err != nil {
		return "", fmt.Errorf("mssql: column %s: %w", c.Name, err)
	}

	var b strings.Builder
	b.WriteString(mssqlIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if c.Nullable != nil && !*c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String(), nil
}

func mssqlType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "NVARCHAR(MAX)", nil
	case storage.TypeBigint:
		return "BIGINT", nil
	case storage.TypeDouble:
		return "FLOAT", nil
	case storage.TypeBoolean:
		return "BIT", nil
	case storage.TypeTimestamp:
		return "DATETIME2", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", logical)
	}
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("@p%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.fact_orders" -> [dbo].[fact_orders]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx used for testability.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

// BeginTx begins a transaction and returns a txConn wrapper.
func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// Close closes the underlying database handle.
func (s *sqlDB) Close() error { return s.db.Close() }

// sqlTx wraps *sql.Tx to implement txConn.
type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error   { return s.tx.Commit() }
func (s *sqlTx) Rollback() error { return s.tx.Rollback() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sqlTx)(nil)
)
