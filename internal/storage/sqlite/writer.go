package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"warehouse/internal/storage"
)

// maxParams keeps each INSERT under SQLite's historical host-parameter limit.
const maxParams = 999

// Writer implements storage.Writer for SQLite, the default embedded
// warehouse target.
//
// Key design points vs Postgres:
//   - SQLite has no native timestamp type. Timestamps are stored as
//     "YYYY-MM-DD HH:MM:SS" text, which sorts chronologically and is what
//     BI tools reading SQLite expect.
//   - Booleans are stored as INTEGER 0/1.
type Writer struct {
	db        *sql.DB
	batchSize int
}

func init() {
	storage.Register("sqlite", New)
}

// New opens (and creates, when needed) the SQLite database file named by
// cfg.DSN. The parent directory of a plain file path is created as well.
func New(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	if dir := fileDir(cfg.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer connection: SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Writer{db: db, batchSize: cfg.BatchSize}, nil
}

func (w *Writer) Close() { _ = w.db.Close() }

// ReplaceTable drops, recreates and fills spec.Name in one transaction.
func (w *Writer) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (n int64, err error) {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin %s: %w", spec.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("sqlite: drop table %s: %w", spec.Name, err)
	}
	if _, err = tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("sqlite: create table %s: %w", spec.Name, err)
	}

	perStmt := storage.RowsPerStatement(maxParams, len(spec.Columns), w.batchSize)
	for start := 0; start < len(rows); start += perStmt {
		end := start + perStmt
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsertSQL(spec, rows[start:end])
		res, execErr := tx.ExecContext(ctx, q, args...)
		if execErr != nil {
			err = fmt.Errorf("sqlite: insert %s rows %d-%d: %w", spec.Name, start, end-1, execErr)
			return 0, err
		}
		if affected, aerr := res.RowsAffected(); aerr == nil {
			n += affected
		} else {
			n += int64(end - start)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit %s: %w", spec.Name, err)
	}
	return n, nil
}

// sqlIdent quotes an identifier with double quotes, escaping embedded quotes.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqliteType(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigint, storage.TypeBoolean:
		return "INTEGER", nil
	case storage.TypeDouble:
		return "REAL", nil
	case storage.TypeTimestamp:
		return "TIMESTAMP", nil
	default:
		return "", fmt.Errorf("sqlite: unsupported column type %q", logical)
	}
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", spec.Name)
	}

	seen := map[string]bool{}
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		key := strings.ToLower(c.Name)
		if seen[key] {
			return "", fmt.Errorf("sqlite: table %s: duplicate column %s", spec.Name, c.Name)
		}
		seen[key] = true

		typ, err := sqliteType(c.Type)
		if err != nil {
			return "", err
		}
		def := sqlIdent(c.Name) + " " + typ
		if c.Nullable != nil && !*c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sqlIdent(spec.Name), strings.Join(defs, ", ")), nil
}

func buildInsertSQL(spec storage.TableSpec, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(spec.Name))
	b.WriteString(" (")
	for i, c := range spec.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c.Name))
	}
	b.WriteString(") VALUES ")

	ph := "(" + strings.TrimRight(strings.Repeat("?,", len(spec.Columns)), ",") + ")"
	args := make([]any, 0, len(rows)*len(spec.Columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph)
		for j := range spec.Columns {
			args = append(args, sqliteValue(row[j]))
		}
	}
	return b.String(), args
}

func sqliteValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return formatSQLiteTime(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// formatSQLiteTime renders t in UTC as "YYYY-MM-DD HH:MM:SS", appending
// fractional seconds only when present.
func formatSQLiteTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05.999999999")
	}
	return t.Format("2006-01-02 15:04:05")
}

// fileDir returns the directory of a plain file DSN, or "" for in-memory and
// URI style DSNs.
func fileDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "?") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}
