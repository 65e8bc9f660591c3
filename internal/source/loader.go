// Package source loads the configured extracts. Loading never fails a run: a
// source that cannot be read is replaced by an empty table and reported.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"warehouse/internal/config"
	"warehouse/internal/parser/csv"
	"warehouse/internal/parser/html"
	"warehouse/internal/parser/json"
	"warehouse/internal/table"
)

// Result is the outcome of loading one source. Err is set when the table was
// substituted by an empty one.
type Result struct {
	Source   config.Source
	Table    *table.Table
	Skipped  int
	Duration time.Duration
	Err      error
}

// Loader reads sources. The zero value reads files from disk and opens
// databases with sqlx.Open.
type Loader struct {
	Log          zerolog.Logger
	QueryTimeout time.Duration

	// OpenFile and OpenDB are seams for tests.
	OpenFile func(path string) (io.ReadCloser, error)
	OpenDB   func(driver, dsn string) (*sqlx.DB, error)

	dbs map[string]*sqlx.DB
}

// Load reads every source in order. It never returns an error; failures are
// reported in Result.Err with an empty table in Result.Table.
func (l *Loader) Load(ctx context.Context, sources []config.Source) []Result {
	defer l.closeDBs()

	out := make([]Result, 0, len(sources))
	for _, s := range sources {
		start := time.Now()
		var skipped int
		t, err := l.loadOne(ctx, s, func(line int, err error) {
			if errors.Is(err, csv.ErrExtraFields) {
				l.Log.Debug().Str("table", s.Name()).Int("line", line).Err(err).Msg("source: record truncated")
				return
			}
			skipped++
			l.Log.Debug().Str("table", s.Name()).Int("line", line).Err(err).Msg("source: record skipped")
		})
		res := Result{Source: s, Table: t, Skipped: skipped, Duration: time.Since(start), Err: err}
		if err != nil {
			res.Table = table.Empty(s.Name())
			l.Log.Warn().Str("table", s.Name()).Str("kind", s.Kind).Err(err).Msg("source: unavailable, using empty table")
		} else {
			l.Log.Info().Str("table", s.Name()).Int("rows", t.Len()).Int("columns", len(t.Columns)).
				Msgf("stage=load ok duration=%s", res.Duration.Truncate(time.Millisecond))
		}
		out = append(out, res)
	}
	return out
}

func (l *Loader) loadOne(ctx context.Context, s config.Source, onErr func(int, error)) (*table.Table, error) {
	switch s.Kind {
	case "csv", "html", "json":
		f, err := l.openFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("source: open %s: %w", s.Path, err)
		}
		switch s.Kind {
		case "csv":
			return csv.ReadTable(ctx, f, s.Name(), s.Options, onErr)
		case "json":
			return json.ReadTable(ctx, f, s.Name(), s.Options, onErr)
		default:
			return html.ReadTable(ctx, f, s.Name(), s.Options)
		}
	case "sql":
		db, err := l.db(s)
		if err != nil {
			return nil, err
		}
		if l.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.QueryTimeout)
			defer cancel()
		}
		return QueryTable(ctx, db, s.Name(), extractQuery(s))
	default:
		return nil, fmt.Errorf("source: unsupported kind %q", s.Kind)
	}
}

func (l *Loader) openFile(path string) (io.ReadCloser, error) {
	if l.OpenFile != nil {
		return l.OpenFile(path)
	}
	return os.Open(path)
}

// db returns a pooled handle per (driver, dsn) so that several entities
// extracted from the same server share one connection pool.
func (l *Loader) db(s config.Source) (*sqlx.DB, error) {
	driver := DriverName(s.Driver)
	key := driver + "\x00" + s.DSN
	if db, ok := l.dbs[key]; ok {
		return db, nil
	}

	open := l.OpenDB
	if open == nil {
		open = sqlx.Open
	}
	db, err := open(driver, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", driver, err)
	}
	if l.dbs == nil {
		l.dbs = map[string]*sqlx.DB{}
	}
	l.dbs[key] = db
	return db, nil
}

func (l *Loader) closeDBs() {
	for k, db := range l.dbs {
		_ = db.Close()
		delete(l.dbs, k)
	}
}
