package config

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one config validation finding. Path points into the config
// document, e.g. "sources[3].path".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline checks a config for mistakes that would make a build
// meaningless. Missing files are not checked here: the loader tolerates them
// at run time.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	known := make(map[string]bool, len(Entities))
	for _, e := range Entities {
		known[e] = true
	}

	if len(p.Sources) == 0 {
		add(SeverityError, "sources", "at least one source is required")
	}

	seen := map[string]int{}
	for i, s := range p.Sources {
		path := fmt.Sprintf("sources[%d]", i)
		if !known[s.Entity] {
			add(SeverityError, path+".entity", "unknown entity %q (known: %s)", s.Entity, strings.Join(Entities, ", "))
		}
		if s.Side != SideA && s.Side != SideB {
			add(SeverityError, path+".side", "side must be A or B, got %q", s.Side)
		}
		if prev, dup := seen[s.Name()]; dup {
			add(SeverityError, path, "duplicate source %s (also sources[%d])", s.Name(), prev)
		}
		seen[s.Name()] = i

		switch s.Kind {
		case "csv", "html", "json":
			if strings.TrimSpace(s.Path) == "" {
				add(SeverityError, path+".path", "path is required for kind=%s", s.Kind)
			}
		case "sql":
			if strings.TrimSpace(s.DSN) == "" {
				add(SeverityError, path+".dsn", "dsn is required for kind=sql")
			}
			if !knownDriver(s.Driver) {
				add(SeverityError, path+".driver", "unsupported driver %q (sqlserver, postgres, sqlite)", s.Driver)
			}
			if s.Table == "" && s.Query == "" {
				add(SeverityWarning, path+".table", "neither table nor query set; defaulting to table %q", s.Entity)
			}
		default:
			add(SeverityError, path+".kind", "kind must be csv, html, json or sql, got %q", s.Kind)
		}
	}

	for _, e := range []string{"Orders", "Customers"} {
		_, a := seen[e+"_"+SideA]
		_, b := seen[e+"_"+SideB]
		if !a && !b {
			add(SeverityWarning, "sources", "no source configured for %s; the matching warehouse tables will be empty", e)
		}
	}

	for entity := range p.Standardize {
		if !known[entity] {
			add(SeverityWarning, "standardize."+entity, "mapping for unknown entity is ignored")
		}
	}

	switch p.TimeDimension {
	case "", TimeRealistic:
	case TimeSynthetic:
		add(SeverityWarning, "time_dimension", "synthetic time dimension ignores real order dates")
	default:
		add(SeverityError, "time_dimension", "must be %q or %q, got %q", TimeRealistic, TimeSynthetic, p.TimeDimension)
	}

	switch p.Storage.Kind {
	case "", "sqlite", "postgres", "mssql":
	default:
		add(SeverityError, "storage.kind", "unsupported storage kind %q", p.Storage.Kind)
	}
	if strings.TrimSpace(p.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "dsn is required")
	}

	if p.Runtime.QueryTimeout != "" && p.Runtime.Timeout() == 0 {
		add(SeverityWarning, "runtime.query_timeout", "cannot parse %q; extracts run without a timeout", p.Runtime.QueryTimeout)
	}
	if p.Runtime.BatchSize < 0 {
		add(SeverityError, "runtime.batch_size", "must not be negative")
	}

	return out
}

func knownDriver(d string) bool {
	switch strings.ToLower(d) {
	case "sqlserver", "mssql", "postgres", "pgx", "sqlite", "sqlite3":
		return true
	}
	return false
}
