// Package config describes a warehouse build: which extracts to read, where
// to write the warehouse, and which optional behaviors to switch on.
//
// Configs are JSON or YAML files. Paths and DSNs may reference environment
// variables (${NAME}); a .env file is loaded first when present.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source sides. Side A is the flat-file export, side B the authoritative
// relational extract.
const (
	SideA = "A"
	SideB = "B"
)

// Entities lists the logical extracts the pipeline understands.
var Entities = []string{
	"Customers",
	"Orders",
	"OrderDetails",
	"Employees",
	"EmployeeTerritories",
	"Territories",
	"Region",
	"Products",
	"Categories",
	"Suppliers",
}

// Time dimension modes.
const (
	TimeRealistic = "realistic"
	TimeSynthetic = "synthetic"
)

type Pipeline struct {
	Job     string   `json:"job" yaml:"job"`
	Sources []Source `json:"sources" yaml:"sources"`

	// Standardize adds or overrides source-A column renames per entity.
	Standardize map[string]map[string]string `json:"standardize,omitempty" yaml:"standardize,omitempty"`

	// TimeDimension is "realistic" (default, one row per order month) or
	// "synthetic" (legacy: one month per order counted back from
	// SyntheticAnchor, linked by order_sequence).
	TimeDimension   string `json:"time_dimension,omitempty" yaml:"time_dimension,omitempty"`
	SyntheticAnchor string `json:"synthetic_anchor,omitempty" yaml:"synthetic_anchor,omitempty"`

	Storage Storage `json:"storage" yaml:"storage"`
	Runtime Runtime `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Source locates one extract. Kind is "csv", "html", "json" or "sql".
type Source struct {
	Entity string `json:"entity" yaml:"entity"`
	Side   string `json:"side" yaml:"side"`
	Kind   string `json:"kind" yaml:"kind"`

	// file kinds
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// sql kind
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Query  string `json:"query,omitempty" yaml:"query,omitempty"`

	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Name is the registry name of the loaded table, e.g. "Orders_A".
func (s Source) Name() string { return s.Entity + "_" + s.Side }

// Storage selects the warehouse backend: "sqlite" (default), "postgres" or
// "mssql".
type Storage struct {
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

type Runtime struct {
	// BatchSize caps rows per INSERT statement for the sqlite and mssql
	// writers; postgres uses COPY.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// QueryTimeout bounds each relational extract, e.g. "30s".
	QueryTimeout string `json:"query_timeout,omitempty" yaml:"query_timeout,omitempty"`
}

// Timeout parses QueryTimeout; zero means no limit.
func (r Runtime) Timeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(r.QueryTimeout))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Anchor parses SyntheticAnchor ("2006-01" or "2006-01-02"); the default is
// November 2025.
func (p Pipeline) Anchor() time.Time {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(p.SyntheticAnchor)); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
}

// Load reads a pipeline config. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON. Environment references are expanded.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Decode(raw, filepath.Ext(path))
}

// Decode parses raw config bytes. ext selects the format (".yaml"/".yml" for
// YAML, anything else JSON).
func Decode(raw []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Pipeline{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("config: decode json: %w", err)
		}
	}
	return Expand(p), nil
}

// LoadEnv loads .env style files into the process environment. Missing files
// are ignored; variables already set win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env %s: %w", f, err)
		}
	}
	return nil
}

// Expand applies os.ExpandEnv to every path and DSN and fills defaults.
func Expand(p Pipeline) Pipeline {
	out := p
	out.Sources = make([]Source, len(p.Sources))
	for i, s := range p.Sources {
		s.Path = os.ExpandEnv(s.Path)
		s.DSN = os.ExpandEnv(s.DSN)
		s.Side = strings.ToUpper(strings.TrimSpace(s.Side))
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		out.Sources[i] = s
	}
	out.Storage.DSN = os.ExpandEnv(p.Storage.DSN)
	if out.Storage.Kind == "" {
		out.Storage.Kind = "sqlite"
	}
	if out.TimeDimension == "" {
		out.TimeDimension = TimeRealistic
	}
	if out.Job == "" {
		out.Job = "northwind_warehouse"
	}
	return out
}

// Default is the conventional data layout: CSV exports for both
// sides under root/data/sources and a SQLite warehouse under
// root/data/warehouse.
func Default(root string) Pipeline {
	a := filepath.Join(root, "data", "sources", "source_a")
	b := filepath.Join(root, "data", "sources", "source_b")

	files := map[string]string{
		"Customers":           "Customers.csv",
		"Orders":              "Orders.csv",
		"OrderDetails":        "Order_Details.csv",
		"Employees":           "Employees.csv",
		"EmployeeTerritories": "EmployeeTerritories.csv",
		"Territories":         "Territories.csv",
		"Region":              "Region.csv",
		"Products":            "Products.csv",
		"Categories":          "Categories.csv",
		"Suppliers":           "Suppliers.csv",
	}

	var sources []Source
	for _, e := range []string{"Customers", "Orders", "OrderDetails", "Employees"} {
		sources = append(sources, Source{Entity: e, Side: SideA, Kind: "csv", Path: filepath.Join(a, files[e])})
	}
	for _, e := range Entities {
		sources = append(sources, Source{Entity: e, Side: SideB, Kind: "csv", Path: filepath.Join(b, files[e])})
	}

	return Expand(Pipeline{
		Job:           "northwind_warehouse",
		Sources:       sources,
		TimeDimension: TimeRealistic,
		Storage: Storage{
			Kind: "sqlite",
			DSN:  filepath.Join(root, "data", "warehouse", "northwind_bi.db"),
		},
	})
}
