// Package pipeline runs one warehouse build end to end:
//
//	load -> standardize -> unify -> dimensions -> fact -> time -> write
//
// Every stage but the last is tolerant. Unreadable extracts, missing key
// columns, unparseable values and empty aggregates become Issues and the run
// carries on with degraded data. Only the store can fail a run, as a
// *StoreError.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"warehouse/internal/config"
	"warehouse/internal/diag"
	"warehouse/internal/dimension"
	"warehouse/internal/fact"
	"warehouse/internal/fingerprint"
	"warehouse/internal/metrics"
	"warehouse/internal/source"
	"warehouse/internal/standardize"
	"warehouse/internal/storage"
	"warehouse/internal/table"
	"warehouse/internal/unify"
)

// OpenFn opens the warehouse store. storage.New is used when nil.
type OpenFn func(ctx context.Context, cfg storage.Config) (storage.Writer, error)

// OutputTables are the warehouse tables in write order.
var OutputTables = []string{
	dimension.Time,
	dimension.Employees,
	dimension.Customers,
	dimension.Products,
	fact.Table,
}

// Pipeline is one configured build. The zero value of every field but
// Config is usable.
type Pipeline struct {
	Config config.Pipeline
	Log    zerolog.Logger

	// Loader reads the extracts; a default Loader is used when nil.
	Loader *source.Loader
	// Open is a seam for tests.
	Open OpenFn
	// Now is a seam for tests.
	Now func() time.Time
}

// New returns a Pipeline for cfg logging to log.
func New(cfg config.Pipeline, log zerolog.Logger) *Pipeline {
	return &Pipeline{Config: cfg, Log: log}
}

// Run executes the build. The returned Result is non-nil even when err is a
// *StoreError, so callers can still report what was built.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	res := &Result{
		RunID:   uuid.NewString(),
		Started: now(),
		Tables:  table.NewRegistry(),
	}
	log := p.Log.With().Str("run_id", res.RunID).Str("job", p.Config.Job).Logger()
	issues := diag.NewCollector(func(iss diag.Issue) {
		log.Warn().Str("category", string(iss.Category)).Str("table", iss.Table).Msg(iss.Detail)
		metrics.RecordIssue(string(iss.Category))
	})
	defer func() {
		res.Issues = issues.Issues()
		res.Duration = now().Sub(res.Started)
	}()

	reg := res.Tables
	run := func(name string, fn func()) {
		start := time.Now()
		fn()
		d := durMS(start)
		metrics.RecordStep(name, metrics.StatusOK, d)
		log.Info().Msgf("stage=%s ok duration=%s", name, d)
	}

	run("load", func() { res.Loaded = p.load(ctx, log, reg, issues) })
	run("standardize", func() { p.standardize(log, reg) })
	run("unify", func() { unifyAll(log, reg, issues) })
	run("dimensions", func() { buildDimensions(reg, issues) })
	run("fact", func() {
		reg.Put(fact.Build(
			reg.Table("Orders"),
			reg.Table("OrderDetails"),
			reg.Table("Products"),
			reg.Table("Categories"),
			issues,
		))
	})
	run("time", func() { p.buildTime(reg, issues) })
	res.KPIs = computeKPIs(reg)

	start := time.Now()
	written, err := p.write(ctx, log, reg)
	res.Written = written
	if err != nil {
		metrics.RecordStep("write", metrics.StatusError, durMS(start))
		log.Error().Err(err).Msgf("stage=write status=error duration=%s", durMS(start))
		return res, err
	}
	metrics.RecordStep("write", metrics.StatusOK, durMS(start))
	log.Info().Msgf("stage=write ok duration=%s", durMS(start))
	return res, nil
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

func (p *Pipeline) load(ctx context.Context, log zerolog.Logger, reg *table.Registry, issues *diag.Collector) []LoadedTable {
	l := p.Loader
	if l == nil {
		l = &source.Loader{QueryTimeout: p.Config.Runtime.Timeout()}
	}
	l.Log = log

	results := l.Load(ctx, p.Config.Sources)
	out := make([]LoadedTable, 0, len(results))
	for _, r := range results {
		lt := LoadedTable{Name: r.Source.Name(), Kind: r.Source.Kind, Rows: r.Table.Len(), Skipped: r.Skipped}
		if r.Err != nil {
			lt.Err = r.Err.Error()
			issues.Add(diag.MissingSource, lt.Name, "kind=%s: %v", r.Source.Kind, r.Err)
		} else {
			metrics.RecordRows("loaded", r.Table.Len())
		}
		reg.Put(r.Table)
		out = append(out, lt)
	}
	return out
}

// standardize renames source-A columns in place in the registry.
func (p *Pipeline) standardize(log zerolog.Logger, reg *table.Registry) {
	std := standardize.New(p.Config.Standardize)
	for _, entity := range config.Entities {
		name := entity + "_" + config.SideA
		t, ok := reg.Get(name)
		if !ok || !t.Loaded() {
			continue
		}
		out, collisions := std.Apply(entity, t)
		for _, c := range collisions {
			log.Warn().Str("table", name).Str("column", c).Msg("standardize: rename would collide, kept source label")
		}
		reg.Put(out)
	}
}

// unifyAll stores one table per entity under the bare entity name. Entities
// without a unify rule only exist on side B and are passed through.
func unifyAll(log zerolog.Logger, reg *table.Registry, issues *diag.Collector) {
	for _, entity := range config.Entities {
		a := reg.Table(entity + "_" + config.SideA)
		b := reg.Table(entity + "_" + config.SideB)

		rule, ok := unify.RuleFor(entity)
		if !ok {
			reg.Put(b.Clone(entity))
			continue
		}

		out, st := unify.Unify(entity, rule, a, b)
		if st.MissingKey != "" {
			issues.Add(diag.MissingKeyColumn, entity, "key=%s missing on side %s, union skipped", rule.Key, st.MissingKey)
		}
		if st.BlankKeyA > 0 {
			issues.Add(diag.MissingKeyColumn, a.Name, "key=%s blank on %d rows, rows dropped", rule.Key, st.BlankKeyA)
		}
		log.Debug().Str("table", entity).Str("policy", rule.Policy.String()).
			Int("from_b", st.FromB).Int("from_a", st.FromA).
			Int("overlap_a", st.OverlapA).Int("duplicate_a", st.DuplicateA).Int("blank_key_a", st.BlankKeyA).
			Msg("unify: done")
		reg.Put(out)
	}
}

func buildDimensions(reg *table.Registry, issues *diag.Collector) {
	reg.Put(dimension.BuildEmployees(
		reg.Table("Employees"),
		reg.Table("EmployeeTerritories"),
		reg.Table("Territories"),
		reg.Table("Region"),
		issues,
	))
	reg.Put(dimension.BuildCustomers(reg.Table("Customers"), reg.Table("Orders"), issues))
	reg.Put(dimension.BuildProducts(reg.Table("Products"), reg.Table("Categories"), reg.Table("Suppliers"), issues))
}

// buildTime builds dim_time and binds fact_orders.date_id to it.
func (p *Pipeline) buildTime(reg *table.Registry, issues *diag.Collector) {
	facts := reg.Table(fact.Table)
	if p.Config.TimeDimension == config.TimeSynthetic {
		dim := dimension.BuildSyntheticTime(facts, p.Config.Anchor())
		reg.Put(dim)
		reg.Put(fact.LinkTimeBySequence(facts, dim))
		return
	}
	dim := dimension.BuildTime(facts, issues)
	reg.Put(dim)
	reg.Put(fact.LinkTime(facts, dim))
}

// write replaces every non-empty output table. The first failure stops the
// run; tables already written stay replaced.
func (p *Pipeline) write(ctx context.Context, log zerolog.Logger, reg *table.Registry) ([]WrittenTable, error) {
	open := p.Open
	if open == nil {
		open = storage.New
	}
	w, err := open(ctx, storage.Config{
		Kind:      p.Config.Storage.Kind,
		DSN:       p.Config.Storage.DSN,
		BatchSize: p.Config.Runtime.BatchSize,
	})
	if err != nil {
		return nil, &StoreError{Err: err}
	}
	defer w.Close()

	out := make([]WrittenTable, 0, len(OutputTables))
	for _, name := range OutputTables {
		t := reg.Table(name)
		if t.Len() == 0 {
			log.Warn().Str("table", name).Msg("write: table is empty, store left untouched")
			out = append(out, WrittenTable{Name: name, Skipped: true})
			continue
		}
		n, err := storage.WriteTable(ctx, w, t)
		if err != nil {
			return out, &StoreError{Table: name, Err: err}
		}
		fp := fingerprint.Table(t)
		metrics.RecordRows("written", int(n))
		metrics.RecordBatch()
		log.Info().Str("table", name).Int64("rows", n).Str("fingerprint", fingerprint.Short(fp)).Msg("write: replaced")
		out = append(out, WrittenTable{Name: name, Rows: n, Fingerprint: fp})
	}
	return out, nil
}
