package pipeline

import (
	"context"
	"strings"

	"warehouse/internal/diag"
	"warehouse/internal/probe"
	"warehouse/internal/table"
)

// Probe loads and standardizes the configured extracts and profiles them
// without building or writing anything. only filters by source name
// ("Orders_A") or entity ("Orders"), case-insensitively; empty means all.
func (p *Pipeline) Probe(ctx context.Context, only ...string) []probe.Profile {
	log := p.Log.With().Str("job", p.Config.Job).Str("mode", "probe").Logger()
	reg := table.NewRegistry()
	issues := diag.NewCollector(func(iss diag.Issue) {
		log.Warn().Str("category", string(iss.Category)).Str("table", iss.Table).Msg(iss.Detail)
	})

	p.load(ctx, log, reg, issues)
	p.standardize(log, reg)

	var out []probe.Profile
	for _, s := range p.Config.Sources {
		if !selected(only, s.Name(), s.Entity) {
			continue
		}
		out = append(out, probe.Table(s.Entity, reg.Table(s.Name())))
	}
	return out
}

func selected(only []string, names ...string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(o), n) {
				return true
			}
		}
	}
	return false
}
