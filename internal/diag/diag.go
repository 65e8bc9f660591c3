// Package diag classifies the recoverable problems a warehouse build runs
// into. Stages report them to a Collector and keep going; only storage
// failures stop a run, and those travel as errors instead.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

type Category string

const (
	// MissingSource: a configured extract could not be read and an empty
	// table was substituted.
	MissingSource Category = "missing_source"
	// MissingKeyColumn: a join or union key is absent, the step was skipped.
	MissingKeyColumn Category = "missing_key_column"
	// UnparseableValue: cells that could not be coerced were nulled.
	UnparseableValue Category = "unparseable_value"
	// DegenerateAggregate: an aggregate had no input and got its default.
	DegenerateAggregate Category = "degenerate_aggregate"
)

// Issue is one classified, recovered problem.
type Issue struct {
	Category Category `json:"category"`
	Table    string   `json:"table"`
	Detail   string   `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s table=%s %s", i.Category, i.Table, i.Detail)
}

// Collector accumulates issues. A nil *Collector discards everything so pure
// builders can be called without one.
type Collector struct {
	mu     sync.Mutex
	issues []Issue
	notify func(Issue)
}

// NewCollector returns a collector that also calls notify (if non-nil) for
// every issue as it is added.
func NewCollector(notify func(Issue)) *Collector {
	return &Collector{notify: notify}
}

func (c *Collector) Add(cat Category, tbl string, format string, args ...any) {
	if c == nil {
		return
	}
	iss := Issue{Category: cat, Table: tbl, Detail: fmt.Sprintf(format, args...)}
	c.mu.Lock()
	c.issues = append(c.issues, iss)
	notify := c.notify
	c.mu.Unlock()
	if notify != nil {
		notify(iss)
	}
}

// Issues returns a copy of everything collected so far.
func (c *Collector) Issues() []Issue {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Issue(nil), c.issues...)
}

// Count returns how many issues of the given category were collected.
func (c *Collector) Count(cat Category) int {
	n := 0
	for _, iss := range c.Issues() {
		if iss.Category == cat {
			n++
		}
	}
	return n
}

// Unparseable is a helper for per-column parse failures. Builders count
// failures per column and report once, so large extracts do not flood logs.
type Unparseable map[string]int

func (u Unparseable) Report(c *Collector, tbl string) {
	for _, col := range sortedKeys(u) {
		if n := u[col]; n > 0 {
			c.Add(UnparseableValue, tbl, "column=%s values=%d coerced to null", col, n)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
