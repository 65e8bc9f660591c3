package pipeline

import (
	"fmt"
	"time"

	"warehouse/internal/diag"
	"warehouse/internal/dimension"
	"warehouse/internal/fact"
	"warehouse/internal/table"
)

// Issue is a recovered, classified problem. See package diag for the
// categories.
type Issue = diag.Issue

// StoreError is returned by Run when the warehouse cannot be opened or a
// table cannot be written. Table is empty when opening failed.
type StoreError struct {
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("pipeline: open warehouse: %v", e.Err)
	}
	return fmt.Sprintf("pipeline: write %s: %v", e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LoadedTable summarizes one configured extract.
type LoadedTable struct {
	Name    string
	Kind    string
	Rows    int
	Skipped int
	// Err is non-empty when the extract was unavailable and an empty table
	// was used instead.
	Err string
}

// WrittenTable is one warehouse table and its row count. Skipped tables
// were empty and left untouched in the store. Fingerprint is the content
// hash of what was written; reruns over the same extracts reproduce it.
type WrittenTable struct {
	Name        string
	Rows        int64
	Skipped     bool
	Fingerprint string
}

// KPIs are the headline numbers of a build.
type KPIs struct {
	Orders        int
	ShippedOrders int
	SuccessRate   float64
	Revenue       float64
	Months        int
	Categories    int
	Customers     int
	Employees     int
	Products      int
	FirstOrder    *time.Time
	LastOrder     *time.Time
}

// Result is what Run produced. Tables holds every intermediate and output
// table by name.
type Result struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Loaded   []LoadedTable
	Written  []WrittenTable
	Issues   []Issue
	KPIs     KPIs
	Tables   *table.Registry
}

func computeKPIs(reg *table.Registry) KPIs {
	facts := reg.Table(fact.Table)
	k := KPIs{
		Orders:    facts.Len(),
		Months:    reg.Table(dimension.Time).Len(),
		Customers: reg.Table(dimension.Customers).Len(),
		Employees: reg.Table(dimension.Employees).Len(),
		Products:  reg.Table(dimension.Products).Len(),
	}

	categories := map[string]bool{}
	for i := range facts.Rows {
		if shipped, _ := facts.Value(i, fact.IsShipped).(bool); shipped {
			k.ShippedOrders++
		}
		if f, ok := table.AsFloat(facts.Value(i, fact.TotalAmount)); ok {
			k.Revenue += f
		}
		if c, ok := table.AsString(facts.Value(i, fact.Category)); ok {
			categories[c] = true
		}
		if t, ok := table.AsTime(facts.Value(i, fact.OrderDate)); ok {
			if k.FirstOrder == nil || t.Before(*k.FirstOrder) {
				first := t
				k.FirstOrder = &first
			}
			if k.LastOrder == nil || t.After(*k.LastOrder) {
				last := t
				k.LastOrder = &last
			}
		}
	}
	k.Categories = len(categories)
	k.SuccessRate = dimension.DeliveryRate(int64(k.ShippedOrders), int64(k.Orders))
	return k
}
