package table

import "sync"

// Registry holds the tables produced during one pipeline run, keyed by
// logical name. Stages only ever add tables; Put with an existing name
// replaces the table but keeps its original position.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{tables: map[string]*Table{}}
}

// Put stores t under t.Name.
func (r *Registry) Put(t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tables[t.Name] = t
}

// Get returns the named table and whether it exists.
func (r *Registry) Get(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Table returns the named table, or an empty one when it was never stored.
func (r *Registry) Table(name string) *Table {
	if t, ok := r.Get(name); ok {
		return t
	}
	return Empty(name)
}

// Names lists table names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
