// Package table is the in-memory tabular model shared by every pipeline stage.
//
// A Table is a named, ordered list of columns plus rows of cell values. Cell
// values are one of nil, string, int64, float64, bool or time.Time. Stages
// never mutate a Table they received; they build a new one instead.
package table

import "fmt"

// Type is the logical type of a column. It drives DDL generation in the
// storage backends; cells are not forced to match it.
type Type int

const (
	Any Type = iota
	String
	Int
	Float
	Bool
	Time
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "any"
	}
}

type Column struct {
	Name string
	Type Type
}

// Table is a named set of rows. Rows always have len(Columns) cells.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any

	index map[string]int
}

// New returns an empty table with the given columns.
func New(name string, cols ...Column) *Table {
	t := &Table{Name: name, Columns: append([]Column(nil), cols...)}
	t.reindex()
	return t
}

// Empty returns a table with no columns and no rows. This is what the loader
// substitutes for a source that could not be read.
func Empty(name string) *Table {
	return New(name)
}

// Strings builds untyped (Any) columns from plain names.
func Strings(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n}
	}
	return out
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c.Name]; !dup {
			t.index[c.Name] = i
		}
	}
}

// Len is the row count. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Loaded reports whether the table carries a schema. Missing sources are
// substituted by tables with no columns, so Loaded is false for them.
func (t *Table) Loaded() bool {
	return t != nil && len(t.Columns) > 0
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Value returns the cell at row i in the named column, or nil when the column
// does not exist.
func (t *Table) Value(i int, col string) any {
	ix := t.Index(col)
	if ix < 0 || i < 0 || i >= t.Len() {
		return nil
	}
	return t.Rows[i][ix]
}

// Append adds one row. It panics if the cell count does not match the schema,
// which is always a programming error in a builder.
func (t *Table) Append(vals ...any) {
	if len(vals) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: append %d values into %d columns", t.Name, len(vals), len(t.Columns)))
	}
	t.Rows = append(t.Rows, vals)
}

// Clone copies the schema and rows. Row slices are copied so the result can be
// modified independently.
func (t *Table) Clone(name string) *Table {
	out := New(name, t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Rename returns a copy whose columns are renamed according to mapping. A
// mapping entry for a column the table does not have is ignored. A rename that
// would collide with another existing column is skipped and reported.
func (t *Table) Rename(mapping map[string]string) (*Table, []string) {
	out := t.Clone(t.Name)
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c.Name] = true
	}

	var skipped []string
	for i, c := range out.Columns {
		to, ok := mapping[c.Name]
		if !ok || to == c.Name {
			continue
		}
		if present[to] {
			skipped = append(skipped, c.Name+"->"+to)
			continue
		}
		present[c.Name] = false
		present[to] = true
		out.Columns[i].Name = to
	}
	out.reindex()
	return out, skipped
}
