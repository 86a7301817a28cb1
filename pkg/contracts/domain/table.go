package domain

import (
	"fmt"
	"strings"
)

// Column is a named, immutable sequence of cells. Columns are shared between
// tables; any change produces a new Column.
type Column struct {
	name   string
	values []Value
}

// Name returns the column name
func (c *Column) Name() string { return c.name }

// Len returns the number of cells
func (c *Column) Len() int { return len(c.values) }

// At returns the cell at row i
func (c *Column) At(i int) Value { return c.values[i] }

// Values returns a copy of the cells
func (c *Column) Values() []Value {
	out := make([]Value, len(c.values))
	copy(out, c.values)
	return out
}

// NullCount returns the number of null cells
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

// Kind returns the kind shared by all non-null cells, KindNull for an
// all-null column, and ok=false when the column mixes kinds.
func (c *Column) Kind() (kind Kind, ok bool) {
	kind = KindNull
	for _, v := range c.values {
		if v.IsNull() {
			continue
		}
		if kind == KindNull {
			kind = v.Kind()
			continue
		}
		if v.Kind() != kind {
			return kind, false
		}
	}
	return kind, true
}

// Table is an ordered set of uniquely named columns with a shared row count.
// A Table is never modified after construction; every transform returns a
// new Table that shares unchanged columns with its input.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable builds a table from column names and their cells. The cell
// slices are copied.
func NewTable(names []string, columns [][]Value) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("table has %d names but %d columns", len(names), len(columns))
	}
	cols := make([]*Column, len(names))
	for i, name := range names {
		values := make([]Value, len(columns[i]))
		copy(values, columns[i])
		cols[i] = &Column{name: name, values: values}
	}
	return fromColumns(cols)
}

// MustTable is NewTable for fixtures; it panics on error.
func MustTable(names []string, columns [][]Value) *Table {
	t, err := NewTable(names, columns)
	if err != nil {
		panic(err)
	}
	return t
}

func fromColumns(cols []*Column) (*Table, error) {
	t := &Table{columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.name)
		}
		t.index[c.name] = i
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.name, c.Len(), t.rows)
		}
	}
	return t, nil
}

// NumRows returns the row count
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns the column names in order
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Has reports whether a column exists
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// ColumnAt returns the column at position i
func (t *Table) ColumnAt(i int) *Column { return t.columns[i] }

// Cell returns the cell at row i of the named column
func (t *Table) Cell(row int, name string) (Value, bool) {
	c, ok := t.Column(name)
	if !ok || row < 0 || row >= t.rows {
		return Null(), false
	}
	return c.At(row), true
}

// NullCount returns the number of nulls in the named column, or -1 if the
// column does not exist
func (t *Table) NullCount(name string) int {
	c, ok := t.Column(name)
	if !ok {
		return -1
	}
	return c.NullCount()
}

// TotalNulls returns the number of nulls across all columns
func (t *Table) TotalNulls() int {
	n := 0
	for _, c := range t.columns {
		n += c.NullCount()
	}
	return n
}

// Select returns a table holding the named columns, in the order given.
// Columns are shared with t.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c)
	}
	out, err := fromColumns(cols)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out, nil
}

// WithColumn returns a table where the named column holds values. All other
// columns are shared with t.
func (t *Table) WithColumn(name string, values []Value) (*Table, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if len(values) != t.rows {
		return nil, fmt.Errorf("column %q: got %d values, expected %d", name, len(values), t.rows)
	}
	cp := make([]Value, len(values))
	copy(cp, values)
	cols := make([]*Column, len(t.columns))
	copy(cols, t.columns)
	cols[i] = &Column{name: name, values: cp}
	return fromColumns(cols)
}

// Rename returns a table with columns renamed according to names; columns
// absent from the map keep their name. Cells are shared with t.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		if to, ok := names[c.name]; ok && to != c.name {
			cols[i] = &Column{name: to, values: c.values}
			continue
		}
		cols[i] = c
	}
	return fromColumns(cols)
}

// FilterRows returns a table with the rows for which keep returns true
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	if len(rows) == t.rows {
		return t
	}
	cols := make([]*Column, len(t.columns))
	for j, c := range t.columns {
		values := make([]Value, len(rows))
		for k, r := range rows {
			values[k] = c.values[r]
		}
		cols[j] = &Column{name: c.name, values: values}
	}
	out := &Table{columns: cols, index: t.index, rows: len(rows)}
	return out
}

// Header returns the column names, for writers
func (t *Table) Header() []string { return t.Columns() }

// Records renders every row as text, for writers
func (t *Table) Records() [][]string {
	records := make([][]string, t.rows)
	for i := 0; i < t.rows; i++ {
		record := make([]string, len(t.columns))
		for j, c := range t.columns {
			record[j] = c.values[i].String()
		}
		records[i] = record
	}
	return records
}

// Equal reports whether two tables have the same column names and cells
func (t *Table) Equal(o *Table) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for j, c := range t.columns {
		oc := o.columns[j]
		if c.name != oc.name {
			return false
		}
		for i := range c.values {
			if !c.values[i].Equal(oc.values[i]) {
				return false
			}
		}
	}
	return true
}

// String summarises the table shape for logs
func (t *Table) String() string {
	names := t.Columns()
	if len(names) > 8 {
		names = append(names[:8], "...")
	}
	return fmt.Sprintf("Table(%d rows x %d cols: %s)", t.rows, len(t.columns), strings.Join(names, ", "))
}
