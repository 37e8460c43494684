package frame

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Table is an ordered set of named columns over rows of Values.
// Operations that reshape a table return a new one and leave the receiver
// untouched; Set and AddColumn mutate in place.
type Table struct {
	cols []string
	idx  map[string]int
	rows [][]Value
}

// New returns an empty table with the given columns.
func New(cols ...string) *Table {
	t := &Table{idx: make(map[string]int, len(cols))}
	for _, c := range cols {
		if _, dup := t.idx[c]; dup {
			panic(fmt.Sprintf("frame: duplicate column %q", c))
		}
		t.idx[c] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.cols)
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.idx[col]
	return ok
}

// HasAll reports whether every column exists.
func (t *Table) HasAll(cols ...string) bool {
	for _, c := range cols {
		if !t.Has(c) {
			return false
		}
	}
	return true
}

// Missing returns the columns from cols that the table lacks, in order.
func (t *Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// Append adds a row. The number of values must match the column count.
func (t *Table) Append(vals ...Value) {
	if len(vals) != len(t.cols) {
		panic(fmt.Sprintf("frame: append %d values to %d columns", len(vals), len(t.cols)))
	}
	t.rows = append(t.rows, slices.Clone(vals))
}

// Get returns the cell at row i. Unknown columns read as null.
func (t *Table) Get(i int, col string) Value {
	j, ok := t.idx[col]
	if !ok {
		return Null
	}
	return t.rows[i][j]
}

// Set overwrites the cell at row i.
func (t *Table) Set(i int, col string, v Value) {
	j, ok := t.idx[col]
	if !ok {
		panic(fmt.Sprintf("frame: set unknown column %q", col))
	}
	t.rows[i][j] = v
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value {
	return slices.Clone(t.rows[i])
}

// Column returns a copy of a column. Unknown columns yield all nulls.
func (t *Table) Column(col string) []Value {
	out := make([]Value, len(t.rows))
	j, ok := t.idx[col]
	if !ok {
		return out
	}
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Floats returns a column coerced to float64, NaN where the cell is null
// or not numeric.
func (t *Table) Floats(col string) []float64 {
	out := make([]float64, len(t.rows))
	j, ok := t.idx[col]
	for i, r := range t.rows {
		if !ok {
			out[i] = math.NaN()
			continue
		}
		f, fok := r[j].Float()
		if !fok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

// AddColumn appends a column, or replaces it when it already exists.
// A nil slice adds an all-null column.
func (t *Table) AddColumn(col string, vals []Value) {
	if vals != nil && len(vals) != len(t.rows) {
		panic(fmt.Sprintf("frame: column %q has %d values for %d rows", col, len(vals), len(t.rows)))
	}
	if j, ok := t.idx[col]; ok {
		for i := range t.rows {
			v := Null
			if vals != nil {
				v = vals[i]
			}
			t.rows[i][j] = v
		}
		return
	}
	t.idx[col] = len(t.cols)
	t.cols = append(t.cols, col)
	for i := range t.rows {
		v := Null
		if vals != nil {
			v = vals[i]
		}
		t.rows[i] = append(t.rows[i], v)
	}
}

// AddFloats appends or replaces a column from float64 values; NaN is null.
func (t *Table) AddFloats(col string, vals []float64) {
	out := make([]Value, len(vals))
	for i, f := range vals {
		out[i] = Num(f)
	}
	t.AddColumn(col, out)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.cols...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		out.rows[i] = slices.Clone(r)
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := New(t.cols...)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, slices.Clone(r))
		}
	}
	return out
}

// Take returns the rows at the given indices, in that order.
func (t *Table) Take(rows []int) *Table {
	out := New(t.cols...)
	out.rows = make([][]Value, 0, len(rows))
	for _, i := range rows {
		out.rows = append(out.rows, slices.Clone(t.rows[i]))
	}
	return out
}

// Select keeps the named columns in the given order. Unknown names are skipped.
func (t *Table) Select(cols ...string) *Table {
	var keep []string
	for _, c := range cols {
		if t.Has(c) && !slices.Contains(keep, c) {
			keep = append(keep, c)
		}
	}
	out := New(keep...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		row := make([]Value, len(keep))
		for k, c := range keep {
			row[k] = r[t.idx[c]]
		}
		out.rows[i] = row
	}
	return out
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	var keep []string
	for _, c := range t.cols {
		if !slices.Contains(cols, c) {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// Rename maps old column names to new ones. A rename onto an existing
// column replaces that column.
func (t *Table) Rename(m map[string]string) *Table {
	src := t
	for from, to := range m {
		if from != to && src.Has(from) && src.Has(to) {
			src = src.Drop(to)
		}
	}
	names := make([]string, len(src.cols))
	for i, c := range src.cols {
		if to, ok := m[c]; ok {
			names[i] = to
		} else {
			names[i] = c
		}
	}
	out := New(names...)
	out.rows = src.Clone().rows
	return out
}

// SortBy returns the table stably sorted ascending by the given columns.
func (t *Table) SortBy(cols ...string) *Table {
	keys := make([]int, 0, len(cols))
	for _, c := range cols {
		if j, ok := t.idx[c]; ok {
			keys = append(keys, j)
		}
	}
	out := t.Clone()
	sort.SliceStable(out.rows, func(a, b int) bool {
		for _, j := range keys {
			if c := Compare(out.rows[a][j], out.rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

// Group is a set of row indices sharing the same key values.
type Group struct {
	Key  []Value
	Rows []int
}

// Groups partitions rows by the given columns. Groups are returned in order
// of first appearance and row indices keep table order.
func (t *Table) Groups(cols ...string) []Group {
	pos := make(map[string]int)
	var out []Group
	for i := range t.rows {
		k := t.rowKey(i, cols)
		g, ok := pos[k]
		if !ok {
			key := make([]Value, len(cols))
			for n, c := range cols {
				key[n] = t.Get(i, c)
			}
			g = len(out)
			pos[k] = g
			out = append(out, Group{Key: key})
		}
		out[g].Rows = append(out[g].Rows, i)
	}
	return out
}

func (t *Table) rowKey(i int, cols []string) string {
	var b strings.Builder
	for n, c := range cols {
		if n > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(t.Get(i, c).Key())
	}
	return b.String()
}

// Concat stacks tables row-wise. The result carries the union of columns in
// first-seen order; cells absent from a source table are null.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.cols {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := New(cols...)
	for _, t := range tables {
		for _, r := range t.rows {
			row := make([]Value, len(cols))
			for j, c := range cols {
				if k, ok := t.idx[c]; ok {
					row[j] = r[k]
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}
