package frame

import (
	"slices"
	"sort"
)

// LeftJoin keeps every row of t and appends the non-key columns of right for
// rows whose key columns match. A left row matching several right rows is
// repeated once per match; a row with no match gets nulls. When a non-key
// column exists on both sides the left column wins, except for columns named
// in coalesce, whose null left cells are filled from the right.
func (t *Table) LeftJoin(right *Table, on []string, coalesce ...string) *Table {
	index := make(map[string][]int)
	for i := range right.rows {
		if right.keyHasNull(i, on) {
			continue
		}
		k := right.rowKey(i, on)
		index[k] = append(index[k], i)
	}
	return t.join(right, on, coalesce, func(i int) []int {
		if t.keyHasNull(i, on) {
			return nil
		}
		return index[t.rowKey(i, on)]
	}, nil)
}

// AsOfJoin attaches, for each left row, the latest right row with the same
// key whose ordering column is at or before the left row's value. The
// ordering column is taken from the left side. If right has no ordering
// column, the last right row per key is used.
func (t *Table) AsOfJoin(right *Table, on []string, by string, coalesce ...string) *Table {
	type entry struct {
		at  float64
		row int
	}
	_, ordered := right.idx[by]
	index := make(map[string][]entry)
	for i := range right.rows {
		if right.keyHasNull(i, on) {
			continue
		}
		e := entry{row: i}
		if ordered {
			at, ok := right.Get(i, by).Float()
			if !ok {
				continue
			}
			e.at = at
		}
		k := right.rowKey(i, on)
		index[k] = append(index[k], e)
	}
	for k, es := range index {
		sort.SliceStable(es, func(a, b int) bool { return es[a].at < es[b].at })
		index[k] = es
	}
	return t.join(right, on, coalesce, func(i int) []int {
		if t.keyHasNull(i, on) {
			return nil
		}
		es := index[t.rowKey(i, on)]
		if len(es) == 0 {
			return nil
		}
		if !ordered {
			return []int{es[len(es)-1].row}
		}
		at, ok := t.Get(i, by).Float()
		if !ok {
			return nil
		}
		n := sort.Search(len(es), func(j int) bool { return es[j].at > at })
		if n == 0 {
			return nil
		}
		return []int{es[n-1].row}
	}, []string{by})
}

func (t *Table) join(right *Table, on, coalesce []string, match func(i int) []int, skip []string) *Table {
	var extra []string
	for _, c := range right.cols {
		if slices.Contains(on, c) || slices.Contains(skip, c) || t.Has(c) {
			continue
		}
		extra = append(extra, c)
	}
	var fill []string
	for _, c := range coalesce {
		if t.Has(c) && right.Has(c) && !slices.Contains(on, c) {
			fill = append(fill, c)
		}
	}

	out := New(append(slices.Clone(t.cols), extra...)...)
	for i, r := range t.rows {
		matches := match(i)
		if len(matches) == 0 {
			row := make([]Value, len(out.cols))
			copy(row, r)
			out.rows = append(out.rows, row)
			continue
		}
		for _, m := range matches {
			row := make([]Value, len(out.cols))
			copy(row, r)
			for n, c := range extra {
				row[len(t.cols)+n] = right.Get(m, c)
			}
			for _, c := range fill {
				j := t.idx[c]
				if row[j].IsNull() {
					row[j] = right.Get(m, c)
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

func (t *Table) keyHasNull(i int, on []string) bool {
	for _, c := range on {
		if t.Get(i, c).IsNull() {
			return true
		}
	}
	return false
}
