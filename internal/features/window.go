// Package features builds the per-entity rolling, availability, match and
// fixture features merged onto the base dataset.
package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

// reducer collapses the observed values of one window.
type reducer func(observed []float64) float64

func mean(observed []float64) float64 { return stat.Mean(observed, nil) }

func sum(observed []float64) float64 { return floats.Sum(observed) }

// trailing applies fn over a row-based window of w values ending at each
// position. With includeCurrent false the window is the w values strictly
// before the position. NaN values are not observed; a window with no
// observation yields NaN.
func trailing(vals []float64, w int, includeCurrent bool, fn reducer) []float64 {
	out := make([]float64, len(vals))
	buf := make([]float64, 0, w)
	for i := range vals {
		end := i + 1
		if !includeCurrent {
			end = i
		}
		start := max(end-w, 0)
		buf = buf[:0]
		for _, v := range vals[start:end] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(buf)
	}
	return out
}

// byEntity applies fn to each entity's slice of vals and returns the results
// aligned with the table rows. The table must already be sorted by entity
// then gameweek.
func byEntity(t *frame.Table, idCol string, vals []float64, fn func([]float64) []float64) []float64 {
	out := make([]float64, len(vals))
	for _, g := range t.Groups(idCol) {
		seg := make([]float64, len(g.Rows))
		for n, i := range g.Rows {
			seg[n] = vals[i]
		}
		res := fn(seg)
		for n, i := range g.Rows {
			out[i] = res[n]
		}
	}
	return out
}

// numericColumn coerces a column to numbers in place and returns the values.
func numericColumn(t *frame.Table, col string) []float64 {
	vals := t.Floats(col)
	t.AddFloats(col, vals)
	return vals
}
