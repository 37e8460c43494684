package features

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

var defaultRollingColumns = []string{
	"minutes",
	"event_points",
	"expected_goals",
	"expected_assists",
	"goals_scored",
	"assists",
	"defensive_contribution",
	"saves",
	"clean_sheets",
	"goals_conceded",
	"influence",
	"creativity",
	"threat",
	"ict_index",
	"bps",
	"bonus",
}

// DefaultRollingColumns returns the stats rolled by default.
func DefaultRollingColumns() []string {
	return slices.Clone(defaultRollingColumns)
}

// TrendPair names a short-minus-long rolling difference.
type TrendPair struct {
	Column string
	Short  int
	Long   int
}

var trendPairs = []TrendPair{
	{Column: "event_points", Short: 3, Long: 10},
	{Column: "expected_goals", Short: 3, Long: 10},
	{Column: "expected_assists", Short: 3, Long: 10},
}

// RollingOptions configures the player rolling builder.
type RollingOptions struct {
	Windows        []int
	Columns        []string
	Per90          bool
	IncludeCurrent bool
	IDColumn       string
	GWColumn       string
	MinutesColumn  string
}

// DefaultRollingOptions rolls the default columns over 3, 5 and 10
// gameweeks including the current row.
func DefaultRollingOptions() RollingOptions {
	return RollingOptions{
		Windows:        []int{3, 5, 10},
		Columns:        DefaultRollingColumns(),
		Per90:          true,
		IncludeCurrent: true,
		IDColumn:       "player_id",
		GWColumn:       "gw",
		MinutesColumn:  "minutes",
	}
}

// RollingName is the column holding the w-window mean of col.
func RollingName(col string, w int) string {
	return fmt.Sprintf("%s_roll%d", col, w)
}

// AddPer90 adds <col>_per90 = col / minutes * 90 for each present column.
// Per-90 is undefined when minutes is missing, zero or negative. It returns
// the number of rows with negative minutes.
func AddPer90(t *frame.Table, cols []string, minutesCol string) (*frame.Table, int) {
	out := t.Clone()
	if !out.Has(minutesCol) {
		return out, 0
	}
	mins := out.Floats(minutesCol)
	negative := 0
	for _, m := range mins {
		if m < 0 {
			negative++
		}
	}
	for _, c := range cols {
		if !out.Has(c) {
			continue
		}
		vals := numericColumn(out, c)
		per90 := make([]float64, len(vals))
		for i, v := range vals {
			if math.IsNaN(mins[i]) || mins[i] <= 0 {
				per90[i] = math.NaN()
				continue
			}
			per90[i] = v / mins[i] * 90
		}
		out.AddFloats(c+"_per90", per90)
	}
	return out, negative
}

// AddPlayerRolling adds per-90 variants, trailing means per window and
// short-minus-long trend columns. The result is sorted by entity then
// gameweek. Columns absent from the input are skipped.
func AddPlayerRolling(t *frame.Table, opts RollingOptions) (*frame.Table, error) {
	if missing := t.Missing(opts.IDColumn, opts.GWColumn); len(missing) > 0 {
		return nil, &schema.MissingKeyError{Component: "player rolling", Keys: missing}
	}
	log := slog.With("component", "features", "builder", "rolling")

	var rollCols []string
	for _, c := range opts.Columns {
		if t.Has(c) {
			rollCols = append(rollCols, c)
		}
	}

	out := t
	if opts.Per90 {
		var negative int
		out, negative = AddPer90(t, rollCols, opts.MinutesColumn)
		if negative > 0 {
			log.Warn("negative minutes treated as undefined for per-90", "rows", negative)
		}
		base := slices.Clone(rollCols)
		for _, c := range base {
			if out.Has(c + "_per90") {
				rollCols = append(rollCols, c+"_per90")
			}
		}
	} else {
		out = t.Clone()
	}
	out = out.SortBy(opts.IDColumn, opts.GWColumn)

	rolled := make(map[string][]float64)
	for _, c := range rollCols {
		vals := numericColumn(out, c)
		for _, w := range opts.Windows {
			res := byEntity(out, opts.IDColumn, vals, func(seg []float64) []float64 {
				return trailing(seg, w, opts.IncludeCurrent, mean)
			})
			name := RollingName(c, w)
			rolled[name] = res
			out.AddFloats(name, res)
		}
	}

	for _, p := range trendPairs {
		short, okS := rolled[RollingName(p.Column, p.Short)]
		long, okL := rolled[RollingName(p.Column, p.Long)]
		if !okS || !okL {
			continue
		}
		trend := make([]float64, len(short))
		for i := range short {
			trend[i] = short[i] - long[i]
		}
		out.AddFloats(fmt.Sprintf("%s_trend_%d_%d", p.Column, p.Short, p.Long), trend)
	}

	log.Debug("rolling features built", "rows", out.Len(), "columns", len(rolled))
	return out, nil
}
