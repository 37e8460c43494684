package features

import (
	"log/slog"
	"math"
	"slices"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/gameweek"
)

// Aggregations applied by BuildMatchAggregates.
const (
	AggSum  = "sum"
	AggMean = "mean"
)

var matchKeyColumns = []string{"player_id", "match_id", "gw", "gameweek", "start_min", "finish_min"}

// BuildMatchAggregates rolls per-match player stats up to (player_id, gw),
// emitting pm_sum_<c> and pm_mean_<c> for every numeric or boolean column
// outside the join keys. It returns an empty table when the grain cannot be
// established or nothing is aggregatable.
func BuildMatchAggregates(playerMatch, matches *frame.Table, aggs []string) *frame.Table {
	log := slog.With("component", "features", "builder", "match")
	if playerMatch == nil || playerMatch.Empty() || !playerMatch.Has("player_id") {
		return frame.New()
	}

	pm := playerMatch
	if !pm.Has("gw") {
		if matches == nil || !pm.Has("match_id") || !matches.Has("match_id") {
			log.Debug("match aggregation skipped", "reason", "gameweek not derivable")
			return frame.New()
		}
		gwCol := gameweek.Column(matches)
		if gwCol == "" {
			return frame.New()
		}
		lookup := dedupeLast(matches.Select("match_id", gwCol).Rename(map[string]string{gwCol: "gw"}), "match_id")
		pm = pm.LeftJoin(lookup, []string{"match_id"})
	}

	var cols []string
	for _, c := range pm.Columns() {
		if slices.Contains(matchKeyColumns, c) {
			continue
		}
		if isNumericColumn(pm, c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return frame.New()
	}

	header := []string{"player_id", "gw"}
	if slices.Contains(aggs, AggSum) {
		for _, c := range cols {
			header = append(header, "pm_sum_"+c)
		}
	}
	if slices.Contains(aggs, AggMean) {
		for _, c := range cols {
			header = append(header, "pm_mean_"+c)
		}
	}
	if len(header) == 2 {
		return frame.New()
	}

	values := make(map[string][]float64, len(cols))
	for _, c := range cols {
		values[c] = pm.Floats(c)
	}

	out := frame.New(header...)
	for _, g := range pm.Groups("player_id", "gw") {
		gw, ok := g.Key[1].Int()
		if !ok {
			continue
		}
		row := []frame.Value{g.Key[0], frame.Int(gw)}
		sums := make([]frame.Value, 0, len(cols))
		means := make([]frame.Value, 0, len(cols))
		for _, c := range cols {
			var observed []float64
			for _, i := range g.Rows {
				if v := values[c][i]; !math.IsNaN(v) {
					observed = append(observed, v)
				}
			}
			if len(observed) == 0 {
				sums = append(sums, frame.Null)
				means = append(means, frame.Null)
				continue
			}
			sums = append(sums, frame.Num(sum(observed)))
			means = append(means, frame.Num(mean(observed)))
		}
		if slices.Contains(aggs, AggSum) {
			row = append(row, sums...)
		}
		if slices.Contains(aggs, AggMean) {
			row = append(row, means...)
		}
		out.Append(row...)
	}

	out = out.SortBy("player_id", "gw")
	log.Debug("match aggregates built", "rows", out.Len(), "columns", len(cols))
	return out
}

// isNumericColumn reports whether every non-null cell is a number or a
// boolean and at least one cell is set.
func isNumericColumn(t *frame.Table, col string) bool {
	seen := false
	for _, v := range t.Column(col) {
		switch v.Kind() {
		case frame.KindNull:
			continue
		case frame.KindNumber, frame.KindBool:
			seen = true
		default:
			return false
		}
	}
	return seen
}
