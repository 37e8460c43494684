package features

import (
	"log/slog"
	"math"
	"strings"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/gameweek"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// Availability output columns.
const (
	MissedLastN      = "missed_last_n"
	AvgMinutesLastN  = "avg_minutes_last_n"
	StartsLastN      = "starts_last_n"
	StatusFlag       = "status_flag"
	ChanceFlag       = "chance_flag"
	EarlySubRateLast = "early_sub_rate_last_n"
	SubOnRateLast    = "sub_on_rate_last_n"
)

// BuildAvailability computes per (player_id, gw) trailing availability from
// the full stats table, DNP rows included. table names the source stats
// table so its optional columns can be detected.
func BuildAvailability(table string, stats *frame.Table, window int) (*frame.Table, error) {
	t := stats
	if t.Has("id") && !t.Has("player_id") {
		t = t.Rename(map[string]string{"id": "player_id"})
	}
	if missing := t.Missing("player_id", "gw", "minutes"); len(missing) > 0 {
		return nil, &schema.MissingKeyError{Component: "availability", Keys: missing}
	}
	caps := schema.Detect(table, t)

	t = t.SortBy("player_id", "gw")
	out := frame.New("player_id", "gw")
	for i := 0; i < t.Len(); i++ {
		gw := t.Get(i, "gw")
		if n, ok := gw.Int(); ok {
			gw = frame.Int(n)
		}
		out.Append(t.Get(i, "player_id"), gw)
	}

	minutes := t.Floats("minutes")
	dnp := make([]float64, len(minutes))
	for i, m := range minutes {
		if math.IsNaN(m) || m <= 0 {
			dnp[i] = 1
		}
	}
	out.AddFloats(MissedLastN, byEntity(t, "player_id", dnp, func(seg []float64) []float64 {
		return trailing(seg, window, true, sum)
	}))
	out.AddFloats(AvgMinutesLastN, byEntity(t, "player_id", minutes, func(seg []float64) []float64 {
		return trailing(seg, window, true, mean)
	}))

	if caps.Has("starts") {
		out.AddFloats(StartsLastN, byEntity(t, "player_id", t.Floats("starts"), func(seg []float64) []float64 {
			return trailing(seg, window, true, sum)
		}))
	}
	if caps.Has("status") {
		flags := make([]frame.Value, t.Len())
		for i := range flags {
			flags[i] = frame.Bool(strings.ToLower(t.Get(i, "status").String()) != "a")
		}
		out.AddColumn(StatusFlag, flags)
	}
	if caps.Has("chance_of_playing_next_round") {
		chance := t.Floats("chance_of_playing_next_round")
		flags := make([]frame.Value, t.Len())
		for i, c := range chance {
			if math.IsNaN(c) {
				c = 100
			}
			flags[i] = frame.Bool(c < 100)
		}
		out.AddColumn(ChanceFlag, flags)
	}

	slog.Debug("availability built", "component", "features", "rows", out.Len(), "window", window)
	return out, nil
}

// SubstitutionOptions configures the substitution-rate builder.
type SubstitutionOptions struct {
	Window         int
	EarlySubMinute int
	SubOnMinute    int
}

// DefaultSubstitutionOptions flags exits before minute 70 as early and
// entries after minute 1 as substitute appearances.
func DefaultSubstitutionOptions() SubstitutionOptions {
	return SubstitutionOptions{
		Window:         5,
		EarlySubMinute: 70,
		SubOnMinute:    1,
	}
}

// AddSubstitutionRates merges trailing early-substitution and sub-on rates
// onto base by (player_id, gw). Gameweeks come from the per-match table's own
// gw column or, failing that, from matches by match_id. Any missing input
// returns base unchanged.
func AddSubstitutionRates(base, playerMatch, matches *frame.Table, opts SubstitutionOptions) *frame.Table {
	log := slog.With("component", "features", "builder", "substitution")
	skip := func(reason string) *frame.Table {
		log.Debug("substitution rates skipped", "reason", reason)
		return base
	}

	if playerMatch == nil || playerMatch.Empty() {
		return skip("no per-match stats")
	}
	if !base.HasAll("player_id", "gw") {
		return skip("base lacks player_id or gw")
	}
	if !playerMatch.HasAll("player_id", "match_id") {
		return skip("per-match stats lack player_id or match_id")
	}
	caps := schema.Detect(schema.PlayerMatchStats, playerMatch)
	if !caps.Has("start_min") || !caps.Has("finish_min") {
		return skip("per-match stats lack start_min or finish_min")
	}

	pm, ok := withMatchGameweek(playerMatch, matches, caps.Has("gw"))
	if !ok {
		return skip("gameweek not derivable")
	}

	start := pm.Floats("start_min")
	finish := pm.Floats("finish_min")
	played := pm.Floats("minutes_played")
	early := make([]float64, pm.Len())
	subOn := make([]float64, pm.Len())
	subOnMin := float64(opts.SubOnMinute)
	earlyMin := float64(opts.EarlySubMinute)
	for i := range early {
		if start[i] <= subOnMin && finish[i] < earlyMin && played[i] > 0 {
			early[i] = 1
		}
		if start[i] > subOnMin {
			subOn[i] = 1
		}
	}

	rates := frame.New("player_id", "gw", "_early", "_sub_on")
	for _, g := range pm.Groups("player_id", "gw") {
		var e, s []float64
		for _, i := range g.Rows {
			e = append(e, early[i])
			s = append(s, subOn[i])
		}
		rates.Append(g.Key[0], g.Key[1], frame.Num(mean(e)), frame.Num(mean(s)))
	}
	rates = rates.SortBy("player_id", "gw")

	for _, r := range []struct{ src, dst string }{
		{"_early", EarlySubRateLast},
		{"_sub_on", SubOnRateLast},
	} {
		rates.AddFloats(r.dst, byEntity(rates, "player_id", rates.Floats(r.src), func(seg []float64) []float64 {
			return trailing(seg, opts.Window, true, mean)
		}))
	}
	rates = rates.Select("player_id", "gw", EarlySubRateLast, SubOnRateLast)

	out := base.LeftJoin(rates, []string{"player_id", "gw"})
	log.Debug("substitution rates merged", "gameweeks", rates.Len())
	return out
}

// withMatchGameweek returns the per-match table with an integer gw column,
// dropping rows whose gameweek cannot be resolved.
func withMatchGameweek(pm, matches *frame.Table, hasGW bool) (*frame.Table, bool) {
	if !hasGW {
		if matches == nil || !matches.Has("match_id") {
			return nil, false
		}
		gwCol := gameweek.Column(matches)
		if gwCol == "" {
			return nil, false
		}
		lookup := matches.Select("match_id", gwCol).Rename(map[string]string{gwCol: "gw"})
		lookup = dedupeLast(lookup, "match_id")
		pm = pm.LeftJoin(lookup, []string{"match_id"})
	}

	gws := make([]frame.Value, pm.Len())
	keep := make([]bool, pm.Len())
	for i := range gws {
		if n, ok := pm.Get(i, "gw").Int(); ok {
			gws[i] = frame.Int(n)
			keep[i] = true
		}
	}
	pm = pm.Clone()
	pm.AddColumn("gw", gws)
	return pm.Filter(func(i int) bool { return keep[i] }), true
}

// dedupeLast keeps the last row per key, in order of first appearance.
func dedupeLast(t *frame.Table, key ...string) *frame.Table {
	var rows []int
	for _, g := range t.Groups(key...) {
		rows = append(rows, g.Rows[len(g.Rows)-1])
	}
	return t.Take(rows)
}
