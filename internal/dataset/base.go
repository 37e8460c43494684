package dataset

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/gameweek"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// nameColumns are filled from the player dimension when the stats row lacks them.
var nameColumns = []string{"first_name", "second_name", "web_name"}

// teamDimension renames the team table's columns for the player join.
var teamDimension = map[string]string{
	"code":     "team_code",
	"id":       "team_id",
	"name":     "team_name",
	"strength": "team_strength",
	"elo":      "team_elo",
}

// BaseOptions controls base row selection.
type BaseOptions struct {
	MinMinutes int
	// Watermark drops stats rows after it; zero drops every row.
	Watermark int
	// AllGameweeks ignores Watermark and keeps unfinished gameweeks, which
	// the prediction path needs.
	AllGameweeks bool
}

// BuildBase joins the per-gameweek stats with the player and team dimensions
// as of each row's gameweek, plus team match context for finished gameweeks.
// Rows below MinMinutes are dropped. id is renamed to player_id.
func BuildBase(tables Tables, ix gameweek.FinishedIndex, opts BaseOptions) (*frame.Table, error) {
	factName, facts, err := tables.Facts()
	if err != nil {
		return nil, err
	}
	if !facts.Has("gw") {
		return nil, &schema.MissingKeyError{Component: "base dataset", Keys: []string{"gw"}}
	}

	base, err := coerceGameweek(facts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", factName, err)
	}
	base = base.Filter(func(i int) bool {
		if !opts.AllGameweeks {
			if gw, _ := base.Get(i, "gw").Int(); gw > opts.Watermark {
				return false
			}
		}
		m, ok := base.Get(i, "minutes").Float()
		return ok && m >= float64(opts.MinMinutes)
	})
	base = base.Rename(map[string]string{"id": "player_id"})

	players := tables.Get(schema.Players)
	if !players.Empty() {
		base = base.AsOfJoin(players, []string{"player_id"}, "gw", nameColumns...)
	}

	teams := tables.Get(schema.Teams)
	if !teams.Empty() {
		dim := teams.Rename(teamDimension).Select("team_code", "gw", "team_id", "team_name", "team_strength", "team_elo")
		base = base.AsOfJoin(dim, []string{"team_code"}, "gw")
	}

	ctx := buildTeamContext(tables.Get(schema.Matches), teams, ix.MaxFinished)
	if !ctx.Empty() {
		base = base.LeftJoin(ctx, []string{"gw", "team_id"})
	}

	slog.Debug("base dataset built", "component", "dataset", "source", factName, "rows", base.Len(), "columns", base.Width())
	return base, nil
}

// coerceGameweek rewrites gw as integers, failing on non-integral values.
func coerceGameweek(t *frame.Table) (*frame.Table, error) {
	out := t.Clone()
	vals := make([]frame.Value, out.Len())
	for i := range vals {
		gw, ok := out.Get(i, "gw").Int()
		if !ok {
			return nil, fmt.Errorf("row %d: non-integer gw %q", i, out.Get(i, "gw").String())
		}
		vals[i] = frame.Int(gw)
	}
	out.AddColumn("gw", vals)
	return out, nil
}

// buildTeamContext summarises each team's matches per finished gameweek:
// fixture_count, home_share, mean own and opponent Elo, and mean own and
// opponent strength as of that gameweek.
func buildTeamContext(matches, teams *frame.Table, maxFinished int) *frame.Table {
	if matches.Empty() {
		return frame.New()
	}
	gwCol := gameweek.Column(matches)
	if gwCol == "" || !matches.HasAll("home_team", "away_team", "home_team_elo", "away_team_elo", "match_id") {
		slog.Debug("team context skipped", "component", "dataset", "reason", "match columns missing")
		return frame.New()
	}

	long := frame.New("gw", "team_id", "opp_id", "is_home", "team_elo", "opp_elo", "match_id")
	for i := 0; i < matches.Len(); i++ {
		gw, ok := matches.Get(i, gwCol).Int()
		if !ok || gw > maxFinished {
			continue
		}
		home, away := matches.Get(i, "home_team"), matches.Get(i, "away_team")
		homeElo, awayElo := matches.Get(i, "home_team_elo"), matches.Get(i, "away_team_elo")
		id := matches.Get(i, "match_id")
		long.Append(frame.Int(gw), home, away, frame.Int(1), homeElo, awayElo, id)
		long.Append(frame.Int(gw), away, home, frame.Int(0), awayElo, homeElo, id)
	}
	if long.Empty() {
		return frame.New()
	}

	if teams.HasAll("id", "strength") {
		own := teams.Rename(map[string]string{"id": "team_id", "strength": "team_strength"}).Select("team_id", "gw", "team_strength")
		opp := teams.Rename(map[string]string{"id": "opp_id", "strength": "opp_strength"}).Select("opp_id", "gw", "opp_strength")
		long = long.AsOfJoin(own, []string{"team_id"}, "gw").AsOfJoin(opp, []string{"opp_id"}, "gw")
	} else {
		long.AddColumn("team_strength", nil)
		long.AddColumn("opp_strength", nil)
	}

	long = long.SortBy("gw", "team_id")
	out := frame.New("gw", "team_id", "fixture_count", "home_share", "team_elo_avg", "opp_elo_avg", "team_strength_avg", "opp_strength_avg")
	for _, g := range long.Groups("gw", "team_id") {
		if g.Key[1].IsNull() {
			continue
		}
		count := 0
		for _, i := range g.Rows {
			if !long.Get(i, "match_id").IsNull() {
				count++
			}
		}
		out.Append(g.Key[0], g.Key[1],
			frame.Int(count),
			groupMean(long, g.Rows, "is_home"),
			groupMean(long, g.Rows, "team_elo"),
			groupMean(long, g.Rows, "opp_elo"),
			groupMean(long, g.Rows, "team_strength"),
			groupMean(long, g.Rows, "opp_strength"),
		)
	}
	return out
}

// groupMean averages the numeric cells of col over rows; null if none.
func groupMean(t *frame.Table, rows []int, col string) frame.Value {
	var observed []float64
	for _, i := range rows {
		if f, ok := t.Get(i, col).Float(); ok && !math.IsNaN(f) {
			observed = append(observed, f)
		}
	}
	if len(observed) == 0 {
		return frame.Null
	}
	return frame.Num(stat.Mean(observed, nil))
}
