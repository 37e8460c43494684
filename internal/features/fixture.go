package features

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// DefaultFixtureHorizons are the look-ahead spans of the fixture builder.
func DefaultFixtureHorizons() []int {
	return []int{1, 5, 10, 15}
}

// teamFixture is one side of a scheduled fixture.
type teamFixture struct {
	gw          int
	home        float64
	oppElo      float64
	oppStrength float64
	eloDelta    float64
}

// fixtureSnapshot is one snapshot's view of a fixture. snap is the snapshot
// gameweek, 0 when the table carries no snapshot tag.
type fixtureSnapshot struct {
	snap             int
	gw               int
	home, away       frame.Value
	homeElo, awayElo float64
}

// teamRating is a team's strength and Elo in one snapshot.
type teamRating struct {
	snap     int
	strength float64
	elo      float64
}

// ratings holds each team's snapshots ordered by snapshot gameweek.
type ratings map[string][]teamRating

func newRatings(teams *frame.Table) ratings {
	r := make(ratings)
	if teams == nil || !teams.Has("id") {
		return r
	}
	t := teams
	if t.Has("gw") {
		t = t.SortBy("gw")
	}
	for i := 0; i < t.Len(); i++ {
		id := t.Get(i, "id")
		if id.IsNull() {
			continue
		}
		snap := 0
		if t.Has("gw") {
			var ok bool
			if snap, ok = t.Get(i, "gw").Int(); !ok {
				continue
			}
		}
		strength, _ := floatOrNaN(t.Get(i, "strength"))
		elo, _ := floatOrNaN(t.Get(i, "elo"))
		k := id.Key()
		r[k] = append(r[k], teamRating{snap: snap, strength: strength, elo: elo})
	}
	return r
}

// asOf returns the team's latest rating at or before gameweek current.
func (r ratings) asOf(team frame.Value, current int) teamRating {
	unknown := teamRating{strength: math.NaN(), elo: math.NaN()}
	if team.IsNull() {
		return unknown
	}
	list := r[team.Key()]
	i := sort.Search(len(list), func(i int) bool { return list[i].snap > current })
	if i == 0 {
		return unknown
	}
	return list[i-1]
}

// FixtureColumns returns the columns produced for horizon h.
func FixtureColumns(h int) []string {
	return []string{
		fmt.Sprintf("fixture_count_next_%d", h),
		fmt.Sprintf("home_share_next_%d", h),
		fmt.Sprintf("opp_elo_avg_next_%d", h),
		fmt.Sprintf("opp_strength_avg_next_%d", h),
		fmt.Sprintf("elo_delta_avg_next_%d", h),
	}
}

// BuildFixtureDifficulty projects the upcoming schedule of every team. For
// each team and each gameweek current between the first and last scheduled
// one it summarises fixtures with current < gw <= current+h.
//
// Everything is resolved as of current. A fixture is read from its latest
// snapshot tagged gw <= current; a fixture first listed in a later snapshot
// keeps its schedule from that snapshot but takes no Elo from it. teams
// supplies strength and the fallback for missing Elo, matched on id and
// taken from the latest team snapshot at or before current.
func BuildFixtureDifficulty(fixtures, teams *frame.Table, horizons []int) (*frame.Table, error) {
	if fixtures == nil || fixtures.Empty() {
		return frame.New(), nil
	}

	gwCol := "gameweek"
	if !fixtures.Has(gwCol) {
		gwCol = "gw"
	}
	if missing := fixtures.Missing(gwCol, "home_team", "away_team", "home_team_elo", "away_team_elo"); len(missing) > 0 {
		return nil, &schema.MissingKeyError{Component: "fixture difficulty", Keys: missing}
	}
	tagged := gwCol != "gw" && fixtures.Has("gw")

	fx := fixtures
	if fx.Has("gw") {
		fx = fx.SortBy("gw")
	}

	// Snapshots per match in snapshot order; without match_id every row is
	// its own fixture.
	var order []string
	byMatch := make(map[string][]fixtureSnapshot)
	minGW, maxGW := math.MaxInt, math.MinInt
	for i := 0; i < fx.Len(); i++ {
		gw, ok := fx.Get(i, gwCol).Int()
		if !ok {
			continue
		}
		snap := 0
		if tagged {
			if snap, ok = fx.Get(i, "gw").Int(); !ok {
				continue
			}
		}
		minGW, maxGW = min(minGW, gw), max(maxGW, gw)

		key := fmt.Sprintf("row:%d", i)
		if fx.Has("match_id") && !fx.Get(i, "match_id").IsNull() {
			key = fx.Get(i, "match_id").Key()
		}
		if _, seen := byMatch[key]; !seen {
			order = append(order, key)
		}
		homeElo, _ := floatOrNaN(fx.Get(i, "home_team_elo"))
		awayElo, _ := floatOrNaN(fx.Get(i, "away_team_elo"))
		byMatch[key] = append(byMatch[key], fixtureSnapshot{
			snap:    snap,
			gw:      gw,
			home:    fx.Get(i, "home_team"),
			away:    fx.Get(i, "away_team"),
			homeElo: homeElo,
			awayElo: awayElo,
		})
	}

	header := []string{"team_id", "gw"}
	for _, h := range horizons {
		header = append(header, FixtureColumns(h)...)
	}
	out := frame.New(header...)
	if len(order) == 0 {
		return out, nil
	}

	ids := make(map[string]frame.Value)
	for _, key := range order {
		for _, f := range byMatch[key] {
			for _, team := range []frame.Value{f.home, f.away} {
				if !team.IsNull() {
					ids[team.Key()] = team
				}
			}
		}
	}
	teamIDs := make([]frame.Value, 0, len(ids))
	for _, v := range ids {
		teamIDs = append(teamIDs, v)
	}
	slices.SortFunc(teamIDs, frame.Compare)

	rt := newRatings(teams)
	rowsByGW := make(map[int]map[string][]teamFixture, maxGW-minGW+1)
	for current := minGW; current <= maxGW; current++ {
		rowsByGW[current] = scheduleAsOf(byMatch, order, rt, current)
	}

	for _, team := range teamIDs {
		for current := minGW; current <= maxGW; current++ {
			rows := rowsByGW[current][team.Key()]
			row := []frame.Value{team, frame.Int(current)}
			for _, h := range horizons {
				var home, oppElo, oppStrength, delta []float64
				for _, f := range rows {
					if f.gw <= current || f.gw > current+h {
						continue
					}
					home = append(home, f.home)
					oppElo = appendObserved(oppElo, f.oppElo)
					oppStrength = appendObserved(oppStrength, f.oppStrength)
					delta = appendObserved(delta, f.eloDelta)
				}
				row = append(row,
					frame.Int(len(home)),
					meanOrNull(home),
					meanOrNull(oppElo),
					meanOrNull(oppStrength),
					meanOrNull(delta),
				)
			}
			out.Append(row...)
		}
	}

	slog.Debug("fixture difficulty built", "component", "features", "teams", len(teamIDs), "from_gw", minGW, "to_gw", maxGW)
	return out, nil
}

// scheduleAsOf lists every team's fixtures as known at gameweek current.
func scheduleAsOf(byMatch map[string][]fixtureSnapshot, order []string, rt ratings, current int) map[string][]teamFixture {
	out := make(map[string][]teamFixture)
	for _, key := range order {
		snaps := byMatch[key]
		i := sort.Search(len(snaps), func(i int) bool { return snaps[i].snap > current })
		f := snaps[0]
		if i > 0 {
			f = snaps[i-1]
		} else {
			f.homeElo, f.awayElo = math.NaN(), math.NaN()
		}

		sides := []struct {
			team, opp       frame.Value
			isHome          float64
			teamElo, oppElo float64
		}{
			{f.home, f.away, 1, f.homeElo, f.awayElo},
			{f.away, f.home, 0, f.awayElo, f.homeElo},
		}
		for _, s := range sides {
			if s.team.IsNull() {
				continue
			}
			own, opp := rt.asOf(s.team, current), rt.asOf(s.opp, current)
			teamElo, oppElo := s.teamElo, s.oppElo
			if math.IsNaN(teamElo) {
				teamElo = own.elo
			}
			if math.IsNaN(oppElo) {
				oppElo = opp.elo
			}
			k := s.team.Key()
			out[k] = append(out[k], teamFixture{
				gw:          f.gw,
				home:        s.isHome,
				oppElo:      oppElo,
				oppStrength: opp.strength,
				eloDelta:    teamElo - oppElo,
			})
		}
	}
	return out
}

func floatOrNaN(v frame.Value) (float64, bool) {
	f, ok := v.Float()
	if !ok {
		return math.NaN(), false
	}
	return f, true
}

func appendObserved(dst []float64, v float64) []float64 {
	if math.IsNaN(v) {
		return dst
	}
	return append(dst, v)
}

func meanOrNull(vals []float64) frame.Value {
	if len(vals) == 0 {
		return frame.Null
	}
	return frame.Num(mean(vals))
}
