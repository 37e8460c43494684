package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

func fixtureRow(fx *frame.Table, snapshot, gw, home, away int, homeElo, awayElo frame.Value, matchID int) {
	fx.Append(frame.Int(snapshot), frame.Int(gw), frame.Int(home), frame.Int(away), homeElo, awayElo, frame.Int(matchID))
}

func TestBuildFixtureDifficulty(t *testing.T) {
	fx := frame.New("gw", "gameweek", "home_team", "away_team", "home_team_elo", "away_team_elo", "match_id")
	fixtureRow(fx, 1, 2, 1, 2, frame.Int(1800), frame.Int(1600), 10)
	fixtureRow(fx, 1, 3, 2, 1, frame.Int(1650), frame.Int(1750), 11)
	fixtureRow(fx, 2, 3, 2, 1, frame.Int(1600), frame.Null, 11)
	fixtureRow(fx, 1, 1, 1, 2, frame.Int(1800), frame.Int(1600), 9)

	teams := frame.New("id", "strength", "elo")
	teams.Append(frame.Int(1), frame.Int(4), frame.Int(1700))
	teams.Append(frame.Int(2), frame.Int(3), frame.Int(1500))

	out, err := BuildFixtureDifficulty(fx, teams, []int{1, 2})
	require.NoError(t, err)

	require.Equal(t, 6, out.Len(), "two teams over gameweeks 1..3")
	assert.Equal(t, "1", out.Get(0, "team_id").String())
	assert.Equal(t, "1", out.Get(0, "gw").String())

	// team 1 at gw 1: next fixture is home to team 2 in gw 2.
	assert.Equal(t, 1.0, num(t, out, 0, "fixture_count_next_1"))
	assert.Equal(t, 1.0, num(t, out, 0, "home_share_next_1"))
	assert.Equal(t, 1600.0, num(t, out, 0, "opp_elo_avg_next_1"))
	assert.Equal(t, 3.0, num(t, out, 0, "opp_strength_avg_next_1"))
	assert.Equal(t, 200.0, num(t, out, 0, "elo_delta_avg_next_1"))

	// team 1 at gw 1 over two gameweeks: the gw 3 away fixture is read from
	// snapshot 1, the latest one known at gw 1.
	assert.Equal(t, 2.0, num(t, out, 0, "fixture_count_next_2"))
	assert.Equal(t, 0.5, num(t, out, 0, "home_share_next_2"))
	assert.Equal(t, 1625.0, num(t, out, 0, "opp_elo_avg_next_2"))
	assert.Equal(t, 150.0, num(t, out, 0, "elo_delta_avg_next_2"))

	// team 1 at gw 2: snapshot 2 lacks its own Elo, which falls back to the
	// team table.
	assert.Equal(t, 1600.0, num(t, out, 1, "opp_elo_avg_next_1"))
	assert.Equal(t, 100.0, num(t, out, 1, "elo_delta_avg_next_1"))

	// team 1 at gw 3: nothing scheduled afterwards.
	assert.Equal(t, 0.0, num(t, out, 2, "fixture_count_next_2"))
	for _, c := range FixtureColumns(2)[1:] {
		assert.True(t, out.Get(2, c).IsNull(), c)
	}
}

func TestBuildFixtureDifficultyResolvesRatingsAsOfGameweek(t *testing.T) {
	fx := frame.New("gw", "gameweek", "home_team", "away_team", "home_team_elo", "away_team_elo", "match_id")
	teams := frame.New("gw", "id", "strength", "elo")
	for gw := 1; gw <= 4; gw++ {
		fixtureRow(fx, gw, gw, 1, 2, frame.Int(1700+gw), frame.Int(1500), 100+gw)
		teams.Append(frame.Int(gw), frame.Int(1), frame.Int(gw), frame.Int(1600+gw))
		teams.Append(frame.Int(gw), frame.Int(2), frame.Int(3), frame.Int(1500))
	}
	// Snapshot 2 already lists the gw 3 fixture with its own ratings.
	fixtureRow(fx, 2, 3, 1, 2, frame.Int(1650), frame.Int(1550), 103)

	out, err := BuildFixtureDifficulty(fx, teams, []int{1})
	require.NoError(t, err)
	require.Equal(t, 8, out.Len())

	// Team 2 rows follow team 1's four rows.
	team2 := func(current int) int { return 3 + current }
	require.Equal(t, "2", out.Get(team2(1), "team_id").String())

	for current := 1; current <= 3; current++ {
		assert.Equal(t, float64(current), num(t, out, team2(current), "opp_strength_avg_next_1"),
			"strength as of gw %d", current)
	}

	// gw 2 fixture is first listed in snapshot 2, so at gw 1 Elo comes from
	// the team table as of gw 1.
	assert.Equal(t, 1601.0, num(t, out, team2(1), "opp_elo_avg_next_1"))
	assert.Equal(t, -101.0, num(t, out, team2(1), "elo_delta_avg_next_1"))

	// At gw 2 the gw 3 fixture is read from snapshot 2, not snapshot 3.
	assert.Equal(t, 1650.0, num(t, out, team2(2), "opp_elo_avg_next_1"))
	assert.Equal(t, -100.0, num(t, out, team2(2), "elo_delta_avg_next_1"))
}

func TestBuildFixtureDifficultyEmptyAndMissing(t *testing.T) {
	out, err := BuildFixtureDifficulty(frame.New(), nil, DefaultFixtureHorizons())
	require.NoError(t, err)
	assert.True(t, out.Empty())

	fx := frame.New("gameweek", "home_team")
	fx.Append(frame.Int(1), frame.Int(1))
	_, err = BuildFixtureDifficulty(fx, nil, DefaultFixtureHorizons())
	assert.ErrorIs(t, err, schema.ErrMissingKey)
}
