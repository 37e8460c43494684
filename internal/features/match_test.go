package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

func TestBuildMatchAggregates(t *testing.T) {
	pm := frame.New("player_id", "match_id", "gw", "start_min", "finish_min", "minutes_played", "touches", "was_fouled", "team_name")
	pm.Append(frame.Int(1), frame.Int(100), frame.Int(1), frame.Int(0), frame.Int(90), frame.Int(90), frame.Int(40), frame.Bool(true), frame.Str("ARS"))
	pm.Append(frame.Int(1), frame.Int(101), frame.Int(1), frame.Int(0), frame.Int(60), frame.Int(60), frame.Null, frame.Bool(false), frame.Str("ARS"))
	pm.Append(frame.Int(1), frame.Int(200), frame.Int(2), frame.Int(0), frame.Int(90), frame.Int(90), frame.Null, frame.Bool(true), frame.Str("ARS"))

	out := BuildMatchAggregates(pm, nil, []string{AggSum, AggMean})
	assert.Equal(t, []string{
		"player_id", "gw",
		"pm_sum_minutes_played", "pm_sum_touches", "pm_sum_was_fouled",
		"pm_mean_minutes_played", "pm_mean_touches", "pm_mean_was_fouled",
	}, out.Columns())
	require.Equal(t, 2, out.Len())

	assert.Equal(t, 150.0, num(t, out, 0, "pm_sum_minutes_played"))
	assert.Equal(t, 75.0, num(t, out, 0, "pm_mean_minutes_played"))
	assert.Equal(t, 40.0, num(t, out, 0, "pm_sum_touches"), "nulls are skipped")
	assert.Equal(t, 40.0, num(t, out, 0, "pm_mean_touches"))
	assert.Equal(t, 0.5, num(t, out, 0, "pm_mean_was_fouled"))

	assert.True(t, out.Get(1, "pm_sum_touches").IsNull(), "all-null groups stay undefined")
	assert.True(t, out.Get(1, "pm_mean_touches").IsNull())
}

func TestBuildMatchAggregatesGameweekFromMatches(t *testing.T) {
	pm := frame.New("player_id", "match_id", "minutes_played")
	pm.Append(frame.Int(1), frame.Int(100), frame.Int(90))
	pm.Append(frame.Int(1), frame.Int(999), frame.Int(90))

	matches := frame.New("gameweek", "match_id")
	matches.Append(frame.Int(3), frame.Int(100))

	out := BuildMatchAggregates(pm, matches, []string{AggSum})
	require.Equal(t, 1, out.Len(), "unresolvable matches are dropped")
	assert.Equal(t, "3", out.Get(0, "gw").String())
	assert.False(t, out.Has("pm_mean_minutes_played"))
}

func TestBuildMatchAggregatesNoGrain(t *testing.T) {
	pm := frame.New("player_id", "minutes_played")
	pm.Append(frame.Int(1), frame.Int(90))

	out := BuildMatchAggregates(pm, nil, []string{AggSum, AggMean})
	assert.True(t, out.Empty())
	assert.Equal(t, 0, out.Width())

	out = BuildMatchAggregates(frame.New(), nil, []string{AggSum})
	assert.True(t, out.Empty())
}
