package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

func TestBuildAvailability(t *testing.T) {
	stats := frame.New("id", "gw", "minutes", "starts", "status", "chance_of_playing_next_round")
	stats.Append(frame.Int(1), frame.Int(1), frame.Int(90), frame.Int(1), frame.Str("a"), frame.Null)
	stats.Append(frame.Int(1), frame.Int(2), frame.Int(0), frame.Int(0), frame.Str("i"), frame.Int(25))
	stats.Append(frame.Int(1), frame.Int(3), frame.Null, frame.Int(0), frame.Null, frame.Int(100))
	stats.Append(frame.Int(1), frame.Int(4), frame.Int(60), frame.Int(1), frame.Str("A"), frame.Int(75))

	out, err := BuildAvailability(schema.PlayerGameweekStats, stats, 3)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	assert.Equal(t, []string{"player_id", "gw", MissedLastN, AvgMinutesLastN, StartsLastN, StatusFlag, ChanceFlag}, out.Columns())

	missed := []float64{0, 1, 2, 2}
	avg := []float64{90, 45, 45, 30}
	starts := []float64{1, 1, 1, 1}
	for i := range missed {
		assert.Equal(t, missed[i], num(t, out, i, MissedLastN), "missed row %d", i)
		assert.Equal(t, avg[i], num(t, out, i, AvgMinutesLastN), "avg row %d", i)
		assert.Equal(t, starts[i], num(t, out, i, StartsLastN), "starts row %d", i)
	}

	status := []bool{false, true, true, false}
	chance := []bool{false, true, false, true}
	for i := range status {
		b, _ := out.Get(i, StatusFlag).Bool()
		assert.Equal(t, status[i], b, "status row %d", i)
		c, _ := out.Get(i, ChanceFlag).Bool()
		assert.Equal(t, chance[i], c, "chance row %d", i)
	}
}

func TestBuildAvailabilityOmitsOptionalOutputs(t *testing.T) {
	stats := frame.New("id", "gw", "minutes")
	stats.Append(frame.Int(1), frame.Int(1), frame.Int(90))

	out, err := BuildAvailability(schema.PlayerGameweekStats, stats, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"player_id", "gw", MissedLastN, AvgMinutesLastN}, out.Columns())
}

func TestBuildAvailabilityMissingKey(t *testing.T) {
	_, err := BuildAvailability(schema.PlayerGameweekStats, frame.New("id", "minutes"), 5)
	assert.ErrorIs(t, err, schema.ErrMissingKey)
}

func substitutionBase() *frame.Table {
	base := frame.New("player_id", "gw", "minutes")
	base.Append(frame.Int(1), frame.Int(1), frame.Int(90))
	base.Append(frame.Int(1), frame.Int(2), frame.Int(30))
	base.Append(frame.Int(2), frame.Int(1), frame.Int(10))
	return base
}

func TestAddSubstitutionRatesViaMatchLookup(t *testing.T) {
	pm := frame.New("player_id", "match_id", "minutes_played", "start_min", "finish_min")
	pm.Append(frame.Int(1), frame.Int(100), frame.Int(60), frame.Int(0), frame.Int(60))
	pm.Append(frame.Int(1), frame.Int(101), frame.Int(90), frame.Int(0), frame.Int(90))
	pm.Append(frame.Int(1), frame.Int(200), frame.Int(30), frame.Int(60), frame.Int(90))

	matches := frame.New("gameweek", "match_id")
	matches.Append(frame.Int(1), frame.Int(100))
	matches.Append(frame.Int(1), frame.Int(101))
	matches.Append(frame.Int(2), frame.Int(200))

	out := AddSubstitutionRates(substitutionBase(), pm, matches, DefaultSubstitutionOptions())
	require.Equal(t, 3, out.Len())

	assert.Equal(t, 0.5, num(t, out, 0, EarlySubRateLast))
	assert.Equal(t, 0.0, num(t, out, 0, SubOnRateLast))
	assert.Equal(t, 0.25, num(t, out, 1, EarlySubRateLast), "gw 2 rate 0 averaged with gw 1")
	assert.Equal(t, 0.5, num(t, out, 1, SubOnRateLast))
	assert.True(t, out.Get(2, EarlySubRateLast).IsNull(), "players without match data keep their row")
}

func TestAddSubstitutionRatesPassThrough(t *testing.T) {
	base := substitutionBase()

	tests := []struct {
		name string
		pm   *frame.Table
	}{
		{"empty", frame.New()},
		{"no match id", func() *frame.Table {
			pm := frame.New("player_id", "gw", "start_min", "finish_min")
			pm.Append(frame.Int(1), frame.Int(1), frame.Int(0), frame.Int(90))
			return pm
		}()},
		{"no minute columns", func() *frame.Table {
			pm := frame.New("player_id", "match_id", "gw", "minutes_played")
			pm.Append(frame.Int(1), frame.Int(100), frame.Int(1), frame.Int(90))
			return pm
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := AddSubstitutionRates(base, tt.pm, frame.New("gameweek", "match_id"), DefaultSubstitutionOptions())
			assert.Same(t, base, out)
		})
	}
}
