package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

func pointsOnly(horizons ...int) Options {
	opts := DefaultOptions()
	opts.Horizons = horizons
	opts.Targets = []Target{{Name: "points", Source: "event_points"}}
	return opts
}

func series(id int, gws []int, pts []frame.Value) *frame.Table {
	t := frame.New("player_id", "gw", "position", "event_points")
	for i, gw := range gws {
		t.Append(frame.Int(id), frame.Int(gw), frame.Str("MID"), pts[i])
	}
	return t
}

func ints(vals ...int) []frame.Value {
	out := make([]frame.Value, len(vals))
	for i, v := range vals {
		out[i] = frame.Int(v)
	}
	return out
}

func TestBuildForwardWindow(t *testing.T) {
	tbl := series(1, []int{1, 2, 3, 4, 5}, ints(2, 4, 6, 8, 10))

	out, err := Build(tbl, pointsOnly(2))
	require.NoError(t, err)

	total, ok := out.Get(0, TotalName("points", 2)).Float()
	require.True(t, ok)
	assert.Equal(t, 10.0, total)

	perWeek, _ := out.Get(0, PerWeekName("points", 2)).Float()
	assert.Equal(t, 5.0, perWeek)

	assert.True(t, out.Get(3, TotalName("points", 2)).IsNull(), "only one future gameweek at gw 4")
	assert.True(t, out.Get(4, TotalName("points", 2)).IsNull())
	assert.True(t, out.Get(3, PerWeekName("points", 2)).IsNull())
}

func TestBuildGapAndNullLeaveUndefined(t *testing.T) {
	pts := ints(1, 1, 1, 1)
	pts[3] = frame.Null
	tbl := series(1, []int{1, 2, 4, 5}, pts)

	out, err := Build(tbl, pointsOnly(1))
	require.NoError(t, err)

	v, ok := out.Get(0, TotalName("points", 1)).Float()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.True(t, out.Get(1, TotalName("points", 1)).IsNull(), "gw 3 is absent")
	assert.True(t, out.Get(2, TotalName("points", 1)).IsNull(), "gw 5 value is null")
}

func TestBuildSeparatesEntitiesAndSorts(t *testing.T) {
	tbl := frame.Concat(
		series(2, []int{1, 2}, ints(7, 9)),
		series(1, []int{2, 1}, ints(3, 5)),
	)

	out, err := Build(tbl, pointsOnly(1))
	require.NoError(t, err)

	assert.Equal(t, "1", out.Get(0, "player_id").String())
	assert.Equal(t, "1", out.Get(0, "gw").String())
	v, _ := out.Get(0, TotalName("points", 1)).Float()
	assert.Equal(t, 3.0, v)
	v, _ = out.Get(2, TotalName("points", 1)).Float()
	assert.Equal(t, 9.0, v)
	assert.True(t, out.Get(3, TotalName("points", 1)).IsNull())
}

func TestBuildWatermark(t *testing.T) {
	tbl := series(1, []int{1, 2, 3, 4}, ints(1, 1, 1, 1))
	opts := pointsOnly(2)
	opts.Watermark = 3

	out, err := Build(tbl, opts)
	require.NoError(t, err)
	assert.False(t, out.Get(0, TotalName("points", 2)).IsNull())
	assert.True(t, out.Get(1, TotalName("points", 2)).IsNull(), "window 3..4 crosses the watermark")
}

func TestBuildZeroWatermarkLabelsNothing(t *testing.T) {
	tbl := series(1, []int{1, 2, 3}, ints(1, 1, 1))
	opts := pointsOnly(1)
	opts.Watermark = 0

	out, err := Build(tbl, opts)
	require.NoError(t, err)
	for i := 0; i < out.Len(); i++ {
		assert.True(t, out.Get(i, TotalName("points", 1)).IsNull(), "row %d", i)
	}

	opts.Watermark = Unbounded
	out, err = Build(tbl, opts)
	require.NoError(t, err)
	assert.False(t, out.Get(1, TotalName("points", 1)).IsNull())
}

func TestBuildMissingSource(t *testing.T) {
	tbl := series(1, []int{1}, ints(1))
	opts := pointsOnly(1)
	opts.Targets = append(opts.Targets, Target{Name: "saves", Source: "saves"})

	out, err := Build(tbl, opts)
	require.NoError(t, err)
	assert.False(t, out.Has(TotalName("saves", 1)))

	opts.RequireAll = true
	_, err = Build(tbl, opts)
	assert.Error(t, err)

	_, err = Build(frame.New("gw"), opts)
	assert.ErrorIs(t, err, schema.ErrMissingKey)
}

func TestBuildPositionTargets(t *testing.T) {
	tbl := frame.New("player_id", "gw", "position", "event_points", "saves")
	tbl.Append(frame.Int(1), frame.Int(1), frame.Str("GK"), frame.Int(2), frame.Int(3))
	tbl.Append(frame.Int(1), frame.Int(2), frame.Str("GK"), frame.Int(6), frame.Int(4))
	tbl.Append(frame.Int(2), frame.Int(1), frame.Str("FWD"), frame.Int(5), frame.Int(0))
	tbl.Append(frame.Int(2), frame.Int(2), frame.Str("FWD"), frame.Int(9), frame.Int(0))

	opts := DefaultOptions()
	opts.Horizons = []int{1}
	opts.Targets = []Target{{Name: "points", Source: "event_points"}, {Name: "saves", Source: "saves"}}
	opts.PositionTargets = map[string][]string{"FWD": {"points"}}

	out, err := Build(tbl, opts)
	require.NoError(t, err)

	saves, ok := out.Get(0, TotalName("saves", 1)).Float()
	require.True(t, ok)
	assert.Equal(t, 4.0, saves)
	assert.True(t, out.Get(2, TotalName("saves", 1)).IsNull(), "forwards are not labeled for saves")
	pts, _ := out.Get(2, TotalName("points", 1)).Float()
	assert.Equal(t, 9.0, pts)
}

func TestMask(t *testing.T) {
	tbl := frame.New("gw")
	for gw := 1; gw <= 10; gw++ {
		tbl.Append(frame.Int(gw))
	}

	mask, err := Mask(tbl, 10, []int{1, 5}, "gw")
	require.NoError(t, err)
	assert.True(t, mask[5], "gw 6 <= 10-5")
	assert.False(t, mask[6], "gw 7 > 10-5")

	out, err := Labelable(tbl, 10, []int{1, 5}, "gw")
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())

	_, err = Mask(frame.New("x"), 10, []int{1}, "gw")
	assert.ErrorIs(t, err, schema.ErrMissingKey)
}

func TestColumns(t *testing.T) {
	cols := Columns([]Target{{Name: "points"}}, []int{1, 5})
	assert.Equal(t, []string{
		"points_next_1_total", "points_next_1_per_week",
		"points_next_5_total", "points_next_5_per_week",
	}, cols)
}
