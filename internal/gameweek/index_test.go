package gameweek

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

func TestComputeMixedFinishedRows(t *testing.T) {
	m := frame.New("gameweek", "finished")
	m.Append(frame.Int(1), frame.Str("True"))
	m.Append(frame.Int(1), frame.Int(1))
	m.Append(frame.Int(2), frame.Bool(true))
	m.Append(frame.Int(2), frame.Str("false"))
	m.Append(frame.Int(3), frame.Str("yes"))
	m.Append(frame.Int(3), frame.Str(" T "))
	m.Append(frame.Int(5), frame.Null)
	m.Append(frame.Int(6), frame.Bool(true))

	ix, err := Compute(m)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 6}, ix.Finished)
	assert.Equal(t, 6, ix.MaxFinished)
	assert.True(t, ix.Contains(3))
	assert.False(t, ix.Contains(2))
	assert.False(t, ix.Contains(4), "a gameweek with no matches is never finished")
}

func TestComputePrefersGwColumn(t *testing.T) {
	m := frame.New("gw", "gameweek", "finished")
	m.Append(frame.Int(4), frame.Int(1), frame.Bool(true))

	ix, err := Compute(m)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, ix.Finished)
}

func TestComputeEmptyIsNotAnError(t *testing.T) {
	ix, err := Compute(frame.New("gw", "finished"))
	require.NoError(t, err)
	assert.True(t, ix.IsEmpty())
	assert.Equal(t, 0, ix.MaxFinished)
}

func TestComputeMissingColumns(t *testing.T) {
	tests := []struct {
		name string
		cols []string
	}{
		{"no gameweek", []string{"finished"}},
		{"no finished", []string{"gw"}},
		{"neither", []string{"match_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(frame.New(tt.cols...))
			assert.ErrorIs(t, err, schema.ErrMissingKey)
		})
	}
}

func TestComputeRejectsNonIntegerGameweek(t *testing.T) {
	m := frame.New("gw", "finished")
	m.Append(frame.Str("GW1"), frame.Bool(true))
	_, err := Compute(m)
	assert.Error(t, err)
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		v    frame.Value
		want bool
	}{
		{frame.Bool(true), true},
		{frame.Bool(false), false},
		{frame.Int(1), true},
		{frame.Int(0), false},
		{frame.Str("TRUE"), true},
		{frame.Str("Yes"), true},
		{frame.Str("no"), false},
		{frame.Str("0"), false},
		{frame.Null, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTruthy(tt.v), tt.v.String())
	}
}
