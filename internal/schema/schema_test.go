package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

func fullTables() map[string]*frame.Table {
	out := make(map[string]*frame.Table)
	for _, name := range Tables() {
		cols, _ := RequiredColumns(name)
		out[name] = frame.New(cols...)
	}
	return out
}

func TestValidateListsEveryMissingColumn(t *testing.T) {
	tbl := frame.New("code", "name")
	err := Validate(Teams, tbl)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Teams, se.Table)
	assert.Equal(t, []string{"id", "strength", "elo"}, se.Missing)
	assert.Contains(t, err.Error(), "id, strength, elo")
}

func TestValidateAllPasses(t *testing.T) {
	assert.NoError(t, ValidateAll(fullTables()))
}

func TestValidateAllJoinsFailures(t *testing.T) {
	tables := fullTables()
	tables[Teams] = frame.New("code")
	tables[Players] = frame.New("player_id")
	delete(tables, Matches)

	err := ValidateAll(tables)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTable))

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "teams")
	assert.Contains(t, err.Error(), "players")
}

func TestOptionalTableWithoutHeaderPasses(t *testing.T) {
	tables := fullTables()
	tables[PlayerMatchStats] = frame.New()
	tables[PlayerStats] = frame.New()
	assert.NoError(t, ValidateAll(tables))

	tables[Teams] = frame.New()
	assert.Error(t, ValidateAll(tables), "required tables still need their columns")
}

func TestRequiredColumnsUnknownTable(t *testing.T) {
	_, err := RequiredColumns("transfers")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMissingKeyErrorIs(t *testing.T) {
	var err error = &MissingKeyError{Component: "rolling", Keys: []string{"gw"}}
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.Equal(t, "rolling: missing key columns: gw", err.Error())
}

func TestDetectCapabilities(t *testing.T) {
	tbl := frame.New("id", "gw", "minutes", "status")
	caps := Detect(PlayerGameweekStats, tbl)

	assert.True(t, caps.Has("status"))
	assert.False(t, caps.Has("starts"))
	assert.False(t, caps.Has("chance_of_playing_next_round"))
	assert.Panics(t, func() { caps.Has("minutes") })
}
