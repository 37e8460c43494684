package schema

import (
	"fmt"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

// OptionalColumn documents a column that builders use when present and the
// behavior when it is not.
type OptionalColumn struct {
	Name     string
	Fallback string
}

var optionalColumns = map[string][]OptionalColumn{
	PlayerGameweekStats: statOptional,
	PlayerStats:         statOptional,
	PlayerMatchStats: {
		{Name: "gw", Fallback: "gameweek resolved through matches.match_id"},
		{Name: "start_min", Fallback: "substitution rates omitted"},
		{Name: "finish_min", Fallback: "substitution rates omitted"},
	},
	Matches: {
		{Name: "gw", Fallback: "gameweek column used"},
	},
	Fixtures: {
		{Name: "gw", Fallback: "scheduled gameweek column used"},
	},
}

var statOptional = []OptionalColumn{
	{Name: "starts", Fallback: "starts_last_n omitted"},
	{Name: "status", Fallback: "status_flag omitted"},
	{Name: "chance_of_playing_next_round", Fallback: "chance_flag omitted"},
}

// OptionalColumns returns the known-optional columns of a table.
func OptionalColumns(table string) []OptionalColumn {
	return append([]OptionalColumn(nil), optionalColumns[table]...)
}

// Capabilities records which known-optional columns a loaded table carries.
type Capabilities struct {
	table   string
	present map[string]bool
}

// Detect inspects a table for its known-optional columns.
func Detect(table string, t *frame.Table) Capabilities {
	c := Capabilities{table: table, present: make(map[string]bool)}
	for _, col := range optionalColumns[table] {
		c.present[col.Name] = t != nil && t.Has(col.Name)
	}
	return c
}

// Has reports whether an optional column is present. Asking about a column
// that is not declared optional for the table panics.
func (c Capabilities) Has(col string) bool {
	ok, declared := c.present[col]
	if !declared {
		panic(fmt.Sprintf("schema: %q is not a declared optional column of %s", col, c.table))
	}
	return ok
}
