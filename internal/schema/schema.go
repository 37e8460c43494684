// Package schema declares the column contract of every snapshot table and
// validates loaded tables against it.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

// Table names produced by the loader.
const (
	Teams               = "teams"
	Players             = "players"
	Matches             = "matches"
	Fixtures            = "fixtures"
	PlayerGameweekStats = "player_gameweek_stats"
	PlayerStats         = "playerstats"
	PlayerMatchStats    = "playermatchstats"
)

var matchColumns = []string{
	"gameweek",
	"home_team",
	"away_team",
	"home_team_elo",
	"away_team_elo",
	"finished",
	"match_id",
}

var statColumns = []string{
	"id",
	"gw",
	"minutes",
	"event_points",
	"expected_goals",
	"expected_assists",
	"defensive_contribution",
}

var required = map[string][]string{
	Teams:               {"code", "id", "name", "strength", "elo"},
	Players:             {"player_id", "web_name", "team_code", "position"},
	Matches:             matchColumns,
	Fixtures:            matchColumns,
	PlayerGameweekStats: statColumns,
	PlayerStats:         statColumns,
	PlayerMatchStats:    {"player_id", "match_id", "minutes_played"},
}

// optionalTables may be absent from every snapshot. An optional table that
// was never found (no rows, no header) passes validation.
var optionalTables = map[string]bool{
	PlayerStats:      true,
	PlayerMatchStats: true,
}

var (
	// ErrMissingTable is returned when a required table is absent from the load output.
	ErrMissingTable = errors.New("missing table")

	// ErrUnknownTable is returned when asking for the contract of an undeclared table.
	ErrUnknownTable = errors.New("unknown table")

	// ErrMissingKey is the sentinel wrapped by MissingKeyError.
	ErrMissingKey = errors.New("missing key")
)

// SchemaError lists every required column a table lacks.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns in %s: %s", e.Table, strings.Join(e.Missing, ", "))
}

// MissingKeyError reports that a component could not establish its join key.
type MissingKeyError struct {
	Component string
	Keys      []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: missing key columns: %s", e.Component, strings.Join(e.Keys, ", "))
}

// Is lets errors.Is match ErrMissingKey.
func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingKey
}

// Tables returns the names of every declared table, sorted.
func Tables() []string {
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredColumns returns the required columns for a table.
func RequiredColumns(table string) ([]string, error) {
	cols, ok := required[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return slices.Clone(cols), nil
}

// IsOptionalTable reports whether a table may be absent from every snapshot.
func IsOptionalTable(table string) bool {
	return optionalTables[table]
}

// Validate checks a single table and returns a *SchemaError naming every
// missing column.
func Validate(table string, t *frame.Table) error {
	cols, err := RequiredColumns(table)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: %s", ErrMissingTable, table)
	}
	if optionalTables[table] && t.Width() == 0 {
		return nil
	}
	if missing := t.Missing(cols...); len(missing) > 0 {
		return &SchemaError{Table: table, Missing: missing}
	}
	return nil
}

// ValidateAll checks every declared table and joins all failures.
func ValidateAll(tables map[string]*frame.Table) error {
	var errs []error
	for _, name := range Tables() {
		t, ok := tables[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingTable, name))
			continue
		}
		if err := Validate(name, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
