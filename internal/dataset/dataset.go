// Package dataset assembles the base player-gameweek frame and runs the
// feature and label builders over it to produce training, feature and
// prediction frames.
//
// Every frame is derived from the snapshot tables and the finished-gameweek
// index alone. Rows, joins and builders only consume data at or before each
// row's gameweek, except labels (strictly future, bounded by the watermark)
// and fixture difficulty (schedule metadata only).
package dataset

import (
	"errors"
	"slices"

	"github.com/withObsrvr/gameweek-dataset/internal/features"
	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/labels"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// ErrNoFacts is returned when neither per-gameweek stats table has rows.
var ErrNoFacts = errors.New("player_gameweek_stats and playerstats are both empty")

// Tables holds the loaded snapshot tables by name.
type Tables map[string]*frame.Table

// Get returns the named table, or an empty table when it was not loaded.
func (t Tables) Get(name string) *frame.Table {
	if tbl, ok := t[name]; ok && tbl != nil {
		return tbl
	}
	return frame.New()
}

// Facts returns the per-gameweek stats table with rows and its name,
// preferring player_gameweek_stats over playerstats.
func (t Tables) Facts() (string, *frame.Table, error) {
	for _, name := range []string{schema.PlayerGameweekStats, schema.PlayerStats} {
		if tbl := t.Get(name); !tbl.Empty() {
			return name, tbl, nil
		}
	}
	return "", nil, ErrNoFacts
}

// Options configures the assembler.
type Options struct {
	// Windows are the trailing rolling windows. The largest also sizes the
	// availability and substitution windows.
	Windows        []int
	RollingColumns []string

	Horizons        []int
	Targets         []labels.Target
	PositionTargets map[string][]string

	// MinMinutes filters training and feature rows; PredictMinMinutes
	// filters prediction rows.
	MinMinutes        int
	PredictMinMinutes int

	SubRates       bool
	EarlySubMinute int
	SubOnMinute    int

	FixtureHorizons []int
	MatchAggs       []string
}

// DefaultOptions mirrors the standard dataset settings.
func DefaultOptions() Options {
	sub := features.DefaultSubstitutionOptions()
	return Options{
		Windows:           []int{3, 5, 10},
		RollingColumns:    features.DefaultRollingColumns(),
		Horizons:          labels.DefaultHorizons(),
		Targets:           labels.DefaultTargets(),
		MinMinutes:        1,
		PredictMinMinutes: 0,
		SubRates:          true,
		EarlySubMinute:    sub.EarlySubMinute,
		SubOnMinute:       sub.SubOnMinute,
		FixtureHorizons:   features.DefaultFixtureHorizons(),
		MatchAggs:         []string{features.AggSum, features.AggMean},
	}
}

func (o Options) maxWindow() int {
	if len(o.Windows) == 0 {
		return 1
	}
	return slices.Max(o.Windows)
}

func (o Options) rolling() features.RollingOptions {
	r := features.DefaultRollingOptions()
	r.Windows = o.Windows
	if o.RollingColumns != nil {
		r.Columns = o.RollingColumns
	}
	return r
}

func (o Options) substitution() features.SubstitutionOptions {
	return features.SubstitutionOptions{
		Window:         o.maxWindow(),
		EarlySubMinute: o.EarlySubMinute,
		SubOnMinute:    o.SubOnMinute,
	}
}

func (o Options) labels(watermark int) labels.Options {
	l := labels.DefaultOptions()
	l.Horizons = o.Horizons
	l.Targets = o.Targets
	l.PositionTargets = o.PositionTargets
	l.Watermark = watermark
	return l
}
