package dataset

import (
	"fmt"
	"log/slog"

	"github.com/withObsrvr/gameweek-dataset/internal/features"
	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/gameweek"
	"github.com/withObsrvr/gameweek-dataset/internal/labels"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// Kind names an assembled frame.
type Kind string

const (
	KindTraining   Kind = "training"
	KindFeatures   Kind = "features"
	KindPrediction Kind = "prediction"
)

// Build dispatches to the builder for kind.
func Build(kind Kind, tables Tables, ix gameweek.FinishedIndex, opts Options) (*frame.Table, error) {
	switch kind {
	case KindTraining:
		return BuildTraining(tables, ix, opts)
	case KindFeatures:
		return BuildFeatures(tables, ix, opts)
	case KindPrediction:
		return BuildPrediction(tables, ix, opts)
	}
	return nil, fmt.Errorf("unknown dataset kind %q", kind)
}

// BuildTraining returns labeled rows whose every label window lies inside
// the finished watermark.
func BuildTraining(tables Tables, ix gameweek.FinishedIndex, opts Options) (*frame.Table, error) {
	base, err := BuildBase(tables, ix, BaseOptions{MinMinutes: opts.MinMinutes, Watermark: ix.MaxFinished})
	if err != nil {
		return nil, fmt.Errorf("build base: %w", err)
	}
	feats, err := enrich(base, tables, opts)
	if err != nil {
		return nil, err
	}

	labeled, err := labels.Build(feats, opts.labels(ix.MaxFinished))
	if err != nil {
		return nil, fmt.Errorf("build labels: %w", err)
	}
	out, err := labels.Labelable(labeled, ix.MaxFinished, opts.Horizons, "gw")
	if err != nil {
		return nil, err
	}
	slog.Debug("training frame built", "component", "dataset", "rows", out.Len(), "labeled_from", labeled.Len())
	return out, nil
}

// BuildFeatures returns the unlabeled frame over finished history with
// upcoming fixture difficulty attached.
func BuildFeatures(tables Tables, ix gameweek.FinishedIndex, opts Options) (*frame.Table, error) {
	base, err := BuildBase(tables, ix, BaseOptions{MinMinutes: opts.MinMinutes, Watermark: ix.MaxFinished})
	if err != nil {
		return nil, fmt.Errorf("build base: %w", err)
	}
	return withFixtures(base, tables, opts)
}

// BuildPrediction returns the feature rows of the latest finished gameweek.
// Rows are kept down to PredictMinMinutes.
func BuildPrediction(tables Tables, ix gameweek.FinishedIndex, opts Options) (*frame.Table, error) {
	base, err := BuildBase(tables, ix, BaseOptions{MinMinutes: opts.PredictMinMinutes, AllGameweeks: true})
	if err != nil {
		return nil, fmt.Errorf("build base: %w", err)
	}
	feats, err := withFixtures(base, tables, opts)
	if err != nil {
		return nil, err
	}
	return feats.Filter(func(i int) bool {
		gw, ok := feats.Get(i, "gw").Int()
		return ok && gw == ix.MaxFinished
	}), nil
}

func withFixtures(base *frame.Table, tables Tables, opts Options) (*frame.Table, error) {
	feats, err := enrich(base, tables, opts)
	if err != nil {
		return nil, err
	}
	fixtures := tables.Get(schema.Fixtures)
	if fixtures.Empty() {
		return feats, nil
	}
	diff, err := features.BuildFixtureDifficulty(fixtures, tables.Get(schema.Teams), opts.FixtureHorizons)
	if err != nil {
		return nil, fmt.Errorf("build fixture difficulty: %w", err)
	}
	if !diff.Empty() {
		feats = feats.LeftJoin(diff, []string{"team_id", "gw"})
	}
	return feats.SortBy("player_id", "gw"), nil
}

// enrich runs the backward-looking builders over the base frame in order:
// rolling, availability, substitution rates and match aggregates.
func enrich(base *frame.Table, tables Tables, opts Options) (*frame.Table, error) {
	feats, err := features.AddPlayerRolling(base, opts.rolling())
	if err != nil {
		return nil, fmt.Errorf("build rolling features: %w", err)
	}

	if name, stats, err := tables.Facts(); err == nil {
		flags, err := features.BuildAvailability(name, stats, opts.maxWindow())
		if err != nil {
			return nil, fmt.Errorf("build availability: %w", err)
		}
		feats = feats.LeftJoin(flags, []string{"player_id", "gw"})
	}

	pm := tables.Get(schema.PlayerMatchStats)
	matches := tables.Get(schema.Matches)
	if opts.SubRates {
		feats = features.AddSubstitutionRates(feats, pm, matches, opts.substitution())
	}
	if !pm.Empty() {
		aggs := features.BuildMatchAggregates(pm, matches, opts.MatchAggs)
		if !aggs.Empty() {
			feats = feats.LeftJoin(aggs, []string{"player_id", "gw"})
		}
	}
	return feats.SortBy("player_id", "gw"), nil
}
