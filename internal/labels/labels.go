// Package labels computes strictly-future horizon targets and the mask of
// rows whose label window lies inside the finished watermark.
package labels

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// Target maps a label name to the stat it sums.
type Target struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`
}

var defaultTargets = []Target{
	{Name: "points", Source: "event_points"},
	{Name: "expected_goals", Source: "expected_goals"},
	{Name: "expected_assists", Source: "expected_assists"},
	{Name: "defensive_contribution", Source: "defensive_contribution"},
	{Name: "goals_conceded", Source: "goals_conceded"},
	{Name: "saves", Source: "saves"},
}

// DefaultTargets returns the standard label targets.
func DefaultTargets() []Target {
	return slices.Clone(defaultTargets)
}

// DefaultHorizons returns the standard label horizons.
func DefaultHorizons() []int {
	return []int{1, 5, 10, 15}
}

// TotalName is the column of the h-gameweek sum of a target.
func TotalName(target string, h int) string {
	return fmt.Sprintf("%s_next_%d_total", target, h)
}

// PerWeekName is the column of the h-gameweek average of a target.
func PerWeekName(target string, h int) string {
	return fmt.Sprintf("%s_next_%d_per_week", target, h)
}

// Columns lists every label column for the targets and horizons in a
// stable order.
func Columns(targets []Target, horizons []int) []string {
	out := make([]string, 0, 2*len(targets)*len(horizons))
	for _, tg := range targets {
		for _, h := range horizons {
			out = append(out, TotalName(tg.Name, h), PerWeekName(tg.Name, h))
		}
	}
	return out
}

// Options configures Build.
type Options struct {
	Horizons []int
	Targets  []Target

	// RequireAll fails when a target's source column is absent; otherwise the
	// target is skipped.
	RequireAll bool

	// Watermark leaves labels undefined whose window ends after it. Zero
	// means nothing has finished; Unbounded disables the bound.
	Watermark int

	// PositionTargets restricts, per position value, which targets are
	// labeled. Positions without an entry get every target.
	PositionTargets map[string][]string

	IDColumn       string
	GWColumn       string
	PositionColumn string
}

// Unbounded is the Watermark value that labels every window.
const Unbounded = -1

// DefaultOptions labels the default targets over the default horizons with
// no watermark.
func DefaultOptions() Options {
	return Options{
		Watermark:      Unbounded,
		Horizons:       DefaultHorizons(),
		Targets:        DefaultTargets(),
		IDColumn:       "player_id",
		GWColumn:       "gw",
		PositionColumn: "position",
	}
}

// weekly is an entity's per-gameweek value. Rows sharing a gameweek are
// summed; any null among them makes the week unobserved.
type weekly struct {
	total    float64
	observed bool
}

// Build adds <target>_next_<h>_total and _per_week for every target and
// horizon. The total at gameweek g is the sum of the source over the same
// entity's gameweeks g+1 through g+h and is defined only when each of those
// gameweeks is present with a value. The result is sorted by entity then
// gameweek.
func Build(t *frame.Table, opts Options) (*frame.Table, error) {
	if missing := t.Missing(opts.IDColumn, opts.GWColumn); len(missing) > 0 {
		return nil, &schema.MissingKeyError{Component: "labels", Keys: missing}
	}
	log := slog.With("component", "labels")

	out := t.SortBy(opts.IDColumn, opts.GWColumn)
	gws := make([]int, out.Len())
	gwOK := make([]bool, out.Len())
	for i := range gws {
		gws[i], gwOK[i] = out.Get(i, opts.GWColumn).Int()
	}
	groups := out.Groups(opts.IDColumn)

	for _, tg := range opts.Targets {
		if !out.Has(tg.Source) {
			if opts.RequireAll {
				return nil, fmt.Errorf("labels: missing target source column %s", tg.Source)
			}
			log.Debug("target skipped", "target", tg.Name, "source", tg.Source)
			continue
		}
		src := out.Floats(tg.Source)
		allowed := allowedRows(out, tg.Name, opts)

		for _, h := range opts.Horizons {
			totals := make([]float64, out.Len())
			for i := range totals {
				totals[i] = math.NaN()
			}
			for _, g := range groups {
				weeks := make(map[int]weekly)
				for _, i := range g.Rows {
					if !gwOK[i] {
						continue
					}
					w, seen := weeks[gws[i]]
					if !seen {
						w.observed = true
					}
					if math.IsNaN(src[i]) {
						w.observed = false
					} else {
						w.total += src[i]
					}
					weeks[gws[i]] = w
				}
				for _, i := range g.Rows {
					if !gwOK[i] || !allowed[i] {
						continue
					}
					if opts.Watermark != Unbounded && gws[i]+h > opts.Watermark {
						continue
					}
					totals[i] = forwardSum(weeks, gws[i], h)
				}
			}
			perWeek := make([]float64, len(totals))
			for i, v := range totals {
				perWeek[i] = v / float64(h)
			}
			out.AddFloats(TotalName(tg.Name, h), totals)
			out.AddFloats(PerWeekName(tg.Name, h), perWeek)
		}
	}
	return out, nil
}

// forwardSum sums weeks g+1 through g+h, NaN if any is absent or unobserved.
func forwardSum(weeks map[int]weekly, g, h int) float64 {
	total := 0.0
	for k := 1; k <= h; k++ {
		w, ok := weeks[g+k]
		if !ok || !w.observed {
			return math.NaN()
		}
		total += w.total
	}
	return total
}

// allowedRows reports, per row, whether the target is labeled for the row's
// position.
func allowedRows(t *frame.Table, target string, opts Options) []bool {
	out := make([]bool, t.Len())
	for i := range out {
		out[i] = true
		if len(opts.PositionTargets) == 0 || !t.Has(opts.PositionColumn) {
			continue
		}
		list, ok := opts.PositionTargets[t.Get(i, opts.PositionColumn).String()]
		if ok && !slices.Contains(list, target) {
			out[i] = false
		}
	}
	return out
}

// Mask flags rows with gw <= maxFinished - max(horizons).
func Mask(t *frame.Table, maxFinished int, horizons []int, gwCol string) ([]bool, error) {
	if !t.Has(gwCol) {
		return nil, &schema.MissingKeyError{Component: "labelable mask", Keys: []string{gwCol}}
	}
	maxH := 0
	if len(horizons) > 0 {
		maxH = slices.Max(horizons)
	}
	limit := maxFinished - maxH
	mask := make([]bool, t.Len())
	for i := range mask {
		gw, ok := t.Get(i, gwCol).Int()
		mask[i] = ok && gw <= limit
	}
	return mask, nil
}

// Labelable filters t to the rows selected by Mask.
func Labelable(t *frame.Table, maxFinished int, horizons []int, gwCol string) (*frame.Table, error) {
	mask, err := Mask(t, maxFinished, horizons, gwCol)
	if err != nil {
		return nil, err
	}
	return t.Filter(func(i int) bool { return mask[i] }), nil
}
