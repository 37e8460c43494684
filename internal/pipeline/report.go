package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// IndexReport summarizes the snapshot tree and the finished gameweeks.
type IndexReport struct {
	Season        string         `json:"season"`
	Snapshots     []int          `json:"snapshots"`
	Gaps          []int          `json:"gaps,omitempty"`
	FinishedGWs   []int          `json:"finished_gws"`
	PendingGWs    []int          `json:"pending_gws,omitempty"`
	MaxFinishedGW int            `json:"max_finished_gw"`
	TableRows     map[string]int `json:"table_rows"`
	// Published lists the dataset keys already in the output store.
	Published []string `json:"published,omitempty"`
	// Fallbacks names each missing optional column and what the builders
	// do without it. Only Validate fills it.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Index loads the season and reports its snapshots, watermark and the
// datasets published so far.
func (p *Pipeline) Index(ctx context.Context) (*IndexReport, error) {
	snap, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	r := newIndexReport(snap)
	if r.Published, err = p.published(ctx, snap.Season); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate loads the season, checks every table schema and confirms a
// player facts table is present. A nil error means the season can be built.
func (p *Pipeline) Validate(ctx context.Context) (*IndexReport, error) {
	snap, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := snap.Tables.Facts(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", snap.Season, err)
	}
	r := newIndexReport(snap)
	r.Fallbacks = fallbacks(snap)
	return r, nil
}

func (p *Pipeline) published(ctx context.Context, season string) ([]string, error) {
	keys, err := p.store.List(ctx, p.store.Prefix()+season+"/")
	if err != nil {
		p.metrics.IncStorageErrors("list")
		return nil, fmt.Errorf("list published datasets: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

func newIndexReport(snap *Snapshot) *IndexReport {
	r := &IndexReport{
		Season:        snap.Season,
		Gaps:          snap.Gameweeks.Gaps(),
		FinishedGWs:   slices.Clone(snap.Index.Finished),
		MaxFinishedGW: snap.Index.MaxFinished,
		TableRows:     make(map[string]int, len(snap.Tables)),
	}
	for _, d := range snap.Gameweeks.Dirs() {
		r.Snapshots = append(r.Snapshots, d.Gameweek)
		if !snap.Index.Contains(d.Gameweek) {
			r.PendingGWs = append(r.PendingGWs, d.Gameweek)
		}
	}
	for name, t := range snap.Tables {
		r.TableRows[name] = t.Len()
	}
	return r
}

// fallbacks lists "table.column: fallback" for every optional column absent
// from a loaded table. Tables without columns are not reported.
func fallbacks(snap *Snapshot) []string {
	var out []string
	for name, t := range snap.Tables {
		if t == nil || t.Width() == 0 {
			continue
		}
		for _, col := range schema.OptionalColumns(name) {
			if !t.Has(col.Name) {
				out = append(out, fmt.Sprintf("%s.%s: %s", name, col.Name, col.Fallback))
			}
		}
	}
	slices.Sort(out)
	return out
}
