// Package pipeline runs the load, validate, build and publish lifecycle for
// one season.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/withObsrvr/gameweek-dataset/internal/checkpoint"
	"github.com/withObsrvr/gameweek-dataset/internal/config"
	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/gameweek"
	"github.com/withObsrvr/gameweek-dataset/internal/logging"
	"github.com/withObsrvr/gameweek-dataset/internal/metadata"
	"github.com/withObsrvr/gameweek-dataset/internal/metrics"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
	"github.com/withObsrvr/gameweek-dataset/internal/source"
	"github.com/withObsrvr/gameweek-dataset/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

const producerName = "gwdataset"

// Pipeline owns the connections used by a run.
type Pipeline struct {
	cfg        config.Config
	loader     *source.Loader
	store      storage.DatasetStore
	meta       metadata.Writer
	checkpoint checkpoint.Manager
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New opens the snapshot source, the output store, the catalog and the
// checkpoint directory described by cfg.
func New(ctx context.Context, cfg config.Config) (*Pipeline, error) {
	loader, err := source.Open(ctx, cfg.Source.Root)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	store, err := storage.NewBlobStore(ctx, cfg.Output.URL, cfg.Output.Prefix)
	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("open output store: %w", err)
	}

	meta, err := metadata.NewWriter(metadata.CatalogConfig(cfg.Catalog))
	if err != nil {
		loader.Close()
		store.Close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	cp, err := checkpoint.NewManager(checkpoint.Config{
		Enabled: cfg.Checkpoint.Enabled,
		Dir:     cfg.Checkpoint.Dir,
	})
	if err != nil {
		loader.Close()
		store.Close()
		meta.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		loader:     loader,
		store:      store,
		meta:       meta,
		checkpoint: cp,
		metrics:    metrics.New(""),
		log:        logging.Component("pipeline"),
	}, nil
}

// Metrics exposes the run metrics.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Close releases every connection, returning the first error.
func (p *Pipeline) Close() error {
	return errors.Join(p.loader.Close(), p.store.Close(), p.meta.Close())
}

// Snapshot is a season's loaded and validated tables plus its watermark.
type Snapshot struct {
	Season    string
	Gameweeks *source.GameweekIndex
	Tables    dataset.Tables
	Index     gameweek.FinishedIndex
}

// Load reads every snapshot table of the configured season, validates the
// schemas and computes the finished-gameweek index.
func (p *Pipeline) Load(ctx context.Context) (*Snapshot, error) {
	season := p.cfg.Source.Season

	start := time.Now()
	gws, err := p.loader.Gameweeks(ctx, source.SeasonDir(season))
	if err != nil {
		return nil, err
	}
	tables, err := p.loader.LoadTables(ctx, season, source.DefaultTables(p.cfg.Source.Strict))
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage("load", start)
	for name, t := range tables {
		p.metrics.SetTableRows(season, name, t.Len())
	}

	start = time.Now()
	if err := schema.ValidateAll(tables); err != nil {
		return nil, fmt.Errorf("validate %s: %w", season, err)
	}
	p.metrics.ObserveStage("validate", start)

	ix, err := gameweek.Compute(tables[schema.Matches])
	if err != nil {
		return nil, fmt.Errorf("finished index: %w", err)
	}
	p.metrics.SetWatermark(season, ix.MaxFinished)

	p.log.Info("season loaded",
		"season", season,
		"snapshots", gws.Count(),
		"max_finished_gw", ix.MaxFinished,
	)
	return &Snapshot{Season: season, Gameweeks: gws, Tables: dataset.Tables(tables), Index: ix}, nil
}

// FlushMetrics writes the metrics textfile when one is configured.
func (p *Pipeline) FlushMetrics() error {
	return p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath)
}
