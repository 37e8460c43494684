package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/withObsrvr/gameweek-dataset/internal/checkpoint"
	"github.com/withObsrvr/gameweek-dataset/internal/config"
	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/labels"
	"github.com/withObsrvr/gameweek-dataset/internal/logging"
	"github.com/withObsrvr/gameweek-dataset/internal/metadata"
	"github.com/withObsrvr/gameweek-dataset/internal/storage"
	"github.com/withObsrvr/gameweek-dataset/internal/tables"
)

// RunOptions control a single build.
type RunOptions struct {
	// Force rebuilds a training dataset whose watermark is already
	// checkpointed.
	Force bool
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Kind      dataset.Kind
	Watermark int
	Skipped   bool
	Rows      int
	Columns   int
	Publish   *storage.PublishResult
}

// Run builds one dataset kind and publishes it with its manifest.
//
// The order of operations is:
//  1. Load, validate and index the season
//  2. Skip when a checkpoint or catalog run already covers the watermark
//     and configuration and the data file is still published (training only)
//  3. Build, encode and check the dataset
//  4. Publish data and manifest (temp -> finalize)
//  5. Record lineage in the catalog
//  6. Update the checkpoint
func (p *Pipeline) Run(ctx context.Context, kind dataset.Kind, opts RunOptions) (res *Result, err error) {
	runID := logging.NewRunID()
	season := p.cfg.Source.Season
	log := logging.RunLogger(runID, season, string(kind))
	started := time.Now()

	defer func() {
		outcome := "success"
		switch {
		case err != nil:
			outcome = "error"
		case res != nil && res.Skipped:
			outcome = "skipped"
		}
		p.metrics.IncRun(string(kind), outcome)
		p.metrics.ObserveStage("run", started)
	}()

	snap, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	watermark := snap.Index.MaxFinished
	res = &Result{RunID: runID, Kind: kind, Watermark: watermark}

	format, err := tables.ParseFormat(p.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	cfgHash, err := config.Hash(&p.cfg)
	if err != nil {
		return nil, err
	}
	ref := storage.DatasetRef{Season: season, Kind: string(kind), Watermark: watermark, Ext: format.Ext()}

	if kind == dataset.KindTraining && !opts.Force {
		done, err := p.upToDate(ctx, ref, cfgHash, log)
		if err != nil {
			return nil, err
		}
		if done {
			log.Info("dataset up to date, skipping", "max_finished_gw", watermark)
			res.Skipped = true
			return res, nil
		}
	}

	dsOpts := p.cfg.DatasetOptions()
	start := time.Now()
	out, err := dataset.Build(kind, snap.Tables, snap.Index, dsOpts)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", kind, err)
	}
	p.metrics.ObserveStage("build", start)
	res.Rows, res.Columns = out.Len(), out.Width()

	start = time.Now()
	enc, err := tables.Encode(out, tables.ExportConfig{Format: format, Compression: p.cfg.Output.Compression})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	p.metrics.ObserveStage("encode", start)

	var labelCols []string
	if kind == dataset.KindTraining {
		labelCols = labels.Columns(dsOpts.Targets, dsOpts.Horizons)
	}
	check := CheckDataset(kind, out, enc, watermark, labelCols)
	for _, w := range check.Warnings {
		log.Warn("dataset check", "warning", w)
	}
	if err := check.Err(); err != nil {
		return nil, err
	}

	manifest := &storage.Manifest{
		Dataset: storage.DatasetInfo{
			Season:        season,
			Kind:          string(kind),
			MaxFinishedGW: watermark,
			FinishedGWs:   snap.Index.Finished,
			SchemaVersion: tables.SchemaVersion,
		},
		File: storage.FileInfo{
			File:         "dataset." + format.Ext(),
			Format:       string(format),
			Checksum:     enc.Checksum,
			RowCount:     int64(enc.Rows),
			ByteSize:     int64(len(enc.Data)),
			Columns:      enc.Columns,
			LabelColumns: labelCols,
		},
		Run: storage.RunInfo{RunID: runID, ConfigHash: cfgHash},
		Producer: storage.ProducerInfo{
			Name:    producerName,
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}

	start = time.Now()
	pub, err := storage.Publish(ctx, p.store, ref, enc.Data, manifest)
	if err != nil {
		p.metrics.IncStorageErrors("publish")
		return nil, fmt.Errorf("publish %s: %w", kind, err)
	}
	p.metrics.ObserveStage("publish", start)
	p.metrics.SetDataset(season, string(kind), enc.Rows, len(enc.Columns), pub.ByteSize)
	res.Publish = pub

	if err := p.meta.RecordRun(ctx, metadata.RunRecord{
		RunID:           runID,
		Season:          season,
		Kind:            string(kind),
		Watermark:       watermark,
		Rows:            int64(enc.Rows),
		Columns:         len(enc.Columns),
		ByteSize:        pub.ByteSize,
		Checksum:        enc.Checksum,
		URI:             pub.URI,
		ConfigHash:      cfgHash,
		ProducerVersion: fmt.Sprintf("%s@%s", producerName, Version),
		CreatedAt:       manifest.CreatedAt,
	}); err != nil {
		// Lineage failures never fail a published run.
		p.metrics.IncMetadataErrors("record_run")
		log.Warn("failed to record lineage", "error", err)
	}

	if err := p.checkpoint.Save(ctx, &checkpoint.Checkpoint{
		Season:     season,
		Kind:       string(kind),
		Watermark:  watermark,
		RunID:      runID,
		ConfigHash: cfgHash,
		Checksum:   enc.Checksum,
		URI:        pub.URI,
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	log.Info("dataset published",
		"uri", pub.URI,
		"rows", enc.Rows,
		"columns", len(enc.Columns),
		"bytes", pub.ByteSize,
		"max_finished_gw", watermark,
		"duration", time.Since(started).String(),
	)
	return res, nil
}

// upToDate reports whether ref was already published with the configuration
// hashed as cfgHash. The checkpoint is consulted first and the catalog
// second. Either way the data file must still be in the store.
func (p *Pipeline) upToDate(ctx context.Context, ref storage.DatasetRef, cfgHash string, log *slog.Logger) (bool, error) {
	done, err := checkpoint.UpToDate(ctx, p.checkpoint, ref.Season, ref.Kind, ref.Watermark, cfgHash)
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !done {
		rec, err := p.meta.LatestRun(ctx, ref.Season, ref.Kind)
		if err != nil {
			p.metrics.IncMetadataErrors("latest_run")
			log.Warn("failed to query catalog", "error", err)
		}
		done = rec != nil && rec.Watermark == ref.Watermark && rec.ConfigHash == cfgHash
	}
	if !done {
		return false, nil
	}

	exists, err := p.store.Exists(ctx, ref)
	if err != nil {
		p.metrics.IncStorageErrors("exists")
		return false, fmt.Errorf("check published dataset: %w", err)
	}
	if !exists {
		log.Warn("recorded dataset missing from store, rebuilding", "key", ref.Path(p.store.Prefix()))
	}
	return exists, nil
}
