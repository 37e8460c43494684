package metadata

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool         *pgxpool.Pool
	cfg          CatalogConfig
	log          *slog.Logger
	mu           sync.RWMutex
	datasetCache map[string]int64
}

// NewPostgresWriter connects to the catalog and creates its tables.
func NewPostgresWriter(cfg CatalogConfig) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool:         pool,
		cfg:          cfg,
		log:          slog.With("component", "metadata"),
		datasetCache: make(map[string]int64),
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to catalog", "namespace", cfg.Namespace)
	return w, nil
}

// ensureDataset registers or retrieves the dataset row for rec.
func (w *PostgresWriter) ensureDataset(ctx context.Context, rec RunRecord) (int64, error) {
	name := rec.DatasetName(w.cfg.Namespace)

	w.mu.RLock()
	id, ok := w.datasetCache[name]
	w.mu.RUnlock()
	if ok {
		return id, nil
	}

	err := w.pool.QueryRow(ctx, `
		INSERT INTO _gw_datasets (name, namespace, season, kind)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, w.cfg.Namespace, rec.Season, rec.Kind).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert dataset %s: %w", name, err)
	}

	w.mu.Lock()
	w.datasetCache[name] = id
	w.mu.Unlock()
	return id, nil
}

// RecordRun inserts a lineage row. Re-recording the same dataset checksum
// at the same watermark is a no-op.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	datasetID, err := w.ensureDataset(ctx, rec)
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := w.pool.Exec(ctx, `
		INSERT INTO _gw_dataset_runs (
			dataset_id, run_id, max_finished_gw, row_count, column_count,
			byte_size, checksum, uri, config_hash, producer_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dataset_id, max_finished_gw, checksum) DO NOTHING
	`, datasetID, rec.RunID, rec.Watermark, rec.Rows, rec.Columns,
		rec.ByteSize, rec.Checksum, rec.URI, rec.ConfigHash, rec.ProducerVersion, createdAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		w.log.Debug("run already recorded", "dataset", rec.DatasetName(w.cfg.Namespace), "gw", rec.Watermark)
	}
	return nil
}

// LatestRun returns the most recent run at the highest recorded watermark,
// or nil when the dataset has no runs.
func (w *PostgresWriter) LatestRun(ctx context.Context, season, kind string) (*RunRecord, error) {
	name := RunRecord{Season: season, Kind: kind}.DatasetName(w.cfg.Namespace)
	rec := &RunRecord{Season: season, Kind: kind}
	err := w.pool.QueryRow(ctx, `
		SELECT r.run_id, r.max_finished_gw, r.row_count, r.column_count,
		       r.byte_size, r.checksum, r.uri, r.config_hash,
		       r.producer_version, r.created_at
		FROM _gw_dataset_runs r
		JOIN _gw_datasets d ON d.id = r.dataset_id
		WHERE d.name = $1
		ORDER BY r.max_finished_gw DESC, r.created_at DESC
		LIMIT 1
	`, name).Scan(&rec.RunID, &rec.Watermark, &rec.Rows, &rec.Columns,
		&rec.ByteSize, &rec.Checksum, &rec.URI, &rec.ConfigHash,
		&rec.ProducerVersion, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run for %s: %w", name, err)
	}
	return rec, nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

var _ Writer = (*PostgresWriter)(nil)
