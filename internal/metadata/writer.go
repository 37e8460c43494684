package metadata

import (
	"context"
	"time"
)

// CatalogConfig points the writer at a Postgres catalog. An empty DSN
// disables lineage recording.
type CatalogConfig struct {
	PostgresDSN string
	Namespace   string
}

// Writer records dataset lineage.
type Writer interface {
	RecordRun(ctx context.Context, rec RunRecord) error

	// LatestRun returns the run with the highest watermark recorded for a
	// season and kind, or nil when none was recorded.
	LatestRun(ctx context.Context, season, kind string) (*RunRecord, error)

	Close() error
}

// RunRecord is one published dataset.
type RunRecord struct {
	RunID           string
	Season          string
	Kind            string
	Watermark       int
	Rows            int64
	Columns         int
	ByteSize        int64
	Checksum        string
	URI             string
	ConfigHash      string
	ProducerVersion string
	CreatedAt       time.Time
}

// DatasetName is the catalog name of a season's dataset kind, e.g.
// "default.2025-2026.training".
func (r RunRecord) DatasetName(namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return namespace + "." + r.Season + "." + r.Kind
}

// NewWriter returns a Postgres writer when a DSN is configured and a no-op
// writer otherwise.
func NewWriter(cfg CatalogConfig) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{}, nil
	}
	return NewPostgresWriter(cfg)
}

type noopWriter struct{}

func (noopWriter) RecordRun(context.Context, RunRecord) error { return nil }
func (noopWriter) Close() error                               { return nil }

func (noopWriter) LatestRun(context.Context, string, string) (*RunRecord, error) {
	return nil, nil
}
