// Package metrics provides Prometheus metrics for dataset runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a run. Each instance owns its
// registry so a batch run can flush to a textfile without global state.
type Metrics struct {
	reg *prometheus.Registry

	// Input metrics
	TableRows     *prometheus.GaugeVec
	MaxFinishedGW *prometheus.GaugeVec

	// Output metrics
	DatasetRows    *prometheus.GaugeVec
	DatasetColumns *prometheus.GaugeVec
	DatasetBytes   *prometheus.GaugeVec

	// Timing metrics
	StageDuration *prometheus.HistogramVec

	// Outcome metrics
	Runs           *prometheus.CounterVec
	StorageErrors  *prometheus.CounterVec
	MetadataErrors *prometheus.CounterVec
}

// New registers the run metrics on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gwdataset"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		TableRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Rows loaded per snapshot table",
			},
			[]string{"season", "table"},
		),
		MaxFinishedGW: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "max_finished_gameweek",
				Help:      "Latest gameweek whose every match has finished",
			},
			[]string{"season"},
		),
		DatasetRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Rows in the written dataset",
			},
			[]string{"season", "kind"},
		),
		DatasetColumns: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_columns",
				Help:      "Columns in the written dataset",
			},
			[]string{"season", "kind"},
		),
		DatasetBytes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_bytes",
				Help:      "Encoded size of the written dataset",
			},
			[]string{"season", "kind"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent per pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		StorageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Errors writing datasets to storage",
			},
			[]string{"operation"},
		),
		MetadataErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metadata_errors_total",
				Help:      "Errors recording lineage in the catalog",
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SetTableRows records the row count of a loaded table.
func (m *Metrics) SetTableRows(season, table string, rows int) {
	m.TableRows.WithLabelValues(season, table).Set(float64(rows))
}

// SetWatermark records the finished-gameweek watermark.
func (m *Metrics) SetWatermark(season string, gw int) {
	m.MaxFinishedGW.WithLabelValues(season).Set(float64(gw))
}

// SetDataset records the shape and size of a written dataset.
func (m *Metrics) SetDataset(season, kind string, rows, cols int, bytes int64) {
	m.DatasetRows.WithLabelValues(season, kind).Set(float64(rows))
	m.DatasetColumns.WithLabelValues(season, kind).Set(float64(cols))
	m.DatasetBytes.WithLabelValues(season, kind).Set(float64(bytes))
}

// IncRun counts a finished run.
func (m *Metrics) IncRun(kind, outcome string) {
	m.Runs.WithLabelValues(kind, outcome).Inc()
}

// IncStorageErrors counts a failed storage operation.
func (m *Metrics) IncStorageErrors(op string) {
	m.StorageErrors.WithLabelValues(op).Inc()
}

// IncMetadataErrors counts a failed catalog operation.
func (m *Metrics) IncMetadataErrors(op string) {
	m.MetadataErrors.WithLabelValues(op).Inc()
}

// WriteTextfile writes every metric to path for the node exporter textfile
// collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
