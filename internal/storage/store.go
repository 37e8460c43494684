package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DatasetRef describes a versioned dataset location.
type DatasetRef struct {
	Season    string // "2025-2026"
	Kind      string // "training" | "features" | "prediction"
	Watermark int    // max finished gameweek the dataset was built at
	Ext       string // "parquet" | "csv"
}

// DirPath returns the directory path for this dataset.
func (r DatasetRef) DirPath(prefix string) string {
	return fmt.Sprintf("%s%s/%s/gw=%d", prefix, r.Season, r.Kind, r.Watermark)
}

// Path returns the storage path for this dataset's data file.
func (r DatasetRef) Path(prefix string) string {
	return fmt.Sprintf("%s/dataset.%s", r.DirPath(prefix), r.Ext)
}

// ManifestPath returns the storage path for this dataset's manifest.
func (r DatasetRef) ManifestPath(prefix string) string {
	return r.DirPath(prefix) + "/_manifest.json"
}

// Manifest describes a published dataset.
type Manifest struct {
	Dataset   DatasetInfo  `json:"dataset"`
	File      FileInfo     `json:"file"`
	Run       RunInfo      `json:"run"`
	Producer  ProducerInfo `json:"producer"`
	CreatedAt time.Time    `json:"created_at"`
}

// DatasetInfo describes what the dataset holds.
type DatasetInfo struct {
	Season        string `json:"season"`
	Kind          string `json:"kind"`
	MaxFinishedGW int    `json:"max_finished_gw"`
	FinishedGWs   []int  `json:"finished_gws"`
	SchemaVersion string `json:"schema_version"`
}

// FileInfo describes the data file.
type FileInfo struct {
	File         string   `json:"file"`
	Format       string   `json:"format"`
	Checksum     string   `json:"checksum"`
	RowCount     int64    `json:"row_count"`
	ByteSize     int64    `json:"byte_size"`
	Columns      []string `json:"columns"`
	LabelColumns []string `json:"label_columns,omitempty"`
}

// RunInfo ties the dataset to the run and configuration that built it.
type RunInfo struct {
	RunID      string `json:"run_id"`
	ConfigHash string `json:"config_hash"`
}

// ProducerInfo describes the software that produced the dataset.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// DatasetStore writes datasets atomically: payloads go to temporary keys
// first and are published together by Finalize.
type DatasetStore interface {
	// WriteDatasetTemp writes the data file to a temporary location and
	// returns its key.
	WriteDatasetTemp(ctx context.Context, ref DatasetRef, data []byte) (tempKey string, err error)

	// WriteManifestTemp writes a manifest to a temporary location.
	WriteManifestTemp(ctx context.Context, ref DatasetRef, manifest *Manifest) (tempKey string, err error)

	// Finalize moves the data and manifest temp keys, in that order, to their
	// canonical location. On failure nothing stays published.
	Finalize(ctx context.Context, ref DatasetRef, tempKeys []string) error

	// Abort removes temporary files without publishing.
	Abort(ctx context.Context, tempKeys []string) error

	// Exists checks if a dataset is already published.
	Exists(ctx context.Context, ref DatasetRef) (bool, error)

	// ReadManifest loads a published manifest.
	ReadManifest(ctx context.Context, ref DatasetRef) (*Manifest, error)

	// Head returns metadata about a stored object.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Prefix is the key prefix applied to every dataset path.
	Prefix() string

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string // MD5 for S3/GCS, empty for local
	ModTime time.Time
}

// PublishResult contains the result of an atomic publish operation.
type PublishResult struct {
	DataKey     string
	ManifestKey string
	URI         string
	Checksum    string
	ByteSize    int64
}

// Publish writes data and manifest to temporary keys and finalizes both.
// Temporary keys are removed when any step fails. The published data file
// must match the payload size.
func Publish(ctx context.Context, store DatasetStore, ref DatasetRef, data []byte, manifest *Manifest) (*PublishResult, error) {
	dataKey, err := store.WriteDatasetTemp(ctx, ref, data)
	if err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	manifestKey, err := store.WriteManifestTemp(ctx, ref, manifest)
	if err != nil {
		_ = store.Abort(ctx, []string{dataKey})
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := store.Finalize(ctx, ref, []string{dataKey, manifestKey}); err != nil {
		return nil, err
	}

	key := ref.Path(store.Prefix())
	info, err := store.Head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("verify dataset: %w", err)
	}
	if info.Size != int64(len(data)) {
		return nil, fmt.Errorf("verify dataset %s: stored %d bytes, wrote %d", key, info.Size, len(data))
	}

	return &PublishResult{
		DataKey:     key,
		ManifestKey: ref.ManifestPath(store.Prefix()),
		URI:         store.URI(key),
		Checksum:    manifest.File.Checksum,
		ByteSize:    info.Size,
	}, nil
}
