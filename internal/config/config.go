// Package config loads run settings from defaults, an optional YAML file and
// GWDATASET_* environment variables.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/labels"
	"github.com/withObsrvr/gameweek-dataset/internal/tables"
)

// Config is the full run configuration. Only fields with a JSON name take
// part in Hash.
type Config struct {
	Source     SourceConfig     `yaml:"source" json:"source"`
	Dataset    DatasetConfig    `yaml:"dataset" json:"dataset"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Catalog    CatalogConfig    `yaml:"catalog" json:"-"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"-"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"-"`
	Log        LogConfig        `yaml:"log" json:"-"`
}

// SourceConfig locates the season snapshot tree.
type SourceConfig struct {
	// Root is a local directory or a file://, gs:// or s3:// URL holding
	// <season>/By Gameweek/GW<n>/.
	Root   string `yaml:"root" json:"-"`
	Season string `yaml:"season" json:"season"`
	// Strict fails on a gameweek missing an optional table.
	Strict bool `yaml:"strict" json:"strict"`
}

// DatasetConfig shapes the built rows: feature windows, label horizons,
// targets and minute filters.
type DatasetConfig struct {
	Windows           []int               `yaml:"windows" json:"windows"`
	Horizons          []int               `yaml:"horizons" json:"horizons"`
	FixtureHorizons   []int               `yaml:"fixture_horizons" json:"fixture_horizons"`
	Targets           []labels.Target     `yaml:"targets" json:"targets"`
	PositionTargets   map[string][]string `yaml:"position_targets" json:"position_targets,omitempty"`
	MinMinutes        int                 `yaml:"min_minutes" json:"min_minutes"`
	PredictMinMinutes int                 `yaml:"predict_min_minutes" json:"predict_min_minutes"`
	SubRates          bool                `yaml:"sub_rates" json:"sub_rates"`
	EarlySubMinute    int                 `yaml:"early_sub_minute" json:"early_sub_minute"`
	SubOnMinute       int                 `yaml:"sub_on_minute" json:"sub_on_minute"`
}

// OutputConfig sets where datasets are published and how they are encoded.
type OutputConfig struct {
	// URL is a local directory or a file://, gs:// or s3:// URL.
	URL         string `yaml:"url" json:"-"`
	Prefix      string `yaml:"prefix" json:"-"`
	Format      string `yaml:"format" json:"format"`
	Compression string `yaml:"compression" json:"compression"`
}

// CatalogConfig points at the Postgres lineage catalog. An empty DSN
// disables it.
type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	Namespace   string `yaml:"namespace"`
}

// CheckpointConfig enables the per-season checkpoint files.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath, when set, receives the run's metrics in the node
	// exporter textfile format.
	TextfilePath string `yaml:"textfile_path"`
}

// LogConfig sets the slog level and handler format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the standard settings.
func Default() Config {
	opts := dataset.DefaultOptions()
	export := tables.DefaultExportConfig()
	return Config{
		Source: SourceConfig{
			Root:   "./data",
			Season: "2025-2026",
		},
		Dataset: DatasetConfig{
			Windows:           opts.Windows,
			Horizons:          opts.Horizons,
			FixtureHorizons:   opts.FixtureHorizons,
			Targets:           opts.Targets,
			MinMinutes:        opts.MinMinutes,
			PredictMinMinutes: opts.PredictMinMinutes,
			SubRates:          opts.SubRates,
			EarlySubMinute:    opts.EarlySubMinute,
			SubOnMinute:       opts.SubOnMinute,
		},
		Output: OutputConfig{
			URL:         "./out",
			Format:      string(export.Format),
			Compression: export.Compression,
		},
		Catalog: CatalogConfig{
			Namespace: "default",
		},
		Checkpoint: CheckpointConfig{
			Dir: "./.checkpoints",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and GWDATASET_* environment variables, in that order. Unknown YAML
// keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	loadEnvFile()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("ignoring unreadable .env", "component", "config", "error", err)
		}
	}
}

func (c *Config) applyEnv() {
	c.Source.Root = getenvDefault("GWDATASET_DATA_ROOT", c.Source.Root)
	c.Source.Season = getenvDefault("GWDATASET_SEASON", c.Source.Season)
	c.Output.URL = getenvDefault("GWDATASET_OUTPUT_DIR", c.Output.URL)
	c.Log.Level = getenvDefault("GWDATASET_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenvDefault("GWDATASET_LOG_FORMAT", c.Log.Format)
	c.Catalog.PostgresDSN = getenvDefault("GWDATASET_CATALOG_DSN", c.Catalog.PostgresDSN)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every constraint and reports all violations.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.Source.Root == "" {
		add("source.root", "required")
	}
	if c.Source.Season == "" {
		add("source.season", "required")
	}
	spans := []struct {
		field string
		vals  []int
	}{
		{"dataset.windows", c.Dataset.Windows},
		{"dataset.horizons", c.Dataset.Horizons},
		{"dataset.fixture_horizons", c.Dataset.FixtureHorizons},
	}
	for _, s := range spans {
		if msg := checkSpans(s.vals); msg != "" {
			add(s.field, msg)
		}
	}
	if len(c.Dataset.Targets) == 0 {
		add("dataset.targets", "at least one target required")
	}
	names := make(map[string]bool)
	for _, tg := range c.Dataset.Targets {
		if tg.Name == "" || tg.Source == "" {
			add("dataset.targets", "name and source required")
			continue
		}
		if names[tg.Name] {
			add("dataset.targets", fmt.Sprintf("duplicate target %q", tg.Name))
		}
		names[tg.Name] = true
	}
	for pos, list := range c.Dataset.PositionTargets {
		for _, name := range list {
			if !names[name] {
				add("dataset.position_targets", fmt.Sprintf("%s lists unknown target %q", pos, name))
			}
		}
	}
	if c.Dataset.MinMinutes < 0 {
		add("dataset.min_minutes", "must be >= 0")
	}
	if c.Dataset.PredictMinMinutes < 0 {
		add("dataset.predict_min_minutes", "must be >= 0")
	}
	if c.Output.URL == "" {
		add("output.url", "required")
	}
	if !slices.Contains([]string{"parquet", "csv"}, c.Output.Format) {
		add("output.format", "must be parquet or csv")
	}
	if !slices.Contains([]string{"snappy", "zstd", "none"}, c.Output.Compression) {
		add("output.compression", "must be snappy, zstd or none")
	}
	if c.Checkpoint.Enabled && c.Checkpoint.Dir == "" {
		add("checkpoint.dir", "required when checkpointing is enabled")
	}
	return errors.Join(errs...)
}

func checkSpans(vals []int) string {
	if len(vals) == 0 {
		return "at least one value required"
	}
	seen := make(map[int]bool, len(vals))
	for _, v := range vals {
		if v <= 0 {
			return "values must be > 0"
		}
		if seen[v] {
			return fmt.Sprintf("duplicate value %d", v)
		}
		seen[v] = true
	}
	return ""
}

// DatasetOptions converts the dataset section into assembler options.
func (c *Config) DatasetOptions() dataset.Options {
	opts := dataset.DefaultOptions()
	opts.Windows = slices.Clone(c.Dataset.Windows)
	opts.Horizons = slices.Clone(c.Dataset.Horizons)
	opts.FixtureHorizons = slices.Clone(c.Dataset.FixtureHorizons)
	opts.Targets = slices.Clone(c.Dataset.Targets)
	opts.PositionTargets = c.Dataset.PositionTargets
	opts.MinMinutes = c.Dataset.MinMinutes
	opts.PredictMinMinutes = c.Dataset.PredictMinMinutes
	opts.SubRates = c.Dataset.SubRates
	opts.EarlySubMinute = c.Dataset.EarlySubMinute
	opts.SubOnMinute = c.Dataset.SubOnMinute
	return opts
}

// Hash fingerprints the settings that shape the dataset contents as the
// sha256 of their canonical JSON. Connection strings and paths are excluded.
func Hash(cfg *Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
