// Package commands implements the gwdataset CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/gameweek-dataset/internal/config"
	"github.com/withObsrvr/gameweek-dataset/internal/logging"
	"github.com/withObsrvr/gameweek-dataset/internal/pipeline"
)

var (
	// Global flags
	configFile string
	season     string
	dataRoot   string
	outputURL  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "gwdataset",
	Short: "Leakage-free gameweek datasets from snapshot CSVs",
	Long: `gwdataset turns per-gameweek snapshot CSVs into training, feature and
prediction datasets. Only gameweeks whose every match has finished feed
labels and features.

Examples:
  gwdataset index --season 2025-2026
  gwdataset build --config gwdataset.yaml
  gwdataset predict --output gs://my-bucket/datasets`,
	Version:       fmt.Sprintf("%s (%s)", pipeline.Version, pipeline.GitSHA),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&season, "season", "", "season directory, e.g. 2025-2026")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "snapshot root: a directory or file://, gs://, s3:// URL")
	rootCmd.PersistentFlags().StringVar(&outputURL, "output", "", "output location: a directory or file://, gs://, s3:// URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
}

// loadConfig applies flags on top of the file and environment settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if season != "" {
		cfg.Source.Season = season
	}
	if dataRoot != "" {
		cfg.Source.Root = dataRoot
	}
	if outputURL != "" {
		cfg.Output.URL = outputURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	return cfg, nil
}

// withPipeline loads the config, opens a pipeline bound to an interrupt-aware
// context and runs fn. Metrics are flushed whatever fn returns.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *pipeline.Pipeline) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, *cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	runErr := fn(ctx, p)
	if err := p.FlushMetrics(); err != nil {
		slog.Warn("failed to write metrics", "error", err)
	}
	return runErr
}
