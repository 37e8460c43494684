package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/pipeline"
)

var force bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the labeled training dataset",
	Long: `Builds one row per player and finished gameweek whose every label
horizon is covered by finished gameweeks, then publishes it with a manifest
under <season>/training/gw=<max finished gw>/.

A build is skipped when the checkpoint already records the current max
finished gameweek. Use --force to rebuild.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKind(cmd, dataset.KindTraining, pipeline.RunOptions{Force: force})
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build the unlabeled feature frame",
	Long: `Builds every player row up to the max finished gameweek with rolling,
availability and fixture difficulty features, without labels.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKind(cmd, dataset.KindFeatures, pipeline.RunOptions{})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Build the latest-gameweek prediction frame",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKind(cmd, dataset.KindPrediction, pipeline.RunOptions{})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(predictCmd)

	buildCmd.Flags().BoolVar(&force, "force", false, "rebuild even if the watermark is unchanged")
}

func runKind(cmd *cobra.Command, kind dataset.Kind, opts pipeline.RunOptions) error {
	return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
		res, err := p.Run(ctx, kind, opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Skipped {
			fmt.Fprintf(out, "%s up to date at gw=%d\n", kind, res.Watermark)
			return nil
		}
		fmt.Fprintf(out, "%s: %d rows x %d columns -> %s\n", kind, res.Rows, res.Columns, res.Publish.URI)
		return nil
	})
}
