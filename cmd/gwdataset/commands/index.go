package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/gameweek-dataset/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Print snapshots and finished gameweeks",
	Long: `Loads the season and prints the snapshot gameweeks, any gaps, the
finished gameweeks and the max finished gameweek as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			r, err := p.Index(ctx)
			if err != nil {
				return err
			}
			return printJSON(r)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every snapshot table against its required columns",
	Long: `Loads the season and validates each table. Every missing column of
every table is reported. Exits non-zero on failure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			r, err := p.Validate(ctx)
			if err != nil {
				return err
			}
			return printJSON(r)
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(validateCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
