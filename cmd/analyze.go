package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"mass"},
	Short:   "Suggest service time corrections from current bulletins",
	Long:    "Downloads every resolved bulletin, extracts mass, daily mass, confession and adoration times, and reports where they differ from the church dataset.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMode(cmd.Context(), "mass",
			func(ctx context.Context, p *pipeline.Pipeline, entities []model.Entity, out io.Writer) (*model.RunResult, error) {
				return p.Mass(ctx, entities, out)
			})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
