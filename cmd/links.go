package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/pipeline"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Resolve the current bulletin link of every church",
	Long:  "Visits each distinct bulletin page once, records the PDF link found there and writes a links report. Nothing is downloaded.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMode(cmd.Context(), "links",
			func(ctx context.Context, p *pipeline.Pipeline, entities []model.Entity, out io.Writer) (*model.RunResult, error) {
				return p.Links(ctx, entities, out)
			})
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
}
