package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/pipeline"
)

var eventsWrite bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Extract parish events from current bulletins",
	Long:  "Downloads every resolved bulletin, extracts upcoming events and merges them into the events file. Without --write the file is left untouched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMode(cmd.Context(), "events",
			func(ctx context.Context, p *pipeline.Pipeline, entities []model.Entity, out io.Writer) (*model.RunResult, error) {
				return p.Events(ctx, entities, out, eventsWrite)
			})
	},
}

func init() {
	eventsCmd.Flags().BoolVar(&eventsWrite, "write", false, "save merged events to the events file")
	rootCmd.AddCommand(eventsCmd)
}
