package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/config"
)

var cfg *config.Config

var (
	churchesFlag string
	outputFlag   string
	formatFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "bulletin-cli",
	Short: "Parish bulletin analysis pipeline",
	Long:  "Finds each parish's current bulletin PDF, extracts service times and events with Claude, and reconciles them against the church dataset.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlags(c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyFlags lets command-line flags override file and environment config.
func applyFlags(c *config.Config) {
	if churchesFlag != "" {
		c.Data.ChurchesPath = churchesFlag
	}
	if outputFlag != "" {
		c.Report.Output = outputFlag
	}
	if formatFlag != "" {
		c.Report.Format = formatFlag
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&churchesFlag, "churches", "", "path to the churches JSON file (default from config)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "report file (default stdout)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "", "report format: markdown or yaml (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
