package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/publish"
)

const summaryHeadlines = 20

// newExtractCmd creates the 'extract' subcommand: one run, a summary, exit.
func newExtractCmd() *cobra.Command {
	var quick bool
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Runs one extraction and exits",
		Long: `Collects every enabled outlet once, publishes the combined feed and the
HTML monitor, and prints a summary table. --quick shrinks page budgets and
per-source timeouts.`,
		RunE: withApp(func(cmd *cobra.Command, a App) error {
			feed, err := a.Extractor().ExtractAll(cmd.Context(), quick)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			out := cmd.OutOrStdout()
			if err := publish.WriteSummary(out, feed, summaryHeadlines); err != nil {
				a.Logger().Warn("Failed to print summary", zap.Error(err))
			}
			cfg := a.Config()
			if a.Store().Exists(cfg.Output.HTMLFile) {
				fmt.Fprintf(out, "\nMonitor: %s\n", filepath.Join(cfg.Output.Dir, cfg.Output.HTMLFile))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "quick mode: smaller page budgets and timeouts")
	return cmd
}
