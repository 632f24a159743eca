package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/monitor-noticias/internal/scheduler"
)

// newAutoCmd creates the 'auto' subcommand: extract now and then on an interval.
func newAutoCmd() *cobra.Command {
	var quick bool
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Extracts on a fixed interval until interrupted",
		RunE: withApp(func(cmd *cobra.Command, a App) error {
			return runScheduled(cmd.Context(), a, quick)
		}),
	}
	cmd.Flags().Duration("interval", time.Minute, "time between extractions")
	cmd.Flags().BoolVar(&quick, "quick", false, "quick mode: smaller page budgets and timeouts")
	return cmd
}

func runScheduled(ctx context.Context, a App, quick bool) error {
	s, err := scheduler.New(a.Config().Schedule.Interval, func(ctx context.Context) error {
		_, err := a.Extractor().ExtractAll(ctx, quick)
		return err
	}, a.Logger())
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
