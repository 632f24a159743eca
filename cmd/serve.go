package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/server"
)

// newServeCmd creates the 'serve' subcommand: the web mode.
func newServeCmd() *cobra.Command {
	var (
		auto  bool
		quick bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the monitor page and feed over HTTP",
		Long: `Serves the HTML monitor at / and the combined feed at /noticias.json on
all interfaces. When no monitor page exists yet an extraction runs first.
--auto keeps extracting in the background on the configured interval.`,
		RunE: withApp(func(cmd *cobra.Command, a App) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			cfg := a.Config()
			logger := a.Logger()

			if !a.Store().Exists(cfg.Output.HTMLFile) {
				logger.Info("Monitor page not found, extracting first")
				if _, err := a.Extractor().ExtractAll(ctx, quick); err != nil {
					return fmt.Errorf("initial extraction: %w", err)
				}
			}

			schedDone := make(chan error, 1)
			if auto {
				go func() { schedDone <- runScheduled(ctx, a, quick) }()
				logger.Info("Automatic updates enabled", zap.Duration("interval", cfg.Schedule.Interval))
			} else {
				schedDone <- nil
			}

			port := cfg.Server.Port
			logger.Info("Web server started",
				zap.String("local", fmt.Sprintf("http://localhost:%d", port)),
				zap.String("network", fmt.Sprintf("http://%s:%d", server.LocalIP(), port)),
			)
			srv := server.New(a.Store(), cfg.Output.Config, logger.Named("http"))
			serveErr := srv.Serve(ctx, fmt.Sprintf("0.0.0.0:%d", port))
			cancel()
			if err := <-schedDone; err != nil {
				logger.Warn("Scheduler stopped with error", zap.Error(err))
			}
			return serveErr
		}),
	}
	cmd.Flags().Int("port", server.DefaultPort, "HTTP port")
	cmd.Flags().Duration("interval", time.Minute, "time between extractions with --auto")
	cmd.Flags().BoolVar(&auto, "auto", false, "keep extracting in the background")
	cmd.Flags().BoolVar(&quick, "quick", false, "quick mode: smaller page budgets and timeouts")
	return cmd
}
