// Package cmd defines and implements the CLI commands for the monitor executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/app"
	"github.com/JakeFAU/monitor-noticias/internal/config"
	"github.com/JakeFAU/monitor-noticias/internal/logging"
	"github.com/JakeFAU/monitor-noticias/internal/news"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Extractor runs one aggregation.
type Extractor interface {
	ExtractAll(ctx context.Context, quick bool) (news.CombinedFeed, error)
}

// ArtifactStore reads what the publisher wrote.
type ArtifactStore interface {
	Exists(path string) bool
	ReadObject(ctx context.Context, path string) ([]byte, error)
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Extractor() Extractor
	Store() ArtifactStore
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) Extractor() Extractor { return a.Monitor() }

func (a appAdapter) Store() ArtifactStore { return a.Artifacts() }

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return appAdapter{App: a}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor-noticias",
		Short: "Latest-news monitor for Brazilian outlets.",
		Long: `monitor-noticias collects the "latest news" listings of Valor Econômico,
Estadão, Folha de S.Paulo and O Globo, merges them into one deduplicated,
time-sorted feed, and publishes it as JSON and as a self-refreshing HTML page.`,
		SilenceUsage: true,

		// Config and services are built here, after flags are parsed but
		// before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("output", "", "directory the artifacts are written to")
	flags.String("driver", "", "session driver: chromedp or colly")
	flags.Int("workers", 0, "concurrent sources")

	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newAutoCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the App built by the root command and closes it once run
// returns, whether or not run failed.
func withApp(run func(cmd *cobra.Command, a App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return run(cmd, appInstance)
	}
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
