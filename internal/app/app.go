// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/aggregator"
	"github.com/JakeFAU/monitor-noticias/internal/clock/system"
	"github.com/JakeFAU/monitor-noticias/internal/config"
	"github.com/JakeFAU/monitor-noticias/internal/id/uuid"
	"github.com/JakeFAU/monitor-noticias/internal/loader"
	"github.com/JakeFAU/monitor-noticias/internal/monitor"
	"github.com/JakeFAU/monitor-noticias/internal/news"
	notify "github.com/JakeFAU/monitor-noticias/internal/notify/pubsub"
	"github.com/JakeFAU/monitor-noticias/internal/policy/ratelimit"
	"github.com/JakeFAU/monitor-noticias/internal/publish"
	"github.com/JakeFAU/monitor-noticias/internal/session"
	"github.com/JakeFAU/monitor-noticias/internal/source"
	gcsstorage "github.com/JakeFAU/monitor-noticias/internal/storage/gcs"
	localstorage "github.com/JakeFAU/monitor-noticias/internal/storage/local"
	pgstore "github.com/JakeFAU/monitor-noticias/internal/storage/postgres"
)

// App holds the shared, long-lived services: the session pool, the artifact
// store, the optional sinks, and the monitor service built on top of them.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	monitor   *monitor.Service
	artifacts *localstorage.BlobStore
	pool      *session.Pool
	closers   []func()
}

// Monitor returns the extraction service.
func (a *App) Monitor() *monitor.Service {
	return a.monitor
}

// Artifacts returns the local store the publisher writes to.
func (a *App) Artifacts() *localstorage.BlobStore {
	return a.artifacts
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// New creates and wires every service described by cfg. Optional sinks
// (GCS mirror, Pub/Sub notification, Postgres ledger) are only built when
// configured. It fails fast if any configured service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	logger.Info("Initializing application services...",
		zap.String("driver", cfg.Session.Driver),
		zap.Int("pool_capacity", cfg.Pool.Capacity),
		zap.String("output_dir", cfg.Output.Dir),
	)

	loc, err := system.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("Timezone not available, using fixed UTC-3", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	clock := system.New(loc)

	factory, err := a.sessionFactory()
	if err != nil {
		return nil, err
	}
	a.pool, err = session.NewPool(factory, cfg.Pool.Capacity, logger.Named("pool"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session pool: %w", err)
	}

	loaderOpts := []loader.Option{
		loader.WithSettleDelay(cfg.Loader.SettleDelay),
		loader.WithLogger(logger.Named("loader")),
	}
	if cfg.Loader.HostQPS > 0 {
		loaderOpts = append(loaderOpts, loader.WithWaiter(ratelimit.New(ratelimit.Config{
			QPS:   cfg.Loader.HostQPS,
			Burst: cfg.Loader.HostBurst,
		})))
	}
	pageLoader := loader.New(
		loader.NewRetryPolicy(cfg.Loader.MaxAttempts, cfg.Loader.BaseTimeout, cfg.Loader.TimeoutStep, cfg.Loader.Backoff),
		loaderOpts...,
	)

	agg, err := aggregator.New(a.pool, clock, aggregator.Config{
		Workers:  cfg.Aggregator.Workers,
		Location: loc,
	}, logger.Named("aggregator"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aggregator: %w", err)
	}

	a.artifacts, err = localstorage.New(localstorage.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize output directory: %w", err)
	}
	var mirrors []publish.BlobStore
	if cfg.GCS.Bucket != "" {
		mirror, err := a.gcsMirror(ctx)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, mirror)
	}
	publisher, err := publish.New(a.artifacts, cfg.Output.Config, loc, logger.Named("publish"), mirrors...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}

	deps := monitor.Deps{
		Runner:    agg,
		Publisher: publisher,
		Clock:     clock,
		IDs:       uuid.New(),
	}
	if cfg.Postgres.DSN != "" {
		ledger, err := a.runLedger(ctx)
		if err != nil {
			return nil, err
		}
		deps.Ledger = ledger
	}
	if cfg.PubSub.ProjectID != "" {
		notifier, err := a.notifier(ctx)
		if err != nil {
			return nil, err
		}
		deps.Notifier = notifier
	}

	a.monitor, err = monitor.New(deps, monitor.Config{
		Outlets: source.Outlets(),
		Build: source.BuildOptions{
			Loader:        pageLoader,
			Sleeper:       loader.TimerSleeper{},
			Clock:         clock,
			Logger:        logger.Named("source"),
			MaxEmptyPages: cfg.Adapters.MaxEmptyPages,
			ClickSettle:   cfg.Adapters.ClickSettle,
			QuickDivisor:  cfg.Adapters.QuickBudgetDivisor,
			Enabled:       cfg.Adapters.Enabled,
		},
		WorkerTimeout:      cfg.Aggregator.WorkerTimeout,
		QuickWorkerTimeout: cfg.Aggregator.QuickWorkerTimeout,
	}, logger.Named("monitor"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize monitor: %w", err)
	}

	logger.Info("Application services initialized successfully.")
	ok = true
	return a, nil
}

func (a *App) sessionFactory() (news.SessionFactory, error) {
	switch a.cfg.Session.Driver {
	case config.DriverChromedp:
		f := session.NewChromeFactory(session.ChromeConfig{
			UserAgent:    a.cfg.Session.UserAgent,
			Headless:     a.cfg.Session.Headless,
			WindowWidth:  a.cfg.Session.WindowWidth,
			WindowHeight: a.cfg.Session.WindowHeight,
		}, a.logger.Named("chromedp"))
		a.closers = append(a.closers, f.Close)
		return f, nil
	case config.DriverColly:
		return session.NewCollyFactory(session.CollyConfig{UserAgent: a.cfg.Session.UserAgent}), nil
	default:
		return nil, fmt.Errorf("unknown session driver: %s", a.cfg.Session.Driver)
	}
}

func (a *App) gcsMirror(ctx context.Context) (*gcsstorage.BlobStore, error) {
	a.logger.Info("Mirroring artifacts to GCS", zap.String("bucket", a.cfg.GCS.Bucket))
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gcs client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	})
	store, err := gcsstorage.New(client, a.cfg.GCS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gcs mirror: %w", err)
	}
	return store, nil
}

func (a *App) runLedger(ctx context.Context) (*pgstore.RunStore, error) {
	a.logger.Info("Connecting to PostgreSQL run ledger...", zap.String("table", a.cfg.Postgres.Table))
	store, err := pgstore.NewRunStore(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare run ledger: %w", err)
	}
	return store, nil
}

func (a *App) notifier(ctx context.Context) (*notify.Notifier, error) {
	a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	})
	n, err := notify.New(client.Topic(a.cfg.PubSub.Topic))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}
	a.closers = append(a.closers, n.Close)
	return n, nil
}

// Close drains the session pool and shuts down every service in reverse
// order of creation.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.logger.Info("Shutting down application services...")
	if a.pool != nil {
		a.pool.Drain()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
