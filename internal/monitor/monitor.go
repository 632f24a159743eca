// Package monitor runs one complete aggregation: build the outlet adapters,
// collect every source concurrently, publish the combined feed, and report
// the run to the optional operational sinks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/aggregator"
	"github.com/JakeFAU/monitor-noticias/internal/news"
	"github.com/JakeFAU/monitor-noticias/internal/publish"
	"github.com/JakeFAU/monitor-noticias/internal/source"
	"github.com/JakeFAU/monitor-noticias/internal/storage/postgres"
)

// Default worker timeouts for full and quick runs.
const (
	DefaultWorkerTimeout      = 300 * time.Second
	DefaultQuickWorkerTimeout = 120 * time.Second
)

// Runner executes sources and merges their results.
type Runner interface {
	Run(ctx context.Context, sources []aggregator.Source, perSourceTimeout time.Duration) news.CombinedFeed
}

// Publisher writes the feed artifacts.
type Publisher interface {
	Publish(ctx context.Context, feed news.CombinedFeed) (publish.Artifacts, error)
}

// Ledger records run metadata.
type Ledger interface {
	RecordRun(ctx context.Context, rec postgres.RunRecord) error
}

// Notifier announces a published feed.
type Notifier interface {
	Notify(ctx context.Context, feed news.CombinedFeed, artifacts []string) (string, error)
}

// Config tunes a Service.
type Config struct {
	Outlets            []source.Outlet
	Build              source.BuildOptions
	WorkerTimeout      time.Duration
	QuickWorkerTimeout time.Duration
}

// Deps are the collaborators of a Service. Ledger and Notifier are optional.
type Deps struct {
	Runner    Runner
	Publisher Publisher
	Clock     news.Clock
	IDs       news.IDGenerator
	Ledger    Ledger
	Notifier  Notifier
}

// Service is the extraction entry point. Runs are serialized: a call made
// while another run is in progress waits for it to finish.
type Service struct {
	mu     sync.Mutex
	deps   Deps
	cfg    Config
	logger *zap.Logger

	lastMu sync.RWMutex
	last   *news.CombinedFeed
}

// New validates deps and builds a Service.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Service, error) {
	if deps.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("id generator is required")
	}
	if cfg.Outlets == nil {
		cfg.Outlets = source.Outlets()
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = DefaultWorkerTimeout
	}
	if cfg.QuickWorkerTimeout <= 0 {
		cfg.QuickWorkerTimeout = DefaultQuickWorkerTimeout
	}
	if cfg.Build.Clock == nil {
		cfg.Build.Clock = deps.Clock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Build.Logger == nil {
		cfg.Build.Logger = logger
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}, nil
}

// ExtractAll runs every enabled outlet once and publishes the combined feed.
// Quick mode shrinks page budgets and the per-source timeout. Source failures
// and persistence failures never fail the run; the returned error is set
// only when the adapters cannot be built or the run id cannot be generated.
func (s *Service) ExtractAll(ctx context.Context, quick bool) (news.CombinedFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.deps.Clock.Now()
	runID, err := s.deps.IDs.NewID()
	if err != nil {
		return news.CombinedFeed{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := s.logger.With(zap.String("run_id", runID), zap.Bool("quick", quick))

	opts := s.cfg.Build
	opts.Quick = quick
	opts.Logger = opts.Logger.With(zap.String("run_id", runID))
	adapters, err := source.Build(s.cfg.Outlets, opts)
	if err != nil {
		return news.CombinedFeed{}, fmt.Errorf("build adapters: %w", err)
	}
	sources := make([]aggregator.Source, len(adapters))
	for i, a := range adapters {
		sources[i] = a
	}

	timeout := s.cfg.WorkerTimeout
	if quick {
		timeout = s.cfg.QuickWorkerTimeout
	}
	logger.Info("Starting extraction", zap.Int("sources", len(sources)), zap.Duration("worker_timeout", timeout))

	feed := s.deps.Runner.Run(ctx, sources, timeout)
	feed.RunID = runID

	// Sinks get their own context so a canceled run still records what it found.
	persistCtx := context.WithoutCancel(ctx)
	artifacts, err := s.deps.Publisher.Publish(persistCtx, feed)
	if err != nil {
		logger.Error("Failed to publish feed", zap.Error(err))
	}
	s.remember(feed)
	s.report(persistCtx, logger, feed, started, quick, artifacts)

	failed := 0
	for _, r := range feed.Sources {
		if r.Failed() {
			failed++
		}
	}
	logger.Info("Extraction finished",
		zap.Int("articles", len(feed.Articles)),
		zap.Int("failed_sources", failed),
		zap.Duration("duration", s.deps.Clock.Now().Sub(started)),
	)
	return feed, nil
}

func (s *Service) report(ctx context.Context, logger *zap.Logger, feed news.CombinedFeed, started time.Time, quick bool, artifacts publish.Artifacts) {
	if s.deps.Ledger != nil {
		rec := postgres.NewRunRecord(feed, started, quick, artifacts.Feed)
		if err := s.deps.Ledger.RecordRun(ctx, rec); err != nil {
			logger.Error("Failed to record run", zap.Error(fmt.Errorf("%w: %w", news.ErrPersistence, err)))
		}
	}
	if s.deps.Notifier != nil {
		id, err := s.deps.Notifier.Notify(ctx, feed, artifacts.URIs())
		if err != nil {
			logger.Error("Failed to publish feed notification", zap.Error(fmt.Errorf("%w: %w", news.ErrPersistence, err)))
			return
		}
		logger.Debug("Published feed notification", zap.String("message_id", id))
	}
}

func (s *Service) remember(feed news.CombinedFeed) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.last = &feed
}

// Last returns the most recent feed produced by this Service.
func (s *Service) Last() (news.CombinedFeed, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return news.CombinedFeed{}, false
	}
	return *s.last, true
}
