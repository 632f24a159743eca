// Package aggregator runs every source concurrently, each on its own pooled
// session and under its own timeout, and merges their articles into one
// deduplicated feed sorted newest first.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/monitor-noticias/internal/metrics"
	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// DefaultWorkers is the number of sources run at once.
const DefaultWorkers = 4

// Source collects one outlet's articles using the given session.
type Source interface {
	Name() string
	Collect(ctx context.Context, sess news.Session) ([]news.Article, error)
}

// SessionPool is the subset of *session.Pool the aggregator needs.
type SessionPool interface {
	Acquire(ctx context.Context) (news.Session, error)
	Release(s news.Session)
	Discard(s news.Session)
}

// Config controls an Aggregator.
type Config struct {
	Workers  int
	Location *time.Location
}

// Aggregator runs sources and merges their results.
type Aggregator struct {
	pool    SessionPool
	clock   news.Clock
	workers int
	loc     *time.Location
	logger  *zap.Logger
}

// New builds an Aggregator.
func New(pool SessionPool, clock news.Clock, cfg Config, logger *zap.Logger) (*Aggregator, error) {
	if pool == nil {
		return nil, errors.New("session pool is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		pool:    pool,
		clock:   clock,
		workers: cfg.Workers,
		loc:     cfg.Location,
		logger:  logger,
	}, nil
}

// Run executes sources concurrently and returns the combined feed. A source
// that fails or exceeds perSourceTimeout contributes no articles; the other
// sources are unaffected. Results are reported in the order of sources.
func (a *Aggregator) Run(ctx context.Context, sources []Source, perSourceTimeout time.Duration) news.CombinedFeed {
	results := make([]news.SourceRunResult, len(sources))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.runOne(ctx, src, perSourceTimeout)
			return nil
		})
	}
	_ = g.Wait()

	articles := Merge(results, a.loc, a.logger)
	metrics.SetFeedArticles(len(articles))
	return news.CombinedFeed{
		GeneratedAt: a.clock.Now(),
		Articles:    articles,
		Sources:     results,
	}
}

type outcome struct {
	articles []news.Article
	err      error
}

func (a *Aggregator) runOne(ctx context.Context, src Source, timeout time.Duration) news.SourceRunResult {
	start := time.Now()
	name := src.Name()
	logger := a.logger.With(zap.String("source", name))

	wctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		wctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		done <- a.collect(wctx, src)
	}()

	result := news.SourceRunResult{Source: name}
	select {
	case o := <-done:
		result.Articles, result.Err = o.articles, o.err
	case <-wctx.Done():
	}
	// A source that returns only because its context ended is a timeout too,
	// unless the caller canceled the whole run.
	switch err := wctx.Err(); {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		result.Err = fmt.Errorf("%w: %s after %s: %w", news.ErrWorkerTimeout, name, timeout, err)
	default:
		result.Err = fmt.Errorf("%s: %w", name, err)
	}
	result.Duration = time.Since(start)

	status := "success"
	switch {
	case errors.Is(result.Err, news.ErrWorkerTimeout):
		status = "timeout"
		result.Articles = nil
		logger.Warn("source timed out", zap.Duration("timeout", timeout))
	case result.Err != nil:
		status = "failed"
		result.Articles = nil
		logger.Warn("source failed", zap.Error(result.Err))
	default:
		logger.Info("source finished",
			zap.Int("articles", len(result.Articles)),
			zap.Duration("duration", result.Duration),
		)
	}
	metrics.ObserveSourceRun(name, status, result.Duration)
	return result
}

// collect runs src on a pooled session. The session is released on success
// and discarded on failure, panic or cancellation.
func (a *Aggregator) collect(ctx context.Context, src Source) (out outcome) {
	sess, err := a.pool.Acquire(ctx)
	if err != nil {
		return outcome{err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
		}
		if out.err != nil || ctx.Err() != nil {
			a.pool.Discard(sess)
			return
		}
		a.pool.Release(sess)
	}()

	articles, err := src.Collect(ctx, sess)
	return outcome{articles: articles, err: err}
}

// Merge concatenates successful results in order, keeps the first article
// for each title, drops articles whose date and time do not parse, and
// sorts newest first. Equal timestamps keep their first-seen order.
func Merge(results []news.SourceRunResult, loc *time.Location, logger *zap.Logger) []news.Article {
	if logger == nil {
		logger = zap.NewNop()
	}
	type keyed struct {
		article news.Article
		key     time.Time
	}

	seen := make(map[string]struct{})
	var items []keyed
	for _, r := range results {
		if r.Failed() {
			continue
		}
		for _, art := range r.Articles {
			if _, dup := seen[art.Title]; dup {
				continue
			}
			seen[art.Title] = struct{}{}
			key, err := art.Key(loc)
			if err != nil {
				logger.Debug("dropping article with unparsable timestamp",
					zap.String("title", art.Title),
					zap.String("source", art.Source),
					zap.Error(err),
				)
				continue
			}
			items = append(items, keyed{article: art, key: key})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key.After(items[j].key)
	})

	out := make([]news.Article, len(items))
	for i, it := range items {
		out[i] = it.article
	}
	return out
}
