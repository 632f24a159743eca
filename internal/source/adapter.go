// Package source implements outlet adapters: one generic runner that walks
// an outlet's "latest news" listing page by page, plus the per-outlet
// configuration (selectors, paging strategy, time format, budget) that makes
// it read Valor, Estadão, Folha and O Globo.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/metrics"
	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// Default early-stop settings.
const (
	DefaultMaxEmptyPages = 2
	DefaultBudget        = 10
)

// State is a step of an adapter run.
type State int

// Adapter run states.
const (
	StateInit State = iota
	StateFetching
	StateExtracting
	StateAdvancing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateAdvancing:
		return "advancing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason says why a run reached StateStopped.
type StopReason string

// Stop reasons.
const (
	StopOlderArticle  StopReason = "older_article"
	StopAdvanceFailed StopReason = "advance_failed"
	StopEmptyPages    StopReason = "empty_pages"
	StopBudget        StopReason = "budget_exhausted"
	StopCanceled      StopReason = "canceled"
)

// Config describes one outlet.
type Config struct {
	Name       string
	Strategy   Strategy
	Extractor  Extractor
	TimeParser TimeParser
	Categories CategoryResolver
	// Budget caps the pages fetched in one run, the first page included.
	Budget int
	// MaxEmptyPages stops the run after this many consecutive pages that
	// yield no new article.
	MaxEmptyPages int
}

// Adapter collects today's articles from one outlet.
type Adapter struct {
	cfg    Config
	clock  news.Clock
	logger *zap.Logger
}

// Report describes a finished run.
type Report struct {
	Articles []news.Article
	Pages    int
	Reason   StopReason
}

// NewAdapter validates cfg and builds an Adapter.
func NewAdapter(cfg Config, clock news.Clock, logger *zap.Logger) (*Adapter, error) {
	if cfg.Name == "" {
		return nil, errors.New("adapter name is required")
	}
	if cfg.Strategy == nil || cfg.Extractor == nil || cfg.TimeParser == nil {
		return nil, fmt.Errorf("adapter %s: strategy, extractor and time parser are required", cfg.Name)
	}
	if clock == nil {
		return nil, fmt.Errorf("adapter %s: clock is required", cfg.Name)
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = DefaultMaxEmptyPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(zap.String("source", cfg.Name)),
	}, nil
}

// Name returns the outlet name stamped on every article.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// Budget returns the page budget.
func (a *Adapter) Budget() int {
	return a.cfg.Budget
}

// Collect runs the adapter and returns its articles in listing order.
func (a *Adapter) Collect(ctx context.Context, sess news.Session) ([]news.Article, error) {
	report, err := a.Run(ctx, sess)
	return report.Articles, err
}

// Run walks the listing until a stop condition holds. Only a failure to
// load the first page is returned as an error; later failures stop the run
// and keep what was collected.
func (a *Adapter) Run(ctx context.Context, sess news.Session) (Report, error) {
	r := a.newRun()
	r.enter(StateFetching)
	markup, err := a.cfg.Strategy.First(ctx, sess)
	if err != nil {
		return Report{}, fmt.Errorf("%s first page: %w", a.cfg.Name, err)
	}
	pages, empty := 1, 0
	var reason StopReason

	for r.state != StateStopped {
		r.enter(StateExtracting)
		added, older := r.extract(markup)
		metrics.ObserveArticles(a.cfg.Name, len(added))
		if len(added) == 0 {
			empty++
		} else {
			empty = 0
		}
		a.logger.Debug("page extracted",
			zap.Int("page", pages),
			zap.Int("new", len(added)),
			zap.Bool("older_seen", older),
		)

		switch {
		case older:
			reason = StopOlderArticle
		case empty >= a.cfg.MaxEmptyPages:
			reason = StopEmptyPages
		case pages >= a.cfg.Budget:
			reason = StopBudget
		case ctx.Err() != nil:
			reason = StopCanceled
		}
		if reason != "" {
			r.enter(StateStopped)
			break
		}

		r.enter(StateAdvancing)
		next, err := a.cfg.Strategy.Advance(ctx, sess, pages+1)
		if err != nil {
			a.logger.Info("advance failed", zap.Int("page", pages+1), zap.Error(err))
			reason = StopAdvanceFailed
			r.enter(StateStopped)
			break
		}
		r.enter(StateFetching)
		markup = next
		pages++
	}

	a.logger.Info("source run stopped",
		zap.String("reason", string(reason)),
		zap.Int("pages", pages),
		zap.Int("articles", len(r.articles)),
	)
	return Report{Articles: r.articles, Pages: pages, Reason: reason}, nil
}

func (a *Adapter) newRun() *run {
	return &run{
		adapter: a,
		now:     a.clock.Now(),
		seen:    make(map[string]struct{}),
	}
}

// run holds per-run state: the captured "today" and the titles emitted.
type run struct {
	adapter  *Adapter
	now      time.Time
	seen     map[string]struct{}
	articles []news.Article
	state    State
}

func (r *run) enter(s State) {
	r.state = s
	r.adapter.logger.Debug("state", zap.Stringer("state", s))
}

// extract appends the page's new articles. It stops at the first article
// dated before today and reports olderSeen; nothing after it on the page is
// kept.
func (r *run) extract(markup string) (added []news.Article, olderSeen bool) {
	a := r.adapter
	candidates, err := a.cfg.Extractor.Extract(markup)
	if err != nil {
		a.logger.Warn("page extraction failed", zap.Error(err))
		return nil, false
	}
	for _, c := range candidates {
		if c.Err != nil {
			a.logger.Debug("skipping entry", zap.String("link", c.Link), zap.Error(c.Err))
			continue
		}
		if _, dup := r.seen[c.Title]; dup {
			continue
		}
		ts, err := a.cfg.TimeParser.Parse(c.TimeText, r.now)
		if err != nil {
			a.logger.Debug("skipping entry without usable time",
				zap.String("title", c.Title),
				zap.Error(err),
			)
			continue
		}
		switch compareDay(ts, r.now) {
		case -1:
			return added, true
		case 1:
			a.logger.Debug("skipping future-dated entry", zap.String("title", c.Title), zap.Time("ts", ts))
			continue
		}
		r.seen[c.Title] = struct{}{}
		article := news.NewArticle(c.Title, a.cfg.Categories.Resolve(c.CategoryText, c.Link), a.cfg.Name, c.Link, ts)
		added = append(added, article)
		r.articles = append(r.articles, article)
	}
	return added, false
}
