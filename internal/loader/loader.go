package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/metrics"
	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// Waiter applies a politeness limit before a navigation.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Loader navigates sessions with retries and returns the rendered markup.
type Loader struct {
	policy  RetryPolicy
	settle  time.Duration
	sleeper Sleeper
	waiter  Waiter
	logger  *zap.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithSleeper replaces the timer used for backoff and settle waits.
func WithSleeper(s Sleeper) Option {
	return func(l *Loader) {
		if s != nil {
			l.sleeper = s
		}
	}
}

// WithWaiter installs a politeness limiter consulted before every attempt.
func WithWaiter(w Waiter) Option {
	return func(l *Loader) {
		l.waiter = w
	}
}

// WithSettleDelay sets how long to wait after a successful navigation
// before reading the document.
func WithSettleDelay(d time.Duration) Option {
	return func(l *Loader) {
		if d >= 0 {
			l.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New builds a Loader for policy.
func New(policy RetryPolicy, opts ...Option) *Loader {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Backoff == nil {
		policy.Backoff = FixedBackoff(DefaultBackoff)
	}
	if policy.Timeout == nil {
		policy.Timeout = LinearTimeout(DefaultBaseTimeout, DefaultTimeoutStep)
	}
	l := &Loader{
		policy:  policy,
		settle:  DefaultSettleDelay,
		sleeper: TimerSleeper{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load navigates sess to url and returns the page markup. A failed
// navigation is retried until the policy's attempts are exhausted; the
// returned error then wraps news.ErrNavigation and the last failure.
func (l *Loader) Load(ctx context.Context, sess news.Session, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < l.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := l.sleeper.Sleep(ctx, l.policy.Backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		if l.waiter != nil {
			if err := l.waiter.Wait(ctx, url); err != nil {
				lastErr = err
				break
			}
		}

		metrics.ObserveLoadAttempt(url)
		html, err := l.attempt(ctx, sess, url, l.policy.Timeout(attempt))
		if err == nil {
			metrics.ObservePageLoad(url, "success")
			return html, nil
		}
		lastErr = err
		l.logger.Warn("page load attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", l.policy.MaxAttempts),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	metrics.ObservePageLoad(url, "failure")
	l.logger.Error("page load failed", zap.String("url", url), zap.Error(lastErr))
	return "", fmt.Errorf("%w: %s: %w", news.ErrNavigation, url, lastErr)
}

func (l *Loader) attempt(ctx context.Context, sess news.Session, url string, timeout time.Duration) (string, error) {
	if err := sess.Navigate(ctx, url, timeout); err != nil {
		return "", err
	}
	if err := l.sleeper.Sleep(ctx, l.settle); err != nil {
		return "", err
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return "", err
	}
	if html == "" {
		return "", errors.New("empty document")
	}
	return html, nil
}
