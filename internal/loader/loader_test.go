package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

type flakySession struct {
	failures int
	calls    int
	timeouts []time.Duration
	html     string
}

func (s *flakySession) Navigate(_ context.Context, _ string, timeout time.Duration) error {
	s.calls++
	s.timeouts = append(s.timeouts, timeout)
	if s.calls <= s.failures {
		return errors.New("net::ERR_TIMED_OUT")
	}
	return nil
}

func (s *flakySession) HTML(context.Context) (string, error)         { return s.html, nil }
func (s *flakySession) Click(context.Context, string) error          { return nil }
func (s *flakySession) ScrollIntoView(context.Context, string) error { return nil }
func (s *flakySession) Remove(context.Context, string) error         { return nil }
func (s *flakySession) Close() error                                 { return nil }

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

type countingWaiter struct{ calls int }

func (w *countingWaiter) Wait(context.Context, string) error {
	w.calls++
	return nil
}

func newTestLoader(sleeper Sleeper, opts ...Option) *Loader {
	base := []Option{WithSleeper(sleeper), WithLogger(zap.NewNop()), WithSettleDelay(time.Second)}
	return New(DefaultRetryPolicy(), append(base, opts...)...)
}

func TestLoadSucceedsImmediately(t *testing.T) {
	t.Parallel()

	sess := &flakySession{html: "<html></html>"}
	sleeper := &recordingSleeper{}
	l := newTestLoader(sleeper)

	html, err := l.Load(context.Background(), sess, "https://valor.globo.com/")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", html)
	assert.Equal(t, 1, sess.calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.sleeps, "only the settle delay")
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	sess := &flakySession{failures: 2, html: "<html>ok</html>"}
	sleeper := &recordingSleeper{}
	l := newTestLoader(sleeper)

	html, err := l.Load(context.Background(), sess, "https://valor.globo.com/")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)
	assert.Equal(t, 3, sess.calls)
	assert.Equal(t, []time.Duration{20 * time.Second, 30 * time.Second, 40 * time.Second}, sess.timeouts)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, time.Second}, sleeper.sleeps)
}

func TestLoadExhaustsExactlyMaxAttempts(t *testing.T) {
	t.Parallel()

	sess := &flakySession{failures: 100}
	waiter := &countingWaiter{}
	l := newTestLoader(&recordingSleeper{}, WithWaiter(waiter))

	_, err := l.Load(context.Background(), sess, "https://oglobo.globo.com/ultimas-noticias/")
	require.Error(t, err)
	assert.ErrorIs(t, err, news.ErrNavigation)
	assert.Contains(t, err.Error(), "ERR_TIMED_OUT")
	assert.Equal(t, DefaultMaxAttempts, sess.calls)
	assert.Equal(t, DefaultMaxAttempts, waiter.calls)
}

func TestLoadCustomPolicy(t *testing.T) {
	t.Parallel()

	sess := &flakySession{failures: 100}
	policy := NewRetryPolicy(5, time.Second, 0, time.Millisecond)
	l := New(policy, WithSleeper(&recordingSleeper{}))

	_, err := l.Load(context.Background(), sess, "https://example.com")
	require.ErrorIs(t, err, news.ErrNavigation)
	assert.Equal(t, 5, sess.calls)
	for _, timeout := range sess.timeouts {
		assert.Equal(t, time.Second, timeout)
	}
}

func TestLoadStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	sess := &flakySession{failures: 100}
	l := newTestLoader(&recordingSleeper{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, sess, "https://example.com")
	require.ErrorIs(t, err, news.ErrNavigation)
	assert.Equal(t, 1, sess.calls)
}

func TestLoadTreatsEmptyDocumentAsFailure(t *testing.T) {
	t.Parallel()

	sess := &flakySession{}
	l := newTestLoader(&recordingSleeper{})

	_, err := l.Load(context.Background(), sess, "https://example.com")
	require.ErrorIs(t, err, news.ErrNavigation)
	assert.Equal(t, DefaultMaxAttempts, sess.calls)
}

func TestLinearTimeout(t *testing.T) {
	t.Parallel()

	timeout := LinearTimeout(20*time.Second, 10*time.Second)
	assert.Equal(t, 20*time.Second, timeout(0))
	assert.Equal(t, 30*time.Second, timeout(1))
	assert.Equal(t, 40*time.Second, timeout(2))
}

func TestTimerSleeperHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), time.Millisecond))
}
