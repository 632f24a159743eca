package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/aggregator"
	"github.com/JakeFAU/monitor-noticias/internal/news"
	"github.com/JakeFAU/monitor-noticias/internal/publish"
	"github.com/JakeFAU/monitor-noticias/internal/source"
	"github.com/JakeFAU/monitor-noticias/internal/storage/postgres"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n atomic.Int32 }

func (g *seqIDs) NewID() (string, error) {
	return "run-" + string(rune('0'+g.n.Add(1))), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

type nopLoader struct{}

func (nopLoader) Load(context.Context, news.Session, string) (string, error) {
	return "<html></html>", nil
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	active   atomic.Int32
	overlap  atomic.Bool
	names    []string
	budgets  []int
	timeouts []time.Duration
	feed     news.CombinedFeed
	hold     time.Duration
}

func (r *fakeRunner) Run(_ context.Context, sources []aggregator.Source, timeout time.Duration) news.CombinedFeed {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)
	time.Sleep(r.hold)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.names = r.names[:0]
	r.budgets = r.budgets[:0]
	for _, s := range sources {
		r.names = append(r.names, s.Name())
		if a, ok := s.(*source.Adapter); ok {
			r.budgets = append(r.budgets, a.Budget())
		}
	}
	r.timeouts = append(r.timeouts, timeout)
	return r.feed
}

type fakePublisher struct {
	feeds []news.CombinedFeed
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, feed news.CombinedFeed) (publish.Artifacts, error) {
	p.feeds = append(p.feeds, feed)
	if p.err != nil {
		return publish.Artifacts{}, p.err
	}
	return publish.Artifacts{Feed: "file:///out/noticias.json", HTML: "file:///out/monitor_noticias.html"}, nil
}

type fakeLedger struct {
	records []postgres.RunRecord
	err     error
}

func (l *fakeLedger) RecordRun(_ context.Context, rec postgres.RunRecord) error {
	l.records = append(l.records, rec)
	return l.err
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, feed news.CombinedFeed, artifacts []string) (string, error) {
	args := m.Called(ctx, feed, artifacts)
	return args.String(0), args.Error(1)
}

func artifactCount(n int) any {
	return mock.MatchedBy(func(artifacts []string) bool { return len(artifacts) == n })
}

func sampleFeed() news.CombinedFeed {
	return news.CombinedFeed{
		GeneratedAt: time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC),
		Articles:    []news.Article{{Title: "A", Source: source.Valor, Date: "18/10/2026", Time: "14:00"}},
		Sources: []news.SourceRunResult{
			{Source: source.Valor},
			{Source: source.Folha, Err: news.ErrWorkerTimeout},
		},
	}
}

func newService(t *testing.T, deps Deps) *Service {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = fixedClock{now: time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)}
	}
	if deps.IDs == nil {
		deps.IDs = &seqIDs{}
	}
	svc, err := New(deps, Config{
		Build: source.BuildOptions{Loader: nopLoader{}, QuickDivisor: 3},
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestExtractAllFullRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{feed: sampleFeed()}
	pub := &fakePublisher{}
	ledger := &fakeLedger{}
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything,
		mock.MatchedBy(func(f news.CombinedFeed) bool { return f.RunID == "run-1" }),
		artifactCount(2),
	).Return("msg-1", nil).Once()
	svc := newService(t, Deps{Runner: runner, Publisher: pub, Ledger: ledger, Notifier: notifier})

	feed, err := svc.ExtractAll(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "run-1", feed.RunID)
	assert.Equal(t, []string{source.Valor, source.Estadao, source.Folha, source.OGlobo}, runner.names)
	assert.Equal(t, []int{15, 12, 8, 10}, runner.budgets)
	assert.Equal(t, []time.Duration{DefaultWorkerTimeout}, runner.timeouts)

	require.Len(t, pub.feeds, 1)
	assert.Equal(t, "run-1", pub.feeds[0].RunID)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, "run-1", ledger.records[0].RunID)
	assert.Equal(t, "file:///out/noticias.json", ledger.records[0].ArtifactURI)
	assert.Equal(t, map[string]string{source.Folha: "worker timed out"}, ledger.records[0].Failed)

	notifier.AssertExpectations(t)

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Equal(t, "run-1", last.RunID)
}

func TestExtractAllQuickMode(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{feed: sampleFeed()}
	svc := newService(t, Deps{Runner: runner, Publisher: &fakePublisher{}})

	_, err := svc.ExtractAll(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 4, 2, 3}, runner.budgets)
	assert.Equal(t, []time.Duration{DefaultQuickWorkerTimeout}, runner.timeouts)
}

func TestExtractAllPersistenceFailuresAreContained(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{feed: sampleFeed()}
	pub := &fakePublisher{err: news.ErrPersistence}
	ledger := &fakeLedger{err: errors.New("db down")}
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything, artifactCount(0)).
		Return("", errors.New("topic missing")).Once()
	svc := newService(t, Deps{Runner: runner, Publisher: pub, Ledger: ledger, Notifier: notifier})

	feed, err := svc.ExtractAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, feed.Articles, 1)
	assert.Len(t, ledger.records, 1)
	notifier.AssertExpectations(t)
}

func TestExtractAllSerializesRuns(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{feed: sampleFeed(), hold: 20 * time.Millisecond}
	svc := newService(t, Deps{Runner: runner, Publisher: &fakePublisher{}})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ExtractAll(context.Background(), true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, runner.calls)
	assert.False(t, runner.overlap.Load())
}

func TestExtractAllIDFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{feed: sampleFeed()}
	svc := newService(t, Deps{Runner: runner, Publisher: &fakePublisher{}, IDs: failingIDs{}})

	_, err := svc.ExtractAll(context.Background(), false)
	require.Error(t, err)
	assert.Zero(t, runner.calls)

	_, ok := svc.Last()
	assert.False(t, ok)
}

func TestExtractAllNoEnabledOutlets(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	svc, err := New(Deps{
		Runner:    runner,
		Publisher: &fakePublisher{},
		Clock:     fixedClock{},
		IDs:       &seqIDs{},
	}, Config{Build: source.BuildOptions{Loader: nopLoader{}, Enabled: []string{"nowhere"}}}, nil)
	require.NoError(t, err)

	_, err = svc.ExtractAll(context.Background(), false)
	require.Error(t, err)
	assert.Zero(t, runner.calls)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{}, nil)
	require.Error(t, err)
	_, err = New(Deps{Runner: &fakeRunner{}}, Config{}, nil)
	require.Error(t, err)
	_, err = New(Deps{Runner: &fakeRunner{}, Publisher: &fakePublisher{}}, Config{}, nil)
	require.Error(t, err)
	_, err = New(Deps{Runner: &fakeRunner{}, Publisher: &fakePublisher{}, Clock: fixedClock{}}, Config{}, nil)
	require.Error(t, err)
}
