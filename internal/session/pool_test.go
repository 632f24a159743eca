package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

type fakeSession struct {
	id     int
	closed atomic.Bool
}

func (s *fakeSession) Navigate(context.Context, string, time.Duration) error { return nil }
func (s *fakeSession) HTML(context.Context) (string, error)                 { return "", nil }
func (s *fakeSession) Click(context.Context, string) error                  { return nil }
func (s *fakeSession) ScrollIntoView(context.Context, string) error         { return nil }
func (s *fakeSession) Remove(context.Context, string) error                 { return nil }
func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type countingFactory struct {
	mu      sync.Mutex
	created []*fakeSession
	err     error
}

func (f *countingFactory) New(context.Context) (news.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{id: len(f.created)}
	f.created = append(f.created, s)
	return s, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newTestPool(t *testing.T, capacity int) (*Pool, *countingFactory) {
	t.Helper()
	factory := &countingFactory{}
	pool, err := NewPool(factory, capacity, zap.NewNop())
	require.NoError(t, err)
	return pool, factory
}

func TestNewPoolRequiresFactory(t *testing.T) {
	t.Parallel()

	_, err := NewPool(nil, 1, zap.NewNop())
	require.Error(t, err)
}

func TestNewPoolDefaultCapacity(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 0)
	assert.Equal(t, DefaultCapacity, pool.Capacity())
}

func TestAcquireCreatesWhenIdleEmpty(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 2)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	c, err := pool.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, factory.count(), "acquire must create instead of waiting")
	assert.NotSame(t, a, b)
	assert.NotSame(t, b, c)

	idle, inUse := pool.Stats()
	assert.Equal(t, 0, idle)
	assert.Equal(t, 3, inUse)
}

func TestReleaseReusesSession(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s)

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, factory.count())
}

func TestReleaseBeyondCapacityDisposes(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 1)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)

	pool.Release(a)
	pool.Release(b)

	idle, inUse := pool.Stats()
	assert.Equal(t, 1, idle)
	assert.Equal(t, 0, inUse)
	assert.False(t, factory.created[0].closed.Load())
	assert.True(t, factory.created[1].closed.Load())
}

func TestReleaseIgnoresForeignAndDoubleRelease(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 4)
	s, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Release(s)
	pool.Release(s)
	pool.Release(&fakeSession{})

	idle, _ := pool.Stats()
	assert.Equal(t, 1, idle, "a session must be pooled at most once")
}

func TestDiscardDisposes(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 4)
	s, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Discard(s)

	idle, inUse := pool.Stats()
	assert.Equal(t, 0, idle)
	assert.Equal(t, 0, inUse)
	assert.True(t, factory.created[0].closed.Load())
}

func TestAcquireWrapsCreationError(t *testing.T) {
	t.Parallel()

	factory := &countingFactory{err: errors.New("no browser")}
	pool, err := NewPool(factory, 1, zap.NewNop())
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, news.ErrSessionCreation)
}

func TestDrainDisposesIdleAndClosesPool(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 4)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(a)

	pool.Drain()
	assert.True(t, factory.created[0].closed.Load())
	assert.False(t, factory.created[1].closed.Load())

	pool.Release(b)
	assert.True(t, factory.created[1].closed.Load(), "release after drain disposes")

	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, news.ErrPoolClosed)
}

func TestConcurrentUseNeverSharesSessions(t *testing.T) {
	t.Parallel()

	const capacity = 3
	pool, _ := newTestPool(t, capacity)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		inHand = make(map[news.Session]bool)
		wg     sync.WaitGroup
		dupes  atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s, err := pool.Acquire(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if inHand[s] {
					dupes.Add(1)
				}
				inHand[s] = true
				mu.Unlock()

				mu.Lock()
				delete(inHand, s)
				mu.Unlock()
				pool.Release(s)

				idle, _ := pool.Stats()
				if idle > capacity {
					t.Errorf("idle %d exceeds capacity %d", idle, capacity)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, dupes.Load())
	idle, inUse := pool.Stats()
	assert.LessOrEqual(t, idle, capacity)
	assert.Zero(t, inUse)
}
