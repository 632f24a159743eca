// Package session manages fetch sessions: the bounded pool that hands them out
// and the browser-backed and render-less session implementations.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/metrics"
	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// DefaultCapacity is the number of idle sessions a pool retains.
const DefaultCapacity = 4

// Pool hands out reusable sessions. Acquire never waits on network I/O: when
// no idle session exists a new one is created right away. Release keeps at
// most capacity idle sessions and disposes the rest. It is safe for
// concurrent use.
type Pool struct {
	factory  news.SessionFactory
	capacity int
	logger   *zap.Logger

	mu       sync.Mutex
	idle     []news.Session
	checkout map[news.Session]struct{}
	closed   bool
}

// NewPool creates a pool. A capacity <= 0 selects DefaultCapacity.
func NewPool(factory news.SessionFactory, capacity int, logger *zap.Logger) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		factory:  factory,
		capacity: capacity,
		logger:   logger,
		checkout: make(map[news.Session]struct{}),
	}, nil
}

// Acquire returns an idle session or creates a new one. Creation errors are
// wrapped with news.ErrSessionCreation.
func (p *Pool) Acquire(ctx context.Context) (news.Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, news.ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.checkout[s] = struct{}{}
		p.observeLocked()
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.factory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrSessionCreation, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: factory returned nil session", news.ErrSessionCreation)
	}
	metrics.ObserveSessionCreated()
	p.logger.Debug("session created")

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.dispose(s)
		return nil, news.ErrPoolClosed
	}
	p.checkout[s] = struct{}{}
	p.observeLocked()
	p.mu.Unlock()
	return s, nil
}

// Release returns s to the pool, or disposes it when the pool is full or
// closed. Releasing a session the pool did not hand out is ignored.
func (p *Pool) Release(s news.Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.checkout[s]; !ok {
		p.mu.Unlock()
		p.logger.Warn("ignoring release of session not checked out")
		return
	}
	delete(p.checkout, s)
	if p.closed || len(p.idle) >= p.capacity {
		p.observeLocked()
		p.mu.Unlock()
		p.dispose(s)
		return
	}
	p.idle = append(p.idle, s)
	p.observeLocked()
	p.mu.Unlock()
}

// Discard disposes s without returning it to the pool. Use it for sessions
// that failed mid-use and may be in an inconsistent state.
func (p *Pool) Discard(s news.Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.checkout[s]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.checkout, s)
	p.observeLocked()
	p.mu.Unlock()
	p.dispose(s)
}

// Drain disposes every idle session and closes the pool. Sessions still
// checked out are disposed when they are released.
func (p *Pool) Drain() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.observeLocked()
	p.mu.Unlock()

	for _, s := range idle {
		p.dispose(s)
	}
	p.logger.Info("session pool drained", zap.Int("disposed", len(idle)))
}

// Stats reports the number of idle and checked-out sessions.
func (p *Pool) Stats() (idle, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), len(p.checkout)
}

// Capacity returns the maximum number of idle sessions retained.
func (p *Pool) Capacity() int {
	return p.capacity
}

func (p *Pool) dispose(s news.Session) {
	if err := s.Close(); err != nil {
		p.logger.Warn("session close failed", zap.Error(err))
	}
	metrics.ObserveSessionDisposed()
}

func (p *Pool) observeLocked() {
	metrics.SetPoolSizes(len(p.idle), len(p.checkout))
}
