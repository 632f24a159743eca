// Package scheduler drives automatic mode: one extraction right away, then
// one per interval. A tick that arrives while the previous run is still in
// progress is skipped.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a fixed interval.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *zap.Logger
}

// New builds a Scheduler. Intervals are rounded to whole seconds.
func New(interval time.Duration, job Job, logger *zap.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if interval < time.Second {
		return nil, errors.New("interval must be at least 1s")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{interval: interval, job: job, logger: logger.Named("scheduler")}, nil
}

// Run executes the job immediately and then every interval until ctx is
// done. It returns after the in-flight run, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	clog := cronLogger{l: s.logger}
	c := cron.New(cron.WithLogger(clog))

	wrapped := cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).
		Then(cron.FuncJob(func() { s.runOnce(ctx) }))
	c.Schedule(cron.Every(s.interval), wrapped)

	s.logger.Info("Automatic mode started", zap.Duration("interval", s.interval))
	c.Start()

	// The first run happens outside cron, so Stop does not wait for it.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		wrapped.Run()
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	s.logger.Info("Automatic mode stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Info("Scheduled run finished",
		zap.Duration("duration", time.Since(start)),
		zap.Time("next", time.Now().Add(s.interval)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
