package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// CollyConfig controls render-less sessions.
type CollyConfig struct {
	UserAgent string
}

// CollyFactory creates render-less sessions that share one HTTP transport.
// They suit outlets whose listing pages are served fully rendered and paged by
// URL; interaction methods return news.ErrInteractionUnsupported.
type CollyFactory struct {
	cfg           CollyConfig
	baseCollector *colly.Collector
}

// NewCollyFactory builds a factory with a pooled transport.
func NewCollyFactory(cfg CollyConfig) *CollyFactory {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &CollyFactory{cfg: cfg, baseCollector: c}
}

// New returns a session; no network I/O happens until Navigate.
func (f *CollyFactory) New(_ context.Context) (news.Session, error) {
	return &collySession{base: f.baseCollector}, nil
}

type collySession struct {
	base *colly.Collector
	body string
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

func (s *collySession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	collector := s.base.Clone()
	collector.SetRequestTimeout(timeout)

	var (
		body     string
		fetchErr error
	)
	configureHooks(collector, &body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("navigate %s canceled: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if fetchErr != nil {
			return fmt.Errorf("navigate %s: %w", url, fetchErr)
		}
		s.body = body
		return nil
	}
}

func configureHooks(hooks collectorHooks, body *string, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = string(r.Body)
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (s *collySession) HTML(_ context.Context) (string, error) {
	return s.body, nil
}

func (s *collySession) Click(context.Context, string) error {
	return news.ErrInteractionUnsupported
}

func (s *collySession) ScrollIntoView(context.Context, string) error {
	return news.ErrInteractionUnsupported
}

func (s *collySession) Remove(context.Context, string) error {
	return news.ErrInteractionUnsupported
}

func (s *collySession) Close() error {
	s.body = ""
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
