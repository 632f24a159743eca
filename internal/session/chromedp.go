package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// ChromeConfig controls browser-backed sessions.
type ChromeConfig struct {
	UserAgent    string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// ChromeFactory creates one headless browser per session from a shared
// allocator.
type ChromeFactory struct {
	cfg         ChromeConfig
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromeFactory prepares an exec allocator; no browser starts until New.
func NewChromeFactory(cfg ChromeConfig, logger *zap.Logger) *ChromeFactory {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1920
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 1080
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeFactory{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// New starts a fresh browser and returns a session bound to its first tab.
func (f *ChromeFactory) New(ctx context.Context) (news.Session, error) {
	browserCtx, browserCancel := chromedp.NewContext(f.allocator)

	stopForward := forwardCancel(ctx, browserCancel)
	defer stopForward()

	warmup := chromedp.Tasks{network.Enable()}
	if f.cfg.UserAgent != "" {
		warmup = append(warmup, emulation.SetUserAgentOverride(f.cfg.UserAgent))
	}
	if err := chromedp.Run(browserCtx, warmup); err != nil {
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	s := &chromeSession{
		ctx:    browserCtx,
		cancel: browserCancel,
		logger: f.logger,
		meta:   &responseMeta{},
	}
	chromedp.ListenTarget(browserCtx, s.meta.captureEvent)
	return s, nil
}

// Close tears down the allocator. Sessions created by the factory should be
// closed first.
func (f *ChromeFactory) Close() {
	f.allocCancel()
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	meta   *responseMeta
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	s.meta.reset()
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if status := s.meta.status(); status >= 400 {
		return fmt.Errorf("navigate %s: http status %d", url, status)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) ScrollIntoView(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("scroll to %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Remove(ctx context.Context, selector string) error {
	script, err := removeScript(selector)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("remove %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// run executes actions on the session's tab, bounded by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()
	return chromedp.Run(taskCtx, actions...)
}

func removeScript(selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("quote selector: %w", err)
	}
	return fmt.Sprintf("document.querySelectorAll(%s).forEach(function(e){e.remove()})", quoted), nil
}

// responseMeta remembers the status of the last document response.
type responseMeta struct {
	mu   sync.Mutex
	code int
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.code = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.code = 0
	m.mu.Unlock()
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
