package source

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// PageLoader loads one URL through a session. *loader.Loader implements it.
type PageLoader interface {
	Load(ctx context.Context, sess news.Session, url string) (string, error)
}

// Sleeper pauses between interactions.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Strategy moves an adapter through an outlet's listing. First returns the
// markup of the first page; Advance returns the markup after moving to page
// n (n >= 2). An Advance error means no more content can be reached.
type Strategy interface {
	First(ctx context.Context, sess news.Session) (string, error)
	Advance(ctx context.Context, sess news.Session, n int) (string, error)
}

// URLPager pages by building one URL per page and loading it.
type URLPager struct {
	FirstURL string
	PageURL  func(n int) string
	Loader   PageLoader
}

// First loads FirstURL, or page 1 when FirstURL is empty.
func (p URLPager) First(ctx context.Context, sess news.Session) (string, error) {
	u := p.FirstURL
	if u == "" {
		u = p.PageURL(1)
	}
	return p.Loader.Load(ctx, sess, u)
}

// Advance loads page n.
func (p URLPager) Advance(ctx context.Context, sess news.Session, n int) (string, error) {
	return p.Loader.Load(ctx, sess, p.PageURL(n))
}

// Expander loads one URL and then grows the listing in place by clicking a
// "load more" control. Overlays are removed before each click.
type Expander struct {
	URL      string
	Button   string
	Overlays []string
	Settle   time.Duration
	Loader   PageLoader
	Sleeper  Sleeper
}

// First loads the listing URL.
func (e Expander) First(ctx context.Context, sess news.Session) (string, error) {
	return e.Loader.Load(ctx, sess, e.URL)
}

// Advance clicks the load-more control and returns the grown document.
func (e Expander) Advance(ctx context.Context, sess news.Session, _ int) (string, error) {
	for _, overlay := range e.Overlays {
		if err := sess.Remove(ctx, overlay); err != nil {
			return "", fmt.Errorf("remove overlay: %w", err)
		}
	}
	if err := sess.ScrollIntoView(ctx, e.Button); err != nil {
		return "", fmt.Errorf("load-more control: %w", err)
	}
	if err := sess.Click(ctx, e.Button); err != nil {
		return "", fmt.Errorf("click load-more: %w", err)
	}
	if e.Sleeper != nil {
		if err := e.Sleeper.Sleep(ctx, e.Settle); err != nil {
			return "", err
		}
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read expanded document: %w", err)
	}
	return html, nil
}
