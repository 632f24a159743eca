package source

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// Outlet names.
const (
	Valor   = "Valor"
	Estadao = "Estadão"
	Folha   = "Folha"
	OGlobo  = "O Globo"
)

// Outlet is the static description of one monitored site.
type Outlet struct {
	Name      string
	BaseURL   string
	Budget    int
	Selectors Selectors
	Time      TimeParser
	Sections  map[string]string
	// Exactly one of PageURL or Expand is set.
	FirstURL string
	PageURL  func(n int) string
	Expand   *ExpandSpec
}

// ExpandSpec describes a click-to-expand listing.
type ExpandSpec struct {
	URL      string
	Button   string
	Overlays []string
}

// globoFeedSelectors match the shared feed markup of the Globo group sites.
var globoFeedSelectors = Selectors{
	Item:  "div.feed-post-body",
	Link:  "a.feed-post-link",
	Title: "a.feed-post-link",
	Category: []string{
		"span.feed-post-metadata-section",
		"a.feed-post-header-chapeu",
		"span.feed-post-header-chapeu",
	},
	Time: "span.feed-post-datetime",
}

// Outlets returns the catalog of monitored sites, in publication order.
func Outlets() []Outlet {
	return []Outlet{
		{
			Name:      Valor,
			BaseURL:   "https://valor.globo.com",
			Budget:    15,
			Selectors: globoFeedSelectors,
			Time:      FirstOf(AbsoluteTime, RelativeTime, ClockTime),
			FirstURL:  "https://valor.globo.com/ultimas-noticias/",
			PageURL: func(n int) string {
				return fmt.Sprintf("https://valor.globo.com/ultimas-noticias/index/feed/pagina-%d", n)
			},
		},
		{
			Name:    Estadao,
			BaseURL: "https://www.estadao.com.br",
			Budget:  12,
			Selectors: Selectors{
				Item:     "div.noticias-mais-recente--item",
				Link:     "a",
				Title:    "h3",
				Category: []string{"span.chapeu", "span.tag"},
				Time:     "span.date",
			},
			Time: FirstOf(AbsoluteTime, RelativeTime, ClockTime),
			Expand: &ExpandSpec{
				URL:    "https://www.estadao.com.br/ultimas/",
				Button: "button.more-news, div.button-more button",
				Overlays: []string{
					"#onetrust-banner-sdk",
					"div.paywall-modal",
					"div[id^='google_ads_iframe']",
				},
			},
		},
		{
			Name:    Folha,
			BaseURL: "https://www1.folha.uol.com.br",
			Budget:  8,
			Selectors: Selectors{
				Item:     "div.c-headline",
				Link:     "a.c-headline__url",
				Title:    "h2.c-headline__title",
				Category: []string{"span.c-headline__kicker"},
				Time:     "time.c-headline__dateline",
			},
			Time:     FirstOf(DottedMonthTime, AbsoluteTime, RelativeTime),
			FirstURL: "https://www1.folha.uol.com.br/ultimas-noticias/",
			PageURL: func(n int) string {
				return fmt.Sprintf("https://www1.folha.uol.com.br/ultimas-noticias/?pagina=%d", n)
			},
		},
		{
			Name:      OGlobo,
			BaseURL:   "https://oglobo.globo.com",
			Budget:    10,
			Selectors: globoFeedSelectors,
			Time:      FirstOf(RelativeTime, AbsoluteTime, ClockTime),
			FirstURL:  "https://oglobo.globo.com/ultimas-noticias/",
			PageURL: func(n int) string {
				return fmt.Sprintf("https://oglobo.globo.com/ultimas-noticias/index/feed/pagina-%d.ghtml", n)
			},
		},
	}
}

// BuildOptions carries the collaborators and knobs shared by every adapter.
type BuildOptions struct {
	Loader        PageLoader
	Sleeper       Sleeper
	Clock         news.Clock
	Logger        *zap.Logger
	MaxEmptyPages int
	ClickSettle   time.Duration
	// Quick divides every budget by QuickDivisor, keeping at least one page.
	Quick        bool
	QuickDivisor int
	// Enabled limits the build to these outlet names; empty means all.
	Enabled []string
}

// Build turns outlets into adapters.
func Build(outlets []Outlet, opts BuildOptions) ([]*Adapter, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("page loader is required")
	}
	enabled := make(map[string]bool, len(opts.Enabled))
	for _, name := range opts.Enabled {
		enabled[strings.ToLower(strings.TrimSpace(name))] = true
	}

	var out []*Adapter
	for _, o := range outlets {
		if len(enabled) > 0 && !enabled[strings.ToLower(o.Name)] && !enabled[Slug(o.Name)] {
			continue
		}
		a, err := buildOne(o, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no outlets enabled")
	}
	return out, nil
}

func buildOne(o Outlet, opts BuildOptions) (*Adapter, error) {
	extractor, err := NewSelectorExtractor(o.Selectors, o.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("outlet %s: %w", o.Name, err)
	}

	var strategy Strategy
	switch {
	case o.Expand != nil:
		strategy = Expander{
			URL:      o.Expand.URL,
			Button:   o.Expand.Button,
			Overlays: o.Expand.Overlays,
			Settle:   opts.ClickSettle,
			Loader:   opts.Loader,
			Sleeper:  opts.Sleeper,
		}
	case o.PageURL != nil:
		strategy = URLPager{FirstURL: o.FirstURL, PageURL: o.PageURL, Loader: opts.Loader}
	default:
		return nil, fmt.Errorf("outlet %s: no paging strategy", o.Name)
	}

	budget := o.Budget
	if opts.Quick {
		budget = QuickBudget(budget, opts.QuickDivisor)
	}
	sections := o.Sections
	if sections == nil {
		sections = DefaultSectionCategories
	}
	return NewAdapter(Config{
		Name:          o.Name,
		Strategy:      strategy,
		Extractor:     extractor,
		TimeParser:    o.Time,
		Categories:    CategoryResolver{Sections: sections},
		Budget:        budget,
		MaxEmptyPages: opts.MaxEmptyPages,
	}, opts.Clock, opts.Logger)
}

// QuickBudget scales a budget down for quick runs.
func QuickBudget(budget, divisor int) int {
	if divisor <= 0 {
		divisor = 3
	}
	if b := budget / divisor; b > 1 {
		return b
	}
	return 1
}

// Slug returns an ASCII file-name-safe form of an outlet name.
func Slug(name string) string {
	replacer := strings.NewReplacer(
		"ã", "a", "á", "a", "â", "a", "à", "a",
		"é", "e", "ê", "e", "í", "i",
		"ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c",
	)
	s := replacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(strings.Fields(s), "_")
}
