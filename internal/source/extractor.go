package source

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// Candidate is one listing entry read from markup, before time and category
// normalization. Err is set when the entry could not be read.
type Candidate struct {
	Title        string
	Link         string
	CategoryText string
	TimeText     string
	Err          error
}

// Extractor reads listing entries from page markup, in document order.
type Extractor interface {
	Extract(markup string) ([]Candidate, error)
}

// Selectors configures a SelectorExtractor. Item is evaluated against the
// document and every other selector against each item. Category selectors
// are tried in order; Title falls back to the link text when empty.
type Selectors struct {
	Item     string
	Link     string
	Title    string
	Category []string
	Time     string
	// TimeAttr reads the time from an attribute of the Time element instead
	// of its text.
	TimeAttr string
}

// SelectorExtractor extracts candidates with CSS selectors.
type SelectorExtractor struct {
	sel  Selectors
	base *url.URL
}

// NewSelectorExtractor builds an extractor resolving relative links against baseURL.
func NewSelectorExtractor(sel Selectors, baseURL string) (*SelectorExtractor, error) {
	if sel.Item == "" || sel.Link == "" {
		return nil, fmt.Errorf("item and link selectors are required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &SelectorExtractor{sel: sel, base: base}, nil
}

// Extract returns one candidate per item element.
func (e *SelectorExtractor) Extract(markup string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	var out []Candidate
	doc.Find(e.sel.Item).Each(func(_ int, item *goquery.Selection) {
		out = append(out, e.candidate(item))
	})
	return out, nil
}

func (e *SelectorExtractor) candidate(item *goquery.Selection) Candidate {
	link := item.Find(e.sel.Link).First()
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return Candidate{Err: fmt.Errorf("%w: missing link", news.ErrExtraction)}
	}
	abs, err := e.resolve(href)
	if err != nil {
		return Candidate{Err: fmt.Errorf("%w: %w", news.ErrExtraction, err)}
	}

	title := link.Text()
	if e.sel.Title != "" {
		if t := item.Find(e.sel.Title).First(); t.Length() > 0 {
			title = t.Text()
		}
	}
	title = normalizeSpace(title)
	if title == "" {
		return Candidate{Link: abs, Err: fmt.Errorf("%w: missing title", news.ErrExtraction)}
	}

	c := Candidate{Title: title, Link: abs}
	for _, sel := range e.sel.Category {
		if text := normalizeSpace(item.Find(sel).First().Text()); text != "" {
			c.CategoryText = text
			break
		}
	}
	if e.sel.Time != "" {
		node := item.Find(e.sel.Time).First()
		if e.sel.TimeAttr != "" {
			c.TimeText, _ = node.Attr(e.sel.TimeAttr)
		}
		if strings.TrimSpace(c.TimeText) == "" {
			c.TimeText = normalizeSpace(node.Text())
		}
	}
	return c
}

func (e *SelectorExtractor) resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return e.base.ResolveReference(ref).String(), nil
}
