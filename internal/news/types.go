package news

import (
	"fmt"
	"time"
)

// Date and time layouts used by persisted Article records.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
	keyLayout  = DateLayout + " " + TimeLayout
)

// UnspecifiedCategory is used when neither the markup nor the URL yields a category.
const UnspecifiedCategory = "Não especificada"

// Article is a single headline collected from an outlet. Title is the
// business key within one aggregation run.
type Article struct {
	Title    string `json:"titulo"`
	Category string `json:"categoria"`
	Source   string `json:"fonte"`
	Date     string `json:"data"`
	Time     string `json:"hora"`
	Link     string `json:"link"`
}

// Key parses Date and Time into a single sortable timestamp in loc.
func (a Article) Key(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	ts, err := time.ParseInLocation(keyLayout, a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q: %v", ErrTimeParse, a.Date, a.Time, err)
	}
	return ts, nil
}

// NewArticle builds an Article with the date/time fields formatted from ts.
func NewArticle(title, category, source, link string, ts time.Time) Article {
	return Article{
		Title:    title,
		Category: category,
		Source:   source,
		Date:     ts.Format(DateLayout),
		Time:     ts.Format(TimeLayout),
		Link:     link,
	}
}

// SourceRunResult is what one aggregator worker produced for one source.
type SourceRunResult struct {
	Source   string
	Articles []Article
	Err      error
	Duration time.Duration
}

// Failed reports whether the source contributed a failure marker instead of articles.
func (r SourceRunResult) Failed() bool {
	return r.Err != nil
}

// CombinedFeed is the deduplicated, time-sorted union of every source's
// articles for one run.
type CombinedFeed struct {
	RunID       string
	GeneratedAt time.Time
	Articles    []Article
	Sources     []SourceRunResult
}

// BySource returns the feed's articles grouped by source, preserving feed order.
func (f CombinedFeed) BySource() map[string][]Article {
	out := make(map[string][]Article)
	for _, r := range f.Sources {
		out[r.Source] = []Article{}
	}
	for _, a := range f.Articles {
		out[a.Source] = append(out[a.Source], a)
	}
	return out
}
