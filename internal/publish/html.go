package publish

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

//go:embed templates/monitor.html.tmpl
var monitorTemplate string

var monitorPage = template.Must(template.New("monitor").Parse(monitorTemplate))

// DefaultCategoryColor is used for categories without an assigned colour.
const DefaultCategoryColor = "#9E9E9E"

var categoryColors = map[string]string{
	"Empresas":               "#4CAF50",
	"Política":               "#2196F3",
	"Brasil":                 "#FF9800",
	"Finanças":               "#9C27B0",
	"Mundo":                  "#E91E63",
	"Agronegócios":           "#8BC34A",
	"Carreira":               "#00BCD4",
	"Tecnologia":             "#673AB7",
	"Legislação":             "#795548",
	"Opinião":                "#607D8B",
	news.UnspecifiedCategory: "#9E9E9E",
}

// CategoryColor returns the badge colour for category.
func CategoryColor(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return DefaultCategoryColor
}

type pageRow struct {
	Title    string
	Link     string
	Category string
	Color    template.CSS
	Source   string
	Time     string
	SortKey  string
}

type pageData struct {
	UpdatedDate string
	UpdatedTime string
	Total       int
	Rows        []pageRow
}

// RenderHTML renders the monitor table for feed. Rows keep the feed order.
func RenderHTML(feed news.CombinedFeed, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	updated := feed.GeneratedAt.In(loc)
	data := pageData{
		UpdatedDate: updated.Format(news.DateLayout),
		UpdatedTime: updated.Format("15:04:05"),
		Total:       len(feed.Articles),
		Rows:        make([]pageRow, 0, len(feed.Articles)),
	}
	for _, a := range feed.Articles {
		sortKey := a.Date + " " + a.Time
		if ts, err := a.Key(loc); err == nil {
			sortKey = ts.Format("2006-01-02 15:04")
		}
		data.Rows = append(data.Rows, pageRow{
			Title:    a.Title,
			Link:     a.Link,
			Category: a.Category,
			// Colours come from a fixed table, never from scraped text.
			Color:   template.CSS(CategoryColor(a.Category)), // #nosec G203
			Source:  a.Source,
			Time:    a.Time,
			SortKey: sortKey,
		})
	}

	var buf bytes.Buffer
	if err := monitorPage.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
