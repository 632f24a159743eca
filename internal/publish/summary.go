package publish

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// DefaultSummaryTitleWidth bounds the title column of the terminal summary.
const DefaultSummaryTitleWidth = 70

// WriteSummary prints a per-source status table followed by the newest
// headlines. Column widths are computed on display width so accented titles
// line up.
func WriteSummary(w io.Writer, feed news.CombinedFeed, headlines int) error {
	bySource := feed.BySource()
	sources := [][]string{{"Fonte", "Status", "Notícias", "Duração"}}
	for _, r := range feed.Sources {
		status := "ok"
		if r.Failed() {
			status = "falha: " + r.Err.Error()
		}
		sources = append(sources, []string{
			r.Source,
			status,
			strconv.Itoa(len(bySource[r.Source])),
			r.Duration.Round(100 * time.Millisecond).String(),
		})
	}
	if _, err := fmt.Fprintf(w, "Total de notícias: %d\n", len(feed.Articles)); err != nil {
		return err
	}
	if err := writeTable(w, sources); err != nil {
		return err
	}

	if headlines <= 0 || len(feed.Articles) == 0 {
		return nil
	}
	if headlines > len(feed.Articles) {
		headlines = len(feed.Articles)
	}
	rows := [][]string{{"Hora", "Fonte", "Título"}}
	for _, a := range feed.Articles[:headlines] {
		rows = append(rows, []string{
			a.Time,
			a.Source,
			runewidth.Truncate(a.Title, DefaultSummaryTitleWidth, "…"),
		})
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return writeTable(w, rows)
}

func writeTable(w io.Writer, table [][]string) error {
	if len(table) == 0 {
		return nil
	}
	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if cw := runewidth.StringWidth(row[i]); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	var sb strings.Builder
	for rIdx, row := range table {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(widths)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
		if rIdx == 0 {
			total := 0
			for _, cw := range widths {
				total += cw
			}
			sb.WriteString(strings.Repeat("-", total+2*(len(widths)-1)))
			sb.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
