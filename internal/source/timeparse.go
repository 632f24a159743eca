package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// TimeParser converts an outlet's date/time text into an instant in
// now's location. Relative phrases are resolved against now.
type TimeParser interface {
	Parse(text string, now time.Time) (time.Time, error)
}

// TimeParserFunc adapts a function to TimeParser.
type TimeParserFunc func(text string, now time.Time) (time.Time, error)

// Parse calls f.
func (f TimeParserFunc) Parse(text string, now time.Time) (time.Time, error) {
	return f(text, now)
}

var (
	absolutePattern = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4}),?\s*(?:às\s*)?(\d{1,2})[:h](\d{2})`)
	dottedPattern   = regexp.MustCompile(`(?i)(\d{1,2})\.([a-zç]{3})\.(\d{4})\s*(?:às\s*)?(\d{1,2})[h:](\d{2})`)
	relativePattern = regexp.MustCompile(`(?i)h[áa]\s+(\d+)\s*(minutos?|min|horas?|h|dias?)\b`)
	clockPattern    = regexp.MustCompile(`^(?:hoje,?\s*)?(?:às\s*)?(\d{1,2})[:h](\d{2})$`)
	justNowPattern  = regexp.MustCompile(`(?i)^(agora|agora mesmo|há instantes|há poucos segundos)$`)
)

var portugueseMonths = map[string]time.Month{
	"jan": time.January,
	"fev": time.February,
	"mar": time.March,
	"abr": time.April,
	"mai": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"set": time.September,
	"out": time.October,
	"nov": time.November,
	"dez": time.December,
}

// AbsoluteTime parses "DD/MM/YYYY, HH:MM" anywhere in the text.
var AbsoluteTime = TimeParserFunc(func(text string, now time.Time) (time.Time, error) {
	m := absolutePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, timeParseError(text)
	}
	day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	return buildTime(text, now.Location(), year, time.Month(month), day, atoi(m[4]), atoi(m[5]))
})

// DottedMonthTime parses month-name dates such as "18.out.2026 às 14h30".
var DottedMonthTime = TimeParserFunc(func(text string, now time.Time) (time.Time, error) {
	m := dottedPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, timeParseError(text)
	}
	month, ok := portugueseMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, timeParseError(text)
	}
	return buildTime(text, now.Location(), atoi(m[3]), month, atoi(m[1]), atoi(m[4]), atoi(m[5]))
})

// RelativeTime parses phrases such as "Há 5 minutos", "há 2 horas" and "agora".
var RelativeTime = TimeParserFunc(func(text string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	if justNowPattern.MatchString(trimmed) {
		return now.Truncate(time.Minute), nil
	}
	m := relativePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return time.Time{}, timeParseError(text)
	}
	n := atoi(m[1])
	var ts time.Time
	switch unit := strings.ToLower(m[2]); {
	case strings.HasPrefix(unit, "min"):
		ts = now.Add(-time.Duration(n) * time.Minute)
	case strings.HasPrefix(unit, "h"):
		ts = now.Add(-time.Duration(n) * time.Hour)
	default:
		ts = now.AddDate(0, 0, -n)
	}
	return ts.Truncate(time.Minute), nil
})

// ClockTime parses a bare "HH:MM" or "14h30" as a time on now's date.
var ClockTime = TimeParserFunc(func(text string, now time.Time) (time.Time, error) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return time.Time{}, timeParseError(text)
	}
	return buildTime(text, now.Location(), now.Year(), now.Month(), now.Day(), atoi(m[1]), atoi(m[2]))
})

// FirstOf tries each parser in order and returns the first success.
func FirstOf(parsers ...TimeParser) TimeParser {
	return TimeParserFunc(func(text string, now time.Time) (time.Time, error) {
		if strings.TrimSpace(text) == "" {
			return time.Time{}, fmt.Errorf("%w: missing time text", news.ErrTimeParse)
		}
		for _, p := range parsers {
			if ts, err := p.Parse(text, now); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, timeParseError(text)
	})
}

func buildTime(text string, loc *time.Location, year int, month time.Month, day, hour, minute int) (time.Time, error) {
	if month < time.January || month > time.December || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, timeParseError(text)
	}
	ts := time.Date(year, month, day, hour, minute, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject instead.
	if ts.Day() != day || ts.Month() != month {
		return time.Time{}, timeParseError(text)
	}
	return ts, nil
}

func timeParseError(text string) error {
	return fmt.Errorf("%w: %q", news.ErrTimeParse, text)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// compareDay reports the calendar relation between ts and today: -1 before,
// 0 same day, 1 after.
func compareDay(ts, today time.Time) int {
	ty, tm, td := ts.Date()
	y, m, d := today.Date()
	a := ty*10000 + int(tm)*100 + td
	b := y*10000 + int(m)*100 + d
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
