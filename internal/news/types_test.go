package news

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleKey(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	a := NewArticle("Copom mantém juros", "Economia", "Valor", "https://valor.globo.com/x", time.Date(2026, 10, 18, 9, 5, 0, 0, loc))
	assert.Equal(t, "18/10/2026", a.Date)
	assert.Equal(t, "09:05", a.Time)

	ts, err := a.Key(loc)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2026, 10, 18, 9, 5, 0, 0, loc)))

	_, err = Article{Date: "2026-10-18", Time: "9h"}.Key(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeParse))
}

func TestCombinedFeedBySource(t *testing.T) {
	t.Parallel()

	feed := CombinedFeed{
		Articles: []Article{
			{Title: "B", Source: "Folha"},
			{Title: "A", Source: "Valor"},
			{Title: "C", Source: "Folha"},
		},
		Sources: []SourceRunResult{
			{Source: "Valor"},
			{Source: "Folha"},
			{Source: "O Globo", Err: ErrNavigation},
		},
	}

	got := feed.BySource()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "C"}, titles(got["Folha"]))
	assert.Equal(t, []string{"A"}, titles(got["Valor"]))
	assert.NotNil(t, got["O Globo"])
	assert.Empty(t, got["O Globo"])
	assert.True(t, feed.Sources[2].Failed())
	assert.False(t, feed.Sources[0].Failed())
}

func titles(articles []Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}
