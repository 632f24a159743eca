package publish

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// EncodeArticles renders articles as an indented JSON array. Non-ASCII text
// and markup characters are written verbatim; an empty feed encodes as [].
func EncodeArticles(articles []news.Article) ([]byte, error) {
	if articles == nil {
		articles = []news.Article{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(articles); err != nil {
		return nil, fmt.Errorf("encode articles: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArticles parses a feed document written by EncodeArticles.
func DecodeArticles(data []byte) ([]news.Article, error) {
	var articles []news.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return articles, nil
}
