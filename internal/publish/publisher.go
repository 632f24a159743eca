// Package publish turns a combined feed into the artifacts consumers read:
// the JSON feed, one JSON document per source, and the self-refreshing HTML
// table. Every write overwrites the previous run's artifact.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/news"
	"github.com/JakeFAU/monitor-noticias/internal/source"
)

// Default artifact names.
const (
	DefaultFeedFile = "noticias.json"
	DefaultHTMLFile = "monitor_noticias.html"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// BlobStore is where artifacts are written.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Config names the artifacts.
type Config struct {
	FeedFile  string `mapstructure:"feed_file"`
	HTMLFile  string `mapstructure:"html_file"`
	PerSource bool   `mapstructure:"per_source"`
}

// Artifacts holds the URIs written by one Publish call.
type Artifacts struct {
	Feed      string
	HTML      string
	PerSource map[string]string
	Mirrors   []string
}

// URIs lists every written artifact, primary store first.
func (a Artifacts) URIs() []string {
	var out []string
	for _, u := range []string{a.Feed, a.HTML} {
		if u != "" {
			out = append(out, u)
		}
	}
	for _, u := range a.PerSource {
		out = append(out, u)
	}
	return append(out, a.Mirrors...)
}

// Publisher writes feed artifacts to a primary store and any mirrors.
type Publisher struct {
	primary BlobStore
	mirrors []BlobStore
	cfg     Config
	loc     *time.Location
	logger  *zap.Logger
}

// New builds a Publisher. Mirrors receive the same artifacts as primary.
func New(primary BlobStore, cfg Config, loc *time.Location, logger *zap.Logger, mirrors ...BlobStore) (*Publisher, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary blob store is required")
	}
	if cfg.FeedFile == "" {
		cfg.FeedFile = DefaultFeedFile
	}
	if cfg.HTMLFile == "" {
		cfg.HTMLFile = DefaultHTMLFile
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		primary: primary,
		mirrors: mirrors,
		cfg:     cfg,
		loc:     loc,
		logger:  logger,
	}, nil
}

// Config returns the artifact naming in effect.
func (p *Publisher) Config() Config {
	return p.cfg
}

type artifact struct {
	path        string
	contentType string
	data        []byte
	source      string
}

// Publish writes every artifact for feed. A failed write does not stop the
// remaining ones; all failures are returned joined and wrapped in
// news.ErrPersistence.
func (p *Publisher) Publish(ctx context.Context, feed news.CombinedFeed) (Artifacts, error) {
	items, err := p.render(feed)
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: %w", news.ErrPersistence, err)
	}

	out := Artifacts{PerSource: make(map[string]string)}
	var errs []error
	for _, item := range items {
		uri, err := p.primary.PutObject(ctx, item.path, item.contentType, bytes.NewReader(item.data))
		if err != nil {
			p.logger.Error("Failed to write artifact", zap.String("path", item.path), zap.Error(err))
			errs = append(errs, fmt.Errorf("write %s: %w", item.path, err))
			continue
		}
		switch {
		case item.source != "":
			out.PerSource[item.source] = uri
		case item.path == p.cfg.FeedFile:
			out.Feed = uri
		case item.path == p.cfg.HTMLFile:
			out.HTML = uri
		}

		for _, m := range p.mirrors {
			mirrored, err := m.PutObject(ctx, item.path, item.contentType, bytes.NewReader(item.data))
			if err != nil {
				p.logger.Warn("Failed to mirror artifact", zap.String("path", item.path), zap.Error(err))
				errs = append(errs, fmt.Errorf("mirror %s: %w", item.path, err))
				continue
			}
			out.Mirrors = append(out.Mirrors, mirrored)
		}
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("%w: %w", news.ErrPersistence, errors.Join(errs...))
	}
	return out, nil
}

func (p *Publisher) render(feed news.CombinedFeed) ([]artifact, error) {
	feedJSON, err := EncodeArticles(feed.Articles)
	if err != nil {
		return nil, err
	}
	items := []artifact{{path: p.cfg.FeedFile, contentType: contentTypeJSON, data: feedJSON}}

	if p.cfg.PerSource {
		grouped := feed.BySource()
		for _, r := range feed.Sources {
			// A failed source keeps its previous document.
			if r.Failed() {
				continue
			}
			data, err := EncodeArticles(grouped[r.Source])
			if err != nil {
				return nil, err
			}
			items = append(items, artifact{
				path:        fmt.Sprintf("noticias_%s.json", source.Slug(r.Source)),
				contentType: contentTypeJSON,
				data:        data,
				source:      r.Source,
			})
		}
	}

	page, err := RenderHTML(feed, p.loc)
	if err != nil {
		return nil, err
	}
	return append(items, artifact{path: p.cfg.HTMLFile, contentType: contentTypeHTML, data: page}), nil
}
