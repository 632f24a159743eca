// Package postgres records aggregation runs in Postgres. Only run metadata is
// stored; articles are never persisted beyond the current feed artifacts.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

const defaultTable = "feed_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunRecord is one row of the run ledger.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Quick       bool
	Articles    int
	PerSource   map[string]int
	Failed      map[string]string
	ArtifactURI string
}

// NewRunRecord summarizes feed into a ledger row.
func NewRunRecord(feed news.CombinedFeed, startedAt time.Time, quick bool, artifactURI string) RunRecord {
	rec := RunRecord{
		RunID:       feed.RunID,
		StartedAt:   startedAt,
		FinishedAt:  feed.GeneratedAt,
		Quick:       quick,
		Articles:    len(feed.Articles),
		PerSource:   make(map[string]int),
		Failed:      make(map[string]string),
		ArtifactURI: artifactURI,
	}
	for source, articles := range feed.BySource() {
		rec.PerSource[source] = len(articles)
	}
	for _, r := range feed.Sources {
		if r.Failed() {
			rec.Failed[r.Source] = r.Err.Error()
		}
	}
	return rec
}

// RunStore writes run rows into Postgres.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore connects to Postgres using cfg.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ledger table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id         TEXT PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	quick          BOOLEAN NOT NULL,
	article_count  INTEGER NOT NULL,
	per_source     JSONB NOT NULL,
	failed_sources JSONB NOT NULL,
	artifact_uri   TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordRun inserts one ledger row.
func (s *RunStore) RecordRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	perSource, err := json.Marshal(nonNilCounts(rec.PerSource))
	if err != nil {
		return fmt.Errorf("marshal per-source counts: %w", err)
	}
	failed, err := json.Marshal(nonNilErrors(rec.Failed))
	if err != nil {
		return fmt.Errorf("marshal failed sources: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	quick,
	article_count,
	per_source,
	failed_sources,
	artifact_uri
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	args := []any{
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.Quick,
		rec.Articles,
		perSource,
		failed,
		rec.ArtifactURI,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilErrors(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
