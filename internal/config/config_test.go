package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pool.Capacity != 4 {
		t.Fatalf("expected pool capacity 4, got %d", cfg.Pool.Capacity)
	}
	if cfg.Session.Driver != DriverChromedp || !cfg.Session.Headless {
		t.Fatalf("expected headless chromedp driver, got %+v", cfg.Session)
	}
	if cfg.Loader.MaxAttempts != 3 || cfg.Loader.BaseTimeout != 20*time.Second || cfg.Loader.TimeoutStep != 10*time.Second {
		t.Fatalf("unexpected loader defaults: %+v", cfg.Loader)
	}
	if cfg.Loader.Backoff != 3*time.Second || cfg.Loader.SettleDelay != time.Second {
		t.Fatalf("unexpected loader delays: %+v", cfg.Loader)
	}
	if cfg.Aggregator.WorkerTimeout != 300*time.Second || cfg.Aggregator.QuickWorkerTimeout != 120*time.Second {
		t.Fatalf("unexpected aggregator timeouts: %+v", cfg.Aggregator)
	}
	if cfg.Adapters.MaxEmptyPages != 2 || cfg.Adapters.QuickBudgetDivisor != 3 {
		t.Fatalf("unexpected adapter defaults: %+v", cfg.Adapters)
	}
	if cfg.Output.FeedFile != "noticias.json" || cfg.Output.HTMLFile != "monitor_noticias.html" || !cfg.Output.PerSource {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Server.Port != 5000 || cfg.Schedule.Interval != time.Minute {
		t.Fatalf("unexpected server/schedule defaults: %+v %+v", cfg.Server, cfg.Schedule)
	}
	if cfg.Timezone != "America/Sao_Paulo" {
		t.Fatalf("expected Sao Paulo timezone, got %q", cfg.Timezone)
	}
	if cfg.Postgres.Table != "feed_runs" {
		t.Fatalf("expected feed_runs table, got %q", cfg.Postgres.Table)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
  level: debug
output:
  dir: /srv/monitor
  per_source: false
session:
  driver: colly
loader:
  max_attempts: 5
  base_timeout: 15s
  host_qps: 0.5
aggregator:
  workers: 2
adapters:
  enabled: ["Valor", "Folha"]
  click_settle: 500ms
gcs:
  bucket: monitor-feeds
  prefix: prod
pubsub:
  project_id: proj
  topic: feed-updated
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected production debug logging, got %+v", cfg.Logging)
	}
	if cfg.Output.Dir != "/srv/monitor" || cfg.Output.PerSource {
		t.Fatalf("expected output overrides to apply: %+v", cfg.Output)
	}
	if cfg.Session.Driver != DriverColly {
		t.Fatalf("expected colly driver, got %q", cfg.Session.Driver)
	}
	if cfg.Loader.MaxAttempts != 5 || cfg.Loader.BaseTimeout != 15*time.Second || cfg.Loader.HostQPS != 0.5 {
		t.Fatalf("expected loader overrides to apply: %+v", cfg.Loader)
	}
	if cfg.Loader.TimeoutStep != 10*time.Second {
		t.Fatalf("expected untouched defaults to survive, got %v", cfg.Loader.TimeoutStep)
	}
	if len(cfg.Adapters.Enabled) != 2 || cfg.Adapters.Enabled[1] != "Folha" {
		t.Fatalf("expected enabled outlets to load: %v", cfg.Adapters.Enabled)
	}
	if cfg.Adapters.ClickSettle != 500*time.Millisecond {
		t.Fatalf("expected click settle 500ms, got %v", cfg.Adapters.ClickSettle)
	}
	if cfg.GCS.Bucket != "monitor-feeds" || cfg.PubSub.Topic != "feed-updated" {
		t.Fatalf("expected sink overrides to apply: %+v %+v", cfg.GCS, cfg.PubSub)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONITOR_POOL_CAPACITY", "7")
	t.Setenv("MONITOR_SCHEDULE_INTERVAL", "5m")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pool.Capacity != 7 {
		t.Fatalf("expected env capacity 7, got %d", cfg.Pool.Capacity)
	}
	if cfg.Schedule.Interval != 5*time.Minute {
		t.Fatalf("expected env interval 5m, got %v", cfg.Schedule.Interval)
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.Int("port", 5000, "")
	fs.Duration("interval", time.Minute, "")
	if err := fs.Parse([]string{"--port", "8081"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("expected flag port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Schedule.Interval != time.Minute {
		t.Fatalf("expected default interval, got %v", cfg.Schedule.Interval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"capacity", func(c *Config) { c.Pool.Capacity = 0 }, "pool.capacity"},
		{"driver", func(c *Config) { c.Session.Driver = "selenium" }, "session.driver"},
		{"attempts", func(c *Config) { c.Loader.MaxAttempts = 0 }, "loader.max_attempts"},
		{"workers", func(c *Config) { c.Aggregator.Workers = -1 }, "aggregator.workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"interval", func(c *Config) { c.Schedule.Interval = time.Millisecond }, "schedule.interval"},
		{"pubsub", func(c *Config) { c.PubSub.Topic = "t" }, "pubsub"},
		{"empties", func(c *Config) { c.Adapters.MaxEmptyPages = 0 }, "adapters.max_empty_pages"},
		{"qps", func(c *Config) { c.Loader.HostQPS = -1 }, "loader.host_qps"},
		{"output", func(c *Config) { c.Output.Dir = " " }, "output.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
