// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/monitor-noticias/internal/logging"
	"github.com/JakeFAU/monitor-noticias/internal/publish"
	"github.com/JakeFAU/monitor-noticias/internal/storage/gcs"
	"github.com/JakeFAU/monitor-noticias/internal/storage/postgres"
)

// Session drivers.
const (
	DriverChromedp = "chromedp"
	DriverColly    = "colly"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    logging.Config          `mapstructure:"logging"`
	Timezone   string                  `mapstructure:"timezone"`
	Output     OutputConfig            `mapstructure:"output"`
	Pool       PoolConfig              `mapstructure:"pool"`
	Session    SessionConfig           `mapstructure:"session"`
	Loader     LoaderConfig            `mapstructure:"loader"`
	Aggregator AggregatorConfig        `mapstructure:"aggregator"`
	Adapters   AdaptersConfig          `mapstructure:"adapters"`
	Server     ServerConfig            `mapstructure:"server"`
	Schedule   ScheduleConfig          `mapstructure:"schedule"`
	GCS        gcs.Config              `mapstructure:"gcs"`
	PubSub     PubSubConfig            `mapstructure:"pubsub"`
	Postgres   postgres.RunStoreConfig `mapstructure:"postgres"`
}

// OutputConfig sets where and under which names artifacts are written.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	publish.Config `mapstructure:",squash"`
}

// PoolConfig sizes the fetch session pool.
type PoolConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// SessionConfig selects and tunes the session driver.
type SessionConfig struct {
	Driver       string `mapstructure:"driver"`
	UserAgent    string `mapstructure:"user_agent"`
	Headless     bool   `mapstructure:"headless"`
	WindowWidth  int    `mapstructure:"window_width"`
	WindowHeight int    `mapstructure:"window_height"`
}

// LoaderConfig configures the retrying page loader.
type LoaderConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseTimeout time.Duration `mapstructure:"base_timeout"`
	TimeoutStep time.Duration `mapstructure:"timeout_step"`
	Backoff     time.Duration `mapstructure:"backoff"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// HostQPS of 0 disables per-host politeness limiting.
	HostQPS   float64 `mapstructure:"host_qps"`
	HostBurst int     `mapstructure:"host_burst"`
}

// AggregatorConfig bounds concurrency and per-source time.
type AggregatorConfig struct {
	Workers            int           `mapstructure:"workers"`
	WorkerTimeout      time.Duration `mapstructure:"worker_timeout"`
	QuickWorkerTimeout time.Duration `mapstructure:"quick_worker_timeout"`
}

// AdaptersConfig tunes the outlet adapters.
type AdaptersConfig struct {
	MaxEmptyPages      int           `mapstructure:"max_empty_pages"`
	QuickBudgetDivisor int           `mapstructure:"quick_budget_divisor"`
	ClickSettle        time.Duration `mapstructure:"click_settle"`
	Enabled            []string      `mapstructure:"enabled"`
}

// ServerConfig controls the web mode.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScheduleConfig controls automatic mode.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// PubSubConfig holds metadata for feed-updated notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"port":     "server.port",
	"interval": "schedule.interval",
	"output":   "output.dir",
	"driver":   "session.driver",
	"workers":  "aggregator.workers",
}

// Load builds a Config from disk/environment. Flags in fs that were set
// explicitly take precedence over both.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.feed_file", publish.DefaultFeedFile)
	v.SetDefault("output.html_file", publish.DefaultHTMLFile)
	v.SetDefault("output.per_source", true)
	v.SetDefault("pool.capacity", 4)
	v.SetDefault("session.driver", DriverChromedp)
	v.SetDefault("session.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("session.headless", true)
	v.SetDefault("session.window_width", 1920)
	v.SetDefault("session.window_height", 1080)
	v.SetDefault("loader.max_attempts", 3)
	v.SetDefault("loader.base_timeout", 20*time.Second)
	v.SetDefault("loader.timeout_step", 10*time.Second)
	v.SetDefault("loader.backoff", 3*time.Second)
	v.SetDefault("loader.settle_delay", time.Second)
	v.SetDefault("loader.host_qps", 0.0)
	v.SetDefault("loader.host_burst", 1)
	v.SetDefault("aggregator.workers", 4)
	v.SetDefault("aggregator.worker_timeout", 300*time.Second)
	v.SetDefault("aggregator.quick_worker_timeout", 120*time.Second)
	v.SetDefault("adapters.max_empty_pages", 2)
	v.SetDefault("adapters.quick_budget_divisor", 3)
	v.SetDefault("adapters.click_settle", 2*time.Second)
	v.SetDefault("adapters.enabled", []string{})
	v.SetDefault("server.port", 5000)
	v.SetDefault("schedule.interval", 60*time.Second)
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "")
	v.SetDefault("gcs.cache_control", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "feed_runs")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Pool.Capacity <= 0 {
		return fmt.Errorf("pool.capacity must be > 0")
	}
	switch c.Session.Driver {
	case DriverChromedp, DriverColly:
	default:
		return fmt.Errorf("session.driver must be %q or %q, got %q", DriverChromedp, DriverColly, c.Session.Driver)
	}
	if c.Loader.MaxAttempts <= 0 {
		return fmt.Errorf("loader.max_attempts must be > 0")
	}
	if c.Loader.BaseTimeout <= 0 {
		return fmt.Errorf("loader.base_timeout must be > 0")
	}
	if c.Loader.TimeoutStep < 0 || c.Loader.Backoff < 0 || c.Loader.SettleDelay < 0 {
		return fmt.Errorf("loader delays must not be negative")
	}
	if c.Loader.HostQPS < 0 {
		return fmt.Errorf("loader.host_qps must not be negative")
	}
	if c.Aggregator.Workers <= 0 {
		return fmt.Errorf("aggregator.workers must be > 0")
	}
	if c.Aggregator.WorkerTimeout <= 0 || c.Aggregator.QuickWorkerTimeout <= 0 {
		return fmt.Errorf("aggregator worker timeouts must be > 0")
	}
	if c.Adapters.MaxEmptyPages <= 0 {
		return fmt.Errorf("adapters.max_empty_pages must be > 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Schedule.Interval < time.Second {
		return fmt.Errorf("schedule.interval must be at least 1s")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}
