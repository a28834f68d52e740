// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flatwatch/scraper/internal/monitor"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Headless    HeadlessConfig    `mapstructure:"headless"`
	StorageAPI  StorageAPIConfig  `mapstructure:"storage_api"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Enrichment  EnrichmentConfig  `mapstructure:"enrichment"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// MonitorConfig governs the orchestrator cycle.
type MonitorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	CycleDeadline  time.Duration `mapstructure:"cycle_deadline"`
	Concurrency    int           `mapstructure:"concurrency"`
	BlockedSources []string      `mapstructure:"blocked_sources"`
	CleanupDays    int           `mapstructure:"cleanup_days"`
	CleanupEvery   time.Duration `mapstructure:"cleanup_every"`
}

// FetchConfig controls the fetch client.
type FetchConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PerDomainRPS   float64       `mapstructure:"per_domain_rps"`
	PerDomainBurst int           `mapstructure:"per_domain_burst"`
}

// HeadlessConfig configures headless render escalation for JS-shell pages.
type HeadlessConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	MinHTMLBytes    int           `mapstructure:"min_html_bytes"`
	WaitSelector    string        `mapstructure:"wait_selector"`
	ChromeNoSandbox bool          `mapstructure:"chrome_no_sandbox"`
}

// StorageAPIConfig points at the CRUD storage service.
type StorageAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DBConfig enables the direct-Postgres task store for deployments colocated
// with the database. When DSN is empty the HTTP storage API is used.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for new-item event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArtifactsConfig selects where hard-fail documents are snapshotted.
type ArtifactsConfig struct {
	Provider  string `mapstructure:"provider"` // gcs | local | none
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// EnrichmentConfig configures the best-effort summarizer hook.
type EnrichmentConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PersistenceConfig controls the batcher.
type PersistenceConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// Load builds a Config from the shared Viper instance populated by
// pkg/config.InitConfig plus an optional explicit file path.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile builds a Config from a standalone file plus environment, mainly
// for tests and one-off runs.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLATWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return Load(v)
}

// SetDefaults registers every default on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.cycle_deadline", "50s")
	v.SetDefault("monitor.concurrency", 4)
	v.SetDefault("monitor.blocked_sources", []string{})
	v.SetDefault("monitor.cleanup_days", 7)
	v.SetDefault("monitor.cleanup_every", "24h")

	v.SetDefault("fetch.user_agent", "flatwatch-scraper/1.0 (+https://github.com/flatwatch/scraper)")
	v.SetDefault("fetch.request_timeout", "10s")
	v.SetDefault("fetch.per_domain_rps", 1.0)
	v.SetDefault("fetch.per_domain_burst", 2)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout", "20s")
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("headless.wait_selector", "")
	v.SetDefault("headless.chrome_no_sandbox", false)

	v.SetDefault("storage_api.base_url", "")
	v.SetDefault("storage_api.timeout", "15s")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("artifacts.provider", "none")
	v.SetDefault("artifacts.local_dir", "data/artifacts")

	v.SetDefault("enrichment.endpoint", "")
	v.SetDefault("enrichment.timeout", "5s")

	v.SetDefault("persistence.batch_size", 20)
	v.SetDefault("persistence.max_attempts", 3)
	v.SetDefault("persistence.backoff_base", "250ms")
	v.SetDefault("persistence.backoff_max", "5s")
}

// Validate enforces required values. Violations are configuration-fatal:
// they abort the whole run rather than a single group.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("%w: server.port must be > 0", monitor.ErrConfiguration)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("%w: monitor.interval must be > 0", monitor.ErrConfiguration)
	}
	if c.Monitor.CycleDeadline <= 0 || c.Monitor.CycleDeadline > c.Monitor.Interval {
		return fmt.Errorf("%w: monitor.cycle_deadline must be in (0, monitor.interval]", monitor.ErrConfiguration)
	}
	if c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("%w: monitor.concurrency must be > 0", monitor.ErrConfiguration)
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("%w: fetch.user_agent must be set", monitor.ErrConfiguration)
	}
	if c.Fetch.RequestTimeout <= 0 {
		return fmt.Errorf("%w: fetch.request_timeout must be > 0", monitor.ErrConfiguration)
	}
	if c.StorageAPI.BaseURL == "" && c.DB.DSN == "" {
		return fmt.Errorf("%w: one of storage_api.base_url or db.dsn must be set", monitor.ErrConfiguration)
	}
	if c.Persistence.BatchSize <= 0 {
		return fmt.Errorf("%w: persistence.batch_size must be > 0", monitor.ErrConfiguration)
	}
	if c.Persistence.MaxAttempts <= 0 {
		return fmt.Errorf("%w: persistence.max_attempts must be > 0", monitor.ErrConfiguration)
	}
	switch c.Artifacts.Provider {
	case "gcs":
		if c.Artifacts.GCSBucket == "" {
			return fmt.Errorf("%w: artifacts.gcs_bucket must be set for the gcs provider", monitor.ErrConfiguration)
		}
	case "local":
		if c.Artifacts.LocalDir == "" {
			return fmt.Errorf("%w: artifacts.local_dir must be set for the local provider", monitor.ErrConfiguration)
		}
	case "none", "":
	default:
		return fmt.Errorf("%w: unknown artifacts.provider %q", monitor.ErrConfiguration, c.Artifacts.Provider)
	}
	return nil
}
