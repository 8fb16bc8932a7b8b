// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/footprint"
	"github.com/JakeFAU/jobboard-harvester/internal/search"
)

// Discovery strategies.
const (
	StrategyFootprint = "footprint"
	StrategyCrawl     = "crawl"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Proxy     ProxyConfig           `mapstructure:"proxy"`
	Search    SearchConfig          `mapstructure:"search"`
	Discovery DiscoveryConfig       `mapstructure:"discovery"`
	Scrape    ScrapeConfig          `mapstructure:"scrape"`
	Catalog   CatalogConfig         `mapstructure:"catalog"`
	Platforms []footprint.Footprint `mapstructure:"platforms"`
	DB        DBConfig              `mapstructure:"db"`
	Redis     RedisConfig           `mapstructure:"redis"`
	Storage   StorageConfig         `mapstructure:"storage"`
	PubSub    PubSubConfig          `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProxyConfig points the fetch gateway at the scraping proxy.
type ProxyConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// SearchConfig describes the search engine used by discovery.
type SearchConfig struct {
	Endpoint     string   `mapstructure:"endpoint"`
	HiringQuery  string   `mapstructure:"hiring_query"`
	ExcludeSites []string `mapstructure:"exclude_sites"`
}

// DiscoveryConfig tunes the discovery engine.
type DiscoveryConfig struct {
	Strategies        []string `mapstructure:"strategies"`
	Concurrency       int      `mapstructure:"concurrency"`
	MaxCandidates     int      `mapstructure:"max_candidates"`
	CandidateTTLHours int      `mapstructure:"candidate_ttl_hours"`
}

// ScrapeConfig tunes the scrape engine.
type ScrapeConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// FetchAttempts above 1 retries a failed board fetch with backoff.
	FetchAttempts int `mapstructure:"fetch_attempts"`
}

// CatalogConfig governs how batches land in the catalog.
type CatalogConfig struct {
	JobConflictPolicy string `mapstructure:"job_conflict_policy"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// RedisConfig enables the cross-run visit cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LocalStorageConfig is used by the local blob backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// StorageConfig selects where page snapshots go.
type StorageConfig struct {
	Backend            string             `mapstructure:"backend"`
	Bucket             string             `mapstructure:"bucket"`
	Prefix             string             `mapstructure:"prefix"`
	Local              LocalStorageConfig `mapstructure:"local"`
	SnapshotEmptyPages bool               `mapstructure:"snapshot_empty_pages"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("proxy.endpoint", "http://api.scraperapi.com")
	// Bound explicitly so HARVESTER_PROXY_API_KEY is seen by Unmarshal without a file.
	v.SetDefault("proxy.api_key", "")
	v.SetDefault("proxy.timeout_seconds", 60)
	v.SetDefault("proxy.user_agent", "jobboard-harvester/0.1")
	v.SetDefault("proxy.rate_limit_rps", 0)
	v.SetDefault("proxy.rate_limit_burst", 1)
	v.SetDefault("search.endpoint", "https://www.google.com/search")
	v.SetDefault("search.hiring_query", search.DefaultHiringPhrase)
	v.SetDefault("search.exclude_sites", search.DefaultExcludeSites())
	v.SetDefault("discovery.strategies", []string{StrategyFootprint, StrategyCrawl})
	v.SetDefault("discovery.concurrency", 4)
	v.SetDefault("discovery.max_candidates", 50)
	v.SetDefault("discovery.candidate_ttl_hours", 24)
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.fetch_attempts", 1)
	v.SetDefault("catalog.job_conflict_policy", string(board.ConflictIgnore))
	v.SetDefault("platforms", defaultPlatforms())
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.migrate", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.local.base_dir", "./data")
	v.SetDefault("storage.snapshot_empty_pages", false)
}

func defaultPlatforms() []map[string]string {
	entries := footprint.Default().Entries()
	out := make([]map[string]string, 0, len(entries))
	for _, fp := range entries {
		out = append(out, map[string]string{"name": fp.Platform, "domain": fp.Domain})
	}
	return out
}

// Validate enforces required values and reasonable limits. Every failure wraps board.ErrConfig.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w", append(args, board.ErrConfig)...))
	}

	if c.Server.Port <= 0 {
		fail("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		fail("auth.api_key must be set when auth is enabled")
	}
	if strings.TrimSpace(c.Proxy.APIKey) == "" {
		fail("proxy.api_key is required")
	}
	if c.Proxy.Endpoint == "" {
		fail("proxy.endpoint is required")
	}
	if c.Proxy.TimeoutSeconds <= 0 {
		fail("proxy.timeout_seconds must be > 0")
	}
	if c.Search.Endpoint == "" {
		fail("search.endpoint is required")
	}
	if len(c.Discovery.Strategies) == 0 {
		fail("discovery.strategies must not be empty")
	}
	for _, s := range c.Discovery.Strategies {
		if s != StrategyFootprint && s != StrategyCrawl {
			fail("discovery.strategies: unknown strategy %q", s)
		}
	}
	if c.Discovery.Concurrency <= 0 {
		fail("discovery.concurrency must be > 0")
	}
	if c.Discovery.MaxCandidates < 0 {
		fail("discovery.max_candidates must be >= 0")
	}
	if c.Scrape.Concurrency <= 0 {
		fail("scrape.concurrency must be > 0")
	}
	if c.Scrape.FetchAttempts <= 0 {
		fail("scrape.fetch_attempts must be > 0")
	}
	if _, err := board.ParseConflictPolicy(c.Catalog.JobConflictPolicy); err != nil {
		errs = append(errs, fmt.Errorf("catalog.job_conflict_policy: %w", err))
	}
	if _, err := footprint.New(c.Platforms); err != nil {
		errs = append(errs, fmt.Errorf("platforms: %w", err))
	}
	switch c.Storage.Backend {
	case "", "memory", "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			fail("storage.bucket must be set for the gcs backend")
		}
	default:
		fail("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		fail("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return errors.Join(errs...)
}

// FetchTimeout is the per-request budget handed to the fetch gateway.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Proxy.TimeoutSeconds) * time.Second
}

// CandidateTTL is how long a crawled candidate is skipped by later discovery runs.
func (c Config) CandidateTTL() time.Duration {
	return time.Duration(c.Discovery.CandidateTTLHours) * time.Hour
}

// ConflictPolicy returns the parsed job conflict policy.
func (c Config) ConflictPolicy() board.ConflictPolicy {
	p, err := board.ParseConflictPolicy(c.Catalog.JobConflictPolicy)
	if err != nil {
		return board.ConflictIgnore
	}
	return p
}

// Registry builds the footprint registry from the platforms section.
func (c Config) Registry() (*footprint.Registry, error) {
	reg, err := footprint.New(c.Platforms)
	if err != nil {
		return nil, fmt.Errorf("build footprint registry: %w", err)
	}
	return reg, nil
}
