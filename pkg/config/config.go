package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aipulse/pulse/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Polling cycle configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`

	Store StoreConfig `yaml:"store" json:"store" jsonschema:"description=Article store configuration"`

	Retry RetryConfig `yaml:"retry" json:"retry" jsonschema:"description=Per-feed retry and health configuration"`

	Cache CacheConfig `yaml:"cache" json:"cache" jsonschema:"description=Server-side cache configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text content enrichment configuration"`

	Feeds []domain.FeedSource `yaml:"feeds" json:"feeds" jsonschema:"description=Static feed source table"`

	Proxies []domain.ProxyEndpoint `yaml:"proxies" json:"proxies" jsonschema:"description=CORS relay endpoint table"`
}

// ScheduleConfig holds orchestrator timing settings
type ScheduleConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=10m,description=Interval between full polling cycles"`
	RetryInterval   time.Duration `yaml:"retry_interval" json:"retry_interval" jsonschema:"default=2m,description=Interval between retry sweeps of failed feeds"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" jsonschema:"default=15m,description=Interval between store cleanup passes"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size" jsonschema:"default=6,description=Feeds per concurrent batch"`
	MaxWorkers      int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent fetches within a batch"`
	BatchPause      time.Duration `yaml:"batch_pause" json:"batch_pause" jsonschema:"default=2s,description=Politeness pause between batches"`
}

// FetchConfig holds per-request fetch settings
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Per-attempt fetch timeout"`
	ProxyAttempts int           `yaml:"proxy_attempts" json:"proxy_attempts" jsonschema:"default=3,description=Proxy-relayed attempts after a failed direct fetch"`
	Backoff       time.Duration `yaml:"backoff" json:"backoff" jsonschema:"default=200ms,description=Initial backoff between proxy attempts"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Pulse/1.0,description=User agent for feed requests"`
}

// StoreConfig bounds the in-memory article store
type StoreConfig struct {
	MaxArticles int `yaml:"max_articles" json:"max_articles" jsonschema:"default=500,description=Maximum articles kept in memory"`
	PageSize    int `yaml:"page_size" json:"page_size" jsonschema:"default=12,description=Default query page size"`
}

// RetryConfig holds feed health thresholds
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries" json:"max_retries" jsonschema:"default=3,description=Consecutive failures before a feed goes dead until full refresh"`
	Delay             time.Duration `yaml:"delay" json:"delay" jsonschema:"default=5m,description=Cooldown before a failed feed is retried"`
	CategoryWarnRatio float64       `yaml:"category_warn_ratio" json:"category_warn_ratio" jsonschema:"default=0.5,description=Success ratio below which a category is flagged unhealthy"`
}

// CacheConfig points the pipeline at the optional cache service and
// configures the service's own persistence
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable read/write-through to the cache service"`
	BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8081,description=Cache service base URL"`
	TTL     time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=30m,description=Snapshot freshness window"`
	Dir     string        `yaml:"dir" json:"dir" jsonschema:"default=var/cache,description=Snapshot directory (cache service only)"`
}

// ExtractionConfig holds full-text enrichment settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full-text content enrichment"`
	Interval      time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=Interval between enrichment sweeps"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent extractions"`
	RateLimit     time.Duration `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=1s,description=Rate limit between extractions"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum extracted text length to keep"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration with the static feed and
// proxy tables, used when no config file is given
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = 10 * time.Minute
	}
	if c.Schedule.RetryInterval == 0 {
		c.Schedule.RetryInterval = 2 * time.Minute
	}
	if c.Schedule.CleanupInterval == 0 {
		c.Schedule.CleanupInterval = 15 * time.Minute
	}
	if c.Schedule.BatchSize == 0 {
		c.Schedule.BatchSize = 6
	}
	if c.Schedule.MaxWorkers == 0 {
		c.Schedule.MaxWorkers = 5
	}
	if c.Schedule.BatchPause == 0 {
		c.Schedule.BatchPause = 2 * time.Second
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.ProxyAttempts == 0 {
		c.Fetch.ProxyAttempts = 3
	}
	if c.Fetch.Backoff == 0 {
		c.Fetch.Backoff = 200 * time.Millisecond
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Pulse/1.0"
	}

	if c.Store.MaxArticles == 0 {
		c.Store.MaxArticles = 500
	}
	if c.Store.PageSize == 0 {
		c.Store.PageSize = 12
	}

	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = 5 * time.Minute
	}
	if c.Retry.CategoryWarnRatio == 0 {
		c.Retry.CategoryWarnRatio = 0.5
	}

	if c.Cache.BaseURL == "" {
		c.Cache.BaseURL = "http://localhost:8081"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Minute
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "var/cache"
	}

	if c.Extraction.Interval == 0 {
		c.Extraction.Interval = 5 * time.Minute
	}
	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.MaxConcurrent == 0 {
		c.Extraction.MaxConcurrent = 5
	}
	if c.Extraction.RateLimit == 0 {
		c.Extraction.RateLimit = time.Second
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}

	if len(c.Feeds) == 0 {
		c.Feeds = DefaultFeeds()
	}
	if len(c.Proxies) == 0 {
		c.Proxies = DefaultProxies()
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Schedule.BatchSize < 1 {
		return fmt.Errorf("schedule.batch_size must be at least 1")
	}
	if cfg.Schedule.MaxWorkers < 1 {
		return fmt.Errorf("schedule.max_workers must be at least 1")
	}
	if cfg.Store.MaxArticles < 1 {
		return fmt.Errorf("store.max_articles must be at least 1")
	}
	if cfg.Retry.CategoryWarnRatio < 0 || cfg.Retry.CategoryWarnRatio > 1 {
		return fmt.Errorf("retry.category_warn_ratio must be between 0 and 1")
	}

	for i, f := range cfg.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d]: url is required", i)
		}
		switch f.Kind {
		case domain.KindRSS, domain.KindAtom, domain.KindJSON, domain.KindVideoChannel:
		default:
			return fmt.Errorf("feeds[%d]: unknown kind %q", i, f.Kind)
		}
	}

	for i, p := range cfg.Proxies {
		if p.Template == "" {
			return fmt.Errorf("proxies[%d]: template is required", i)
		}
		if p.Reliability < 0 || p.Reliability > 1 {
			return fmt.Errorf("proxies[%d]: reliability must be between 0 and 1", i)
		}
	}

	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFeeds returns the static feed source table
func (c *Config) GetFeeds() []domain.FeedSource {
	return c.Feeds
}

// GetProxies returns the proxy endpoint table
func (c *Config) GetProxies() []domain.ProxyEndpoint {
	return c.Proxies
}

// GetStoreConfig returns article store limits
func (c *Config) GetStoreConfig() (maxArticles, pageSize int) {
	return c.Store.MaxArticles, c.Store.PageSize
}

// GetExtractionConfig returns content enrichment configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}

// GetCacheConfig returns cache service configuration
func (c *Config) GetCacheConfig() CacheConfig {
	return c.Cache
}
