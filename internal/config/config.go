// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	DB         DBConfig         `mapstructure:"db"`
	Persist    PersistConfig    `mapstructure:"persist"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
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

// SourcesConfig selects which tool sources a run collects from.
type SourcesConfig struct {
	LimitPerSource int                `mapstructure:"limit_per_source"`
	HackerNews     HackerNewsSource   `mapstructure:"hackernews"`
	Feeds          []FeedSource       `mapstructure:"feeds"`
	Aggregators    []AggregatorSource `mapstructure:"aggregators"`
}

// HackerNewsSource configures the Hacker News story source.
type HackerNewsSource struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	WebURL  string `mapstructure:"web_url"`
}

// FeedSource configures one RSS or Atom feed source.
type FeedSource struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// AggregatorSource configures one HTML directory source scraped with
// CSS selectors.
type AggregatorSource struct {
	Name                string `mapstructure:"name"`
	URL                 string `mapstructure:"url"`
	ItemSelector        string `mapstructure:"item_selector"`
	NameSelector        string `mapstructure:"name_selector"`
	DescriptionSelector string `mapstructure:"description_selector"`
	LinkSelector        string `mapstructure:"link_selector"`
	VotesSelector       string `mapstructure:"votes_selector"`
}

// HTTPConfig configures outbound HTTP client and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	UserAgent        string  `mapstructure:"user_agent"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	MaxRPS           float64 `mapstructure:"max_rps"`
}

// EnrichmentConfig governs the remote analysis provider.
type EnrichmentConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	BatchSize      int    `mapstructure:"batch_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PersistConfig tunes batched persistence.
type PersistConfig struct {
	MaxWorkers       int `mapstructure:"max_workers"`
	ChunkSize        int `mapstructure:"chunk_size"`
	CheckpointWindow int `mapstructure:"checkpoint_window"`
}

// ArchiveConfig selects where raw source payloads are archived.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	BaseDir   string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOOLRADAR")
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
	v.SetDefault("sources.limit_per_source", 30)
	v.SetDefault("sources.hackernews.enabled", true)
	v.SetDefault("sources.hackernews.base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("sources.hackernews.web_url", "https://news.ycombinator.com")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "toolradar-bot/1.0")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 8000)
	v.SetDefault("http.max_rps", 4)
	v.SetDefault("enrichment.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("enrichment.model", "gpt-4o-mini")
	v.SetDefault("enrichment.batch_size", 10)
	v.SetDefault("enrichment.timeout_seconds", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("persist.max_workers", 4)
	v.SetDefault("persist.checkpoint_window", 100)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "payloads")
	v.SetDefault("archive.base_dir", "archive")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sources.LimitPerSource <= 0 {
		return fmt.Errorf("sources.limit_per_source must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Enrichment.BatchSize <= 0 {
		return fmt.Errorf("enrichment.batch_size must be > 0")
	}
	switch c.Archive.Backend {
	case "none", "local", "gcs":
	default:
		return fmt.Errorf("archive.backend must be one of none, local, gcs")
	}
	if c.Archive.Backend == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" {
			return fmt.Errorf("sources.feeds[%d].url must be set", i)
		}
	}
	for i, a := range c.Sources.Aggregators {
		if a.URL == "" || a.ItemSelector == "" {
			return fmt.Errorf("sources.aggregators[%d] needs url and item_selector", i)
		}
	}
	return nil
}

// HTTPTimeout converts the HTTP timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// EnrichmentTimeout converts the enrichment timeout into a duration.
func (c Config) EnrichmentTimeout() time.Duration {
	return time.Duration(c.Enrichment.TimeoutSeconds) * time.Second
}
