// Package config loads and validates sitescope configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitescope/internal/crawler"
	collyfetcher "github.com/JakeFAU/sitescope/internal/fetcher/colly"
)

// EnvPrefix namespaces every environment override, e.g. SITESCOPE_CRAWLER_MAX_DEPTH.
const EnvPrefix = "SITESCOPE"

// Storage backends understood by the app container.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
	BackendSQLite = "sqlite"
)

// Analysis sinks understood by the app container.
const (
	SinkRaw      = "raw"
	SinkCSV      = "csv"
	SinkMarkdown = "markdown"
	SinkPostgres = "postgres"
	SinkPubSub   = "pubsub"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler" yaml:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai" yaml:"openai"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	PubSub   PubSubConfig   `mapstructure:"pubsub" yaml:"pubsub"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
}

// CrawlerConfig lists the seeds and bounds every crawl.
type CrawlerConfig struct {
	Seeds            []string `mapstructure:"seeds" yaml:"seeds"`
	MaxDepth         int      `mapstructure:"max_depth" yaml:"max_depth"`
	MaxParallelSeeds int      `mapstructure:"max_parallel_seeds" yaml:"max_parallel_seeds"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	BaseDir    string `mapstructure:"base_dir" yaml:"base_dir"`
	GCSBucket  string `mapstructure:"gcs_bucket" yaml:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix" yaml:"gcs_prefix"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// AnalysisConfig tunes prompt building and the outputs.
type AnalysisConfig struct {
	MaxTokens       int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	Encoding        string   `mapstructure:"encoding" yaml:"encoding"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	Sinks           []string `mapstructure:"sinks" yaml:"sinks"`
	RawFile         string   `mapstructure:"raw_file" yaml:"raw_file"`
	CSVFile         string   `mapstructure:"csv_file" yaml:"csv_file"`
	MarkdownFile    string   `mapstructure:"markdown_file" yaml:"markdown_file"`
}

// OpenAIConfig holds summarizer credentials.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// PostgresConfig controls the analysis table connection.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Table    string `mapstructure:"table" yaml:"table"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID     string `mapstructure:"project_id" yaml:"project_id"`
	CrawlTopic    string `mapstructure:"crawl_topic" yaml:"crawl_topic"`
	AnalysisTopic string `mapstructure:"analysis_topic" yaml:"analysis_topic"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development" yaml:"development"`
	Level       string `mapstructure:"level" yaml:"level"`
}

// TracingConfig enables OpenTelemetry span propagation.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// Load builds a Config from defaults, the optional file at path and the
// environment, in increasing precedence.
func Load(path string) (Config, error) {
	v := newViper()

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

// Default returns the configuration produced by defaults alone.
func Default() Config {
	var cfg Config
	// Defaults always decode.
	_ = newViper().Unmarshal(&cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.max_parallel_seeds", 0)
	v.SetDefault("http.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "scraper_db")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "sites")
	v.SetDefault("storage.sqlite_path", "scraper_db/sitescope.db")
	v.SetDefault("analysis.max_tokens", 16000)
	v.SetDefault("analysis.encoding", "cl100k_base")
	v.SetDefault("analysis.exclude_patterns", []string{"privacy", "terms"})
	v.SetDefault("analysis.sinks", []string{SinkRaw, SinkCSV})
	v.SetDefault("analysis.raw_file", "scraper_db/openai_analysis.raw")
	v.SetDefault("analysis.csv_file", "scraper_db/openai_analysis.csv")
	v.SetDefault("analysis.markdown_file", "scraper_db/openai_analysis.md")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo-16k")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "site_analyses")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.crawl_topic", "")
	v.SetDefault("pubsub.analysis_topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sitescope")
	v.SetDefault("tracing.sample_ratio", 0.1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.MaxParallelSeeds < 0 {
		return fmt.Errorf("crawler.max_parallel_seeds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.Analysis.MaxTokens <= 0 {
		return fmt.Errorf("analysis.max_tokens must be > 0")
	}
	for _, sink := range c.Analysis.Sinks {
		switch sink {
		case SinkRaw, SinkCSV, SinkMarkdown:
		case SinkPostgres:
			if c.Postgres.DSN == "" {
				return fmt.Errorf("postgres.dsn must be set when the postgres sink is enabled")
			}
		case SinkPubSub:
			if c.PubSub.ProjectID == "" || c.PubSub.AnalysisTopic == "" {
				return fmt.Errorf("pubsub.project_id and pubsub.analysis_topic must be set when the pubsub sink is enabled")
			}
		default:
			return fmt.Errorf("analysis.sinks: unknown sink %q", sink)
		}
	}
	if c.PubSub.CrawlTopic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.crawl_topic is set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendLocal:
		if s.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case BackendSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", s.Backend)
	}
	return nil
}

// SeedList pairs every configured seed URL with the global max depth.
func (c Config) SeedList() []crawler.Seed {
	seeds := make([]crawler.Seed, 0, len(c.Crawler.Seeds))
	for _, raw := range c.Crawler.Seeds {
		if raw = strings.TrimSpace(raw); raw != "" {
			seeds = append(seeds, crawler.Seed{URL: raw, MaxDepth: c.Crawler.MaxDepth})
		}
	}
	return seeds
}

// FetchTimeout converts http.timeout_seconds into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SinkEnabled reports whether name is listed in analysis.sinks.
func (c Config) SinkEnabled(name string) bool {
	return slices.Contains(c.Analysis.Sinks, name)
}
