// Package config loads process configuration for the xtrends binary.
package config

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	trends "github.com/anatolykoptev/go-twitter-trends"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "xtrends"

// Collector modes.
const (
	CollectorAPI  = "api"
	CollectorMock = "mock"
)

type Upstream struct {
	BaseURL             string        `yaml:"base_url"`
	BearerToken         string        `yaml:"bearer_token"`
	Proxy               string        `yaml:"proxy"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryBackoffInitial time.Duration `yaml:"retry_backoff_initial"`
	RetryBackoffMax     time.Duration `yaml:"retry_backoff_max"`
}

type Quota struct {
	Ceiling int           `yaml:"ceiling"`
	Window  time.Duration `yaml:"window"`
	Wait    time.Duration `yaml:"wait"`
}

type Fetch struct {
	PageSize int `yaml:"page_size"`
	MaxItems int `yaml:"max_items"`
}

type Cache struct {
	TTL           time.Duration `yaml:"ttl"`
	TimeBucket    time.Duration `yaml:"time_bucket"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

type Aggregate struct {
	TopN               int           `yaml:"top_n"`
	SentimentThreshold float64       `yaml:"sentiment_threshold"`
	ResolveTimeout     time.Duration `yaml:"resolve_timeout"`
}

type Mock struct {
	Pages int `yaml:"pages"`
}

// WarmQuery is a topic resolved on the warm schedule.
type WarmQuery struct {
	Topic   string `yaml:"topic"`
	Country string `yaml:"country,omitempty"`
}

type Warm struct {
	Schedule    string      `yaml:"schedule"`
	Concurrency int         `yaml:"concurrency"`
	Queries     []WarmQuery `yaml:"queries"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Mongo struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type Config struct {
	Collector string    `yaml:"collector"`
	Listen    string    `yaml:"listen"`
	LogLevel  string    `yaml:"log_level"`
	Database  string    `yaml:"database,omitempty"`
	Upstream  Upstream  `yaml:"upstream"`
	Quota     Quota     `yaml:"quota"`
	Fetch     Fetch     `yaml:"fetch"`
	Cache     Cache     `yaml:"cache"`
	Aggregate Aggregate `yaml:"aggregate"`
	Mock      Mock      `yaml:"mock"`
	Warm      Warm      `yaml:"warm"`
	Kafka     Kafka     `yaml:"kafka"`
	Mongo     Mongo     `yaml:"mongo"`
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, "trends.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads path over the embedded defaults, then applies .env and
// environment overrides. An empty path means DefaultConfigPath; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("no config file, using defaults", slog.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()

	if cfg.Database == "" {
		cfg.Database = DefaultDatabasePath()
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BEARER_TOKEN"); v != "" {
		c.Upstream.BearerToken = v
	}
	if v := os.Getenv("X_API_BASE"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("COLLECTOR_MODE"); v != "" {
		c.Collector = strings.ToLower(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("TRENDS_DB"); v != "" {
		c.Database = v
	}
}

func validate(cfg *Config) error {
	switch cfg.Collector {
	case CollectorAPI:
		if cfg.Upstream.BearerToken == "" {
			return errors.New("collector api: bearer token is required (set BEARER_TOKEN or upstream.bearer_token)")
		}
	case CollectorMock:
		if cfg.Mock.Pages < 1 {
			return fmt.Errorf("mock.pages must be at least 1, got %d", cfg.Mock.Pages)
		}
	default:
		return fmt.Errorf("unknown collector %q (valid: api, mock)", cfg.Collector)
	}

	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.Fetch.PageSize < 10 || cfg.Fetch.PageSize > 100 {
		return fmt.Errorf("fetch.page_size must be within 10..100, got %d", cfg.Fetch.PageSize)
	}
	if cfg.Fetch.MaxItems < 1 {
		return fmt.Errorf("fetch.max_items must be positive, got %d", cfg.Fetch.MaxItems)
	}
	if cfg.Quota.Ceiling < 1 || cfg.Quota.Window <= 0 {
		return fmt.Errorf("quota needs a positive ceiling and window, got %d per %s", cfg.Quota.Ceiling, cfg.Quota.Window)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", cfg.Cache.TTL)
	}
	if cfg.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must not be negative, got %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Aggregate.SentimentThreshold <= 0 || cfg.Aggregate.SentimentThreshold >= 1 {
		return fmt.Errorf("aggregate.sentiment_threshold must be within (0, 1), got %g", cfg.Aggregate.SentimentThreshold)
	}
	for i, q := range cfg.Warm.Queries {
		if strings.TrimSpace(q.Topic) == "" {
			return fmt.Errorf("warm.queries[%d]: topic is required", i)
		}
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	if cfg.Mongo.URI != "" && (cfg.Mongo.Database == "" || cfg.Mongo.Collection == "") {
		return errors.New("mongo.database and mongo.collection are required when mongo.uri is set")
	}
	return nil
}

// Trends maps the file config onto the library config.
func (c *Config) Trends() trends.Config {
	return trends.Config{
		BearerToken:         c.Upstream.BearerToken,
		BaseURL:             c.Upstream.BaseURL,
		Proxy:               c.Upstream.Proxy,
		QuotaCeiling:        c.Quota.Ceiling,
		QuotaWindow:         c.Quota.Window,
		QuotaWait:           c.Quota.Wait,
		PageSize:            c.Fetch.PageSize,
		MaxItems:            c.Fetch.MaxItems,
		MaxRetries:          c.maxRetries(),
		RetryBackoffInitial: c.Upstream.RetryBackoffInitial,
		RetryBackoffMax:     c.Upstream.RetryBackoffMax,
		RequestsPerSecond:   c.Upstream.RequestsPerSecond,
		CacheTTL:            c.Cache.TTL,
		TimeBucket:          c.Cache.TimeBucket,
		ResolveTimeout:      c.Aggregate.ResolveTimeout,
		TopN:                c.Aggregate.TopN,
		SentimentThreshold:  c.Aggregate.SentimentThreshold,
		WarmConcurrency:     c.Warm.Concurrency,
	}
}

// maxRetries maps max_retries: 0 onto the library's "no retries" value.
func (c *Config) maxRetries() int {
	if c.Upstream.MaxRetries == 0 {
		return -1
	}
	return c.Upstream.MaxRetries
}

// WarmQueries converts the configured warm list.
func (c *Config) WarmQueries() []trends.Query {
	out := make([]trends.Query, 0, len(c.Warm.Queries))
	for _, q := range c.Warm.Queries {
		out = append(out, trends.Query{Topic: q.Topic, Country: q.Country})
	}
	return out
}

// Level parses log_level, defaulting to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
