package trends

import (
	"time"

	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

// Config holds all configuration for the fetch client and the query service.
type Config struct {
	// BearerToken is the app-only token for the X API v2.
	BearerToken string

	// BaseURL is the API root. Default: https://api.x.com/2
	BaseURL string

	// Proxy is an optional proxy URL for the upstream transport.
	Proxy string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// QuotaCeiling is the request budget of one rate-limit window.
	QuotaCeiling int

	// QuotaWindow is the length of one rate-limit window.
	QuotaWindow time.Duration

	// QuotaWait bounds how long a page request waits for quota to reset.
	QuotaWait time.Duration

	// PageSize is max_results per page (10..100).
	PageSize int

	// MaxItems caps the records fetched per query.
	MaxItems int

	// MaxRetries is the number of retries for transport errors and 5xx.
	// Zero means 3; negative disables retries.
	MaxRetries int

	// RetryBackoffInitial is the first retry delay.
	RetryBackoffInitial time.Duration

	// RetryBackoffMax caps the retry delay.
	RetryBackoffMax time.Duration

	// RequestsPerSecond paces upstream requests. Negative disables pacing.
	RequestsPerSecond float64

	// CacheTTL is how long an aggregation result is served from cache.
	CacheTTL time.Duration

	// TimeBucket is the granularity of the cache key time bucket.
	TimeBucket time.Duration

	// ResolveTimeout bounds how long a single Resolve caller waits.
	ResolveTimeout time.Duration

	// TopN is the length of the top hashtag and top word lists.
	TopN int

	// SentimentThreshold is the neutral band half-width. Zero means
	// sentiment.DefaultThreshold; a zero-width band is not supported.
	SentimentThreshold float64

	// SinkTimeout bounds archive and sink writes after a cycle.
	SinkTimeout time.Duration

	// WarmConcurrency limits concurrent resolves in Service.Warm.
	WarmConcurrency int

	// MetricsHook is called on each API request for external metrics collection.
	// endpoint is the operation name, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *Config) defaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.QuotaCeiling == 0 {
		cfg.QuotaCeiling = 450
	}
	if cfg.QuotaWindow == 0 {
		cfg.QuotaWindow = 15 * time.Minute
	}
	if cfg.QuotaWait == 0 {
		cfg.QuotaWait = 30 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = maxPageSize
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 300
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffInitial == 0 {
		cfg.RetryBackoffInitial = time.Second
	}
	if cfg.RetryBackoffMax == 0 {
		cfg.RetryBackoffMax = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.TimeBucket == 0 {
		cfg.TimeBucket = time.Hour
	}
	if cfg.ResolveTimeout == 0 {
		cfg.ResolveTimeout = 2 * time.Minute
	}
	if cfg.TopN == 0 {
		cfg.TopN = 10
	}
	if cfg.SentimentThreshold == 0 {
		cfg.SentimentThreshold = sentiment.DefaultThreshold
	}
	if cfg.SinkTimeout == 0 {
		cfg.SinkTimeout = 10 * time.Second
	}
	if cfg.WarmConcurrency == 0 {
		cfg.WarmConcurrency = 4
	}
}
