// Package trends answers "trending hashtags" and "sentiment by topic" queries
// over the quota-limited X API v2 recent-search endpoint.
package trends

import (
	"fmt"
	"io"
	"log/slog"

	stealth "github.com/anatolykoptev/go-stealth"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go-twitter-trends/quota"
)

// Doer executes one HTTP request and returns body, lowercase response
// headers and status. *stealth.BrowserClient satisfies it.
type Doer interface {
	DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
}

// Client fetches search pages under a shared quota.
type Client struct {
	doer    Doer
	quota   *quota.Tracker
	limiter *rate.Limiter
	backoff stealth.BackoffConfig
	headers map[string]string
	cfg     Config
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithDoer replaces the stealth transport, e.g. with the mock collector.
func WithDoer(d Doer) ClientOption {
	return func(c *Client) { c.doer = d }
}

// WithTracker shares an existing quota tracker.
func WithTracker(t *quota.Tracker) ClientOption {
	return func(c *Client) { c.quota = t }
}

// NewClient creates a search client. Without WithDoer it needs a bearer
// token and builds a stealth transport.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	cfg.defaults()

	c := &Client{
		cfg: cfg,
		backoff: stealth.BackoffConfig{
			InitialWait: cfg.RetryBackoffInitial,
			MaxWait:     cfg.RetryBackoffMax,
			Multiplier:  2.0,
			JitterPct:   0.3,
		},
		headers: apiHeaders(cfg.BearerToken, cfg.UserAgent),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.quota == nil {
		c.quota = quota.New(cfg.QuotaCeiling, cfg.QuotaWindow)
	}

	if cfg.RequestsPerSecond < 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if c.doer == nil {
		if cfg.BearerToken == "" {
			return nil, fmt.Errorf("bearer token is required for the api collector")
		}
		sopts := []stealth.ClientOption{
			stealth.WithHeaderOrder(apiHeaderOrder),
		}
		if cfg.Proxy != "" {
			sopts = append(sopts, stealth.WithProxy(cfg.Proxy))
		}
		bc, err := stealth.NewClient(sopts...)
		if err != nil {
			return nil, fmt.Errorf("stealth client: %w", err)
		}
		c.doer = bc
		slog.Debug("search client ready", slog.String("base", cfg.BaseURL), slog.Int("quota", cfg.QuotaCeiling))
	}

	return c, nil
}

// Fetch starts a pager at the first page of q.
func (c *Client) Fetch(q Query) *Pager {
	return c.Resume(q, "")
}

// Resume starts a pager at cursor, typically FetchError.Cursor of an
// abandoned fetch.
func (c *Client) Resume(q Query, cursor Cursor) *Pager {
	q = q.normalize()
	if q.MaxItems <= 0 {
		q.MaxItems = c.cfg.MaxItems
	}
	return &Pager{client: c, query: q, cursor: cursor}
}

// Quota returns a snapshot of the shared quota.
func (c *Client) Quota() quota.State {
	return c.quota.State()
}

// recordAPICall calls the metrics hook if configured.
func (c *Client) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}
