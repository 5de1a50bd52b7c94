package trends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// quotaPoll caps a single sleep while waiting for quota, so a reset reported
// by a concurrent response is noticed early.
const quotaPoll = 5 * time.Second

// getPage requests one search page. It takes a quota permit per attempt,
// waits out 429s within QuotaWait and retries transient failures.
func (c *Client) getPage(ctx context.Context, q Query, cursor Cursor, pageSize int) (*searchPage, error) {
	fail := func(kind error, status int, err error) error {
		return &FetchError{Kind: kind, Query: q, Cursor: cursor, Status: status, Err: err}
	}

	u := searchURL(c.cfg.BaseURL, q, cursor, pageSize)
	deadline := time.Now().Add(c.cfg.QuotaWait)

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fail(err, 0, nil)
		}
		if err := c.acquire(ctx, deadline); err != nil {
			if ctx.Err() != nil {
				return nil, fail(ctx.Err(), 0, nil)
			}
			return nil, fail(ErrQuotaExhausted, 0, err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, fail(ctx.Err(), 0, nil)
			}
			return nil, fail(context.DeadlineExceeded, 0, err)
		}

		body, respHdrs, status, err := c.doer.DoWithHeaderOrder("GET", u, c.headers, nil, apiHeaderOrder)
		class := errTransient
		if err == nil {
			c.syncQuota(respHdrs)
			class = classifyResponse(status, body)
		} else {
			err = fmt.Errorf("transport: %w", err)
		}

		switch class {
		case errNone:
			page, perr := parseSearchPage(body, q.Country)
			if perr != nil {
				// A 200 with an unreadable body is treated like a bad gateway.
				c.recordAPICall(endpointSearch, false, false)
				err = perr
				break
			}
			c.recordAPICall(endpointSearch, true, false)
			return page, nil

		case errRateLimited:
			c.recordAPICall(endpointSearch, false, true)
			resetAt := parseRateLimitReset(headerValue(respHdrs, "x-rate-limit-reset"))
			if floor := time.Now().Add(time.Second); resetAt.Before(floor) {
				resetAt = floor
			}
			c.quota.OnResponseHeaders(0, resetAt)
			slog.Warn("search rate limited",
				slog.String("topic", q.Topic),
				slog.String("cursor", string(cursor)),
				slog.Time("reset_at", resetAt))
			continue

		case errRejected:
			c.recordAPICall(endpointSearch, false, false)
			slog.Warn("search rejected",
				slog.String("topic", q.Topic),
				slog.Int("status", status),
				slog.String("body", truncateBytes(body, 500)))
			return nil, fail(ErrUpstreamRejected, status, errors.New(problemDetail(body)))

		default:
			c.recordAPICall(endpointSearch, false, false)
			if err == nil {
				err = fmt.Errorf("HTTP %d: %s", status, problemDetail(body))
			}
		}

		if attempt >= c.cfg.MaxRetries {
			return nil, fail(ErrUpstreamUnavailable, status, fmt.Errorf("after %d attempts: %w", attempt+1, err))
		}
		delay := c.backoff.Duration(attempt)
		attempt++
		slog.Debug("search retry",
			slog.String("topic", q.Topic),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fail(ctx.Err(), status, err)
		}
	}
}

// acquire takes one quota permit, waiting for the tracker to reset if the
// reset falls before deadline.
func (c *Client) acquire(ctx context.Context, deadline time.Time) error {
	for {
		if c.quota.TryConsume(1) == 1 {
			return nil
		}
		resetAt := c.quota.ResetAt()
		if resetAt.After(deadline) {
			return fmt.Errorf("quota resets at %s, beyond wait deadline", resetAt.Format(time.RFC3339))
		}
		now := time.Now()
		if !now.Before(deadline) {
			return fmt.Errorf("quota wait exceeded")
		}
		wait := max(min(resetAt.Sub(now), deadline.Sub(now), quotaPoll), 10*time.Millisecond)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// syncQuota feeds the upstream's rate-limit headers into the tracker.
func (c *Client) syncQuota(h map[string]string) {
	remaining, ok := parseRateLimitRemaining(headerValue(h, "x-rate-limit-remaining"))
	if !ok {
		return
	}
	c.quota.OnResponseHeaders(remaining, parseRateLimitReset(headerValue(h, "x-rate-limit-reset")))
}
