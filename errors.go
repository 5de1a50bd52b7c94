package trends

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrQuotaExhausted means no upstream call budget was available within the
	// configured wait. Transient: retry after the quota resets.
	ErrQuotaExhausted = errors.New("upstream quota exhausted")

	// ErrUpstreamUnavailable means the upstream kept failing with network
	// errors or 5xx responses after all retries. Transient.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected means the upstream refused the request (auth or
	// validation). Never retried: it signals a configuration problem.
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrAggregationFailed wraps every failure returned by Service.Resolve.
	ErrAggregationFailed = errors.New("aggregation failed")

	// ErrInvalidQuery is returned for empty topics or malformed countries.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoMorePages is returned by Pager.Next once the result set is exhausted.
	ErrNoMorePages = errors.New("no more pages")
)

// FetchError describes a failed page request. Cursor is the cursor of the
// page that failed, so a caller can resume exactly there.
type FetchError struct {
	Kind   error
	Query  Query
	Cursor Cursor
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %q", e.Query.Topic)
	if e.Query.Country != "" {
		fmt.Fprintf(&b, " [%s]", e.Query.Country)
	}
	if e.Cursor != "" {
		fmt.Fprintf(&b, " at cursor %s", e.Cursor)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AggregationError is returned by Service.Resolve. It matches
// ErrAggregationFailed and whatever caused it.
type AggregationError struct {
	Key CacheKey
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate %s: %v", e.Key, e.Err)
}

func (e *AggregationError) Unwrap() []error {
	return []error{ErrAggregationFailed, e.Err}
}

// errorClass categorizes upstream responses for targeted handling.
type errorClass int

const (
	errNone        errorClass = iota
	errRateLimited            // 429, code 88
	errTransient              // transport error, 5xx, 408, code 130/131
	errRejected               // other 4xx, codes 32/89/215/...
)

// classifyResponse decides how a response is handled from its status and body.
func classifyResponse(status int, body []byte) errorClass {
	switch {
	case status == 429:
		return errRateLimited
	case status == 408 || status >= 500:
		return errTransient
	case status >= 400:
		if classifyError(body) == errTransient {
			return errTransient
		}
		return errRejected
	case status != 200:
		return errRejected
	}
	if hasResponseData(body) {
		return errNone
	}
	return classifyError(body)
}

// classifyError inspects a response body for known API error codes.
func classifyError(body []byte) errorClass {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone
	}

	for _, e := range errResp.Errors {
		switch e.Code {
		case 88:
			return errRateLimited
		case 130, 131:
			return errTransient
		case 32, 64, 89, 99, 135, 215, 326:
			return errRejected
		}
	}
	return errNone
}

// parseRateLimitReset parses the x-rate-limit-reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}

// parseRateLimitRemaining parses the x-rate-limit-remaining header.
func parseRateLimitRemaining(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// problemDetail extracts a short human-readable reason from an error body.
func problemDetail(body []byte) string {
	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &p) == nil {
		switch {
		case p.Detail != "":
			return p.Detail
		case p.Title != "":
			return p.Title
		case len(p.Errors) > 0 && p.Errors[0].Message != "":
			return p.Errors[0].Message
		}
	}
	return truncateBytes(body, 200)
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// hasResponseData returns true if the JSON body contains a non-null "data"
// field or a meta block (empty result pages carry only meta).
func hasResponseData(body []byte) bool {
	var envelope struct {
		Data json.RawMessage `json:"data"`
		Meta json.RawMessage `json:"meta"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return false
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return true
	}
	return len(envelope.Meta) > 0 && string(envelope.Meta) != "null"
}
