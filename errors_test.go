package trends

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected errorClass
	}{
		{"no errors", `{"data":[]}`, errNone},
		{"empty errors", `{"errors":[]}`, errNone},
		{"rate limit 88", `{"errors":[{"code":88}]}`, errRateLimited},
		{"auth 32", `{"errors":[{"code":32}]}`, errRejected},
		{"bad token 89", `{"errors":[{"code":89}]}`, errRejected},
		{"bad auth data 215", `{"errors":[{"code":215}]}`, errRejected},
		{"over capacity 130", `{"errors":[{"code":130}]}`, errTransient},
		{"internal 131", `{"errors":[{"code":131}]}`, errTransient},
		{"unknown code", `{"errors":[{"code":999}]}`, errNone},
		{"invalid json", `{invalid`, errNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyError([]byte(tt.body))
			if result != tt.expected {
				t.Fatalf("classifyError(%s) = %d, want %d", tt.body, result, tt.expected)
			}
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected errorClass
	}{
		{"ok page", 200, `{"data":[{"id":"1"}],"meta":{}}`, errNone},
		{"empty page", 200, `{"meta":{"result_count":0}}`, errNone},
		{"partial errors with data", 200, `{"data":[{"id":"1"}],"errors":[{"code":131}]}`, errNone},
		{"429", 429, ``, errRateLimited},
		{"body 88", 200, `{"errors":[{"code":88}]}`, errRateLimited},
		{"500", 500, ``, errTransient},
		{"503", 503, `{"title":"Service Unavailable"}`, errTransient},
		{"408", 408, ``, errTransient},
		{"401", 401, `{"title":"Unauthorized"}`, errRejected},
		{"403", 403, ``, errRejected},
		{"400", 400, `{"errors":[{"message":"bad query"}]}`, errRejected},
		{"redirect", 302, ``, errRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyResponse(tt.status, []byte(tt.body)); got != tt.expected {
				t.Fatalf("classifyResponse(%d, %s) = %d, want %d", tt.status, tt.body, got, tt.expected)
			}
		})
	}
}

func TestParseRateLimitReset(t *testing.T) {
	// Valid timestamp
	ts := time.Now().Add(5 * time.Minute).Unix()
	result := parseRateLimitReset(" " + strconv.FormatInt(ts, 10) + " ")
	if result.Unix() != ts {
		t.Fatalf("expected %d, got %d", ts, result.Unix())
	}

	// Empty
	result = parseRateLimitReset("")
	if time.Until(result) < 14*time.Minute {
		t.Fatal("expected ~15min fallback for empty input")
	}

	// Invalid
	result = parseRateLimitReset("not-a-number")
	if time.Until(result) < 14*time.Minute {
		t.Fatal("expected ~15min fallback for invalid input")
	}
}

func TestParseRateLimitRemaining(t *testing.T) {
	if n, ok := parseRateLimitRemaining("17"); !ok || n != 17 {
		t.Fatalf("expected 17, got %d %v", n, ok)
	}
	if _, ok := parseRateLimitRemaining(""); ok {
		t.Fatal("expected missing header to be rejected")
	}
}

func TestProblemDetail(t *testing.T) {
	if got := problemDetail([]byte(`{"title":"Unauthorized","detail":"Token expired"}`)); got != "Token expired" {
		t.Fatalf("got %q", got)
	}
	if got := problemDetail([]byte(`{"errors":[{"message":"Invalid query"}]}`)); got != "Invalid query" {
		t.Fatalf("got %q", got)
	}
	if got := problemDetail([]byte("plain text")); got != "plain text" {
		t.Fatalf("got %q", got)
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("HTTP 503")
	err := error(&FetchError{Kind: ErrUpstreamUnavailable, Query: Query{Topic: "vote", Country: "FR"}, Cursor: "c2", Status: 503, Err: cause})

	if !errors.Is(err, ErrUpstreamUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause in chain: %v", err)
	}
	want := `fetch "vote" [FR] at cursor c2: upstream unavailable (HTTP 503): HTTP 503`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestAggregationErrorUnwrap(t *testing.T) {
	inner := &FetchError{Kind: context.DeadlineExceeded, Query: Query{Topic: "vote"}}
	err := error(&AggregationError{Key: CacheKey{Topic: "vote"}, Err: inner})

	if !errors.Is(err, ErrAggregationFailed) {
		t.Fatal("expected ErrAggregationFailed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected nested kind")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe != inner {
		t.Fatal("expected FetchError in chain")
	}
}
