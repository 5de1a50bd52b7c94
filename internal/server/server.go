// Package server exposes the query service and archive analytics over HTTP.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	trends "github.com/anatolykoptev/go-twitter-trends"
	"github.com/anatolykoptev/go-twitter-trends/quota"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	defaultTweetLimit = 50
	maxTweetLimit     = 1000
)

// Resolver answers topic queries. *trends.Service implements it.
type Resolver interface {
	Resolve(ctx context.Context, topic, country string) (*trends.AggregationResult, error)
	Quota() quota.State
}

// Analytics answers archive-wide questions. *store.Store implements it.
// LatestResult reports sql.ErrNoRows when nothing is archived for the key.
type Analytics interface {
	TopHashtags(ctx context.Context, limit int) ([]trends.HashtagCount, error)
	VolumeByHour(ctx context.Context) ([]trends.HourVolume, error)
	ListTweets(ctx context.Context, limit int) ([]trends.ArchivedTweet, error)
	CountTweets(ctx context.Context) (int, error)
	LatestResult(ctx context.Context, topic, country string) (*trends.AggregationResult, error)
}

// Server is the HTTP surface.
type Server struct {
	resolver  Resolver
	analytics Analytics
	now       func() time.Time
	mux       *http.ServeMux

	collector string
	hasToken  bool
}

// Option customizes a Server.
type Option func(*Server)

// WithCollector reports the collector mode and whether a bearer token is
// configured on /health.
func WithCollector(mode string, hasToken bool) Option {
	return func(s *Server) { s.collector, s.hasToken = mode, hasToken }
}

// New builds the routes. analytics may be nil, in which case the archive
// endpoints answer 503.
func New(resolver Resolver, analytics Analytics, opts ...Option) *Server {
	s := &Server{
		resolver:  resolver,
		analytics: analytics,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /sentiment", s.handleSentiment)
	s.mux.HandleFunc("GET /trends", s.handleTrends)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /analytics/hashtags", s.handleTopHashtags)
	s.mux.HandleFunc("GET /analytics/volume_by_hour", s.handleVolumeByHour)
	s.mux.HandleFunc("GET /analytics/latest", s.handleLatest)
	s.mux.HandleFunc("GET /tweets", s.handleTweets)
	return s
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.SentimentView())
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLimit, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.TrendsView(limit))
}

func (s *Server) resolve(r *http.Request) (*trends.AggregationResult, error) {
	q := r.URL.Query()
	return s.resolver.Resolve(r.Context(), q.Get("topic"), q.Get("country"))
}

type healthResponse struct {
	Status          string     `json:"status"`
	Collector       string     `json:"collector,omitempty"`
	TokenConfigured bool       `json:"bearer_token_configured"`
	Quota           quotaState `json:"quota"`
	ArchivedTweets  *int       `json:"archived_tweets,omitempty"`
}

type quotaState struct {
	Remaining int       `json:"remaining"`
	Ceiling   int       `json:"ceiling"`
	ResetAt   time.Time `json:"reset_at"`
	Synced    bool      `json:"synced"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.resolver.Quota()
	resp := healthResponse{
		Status:          "ok",
		Collector:       s.collector,
		TokenConfigured: s.hasToken,
		Quota: quotaState{
			Remaining: st.Remaining,
			Ceiling:   st.Ceiling,
			ResetAt:   st.ResetAt,
			Synced:    st.Synced,
		},
	}
	if s.analytics != nil {
		n, err := s.analytics.CountTweets(r.Context())
		if err != nil {
			slog.Warn("health: counting archived tweets", slog.Any("error", err))
		} else {
			resp.ArchivedTweets = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type topHashtagsResponse struct {
	TopHashtags []trends.HashtagCount `json:"top_hashtags"`
}

func (s *Server) handleTopHashtags(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeDetail(w, http.StatusServiceUnavailable, "archive is not configured")
		return
	}
	limit, err := parseLimit(r, defaultLimit, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	top, err := s.analytics.TopHashtags(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topHashtagsResponse{TopHashtags: top})
}

type hourCount struct {
	Hour  string `json:"hour_or_key"`
	Count int    `json:"count"`
}

type volumeResponse struct {
	VolumeByHour []hourCount `json:"volume_by_hour"`
}

func (s *Server) handleVolumeByHour(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeDetail(w, http.StatusServiceUnavailable, "archive is not configured")
		return
	}
	vol, err := s.analytics.VolumeByHour(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]hourCount, len(vol))
	for i, v := range vol {
		out[i] = hourCount{Hour: v.Hour, Count: v.Tweets}
	}
	writeJSON(w, http.StatusOK, volumeResponse{VolumeByHour: out})
}

type tweetsResponse struct {
	Tweets []trends.ArchivedTweet `json:"tweets"`
}

func (s *Server) handleTweets(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeDetail(w, http.StatusServiceUnavailable, "archive is not configured")
		return
	}
	limit, err := parseLimit(r, defaultTweetLimit, maxTweetLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tweets, err := s.analytics.ListTweets(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tweetsResponse{Tweets: tweets})
}

// handleLatest serves the last archived aggregation for a topic without
// touching the upstream, so it answers even while the quota is exhausted.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeDetail(w, http.StatusServiceUnavailable, "archive is not configured")
		return
	}
	q := trends.NormalizeQuery(r.URL.Query().Get("topic"), r.URL.Query().Get("country"))
	if q.Topic == "" {
		s.writeError(w, fmt.Errorf("%w: topic is required", trends.ErrInvalidQuery))
		return
	}
	res, err := s.analytics.LatestResult(r.Context(), q.Topic, q.Country)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("no archived result for %q", q.Topic))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseLimit(r *http.Request, def, limit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > limit {
		return 0, fmt.Errorf("%w: limit must be an integer within 1..%d", trends.ErrInvalidQuery, limit)
	}
	return n, nil
}

// writeError maps error kinds onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trends.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, trends.ErrQuotaExhausted):
		status = http.StatusTooManyRequests
		wait := s.resolver.Quota().ResetAt.Sub(s.now())
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
	case errors.Is(err, trends.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, trends.ErrUpstreamRejected):
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeDetail(w, status, err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("error", err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)))
	})
}
