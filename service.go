package trends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go-twitter-trends/quota"
	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Fetcher starts paginated fetches. *Client implements it.
type Fetcher interface {
	Fetch(q Query) *Pager
	Quota() quota.State
}

// Archive persists fetched tweets and computed results.
type Archive interface {
	AppendTweets(ctx context.Context, key CacheKey, records []TweetRecord) error
	AppendResult(ctx context.Context, key CacheKey, res *AggregationResult) error
}

// Sink receives every freshly computed result.
type Sink interface {
	Publish(ctx context.Context, key CacheKey, res *AggregationResult) error
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithScorer replaces the default lexicon scorer.
func WithScorer(s sentiment.Scorer) ServiceOption {
	return func(svc *Service) { svc.scorer = s }
}

// WithClock sets the clock used for cache expiry, key buckets and result
// timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// WithArchive persists tweets and results.
func WithArchive(a Archive) ServiceOption {
	return func(svc *Service) { svc.archive = a }
}

// WithSinks adds result sinks.
func WithSinks(sinks ...Sink) ServiceOption {
	return func(svc *Service) { svc.sinks = append(svc.sinks, sinks...) }
}

// flight is one in-progress aggregation cycle shared by all callers of the
// same key.
type flight struct {
	id      string
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int

	res *AggregationResult
	err error
}

// Service answers topic queries from the cache, or by running one shared
// fetch-and-aggregate cycle per key.
type Service struct {
	cfg     Config
	fetcher Fetcher
	scorer  sentiment.Scorer
	cache   *ResultCache
	archive Archive
	sinks   []Sink
	now     func() time.Time

	mu      sync.Mutex
	flights map[string]*flight
	running sync.WaitGroup
}

// NewService wires a query service over fetcher.
func NewService(cfg Config, fetcher Fetcher, opts ...ServiceOption) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("trends: service needs a fetcher")
	}
	cfg.defaults()
	s := &Service{
		cfg:     cfg,
		fetcher: fetcher,
		now:     time.Now,
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scorer == nil {
		s.scorer = sentiment.Default()
	}
	s.cache = NewResultCache(s.now)
	return s, nil
}

// Resolve returns the aggregation for topic in country ("" for global).
// Concurrent callers of the same key share one cycle. A caller leaving
// early does not affect the others; when the last one leaves the cycle is
// cancelled. Errors are *AggregationError.
func (s *Service) Resolve(ctx context.Context, topic, country string) (*AggregationResult, error) {
	q := Query{Topic: topic, Country: country}.normalize()
	key := newCacheKey(q, s.now(), s.cfg.TimeBucket)
	if err := validateQuery(q); err != nil {
		return nil, &AggregationError{Key: key, Err: err}
	}

	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	f, res := s.join(key, q)
	if res != nil {
		return res, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	select {
	case <-f.done:
		if f.err != nil {
			return nil, &AggregationError{Key: key, Err: f.err}
		}
		return f.res, nil
	case <-waitCtx.Done():
		// A cycle that finished in the same instant still wins.
		select {
		case <-f.done:
			if f.err == nil {
				return f.res, nil
			}
		default:
		}
		s.leave(key, f)
		return nil, &AggregationError{Key: key, Err: waitCtx.Err()}
	}
}

func validateQuery(q Query) error {
	if q.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidQuery)
	}
	if q.Country != "" && !countryRe.MatchString(q.Country) {
		return fmt.Errorf("%w: country %q is not an ISO 3166-1 alpha-2 code", ErrInvalidQuery, q.Country)
	}
	return nil
}

// join attaches to the key's flight or starts one. The cache is checked
// again under the lock so a cycle finishing concurrently is not repeated.
func (s *Service) join(key CacheKey, q Query) (*flight, *AggregationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.cache.Get(key); ok {
		return nil, res
	}
	k := key.String()
	if f, ok := s.flights[k]; ok {
		f.waiters++
		return f, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &flight{
		id:      uuid.NewString(),
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	s.flights[k] = f
	s.running.Add(1)
	go s.run(ctx, key, q, f)
	return f, nil
}

// leave detaches one waiter. The last waiter out cancels the cycle.
func (s *Service) leave(key CacheKey, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	k := key.String()
	if s.flights[k] == f {
		delete(s.flights, k)
	}
	f.cancel()
}

func (s *Service) run(ctx context.Context, key CacheKey, q Query, f *flight) {
	defer s.running.Done()
	defer f.cancel()

	res, err := s.cycle(ctx, key, q, f.id)

	s.mu.Lock()
	if err == nil {
		s.cache.Put(key, res, s.cfg.CacheTTL)
	}
	k := key.String()
	if s.flights[k] == f {
		delete(s.flights, k)
	}
	f.res, f.err = res, err
	s.mu.Unlock()
	close(f.done)

	if err == nil {
		s.publish(key, res, f.id)
	}
}

// cycle fetches all pages for q and aggregates them as they arrive.
func (s *Service) cycle(ctx context.Context, key CacheKey, q Query, id string) (*AggregationResult, error) {
	start := time.Now()
	log := slog.With(slog.String("cycle", id), slog.String("key", key.String()))
	log.Debug("aggregation cycle started")

	q.MaxItems = s.cfg.MaxItems
	agg := NewAggregator(q.Topic, q.Country, s.scorer, s.cfg.SentimentThreshold)
	pager := s.fetcher.Fetch(q)
	pages := 0
	for {
		records, err := pager.Next(ctx)
		if errors.Is(err, ErrNoMorePages) {
			break
		}
		if err != nil {
			log.Warn("aggregation cycle failed",
				slog.Int("pages", pages),
				slog.String("cursor", string(pager.Cursor())),
				slog.Any("error", err))
			return nil, err
		}
		pages++
		for _, rec := range records {
			agg.Add(rec)
		}
		if s.archive != nil && len(records) > 0 {
			if err := s.archive.AppendTweets(ctx, key, records); err != nil {
				log.Warn("archive tweets failed", slog.Any("error", err))
			}
		}
	}

	res := agg.Result(s.now(), s.cfg.TopN)
	log.Info("aggregation cycle complete",
		slog.Int("pages", pages),
		slog.Int("tweets", res.Tweets),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

// publish hands a fresh result to the archive and sinks. Failures are logged.
func (s *Service) publish(key CacheKey, res *AggregationResult, id string) {
	if s.archive == nil && len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SinkTimeout)
	defer cancel()

	if s.archive != nil {
		if err := s.archive.AppendResult(ctx, key, res); err != nil {
			slog.Warn("archive result failed", slog.String("cycle", id), slog.Any("error", err))
		}
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, key, res); err != nil {
			slog.Warn("sink publish failed", slog.String("cycle", id), slog.Any("error", err))
		}
	}
}

// Warm resolves queries concurrently so later requests hit the cache. Every
// query is attempted; the first failure is returned.
func (s *Service) Warm(ctx context.Context, queries []Query) error {
	var g errgroup.Group
	g.SetLimit(s.cfg.WarmConcurrency)
	for _, q := range queries {
		g.Go(func() error {
			if _, err := s.Resolve(ctx, q.Topic, q.Country); err != nil {
				slog.Warn("warm failed", slog.String("topic", q.Topic), slog.String("country", q.Country), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Wait blocks until every started cycle, including its archive and sink
// writes, has returned.
func (s *Service) Wait() {
	s.running.Wait()
}

// Cache exposes the result cache, e.g. for periodic sweeps.
func (s *Service) Cache() *ResultCache {
	return s.cache
}

// Quota reports the upstream quota.
func (s *Service) Quota() quota.State {
	return s.fetcher.Quota()
}
