package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	trends "github.com/anatolykoptev/go-twitter-trends"
	"github.com/anatolykoptev/go-twitter-trends/internal/config"
	"github.com/anatolykoptev/go-twitter-trends/sink/kafkasink"
	"github.com/anatolykoptev/go-twitter-trends/sink/mongosink"
	"github.com/anatolykoptev/go-twitter-trends/store"
)

// newFetcher builds the client for the configured collector mode.
func newFetcher(cfg *config.Config) (*trends.Client, error) {
	tc := cfg.Trends()
	tc.MetricsHook = logAPICall

	switch cfg.Collector {
	case config.CollectorMock:
		slog.Info("collector initialized", slog.String("mode", cfg.Collector), slog.Int("pages", cfg.Mock.Pages))
		return trends.NewClient(tc, trends.WithDoer(trends.NewMockDoer(cfg.Mock.Pages)))
	case config.CollectorAPI:
		slog.Info("collector initialized", slog.String("mode", cfg.Collector), slog.String("base", cfg.Upstream.BaseURL))
		return trends.NewClient(tc)
	default:
		return nil, fmt.Errorf("unknown collector %q", cfg.Collector)
	}
}

func logAPICall(endpoint string, success, rateLimited bool) {
	slog.Debug("api call",
		slog.String("endpoint", endpoint),
		slog.Bool("success", success),
		slog.Bool("rate_limited", rateLimited))
}

// app is the wired service plus everything that has to be closed.
type app struct {
	svc     *trends.Service
	store   *store.Store
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })

	var sinks []trends.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		ks := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, ks)
		a.closers = append(a.closers, func(context.Context) error { return ks.Close() })
	}
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ms, err := mongosink.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		cancel()
		if err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, ms)
		a.closers = append(a.closers, ms.Close)
	}

	svc, err := trends.NewService(cfg.Trends(), fetcher, trends.WithArchive(st), trends.WithSinks(sinks...))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// Close waits for running cycles, then releases sinks and the store in
// reverse order.
func (a *app) Close() error {
	if a.svc != nil {
		a.svc.Wait()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
