package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go-twitter-trends/internal/scheduler"
	"github.com/anatolykoptev/go-twitter-trends/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(0)
	if cfg.Cache.SweepSchedule != "" {
		if err := sched.AddSweepJob(cfg.Cache.SweepSchedule, a.svc.Cache().Sweep); err != nil {
			return err
		}
	}
	warm := cfg.WarmQueries()
	if cfg.Warm.Schedule != "" && len(warm) > 0 {
		err := sched.AddWarmJob(cfg.Warm.Schedule, func(ctx context.Context) error {
			return a.svc.Warm(ctx, warm)
		})
		if err != nil {
			return err
		}
	}

	srv := server.New(a.svc, a.store, server.WithCollector(cfg.Collector, cfg.Upstream.BearerToken != ""))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Listen)
	})
	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	if len(warm) > 0 {
		g.Go(func() error {
			if err := sched.RunNow(ctx, "warm", func(ctx context.Context) error { return a.svc.Warm(ctx, warm) }); err != nil {
				slog.Warn("initial warm incomplete", slog.Any("error", err))
			}
			return nil
		})
	}

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}
