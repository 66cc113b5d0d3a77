package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marquezdaniela/reciclaje-municipal/internal/bootstrap"
	"github.com/marquezdaniela/reciclaje-municipal/internal/cron"
	"github.com/marquezdaniela/reciclaje-municipal/internal/stats"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, "cron-worker", bootstrap.Needs{Redis: true, Migrate: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "cron-worker:", err)
		os.Exit(1)
	}

	ctx = rt.Context(ctx)
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(ctx, "cron-worker.close", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "cron-worker.stopped", err)
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "cron-worker.drained")
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey("cron-worker", env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	statsRepo := stats.NewRepository(rt.DB.DB())
	dashboard, err := stats.NewService(statsRepo, rt.Redis, cfg.Stats.CacheTTL, logg)
	if err != nil {
		return fmt.Errorf("stats service: %w", err)
	}

	jobs, err := buildJobs(rt, statsRepo, dashboard)
	if err != nil {
		return err
	}

	// JobTimeout matches the lock TTL so a run ends before another replica can take over.
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(ctx, "cron-worker.started")
	return service.Run(ctx)
}

func buildJobs(rt *bootstrap.Runtime, statsRepo *stats.Repository, dashboard *stats.Service) (*cron.Registry, error) {
	cfg, logg := rt.Config, rt.Logger

	refresh, err := cron.NewDashboardRefreshJob(cron.DashboardRefreshJobParams{Logger: logg, Stats: dashboard})
	if err != nil {
		return nil, fmt.Errorf("dashboard job: %w", err)
	}
	stale, err := cron.NewStalePendingJob(cron.StalePendingJobParams{
		Logger:     logg,
		Repository: statsRepo,
		Gauge:      metrics.NewPickupMetrics(prometheus.DefaultRegisterer),
		StaleAfter: cfg.Cron.StalePendingAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("stale pending job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          rt.DB,
		Events:      outbox.NewRepository(rt.DB.DB()),
		DeadLetters: outbox.NewDLQRepository(rt.DB.DB()),
		Retention:   cfg.Outbox.Retention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	jobs := cron.NewRegistry(refresh)
	jobs.RegisterEvery(stale, cfg.Cron.StalePendingEvery)
	jobs.RegisterEvery(retention, cfg.Cron.RetentionEvery)
	return jobs, nil
}
