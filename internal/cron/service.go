package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run. Defaults to Interval.
	JobTimeout time.Duration
}

// Service ticks every Interval and, while holding the cluster lock, runs
// whichever registered jobs are due.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration

	lastRun map[string]time.Time
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Lock == nil:
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
		lastRun:    map[string]time.Time{},
		now:        time.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	return s, nil
}

// Run executes one cycle immediately and then one per interval until ctx
// ends. Cycle failures are logged; only cancellation stops the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle.failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) due(e entry, at time.Time) bool {
	last, ran := s.lastRun[e.job.Name()]
	return !ran || e.every == 0 || at.Sub(last) >= e.every
}

// runCycle runs the due jobs in registration order. A failing job does not
// stop the ones after it; their errors are combined.
func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "cron.cycle.skipped")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock.release_failed", err)
		}
	}()

	var (
		errs error
		ran  int
	)
	for _, e := range s.registry.schedule() {
		started := s.now()
		if !s.due(e, started) {
			continue
		}
		ran++
		s.lastRun[e.job.Name()] = started
		if err := s.runJob(ctx, e.job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.job.Name(), err))
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    ran,
		"jobs_failed": len(multierr.Errors(errs)),
	}), "cron.cycle.done")
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		elapsed := time.Since(start)
		s.metrics.ObserveDuration(job.Name(), elapsed)
		logCtx := s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.metrics.IncFailure(job.Name())
			s.logg.Error(logCtx, "cron.job.failed", err)
			return
		}
		s.metrics.IncSuccess(job.Name())
		s.logg.Info(logCtx, "cron.job.done")
	}()
	return job.Run(ctx)
}
