package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const defaultStaleAfter = 72 * time.Hour

type pendingCounter interface {
	PendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type staleGauge interface {
	SetStalePending(n int64)
}

type StalePendingJobParams struct {
	Logger     *logger.Logger
	Repository pendingCounter
	Gauge      staleGauge
	StaleAfter time.Duration
}

// NewStalePendingJob reports requests that have waited longer than
// StaleAfter without being assigned to an operator.
func NewStalePendingJob(params StalePendingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("pending counter required")
	}
	after := params.StaleAfter
	if after <= 0 {
		after = defaultStaleAfter
	}
	return &stalePendingJob{
		logg:  params.Logger,
		repo:  params.Repository,
		gauge: params.Gauge,
		after: after,
		now:   time.Now,
	}, nil
}

type stalePendingJob struct {
	logg  *logger.Logger
	repo  pendingCounter
	gauge staleGauge
	after time.Duration
	now   func() time.Time
}

func (j *stalePendingJob) Name() string { return "stale-pending" }

func (j *stalePendingJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	n, err := j.repo.PendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count stale pending: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetStalePending(n)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"stale":  n,
	})
	if n > 0 {
		j.logg.Warn(logCtx, "pending requests waiting for assignment")
		return nil
	}
	j.logg.Info(logCtx, "no stale pending requests")
	return nil
}
