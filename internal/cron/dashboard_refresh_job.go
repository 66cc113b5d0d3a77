package cron

import (
	"context"
	"fmt"

	"github.com/marquezdaniela/reciclaje-municipal/internal/stats"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

type dashboardRefresher interface {
	Refresh(ctx context.Context) (*stats.Dashboard, error)
}

type DashboardRefreshJobParams struct {
	Logger *logger.Logger
	Stats  dashboardRefresher
}

// NewDashboardRefreshJob recomputes the metrics dashboard and rewrites its
// cache entry so page loads rarely pay for the aggregation queries.
func NewDashboardRefreshJob(params DashboardRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stats == nil {
		return nil, fmt.Errorf("stats service required")
	}
	return &dashboardRefreshJob{logg: params.Logger, stats: params.Stats}, nil
}

type dashboardRefreshJob struct {
	logg  *logger.Logger
	stats dashboardRefresher
}

func (j *dashboardRefreshJob) Name() string { return "dashboard-refresh" }

func (j *dashboardRefreshJob) Run(ctx context.Context) error {
	dash, err := j.stats.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh dashboard: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"total_requests": dash.Total,
		"months":         len(dash.PerMonth),
	}), "dashboard cache refreshed")
	return nil
}
