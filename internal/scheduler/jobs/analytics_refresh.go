package jobs

import (
	"context"

	"github.com/wonny/clusterarb/pkg/logger"
)

// Refresher recomputes the default analytics and warms the cache
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AnalyticsRefreshJob runs the default pipeline after the nightly bar backfill
// ⭐ SSOT: 분석 캐시 갱신 스케줄은 이 Job에서만
type AnalyticsRefreshJob struct {
	refresher Refresher
	schedule  string
	logger    *logger.Logger
}

// NewAnalyticsRefreshJob creates a new analytics refresh job
func NewAnalyticsRefreshJob(r Refresher, schedule string, log *logger.Logger) *AnalyticsRefreshJob {
	return &AnalyticsRefreshJob{
		refresher: r,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *AnalyticsRefreshJob) Name() string {
	return "analytics_refresh"
}

// Schedule returns the cron schedule from the strategy file
func (j *AnalyticsRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *AnalyticsRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled analytics refresh")
	return j.refresher.Refresh(ctx)
}
