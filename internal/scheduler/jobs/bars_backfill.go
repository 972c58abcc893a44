package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/clusterarb/internal/s0_data/collector"
	"github.com/wonny/clusterarb/pkg/logger"
)

// recentDays covers a long holiday break plus the weekend around it
const recentDays = 14

// Backfiller refreshes recent bars for an exchange
type Backfiller interface {
	BackfillRecent(ctx context.Context, exchange string, days int, cfg collector.Config) (*collector.Summary, error)
}

// BarsBackfillJob refreshes the last two weeks of daily bars after the close
// ⭐ SSOT: 일봉 수집 스케줄은 이 Job에서만
type BarsBackfillJob struct {
	collector Backfiller
	exchange  string
	schedule  string
	workers   int
	logger    *logger.Logger
}

// NewBarsBackfillJob creates a new bars backfill job
func NewBarsBackfillJob(col Backfiller, exchange, schedule string, workers int, log *logger.Logger) *BarsBackfillJob {
	return &BarsBackfillJob{
		collector: col,
		exchange:  exchange,
		schedule:  schedule,
		workers:   workers,
		logger:    log,
	}
}

// Name returns the job name
func (j *BarsBackfillJob) Name() string {
	return "bars_backfill"
}

// Schedule returns the cron schedule from the strategy file (weekdays after the close by default)
func (j *BarsBackfillJob) Schedule() string {
	return j.schedule
}

// Run executes the bar refresh. Every ticker failing counts as a job failure so that it is retried.
func (j *BarsBackfillJob) Run(ctx context.Context) error {
	j.logger.WithField("exchange", j.exchange).Info("Starting scheduled bar backfill")

	summary, err := j.collector.BackfillRecent(ctx, j.exchange, recentDays, collector.Config{Workers: j.workers})
	if err != nil {
		return fmt.Errorf("backfill bars: %w", err)
	}
	if summary.Succeeded == 0 && summary.Failed > 0 {
		return fmt.Errorf("backfill bars: all %d tickers failed", summary.Failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"bars":      summary.Bars,
	}).Info("Scheduled bar backfill completed")
	return nil
}
