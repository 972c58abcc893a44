package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/api/handlers"
	"github.com/wonny/clusterarb/internal/scheduler"
	"github.com/wonny/clusterarb/internal/scheduler/jobs"
	"github.com/wonny/clusterarb/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 및 다음 실행 시각
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run bars_backfill`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.
cron 표현식과 타임존은 전략 설정의 schedule / meta.timezone 을 따릅니다.

등록되는 작업:
- bars_backfill: 장 마감 후 최근 일봉 갱신
- analytics_refresh: 기본 파라미터로 클러스터/백테스트 재계산 후 캐시

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== clusterarb Scheduler ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	// cron computes next activations only once started
	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %.2fs: %s", jobName, result.Duration.Seconds(), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", jobName, result.Duration.Seconds()))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	next := sched.NextRuns()
	stats := sched.GetJobStats()

	fmt.Println("\nRegistered jobs:")
	widths := []int{18, 18, 25}
	PrintTableHeader([]string{"Job", "Schedule", "Next Run"}, widths)
	for _, name := range sched.GetAllJobs() {
		nextRun := "-"
		if t := next[name]; !t.IsZero() {
			nextRun = t.Format("2006-01-02 15:04:05 MST")
		}
		PrintTableRow([]string{name, stats[name].Schedule, nextRun}, widths)
	}
}

// initScheduler builds the app and registers every job on a scheduler in the strategy timezone
func initScheduler(ctx context.Context) (*app, *scheduler.Scheduler, error) {
	a, err := newApp(ctx, requireDB)
	if err != nil {
		return nil, nil, err
	}

	loc, err := time.LoadLocation(a.strategy.Meta.Timezone)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("load timezone %q: %w", a.strategy.Meta.Timezone, err)
	}

	col := newCollector(a)
	cache := redis.NewCache(a.redis, "clusterarb")
	analytics := handlers.NewAnalyticsHandler(a.orch, cache, a.strategy, a.log)

	sched := scheduler.New(a.log, loc)
	toAdd := []scheduler.Job{
		jobs.NewBarsBackfillJob(col, a.strategy.Data.Exchange, a.strategy.Schedule.BarsBackfill, a.cfg.Yahoo.Workers, a.log),
		jobs.NewAnalyticsRefreshJob(analytics, a.strategy.Schedule.AnalyticsRefresh, a.log),
	}
	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
