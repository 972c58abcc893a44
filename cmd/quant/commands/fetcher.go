package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/external/hkex"
	"github.com/wonny/clusterarb/internal/external/yahoo"
	"github.com/wonny/clusterarb/internal/s0_data/collector"
	"github.com/wonny/clusterarb/pkg/httputil"
	"github.com/wonny/clusterarb/pkg/redis"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "데이터 수집 도구",
	Long: `외부 소스에서 종목 유니버스와 일봉을 수집합니다.

이 명령어는:
- HKEX Stock Connect 페이지에서 SSE 편입 종목 수집 (실패 시 내장 샘플)
- Yahoo Finance chart API에서 일봉 수집

Example:
  go run ./cmd/quant fetcher instruments
  go run ./cmd/quant fetcher instruments --source hardcoded_sample
  go run ./cmd/quant fetcher bars --years 3 --workers 8
  go run ./cmd/quant fetcher bars --days 14`,
}

var (
	fetcherInstrumentsCmd = &cobra.Command{
		Use:   "instruments",
		Short: "종목 유니버스 적재",
		RunE:  runFetchInstruments,
	}

	fetcherBarsCmd = &cobra.Command{
		Use:   "bars",
		Short: "일봉 백필",
		Long: `활성 종목 전체의 일봉을 Yahoo Finance에서 받아 저장합니다.
종목별 실패는 요약에 기록되고 나머지 종목은 계속 진행합니다.`,
		RunE: runFetchBars,
	}

	// Fetcher flags
	fetcherSource   string
	fetcherExchange string
	fetcherYears    int
	fetcherDays     int
	fetcherWorkers  int
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherInstrumentsCmd, fetcherBarsCmd)

	// Flags
	fetcherInstrumentsCmd.Flags().StringVar(&fetcherSource, "source", collector.SourceStockConnect,
		"유니버스 소스 (hkex_stock_connect|hardcoded_sample)")

	fetcherBarsCmd.Flags().StringVar(&fetcherExchange, "exchange", "", "거래소 (기본: 전략 설정)")
	fetcherBarsCmd.Flags().IntVar(&fetcherYears, "years", 3, "백필 기간 (년)")
	fetcherBarsCmd.Flags().IntVar(&fetcherDays, "days", 0, "최근 N일만 갱신 (설정 시 --years 무시)")
	fetcherBarsCmd.Flags().IntVar(&fetcherWorkers, "workers", 0, "동시 요청 종목 수 (기본: $YAHOO_WORKERS)")
}

// newCollector wires the HKEX and Yahoo clients into a collector backed by the app repository
func newCollector(a *app) *collector.Collector {
	limiter := redis.NewRateLimiter(a.redis, "clusterarb")

	hkexHTTP := httputil.New(a.log, a.cfg.Yahoo.Timeout).
		WithRateLimiter(limiter, redis.HKEXRateLimit).
		WithUserAgent(hkex.BrowserUserAgent)
	universe := hkex.NewClient(hkexHTTP, a.log, a.cfg.HKEX.SSEListURL)
	provider := yahoo.New(a.cfg.Yahoo, a.log, limiter)

	return collector.NewCollector(universe, provider, a.repo, a.log)
}

func runFetchInstruments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, requireDB)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("=== clusterarb Data Fetcher ===\n\n")
	fmt.Printf("Source: %s\n\n", fetcherSource)

	n, err := newCollector(a).LoadInstruments(ctx, fetcherSource)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%d instruments stored", n))
	return nil
}

func runFetchBars(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, requireDB)
	if err != nil {
		return err
	}
	defer a.Close()

	exchange := fetcherExchange
	if exchange == "" {
		exchange = a.strategy.Data.Exchange
	}
	workers := fetcherWorkers
	if workers == 0 {
		workers = a.cfg.Yahoo.Workers
	}
	cfg := collector.Config{Workers: workers}
	col := newCollector(a)

	fmt.Printf("=== clusterarb Data Fetcher ===\n\n")

	var summary *collector.Summary
	if fetcherDays > 0 {
		fmt.Printf("Exchange: %s, last %d days, %d workers\n\n", exchange, fetcherDays, workers)
		summary, err = col.BackfillRecent(ctx, exchange, fetcherDays, cfg)
	} else {
		fmt.Printf("Exchange: %s, %d years, %d workers\n\n", exchange, fetcherYears, workers)
		summary, err = col.BackfillBars(ctx, exchange, fetcherYears, cfg)
	}
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s *collector.Summary) {
	PrintSeparator()
	fmt.Printf("Instruments : %d\n", s.Instruments)
	fmt.Printf("Succeeded   : %d\n", s.Succeeded)
	fmt.Printf("Failed      : %d\n", s.Failed)
	fmt.Printf("Bars        : %d\n", s.Bars)
	PrintSeparator()

	for _, r := range s.Results {
		if r.Error != nil {
			PrintError(fmt.Sprintf("%s: %v", r.Ticker, r.Error))
		}
	}
	if s.Failed == 0 {
		PrintSuccess("Backfill completed")
	} else {
		PrintWarning(fmt.Sprintf("%d of %d tickers failed", s.Failed, s.Instruments))
	}
}
