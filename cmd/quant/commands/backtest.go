package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/brain"
	"github.com/wonny/clusterarb/internal/contracts"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 프레임워크",
	Long: `과거 데이터를 사용하여 클러스터 통계차익 전략을 시뮬레이션합니다.

백테스팅은 다음을 검증합니다:
- 누적/연환산 수익률
- 리스크 지표 (Sharpe, MDD)
- 일평균 회전율

Example:
  go run ./cmd/quant backtest run --from 2022-01-01 --to 2024-12-31
  go run ./cmd/quant backtest run --compare`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 전체 파이프라인(S0~S5)을 실행합니다.

Flags:
  --from        시작 날짜 (YYYY-MM-DD)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --method      hierarchical | spectral
  --clusters    클러스터 수 K
  --lookback    z-score 윈도우
  --threshold   진입 임계값
  --compare     두 클러스터링 방법을 동시에 실행하여 비교

Example:
  go run ./cmd/quant backtest run --from 2022-01-01
  go run ./cmd/quant backtest run --threshold 1.5 --lookback 40
  go run ./cmd/quant backtest run --compare`,
		RunE: runBacktest,
	}

	// Flags
	backtestFlags   pipelineFlags
	backtestCompare bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestFlags.register(backtestRunCmd)
	backtestRunCmd.Flags().BoolVar(&backtestCompare, "compare", false, "hierarchical vs spectral 비교")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== clusterarb Backtest Engine ===")
	ctx := cmd.Context()

	a, err := newApp(ctx, allowDirect)
	if err != nil {
		return fmt.Errorf("init backtest: %w", err)
	}
	defer a.Close()
	a.warnDirect()

	from, to, err := a.period(backtestFlags.from, backtestFlags.to)
	if err != nil {
		return err
	}
	pipeline, err := backtestFlags.apply(a.strategy.Pipeline)
	if err != nil {
		return err
	}

	fmt.Printf("\n🔖 Strategy: %s (config %s)\n", a.snapshot.StrategyID, a.snapshot.ConfigHash[:12])
	fmt.Printf("📅 Period: %s ~ %s\n", from.Format(dateLayout), to.Format(dateLayout))
	fmt.Printf("🧩 Clusters: %d (%s)\n", pipeline.NumClusters, pipeline.Method)
	fmt.Printf("📏 Z lookback: %d days, entry |z| > %.2f\n\n", pipeline.ZLookback, pipeline.EntryThreshold)

	config := brain.RunConfig{RunID: brain.GenerateRunID(), Pipeline: pipeline}
	start := time.Now()

	if !backtestCompare {
		fmt.Println("🚀 Starting backtest...")
		result, err := a.orch.RunFromStore(ctx, a.priceRequest(from, to), config)
		if err != nil {
			return fmt.Errorf("backtest failed: %w", err)
		}
		printBacktestResult(result, time.Since(start))
		return nil
	}

	fmt.Println("🚀 Starting comparison (hierarchical vs spectral)...")
	prices, err := a.orch.LoadPrices(ctx, a.priceRequest(from, to))
	if err != nil {
		return err
	}
	results, err := a.orch.Compare(ctx, prices, config)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}
	printComparison(results, time.Since(start))
	return nil
}

func printBacktestResult(result *brain.RunResult, elapsed time.Duration) {
	bt := result.Backtest
	m := bt.Metrics

	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	// Summary
	fmt.Println("📊 Summary")
	fmt.Printf("Run ID: %s\n", result.RunID)
	if len(bt.Dates) > 0 {
		fmt.Printf("Period: %s ~ %s (%d trading days)\n",
			bt.Dates[0].Format(dateLayout), bt.Dates[len(bt.Dates)-1].Format(dateLayout), len(bt.Dates))
	}
	fmt.Printf("Clusters: %d of %d requested\n", len(result.Clusters.Clusters), result.Clusters.Requested)
	fmt.Printf("Duration: %.2f seconds\n", elapsed.Seconds())
	fmt.Println()

	// Performance
	fmt.Println("💰 Performance")
	fmt.Printf("Total Return:    %s\n", formatPercent(m.TotalReturn))
	fmt.Printf("Annual Return:   %s\n", formatPercent(m.AnnualizedReturn))
	fmt.Println()

	// Risk Metrics
	fmt.Println("📉 Risk Metrics")
	fmt.Printf("Sharpe Ratio:    %.2f", m.SharpeRatio)
	switch {
	case m.SharpeRatio > 2.0:
		fmt.Print(" 🌟 (Excellent)")
	case m.SharpeRatio > 1.0:
		fmt.Print(" ✅ (Good)")
	case m.SharpeRatio > 0:
		fmt.Print(" ⚠️  (Fair)")
	default:
		fmt.Print(" ❌ (Poor)")
	}
	fmt.Println()
	fmt.Printf("Max Drawdown:    %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Daily Turnover:  %.3f\n", m.AverageTurnover)
	fmt.Println()

	// Equity Curve (last 10 points)
	fmt.Println("📈 Equity Curve (Last 10 Days)")
	curve := bt.EquityCurve()
	startIdx := len(curve) - 10
	if startIdx < 0 {
		startIdx = 0
	}
	for i, point := range curve[startIdx:] {
		fmt.Printf("%s: %.4f (%s)\n",
			point.Date.Format(dateLayout),
			point.Equity,
			formatPercent(bt.PortfolioReturns[startIdx+i]))
	}
	fmt.Println()
}

func printComparison(results map[contracts.ClusterMethod]*brain.RunResult, elapsed time.Duration) {
	methods := []contracts.ClusterMethod{contracts.MethodHierarchical, contracts.MethodSpectral}

	fmt.Println("\n✅ Comparison Completed")
	fmt.Println()

	widths := []int{14, 9, 12, 12, 8, 10, 9}
	PrintTableHeader([]string{"Method", "Clusters", "Total", "Annual", "Sharpe", "MDD", "Turnover"}, widths)
	for _, method := range methods {
		r := results[method]
		m := r.Backtest.Metrics
		PrintTableRow([]string{
			string(method),
			fmt.Sprint(len(r.Clusters.Clusters)),
			formatPercent(m.TotalReturn),
			formatPercent(m.AnnualizedReturn),
			fmt.Sprintf("%.2f", m.SharpeRatio),
			fmt.Sprintf("%.2f%%", m.MaxDrawdown*100),
			fmt.Sprintf("%.3f", m.AverageTurnover),
		}, widths)
	}
	fmt.Println()
	fmt.Printf("Duration: %.2f seconds\n", elapsed.Seconds())
}
