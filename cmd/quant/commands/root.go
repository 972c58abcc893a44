package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	env          string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "clusterarb - 클러스터 기반 통계차익 파이프라인",
	Long: `clusterarb Unified CLI

상관관계 클러스터링 → 클러스터 잔차 → z-score 시그널 → 백테스트.
S0 가격 데이터부터 S5 백테스트까지 하나의 파이프라인으로 실행합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant fetcher instruments
  go run ./cmd/quant fetcher bars --years 3
  go run ./cmd/quant cluster --method spectral
  go run ./cmd/quant backtest run --compare
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: $STRATEGY_FILE or built-in)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
