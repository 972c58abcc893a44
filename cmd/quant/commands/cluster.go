package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/brain"
	"github.com/wonny/clusterarb/internal/contracts"
)

// clusterCmd represents the cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "클러스터링 실행",
	Long: `저장된 일봉으로 파이프라인을 실행하고 클러스터 구성을 출력합니다.

출력:
- 클러스터별 종목 및 평균 상관계수
- 최신 z-score 기준 LONG/SHORT 시그널

Example:
  go run ./cmd/quant cluster
  go run ./cmd/quant cluster --method spectral --clusters 8
  go run ./cmd/quant cluster --from 2022-01-01 --to 2024-12-31`,
	RunE: runCluster,
}

var clusterFlags pipelineFlags

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterFlags.register(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, allowDirect)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnDirect()

	from, to, err := a.period(clusterFlags.from, clusterFlags.to)
	if err != nil {
		return err
	}
	pipeline, err := clusterFlags.apply(a.strategy.Pipeline)
	if err != nil {
		return err
	}

	PrintHeader("Cluster Run", [][2]string{
		{"Period", from.Format(dateLayout) + " ~ " + to.Format(dateLayout)},
		{"Exchange", a.strategy.Data.Exchange},
		{"Method", string(pipeline.Method)},
		{"K", fmt.Sprint(pipeline.NumClusters)},
	})

	result, err := a.orch.RunFromStore(ctx, a.priceRequest(from, to), brain.RunConfig{
		RunID:    brain.GenerateRunID(),
		Pipeline: pipeline,
	})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	printClusters(result)
	return nil
}

func printClusters(result *brain.RunResult) {
	assignment := result.Clusters
	fmt.Printf("\n🧩 %d clusters (requested %d) over %d tickers\n\n",
		len(assignment.Clusters), assignment.Requested, result.Correlation.Size())

	widths := []int{4, 5, 9, 50}
	PrintTableHeader([]string{"ID", "Size", "Mean ρ", "Tickers"}, widths)
	for _, c := range assignment.Clusters {
		PrintTableRow([]string{
			fmt.Sprint(c.ID),
			fmt.Sprint(len(c.Tickers)),
			fmt.Sprintf("%.3f", meanIntraCorrelation(result.Correlation, c.Tickers)),
			strings.Join(c.Tickers, " "),
		}, widths)
	}

	latest := result.Signals.Latest()
	fmt.Println()
	if len(latest) == 0 {
		fmt.Println("📭 No active signals on the latest date")
		return
	}

	tickers := make([]string, 0, len(latest))
	for t := range latest {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	last := result.Signals.Dates[len(result.Signals.Dates)-1]
	fmt.Printf("📡 Signals on %s\n", last.Format(dateLayout))
	for _, t := range tickers {
		fmt.Printf("   %-12s %s\n", t, formatSignal(latest[t]))
	}
}

// meanIntraCorrelation averages corr(i, j) over distinct pairs within one cluster.
// A singleton cluster reports 1.
func meanIntraCorrelation(corr *contracts.CorrelationMatrix, members []string) float64 {
	if len(members) < 2 {
		return 1
	}
	index := make(map[string]int, corr.Size())
	for i, t := range corr.Tickers {
		index[t] = i
	}

	sum, n := 0.0, 0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += corr.At(index[members[a]], index[members[b]])
			n++
		}
	}
	return sum / float64(n)
}
