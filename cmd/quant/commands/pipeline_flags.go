package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/strategyconfig"
)

// pipelineFlags overrides strategy pipeline parameters from the command line
type pipelineFlags struct {
	from      string
	to        string
	method    string
	clusters  int
	lookback  int
	threshold float64
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "시작 날짜 (YYYY-MM-DD, 기본: to - lookback_years)")
	cmd.Flags().StringVar(&f.to, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	cmd.Flags().StringVar(&f.method, "method", "", "클러스터링 방법 (hierarchical|spectral)")
	cmd.Flags().IntVar(&f.clusters, "clusters", 0, "클러스터 수 K")
	cmd.Flags().IntVar(&f.lookback, "lookback", 0, "z-score 롤링 윈도우 (일)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "진입 임계값 |z|")
}

// apply returns base with every set flag applied, validated
func (f *pipelineFlags) apply(base strategyconfig.Pipeline) (strategyconfig.Pipeline, error) {
	p := base
	if f.method != "" {
		m, err := contracts.ParseClusterMethod(f.method)
		if err != nil {
			return p, err
		}
		p.Method = m
	}
	if f.clusters != 0 {
		p.NumClusters = f.clusters
	}
	if f.lookback != 0 {
		p.ZLookback = f.lookback
	}
	if f.threshold != 0 {
		p.EntryThreshold = f.threshold
	}
	return p, strategyconfig.ValidatePipeline(p)
}
