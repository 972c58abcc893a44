package strategyconfig

import (
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
)

// Config는 클러스터 통계차익 전략의 전체 설정
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Data     Data     `yaml:"data" json:"data"`
	Pipeline Pipeline `yaml:"pipeline" json:"pipeline"`
	Schedule Schedule `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Data S0: 가격 데이터 범위
type Data struct {
	Exchange string `yaml:"exchange" json:"exchange"`
	// Tickers overrides the active instrument list when non-empty
	Tickers       []string             `yaml:"tickers,omitempty" json:"tickers,omitempty"`
	LookbackYears int                  `yaml:"lookback_years" json:"lookback_years"`
	PriceField    contracts.PriceField `yaml:"price_field" json:"price_field"`
	// MinCoverage drops tickers with bars on fewer than this share of trading dates
	MinCoverage float64 `yaml:"min_coverage" json:"min_coverage"`
}

// Pipeline S2~S4 파라미터
type Pipeline struct {
	NumClusters    int                     `yaml:"num_clusters" json:"num_clusters"`
	Method         contracts.ClusterMethod `yaml:"method" json:"method"`
	ZLookback      int                     `yaml:"z_lookback" json:"z_lookback"`
	EntryThreshold float64                 `yaml:"entry_threshold" json:"entry_threshold"`
	ClusterSeed    int64                   `yaml:"cluster_seed" json:"cluster_seed"`
	Restarts       int                     `yaml:"restarts" json:"restarts"`
}

// Schedule 스케줄러 cron 표현식 (초 필드 포함)
type Schedule struct {
	BarsBackfill     string `yaml:"bars_backfill" json:"bars_backfill"`
	AnalyticsRefresh string `yaml:"analytics_refresh" json:"analytics_refresh"`
}

// Default returns the built-in strategy: SSE Stock Connect names, 5 hierarchical clusters,
// 60-day z-score window, ±2.0 entry threshold
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "sse_cluster_arb",
			Version:    "1",
			Timezone:   "Asia/Shanghai",
		},
		Data: Data{
			Exchange:      "SSE",
			LookbackYears: 3,
			PriceField:    contracts.FieldClose,
			MinCoverage:   0.95,
		},
		Pipeline: Pipeline{
			NumClusters:    5,
			Method:         contracts.MethodHierarchical,
			ZLookback:      60,
			EntryThreshold: 2.0,
			ClusterSeed:    42,
			Restarts:       10,
		},
		Schedule: Schedule{
			BarsBackfill:     "0 30 17 * * 1-5",
			AnalyticsRefresh: "0 0 18 * * 1-5",
		},
	}
}

// DecisionSnapshot 설정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
