package strategyconfig

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/clusterarb/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if cfg.Meta.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
			return ValidationError{"meta.timezone", err.Error()}
		}
	}

	// === Data ===
	if cfg.Data.Exchange == "" && len(cfg.Data.Tickers) == 0 {
		return ValidationError{"data.exchange", "required when data.tickers is empty"}
	}
	if cfg.Data.LookbackYears < 1 {
		return ValidationError{"data.lookback_years", "must be >= 1"}
	}
	if cfg.Data.PriceField != contracts.FieldClose && cfg.Data.PriceField != contracts.FieldAdjClose {
		return ValidationError{"data.price_field", "must be close or adj_close"}
	}
	if err := ValidateCoverage(cfg.Data.MinCoverage); err != nil {
		return ValidationError{"data.min_coverage", err.Error()}
	}
	seen := make(map[string]bool, len(cfg.Data.Tickers))
	for i, t := range cfg.Data.Tickers {
		if strings.TrimSpace(t) == "" {
			return ValidationError{fmt.Sprintf("data.tickers[%d]", i), "empty ticker"}
		}
		if seen[t] {
			return ValidationError{fmt.Sprintf("data.tickers[%d]", i), "duplicate " + t}
		}
		seen[t] = true
	}

	// === Pipeline ===
	if err := ValidatePipeline(cfg.Pipeline); err != nil {
		return err
	}
	if n := len(cfg.Data.Tickers); n > 0 && cfg.Pipeline.NumClusters > n {
		return ValidationError{"pipeline.num_clusters", fmt.Sprintf("must be <= number of tickers (%d)", n)}
	}

	// === Schedule ===
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for field, spec := range map[string]string{
		"schedule.bars_backfill":     cfg.Schedule.BarsBackfill,
		"schedule.analytics_refresh": cfg.Schedule.AnalyticsRefresh,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	return nil
}

// ValidateCoverage checks a coverage-gate threshold; 0 disables the gate
func ValidateCoverage(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("must be in [0, 1]")
	}
	return nil
}

// ValidatePipeline checks the parameters shared by the CLI, API and scheduler
func ValidatePipeline(p Pipeline) error {
	if p.NumClusters < 2 {
		return ValidationError{"pipeline.num_clusters", "must be >= 2"}
	}
	if _, err := contracts.ParseClusterMethod(string(p.Method)); err != nil {
		return ValidationError{"pipeline.method", "must be hierarchical or spectral"}
	}
	// a one-day window has no sample deviation; its z-scores stay undefined
	if p.ZLookback < 1 {
		return ValidationError{"pipeline.z_lookback", "must be >= 1"}
	}
	if math.IsNaN(p.EntryThreshold) || p.EntryThreshold <= 0 {
		return ValidationError{"pipeline.entry_threshold", "must be > 0"}
	}
	if p.Restarts < 1 {
		return ValidationError{"pipeline.restarts", "must be >= 1"}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 1년 미만 데이터 대비 z-score 창이 너무 김
	if cfg.Pipeline.ZLookback > 126 {
		warnings = append(warnings, Warning{
			Code:    "LONG_Z_WINDOW",
			Message: "z_lookback > 126: 신호가 거의 발생하지 않을 수 있음",
		})
	}

	// 낮은 임계값은 회전율 폭증
	if cfg.Pipeline.EntryThreshold < 1.0 {
		warnings = append(warnings, Warning{
			Code:    "LOW_THRESHOLD",
			Message: "entry_threshold < 1.0: 회전율 증가 우려",
		})
	}

	// 종목 수 대비 클러스터 과다
	if n := len(cfg.Data.Tickers); n > 0 && cfg.Pipeline.NumClusters*2 > n {
		warnings = append(warnings, Warning{
			Code:    "SPARSE_CLUSTERS",
			Message: "클러스터당 평균 종목 수 < 2: 단일 종목 클러스터는 잔차가 항상 0",
		})
	}

	return warnings
}
