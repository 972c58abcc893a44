package brain

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/clusterarb/internal/backtest"
	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/s0_data"
	"github.com/wonny/clusterarb/internal/s1_returns"
	"github.com/wonny/clusterarb/internal/s2_clustering"
	"github.com/wonny/clusterarb/internal/s3_residuals"
	"github.com/wonny/clusterarb/internal/s4_signals"
	"github.com/wonny/clusterarb/internal/strategyconfig"
	"github.com/wonny/clusterarb/pkg/logger"
)

// Stage names recorded in RunResult.CompletedStages
const (
	StageData        = "S0:Prices"
	StageReturns     = "S1:Returns"
	StageCorrelation = "S1:Correlation"
	StageClustering  = "S2:Clustering"
	StageResiduals   = "S3:Residuals"
	StageSignals     = "S4:Signals"
	StageBacktest    = "S5:Backtest"
)

// PriceLoader builds an aligned price matrix from stored bars
type PriceLoader interface {
	LoadPrices(ctx context.Context, req s0_data.PriceRequest) (contracts.Matrix, error)
}

// Orchestrator coordinates the returns → clusters → residuals → signals → backtest pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	prices PriceLoader // nil when callers always pass prices directly
	logger *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID    string
	Pipeline strategyconfig.Pipeline
}

// RunResult holds every intermediate and final output of one run
type RunResult struct {
	RunID           string                       `json:"run_id"`
	Method          contracts.ClusterMethod      `json:"method"`
	Params          strategyconfig.Pipeline      `json:"params"`
	CompletedStages []string                     `json:"completed_stages"`
	Returns         contracts.Matrix             `json:"-"`
	Correlation     *contracts.CorrelationMatrix `json:"-"`
	Clusters        *contracts.ClusterAssignment `json:"clusters"`
	Residuals       *s3_residuals.Result         `json:"-"`
	Signals         *contracts.SignalMatrix      `json:"-"`
	Backtest        *contracts.BacktestResult    `json:"-"`
	Duration        time.Duration                `json:"duration"`
}

// NewOrchestrator creates a new orchestrator. prices may be nil.
func NewOrchestrator(prices PriceLoader, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{prices: prices, logger: log}
}

// Run executes the complete pipeline on an aligned price matrix
// S1 → S2 → S3 → S4 → S5
func (o *Orchestrator) Run(ctx context.Context, prices contracts.Matrix, config RunConfig) (*RunResult, error) {
	startTime := time.Now()
	p := config.Pipeline

	if err := strategyconfig.ValidatePipeline(p); err != nil {
		return nil, contracts.NewInvalidParameter("pipeline", p, err.Error())
	}

	result := &RunResult{
		RunID:           config.RunID,
		Method:          p.Method,
		Params:          p,
		CompletedStages: make([]string, 0, 6),
	}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": config.RunID,
		"method": string(p.Method),
	})

	log.WithFields(map[string]interface{}{
		"tickers":         prices.Cols(),
		"dates":           prices.Rows(),
		"num_clusters":    p.NumClusters,
		"z_lookback":      p.ZLookback,
		"entry_threshold": p.EntryThreshold,
	}).Info("Starting pipeline run")

	// S1: Returns
	if err := stage(ctx, log, StageReturns, func() error {
		var err error
		result.Returns, err = s1_returns.LogReturns(prices)
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageReturns)

	// S1: Correlation
	if err := stage(ctx, log, StageCorrelation, func() error {
		var err error
		result.Correlation, err = s1_returns.Correlation(result.Returns)
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageCorrelation)

	// S2: Clustering
	if err := stage(ctx, log, StageClustering, func() error {
		var err error
		result.Clusters, err = s2_clustering.Cluster(ctx, result.Correlation, s2_clustering.Params{
			K:        p.NumClusters,
			Method:   p.Method,
			Seed:     p.ClusterSeed,
			Restarts: p.Restarts,
		})
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageClustering)

	// S3: Residuals / spread / z-score
	if err := stage(ctx, log, StageResiduals, func() error {
		var err error
		result.Residuals, err = s3_residuals.Build(result.Returns, result.Clusters, p.ZLookback)
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageResiduals)

	// S4: Signals
	if err := stage(ctx, log, StageSignals, func() error {
		var err error
		result.Signals, err = s4_signals.Generate(result.Residuals.ZScores, p.EntryThreshold)
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageSignals)

	// S5: Backtest
	if err := stage(ctx, log, StageBacktest, func() error {
		var err error
		result.Backtest, err = backtest.Run(result.Returns, result.Signals)
		return err
	}); err != nil {
		return result, err
	}
	result.CompletedStages = append(result.CompletedStages, StageBacktest)

	result.Duration = time.Since(startTime)

	log.WithFields(map[string]interface{}{
		"clusters":      result.Clusters.Count(),
		"total_return":  result.Backtest.Metrics.TotalReturn,
		"sharpe":        result.Backtest.Metrics.SharpeRatio,
		"mdd":           result.Backtest.Metrics.MaxDrawdown,
		"active_latest": len(result.Signals.Latest()),
	}).WithDuration(result.Duration).Info("Pipeline run completed successfully")

	return result, nil
}

// stage runs fn unless ctx is already done, logging duration and failure
func stage(ctx context.Context, log *logger.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	if err := fn(); err != nil {
		log.WithField("stage", name).WithError(err).Error("Stage failed")
		return fmt.Errorf("%s failed: %w", name, err)
	}
	log.WithField("stage", name).WithDuration(time.Since(start)).Debug("Stage completed")
	return nil
}

// Compare runs the pipeline once per clustering method on the same prices, concurrently.
// The configured method is ignored; results are keyed by method.
func (o *Orchestrator) Compare(ctx context.Context, prices contracts.Matrix, config RunConfig) (map[contracts.ClusterMethod]*RunResult, error) {
	methods := []contracts.ClusterMethod{contracts.MethodHierarchical, contracts.MethodSpectral}
	results := make([]*RunResult, len(methods))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range methods {
		i, m := i, m
		g.Go(func() error {
			cfg := config
			cfg.Pipeline.Method = m
			cfg.RunID = fmt.Sprintf("%s_%s", config.RunID, m)
			res, err := o.Run(gctx, prices, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[contracts.ClusterMethod]*RunResult, len(methods))
	for i, m := range methods {
		out[m] = results[i]
	}
	return out, nil
}

// LoadPrices runs S0 through the configured loader
func (o *Orchestrator) LoadPrices(ctx context.Context, req s0_data.PriceRequest) (contracts.Matrix, error) {
	if o.prices == nil {
		return contracts.Matrix{}, fmt.Errorf("%s: no price loader configured", StageData)
	}

	start := time.Now()
	prices, err := o.prices.LoadPrices(ctx, req)
	if err != nil {
		return contracts.Matrix{}, fmt.Errorf("%s failed: %w", StageData, err)
	}

	o.logger.WithFields(map[string]interface{}{
		"exchange": req.Exchange,
		"tickers":  prices.Cols(),
		"dates":    prices.Rows(),
		"from":     req.From.Format("2006-01-02"),
		"to":       req.To.Format("2006-01-02"),
	}).WithDuration(time.Since(start)).Info("S0 completed")

	return prices, nil
}

// RunFromStore loads prices for req and runs the pipeline on them
func (o *Orchestrator) RunFromStore(ctx context.Context, req s0_data.PriceRequest, config RunConfig) (*RunResult, error) {
	prices, err := o.LoadPrices(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := o.Run(ctx, prices, config)
	if result != nil {
		result.CompletedStages = append([]string{StageData}, result.CompletedStages...)
	}
	return result, err
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s", time.Now().Format("20060102_150405"))
}
