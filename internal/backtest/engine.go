package backtest

import (
	"math"

	"github.com/wonny/clusterarb/internal/contracts"
)

const stageBacktest = "backtest"

// Run executes the vectorized backtest of a signal matrix against realised returns
// ⭐ SSOT: 백테스트 실행은 여기서만
// Deterministic single pass: lag → normalise → simulate → compound → summarise.
func Run(returns contracts.Matrix, signals *contracts.SignalMatrix) (*contracts.BacktestResult, error) {
	sim, err := Simulate(returns, signals)
	if err != nil {
		return nil, err
	}

	cumulative := Compound(sim.PortfolioReturns)
	drawdown := Drawdown(cumulative)
	turnover := Turnover(sim.Weights)

	result := &contracts.BacktestResult{
		Dates:            append(returns.Dates[:0:0], returns.Dates...),
		Positions:        sim.Positions,
		Weights:          sim.Weights,
		GrossExposure:    sim.GrossExposure,
		PortfolioReturns: sim.PortfolioReturns,
		CumulativeReturn: cumulative,
		Drawdown:         drawdown,
		Turnover:         turnover,
	}
	result.Metrics = calculateMetrics(sim.PortfolioReturns, cumulative, drawdown, turnover)

	return result, nil
}

// Compound returns cumulative[t] = Π_{s≤t} (1 + r[s])
func Compound(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for t, r := range returns {
		acc *= 1 + r
		out[t] = acc
	}
	return out
}

// Drawdown returns the relative decline of each point from its running peak (≤ 0)
func Drawdown(cumulative []float64) []float64 {
	out := make([]float64, len(cumulative))
	if len(cumulative) == 0 {
		return out
	}
	peak := cumulative[0]
	for t, v := range cumulative {
		if v > peak {
			peak = v
		}
		out[t] = (v - peak) / peak
	}
	return out
}

// Turnover returns Σ_i |w[i,t] - w[i,t-1]| per date. The first date has no prior weight;
// it is reported as 0 and excluded from the average.
func Turnover(weights contracts.Matrix) []float64 {
	out := make([]float64, weights.Rows())
	if len(out) == 0 {
		return out
	}
	for t := 1; t < weights.Rows(); t++ {
		sum := 0.0
		for j, w := range weights.Values[t] {
			sum += math.Abs(w - weights.Values[t-1][j])
		}
		out[t] = sum
	}
	return out
}

// calculateMetrics summarises the simulated series
func calculateMetrics(portfolio, cumulative, drawdown, turnover []float64) contracts.Metrics {
	var m contracts.Metrics
	if len(portfolio) == 0 {
		return m
	}

	// Total return
	m.TotalReturn = cumulative[len(cumulative)-1] - 1

	// Annualized return (mean daily × 252)
	mean := calculateMean(portfolio)
	m.AnnualizedReturn = mean * contracts.TradingDaysPerYear

	// Sharpe Ratio (0% risk-free rate)
	if vol := calculateVolatility(portfolio); vol != 0 {
		m.SharpeRatio = mean / vol * math.Sqrt(contracts.TradingDaysPerYear)
	}

	// Maximum Drawdown
	m.MaxDrawdown = calculateMaxDrawdown(drawdown)

	// Average turnover, first date excluded
	if len(turnover) > 1 {
		m.AverageTurnover = calculateMean(turnover[1:])
	}

	return m
}

func calculateMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// calculateVolatility calculates the sample standard deviation (n-1);
// fewer than two observations have none and report 0
func calculateVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := calculateMean(returns)
	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

// calculateMaxDrawdown returns the most negative drawdown (0 when never under water)
func calculateMaxDrawdown(drawdown []float64) float64 {
	maxDrawdown := 0.0
	for _, d := range drawdown {
		if d < maxDrawdown {
			maxDrawdown = d
		}
	}
	return maxDrawdown
}
