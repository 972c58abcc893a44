package contracts

import "time"

// TradingDaysPerYear is the annualisation convention
const TradingDaysPerYear = 252

// Metrics is the summary record of one backtest
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`   // ≤ 0
	AverageTurnover  float64 `json:"daily_turnover"` // mean Σ|Δw|, first row excluded
}

// BacktestResult holds every series the simulation produces
// ⭐ SSOT: 백테스트 → 리포팅 전달
type BacktestResult struct {
	Dates            []time.Time   `json:"dates"`
	Positions        *SignalMatrix `json:"positions"`
	Weights          Matrix        `json:"weights"`
	GrossExposure    []float64     `json:"gross_exposure"`
	PortfolioReturns []float64     `json:"daily_returns"`
	CumulativeReturn []float64     `json:"cumulative_returns"`
	Drawdown         []float64     `json:"drawdown"`
	Turnover         []float64     `json:"turnover"`
	Metrics          Metrics       `json:"metrics"`
}

// EquityPoint is one point of the cumulative return curve
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"` // 1.0 = initial capital
}

// EquityCurve pairs dates with cumulative returns
func (r *BacktestResult) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(r.CumulativeReturn))
	for t, v := range r.CumulativeReturn {
		out[t] = EquityPoint{Date: r.Dates[t], Equity: v}
	}
	return out
}
