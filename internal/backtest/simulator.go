package backtest

import (
	"math"

	"github.com/wonny/clusterarb/internal/contracts"
)

// Simulation is the per-date output of the vectorized simulation
type Simulation struct {
	Positions        *contracts.SignalMatrix
	Weights          contracts.Matrix
	GrossExposure    []float64
	PortfolioReturns []float64
}

// Simulate lags signals into positions, re-levers every date to unit gross exposure, and
// realises the weighted return
// ⭐ SSOT: 포지션 → 비중 → 포트폴리오 수익률 시뮬레이션은 여기서만
//
// Normalisation is global across the whole universe, not per cluster. Tickers present in
// returns but not in signals carry zero weight.
func Simulate(returns contracts.Matrix, signals *contracts.SignalMatrix) (*Simulation, error) {
	if err := returns.Validate(); err != nil {
		return nil, contracts.NewInsufficientData(stageBacktest, 1, returns.Rows(), err.Error())
	}
	if signals == nil {
		return nil, contracts.NewInsufficientData(stageBacktest, 1, 0, "no signals")
	}
	if signals.Rows() != returns.Rows() {
		return nil, contracts.NewInvalidParameter("signals", signals.Rows(), "row count must match returns")
	}

	positions := Lag(alignSignals(signals, returns.Columns))
	weights, gross := Normalize(positions)

	portfolio := make([]float64, returns.Rows())
	for t, row := range returns.Values {
		sum := 0.0
		for j, w := range weights.Values[t] {
			if w == 0 {
				continue
			}
			sum += w * row[j]
		}
		portfolio[t] = sum
	}

	return &Simulation{
		Positions:        positions,
		Weights:          weights,
		GrossExposure:    gross,
		PortfolioReturns: portfolio,
	}, nil
}

// Lag returns position[t] = signal[t-1]; the first date holds no position
func Lag(signals *contracts.SignalMatrix) *contracts.SignalMatrix {
	return signals.Lag()
}

// Normalize divides each position by the date's gross exposure Σ|position|.
// Dates with zero gross exposure get all-zero weights.
func Normalize(positions *contracts.SignalMatrix) (contracts.Matrix, []float64) {
	weights := contracts.NewMatrix(positions.Dates, positions.Tickers)
	gross := make([]float64, positions.Rows())
	for t, row := range positions.Values {
		g := 0.0
		for _, p := range row {
			g += math.Abs(float64(p))
		}
		gross[t] = g
		if g == 0 {
			continue
		}
		for j, p := range row {
			weights.Values[t][j] = float64(p) / g
		}
	}
	return weights, gross
}

// alignSignals reorders signal columns to match the returns columns; missing tickers stay flat
func alignSignals(signals *contracts.SignalMatrix, columns []string) *contracts.SignalMatrix {
	out := contracts.NewSignalMatrix(signals.Dates, columns)
	idx := make(map[string]int, len(signals.Tickers))
	for j, t := range signals.Tickers {
		idx[t] = j
	}
	for k, c := range columns {
		j, ok := idx[c]
		if !ok {
			continue
		}
		for t := range signals.Values {
			out.Values[t][k] = signals.Values[t][j]
		}
	}
	return out
}
