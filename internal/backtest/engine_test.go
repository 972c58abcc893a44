package backtest

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestRun_PositionsAreLagged(t *testing.T) {
	n := 8
	d := dates(n)
	returns := contracts.NewMatrix(d, []string{"A"})
	for i := range returns.Values {
		returns.Values[i][0] = 0.01 * float64(i+1)
	}
	signals := contracts.NewSignalMatrix(d, []string{"A"})
	signals.Values[5][0] = contracts.SignalLong

	result, err := Run(returns, signals)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		if i == 6 {
			assert.Equal(t, 1.0, result.GrossExposure[i])
			assert.Equal(t, 1.0, result.Weights.Values[i][0])
			assert.InDelta(t, 0.07, result.PortfolioReturns[i], 1e-15)
			continue
		}
		assert.Equal(t, 0.0, result.GrossExposure[i], "date %d", i)
		assert.Equal(t, 0.0, result.PortfolioReturns[i], "date %d", i)
	}
}

func TestRun_KnownMetrics(t *testing.T) {
	d := dates(4)
	returns := contracts.NewMatrix(d, []string{"A"})
	for i, r := range []float64{0, 0.1, -0.05, 0.02} {
		returns.Values[i][0] = r
	}
	signals := contracts.NewSignalMatrix(d, []string{"A"})
	for i := range signals.Values {
		signals.Values[i][0] = contracts.SignalLong
	}

	result, err := Run(returns, signals)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0, 0.1, -0.05, 0.02}, result.PortfolioReturns, 1e-15)
	assert.InDeltaSlice(t, []float64{1, 1.1, 1.045, 1.0659}, result.CumulativeReturn, 1e-12)
	assert.InDelta(t, 0.0659, result.Metrics.TotalReturn, 1e-12)
	assert.InDelta(t, -0.05, result.Metrics.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.0175*252, result.Metrics.AnnualizedReturn, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 0, 0}, result.Turnover, 1e-15)
	assert.InDelta(t, 1.0/3.0, result.Metrics.AverageTurnover, 1e-12)

	vol := calculateVolatility(result.PortfolioReturns)
	assert.InDelta(t, 0.0175/vol*math.Sqrt(252), result.Metrics.SharpeRatio, 1e-9)
}

func TestRun_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	n, tickers := 60, []string{"A", "B", "C", "D", "E"}
	d := dates(n)
	returns := contracts.NewMatrix(d, tickers)
	signals := contracts.NewSignalMatrix(d, tickers)
	for i := 0; i < n; i++ {
		for j := range tickers {
			returns.Values[i][j] = rng.NormFloat64() * 0.02
			signals.Values[i][j] = int8(rng.Intn(3) - 1)
		}
	}

	result, err := Run(returns, signals)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, w := range result.Weights.Values[i] {
			sum += math.Abs(w)
		}
		if result.GrossExposure[i] == 0 {
			assert.Equal(t, 0.0, sum)
		} else {
			assert.InDelta(t, 1.0, sum, 1e-12, "unit gross at %d", i)
		}
		assert.LessOrEqual(t, result.Drawdown[i], 0.0)
	}

	acc := 1.0
	for i, r := range result.PortfolioReturns {
		acc *= 1 + r
		assert.InDelta(t, acc, result.CumulativeReturn[i], 1e-12)
	}
	assert.LessOrEqual(t, result.Metrics.MaxDrawdown, 0.0)
	assert.Len(t, result.EquityCurve(), n)
}

func TestRun_SignalsAlignedByTicker(t *testing.T) {
	d := dates(3)
	returns := contracts.NewMatrix(d, []string{"A", "B"})
	returns.Values[2] = []float64{0.05, -0.02}

	signals := contracts.NewSignalMatrix(d, []string{"B"})
	signals.Values[1][0] = contracts.SignalShort

	result, err := Run(returns, signals)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1}, result.Weights.Values[2])
	assert.InDelta(t, 0.02, result.PortfolioReturns[2], 1e-15)
}

func TestRun_InvalidInput(t *testing.T) {
	returns := contracts.NewMatrix(dates(3), []string{"A"})

	_, err := Run(returns, contracts.NewSignalMatrix(dates(2), []string{"A"}))
	assert.True(t, errors.Is(err, contracts.ErrInvalidParameter))

	_, err = Run(returns, nil)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
}

func TestRun_Empty(t *testing.T) {
	returns := contracts.NewMatrix(nil, []string{"A"})
	result, err := Run(returns, contracts.NewSignalMatrix(nil, []string{"A"}))
	require.NoError(t, err)
	assert.Equal(t, contracts.Metrics{}, result.Metrics)
	assert.Empty(t, result.PortfolioReturns)
}
