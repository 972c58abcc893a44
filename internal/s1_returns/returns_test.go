package s1_returns

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

func matrix(columns []string, rows ...[]float64) contracts.Matrix {
	return contracts.Matrix{
		Dates:   dates(len(rows)),
		Columns: columns,
		Values:  rows,
	}
}

func TestLogReturns(t *testing.T) {
	prices := matrix([]string{"600000.SH", "600519.SH"},
		[]float64{100, 50},
		[]float64{110, 50},
		[]float64{99, 55},
	)

	returns, err := LogReturns(prices)
	require.NoError(t, err)

	assert.Equal(t, 2, returns.Rows(), "first row dropped")
	assert.Equal(t, prices.Dates[1:], returns.Dates)
	assert.Equal(t, prices.Columns, returns.Columns)
	assert.InDelta(t, math.Log(1.1), returns.Values[0][0], 1e-15)
	assert.Equal(t, 0.0, returns.Values[0][1])
	assert.InDelta(t, math.Log(0.9), returns.Values[1][0], 1e-15)
	assert.InDelta(t, math.Log(1.1), returns.Values[1][1], 1e-15)
}

func TestLogReturns_MissingPricePropagates(t *testing.T) {
	prices := matrix([]string{"A"},
		[]float64{100},
		[]float64{math.NaN()},
		[]float64{102},
	)

	returns, err := LogReturns(prices)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(returns.Values[0][0]))
	assert.True(t, math.IsNaN(returns.Values[1][0]))
}

func TestLogReturns_InsufficientData(t *testing.T) {
	tests := []struct {
		name   string
		prices contracts.Matrix
	}{
		{name: "no rows", prices: matrix([]string{"A"})},
		{name: "one row", prices: matrix([]string{"A"}, []float64{100})},
		{name: "no tickers", prices: matrix([]string{}, []float64{}, []float64{})},
		{name: "ragged", prices: matrix([]string{"A", "B"}, []float64{1, 2}, []float64{1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LogReturns(tt.prices)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)
		})
	}
}

func TestCorrelation_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tickers := []string{"A", "B", "C", "D", "E", "F"}
	rows := make([][]float64, 120)
	for i := range rows {
		common := rng.NormFloat64() * 0.01
		rows[i] = make([]float64, len(tickers))
		for j := range tickers {
			rows[i][j] = common*float64(j%3) + rng.NormFloat64()*0.01
		}
	}

	corr, err := Correlation(matrix(tickers, rows...))
	require.NoError(t, err)
	require.Equal(t, tickers, corr.Tickers)

	for i := range tickers {
		assert.InDelta(t, 1.0, corr.At(i, i), 1e-12, "diagonal")
		for j := range tickers {
			assert.Equal(t, corr.At(i, j), corr.At(j, i), "symmetric")
			assert.GreaterOrEqual(t, corr.At(i, j), -1.0)
			assert.LessOrEqual(t, corr.At(i, j), 1.0)
		}
	}
}

func TestCorrelation_KnownPairs(t *testing.T) {
	base := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	rows := make([][]float64, len(base))
	for i, r := range base {
		rows[i] = []float64{r, 2 * r, -r, 0.001}
	}

	corr, err := Correlation(matrix([]string{"A", "B", "C", "FLAT"}, rows...))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)
	assert.InDelta(t, -1.0, corr.At(0, 2), 1e-12)
	assert.Equal(t, 0.0, corr.At(0, 3), "zero-variance column is uncorrelated")
	assert.Equal(t, 1.0, corr.At(3, 3))
}

func TestCorrelation_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		returns contracts.Matrix
	}{
		{name: "empty universe", returns: matrix([]string{}, []float64{}, []float64{})},
		{name: "single observation", returns: matrix([]string{"A", "B"}, []float64{0.1, 0.2})},
		{name: "missing value", returns: matrix([]string{"A", "B"},
			[]float64{0.1, 0.2}, []float64{math.NaN(), 0.1}, []float64{0.05, 0.02})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Correlation(tt.returns)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)
		})
	}
}
