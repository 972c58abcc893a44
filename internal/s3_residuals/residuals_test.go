package s3_residuals

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
)

func matrix(columns []string, rows ...[]float64) contracts.Matrix {
	m := contracts.Matrix{Columns: columns, Values: rows}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		m.Dates = append(m.Dates, start.AddDate(0, 0, i))
	}
	return m
}

func assignment(t *testing.T, tickers []string, labels []int) *contracts.ClusterAssignment {
	t.Helper()
	a, err := contracts.NewClusterAssignment(contracts.MethodHierarchical, 2, tickers, labels)
	require.NoError(t, err)
	return a
}

func TestClusterReturnsAndResiduals_SingleCluster(t *testing.T) {
	returns := matrix([]string{"A", "B", "C"}, []float64{0.01, 0.02, 0.03})
	clusters := assignment(t, returns.Columns, []int{0, 0, 0})

	cr, err := ClusterReturns(returns, clusters)
	require.NoError(t, err)
	require.Equal(t, []string{"0"}, cr.Columns)
	assert.InDelta(t, 0.02, cr.Values[0][0], 1e-15)

	resid, err := Residuals(returns, cr, clusters)
	require.NoError(t, err)
	assert.Equal(t, returns.Columns, resid.Columns)
	assert.InDeltaSlice(t, []float64{-0.01, 0, 0.01}, resid.Values[0], 1e-15)
}

func TestResiduals_Decomposition(t *testing.T) {
	returns := matrix([]string{"A", "B", "C", "D", "E"},
		[]float64{0.011, -0.004, 0.020, 0.003, -0.017},
		[]float64{-0.008, 0.013, 0.001, -0.022, 0.006},
		[]float64{0.004, 0.002, -0.009, 0.015, 0.010},
	)
	clusters := assignment(t, returns.Columns, []int{0, 1, 0, 1, 1})

	cr, err := ClusterReturns(returns, clusters)
	require.NoError(t, err)
	resid, err := Residuals(returns, cr, clusters)
	require.NoError(t, err)

	crIdx := cr.ColumnIndex()
	for tIdx := range returns.Values {
		for j, ticker := range returns.Columns {
			id, ok := clusters.ClusterOf(ticker)
			require.True(t, ok)
			// (r-c)+c can miss r by an ulp in float64; the identity holds to rounding
			rebuilt := resid.Values[tIdx][j] + cr.Values[tIdx][crIdx[ClusterKey(id)]]
			assert.InDelta(t, returns.Values[tIdx][j], rebuilt, 1e-12, "%s@%d", ticker, tIdx)
		}
	}

	// residuals of a cluster sum to zero at every date
	for tIdx := range resid.Values {
		assert.InDelta(t, 0, resid.Values[tIdx][0]+resid.Values[tIdx][2], 1e-12)
		assert.InDelta(t, 0, resid.Values[tIdx][1]+resid.Values[tIdx][3]+resid.Values[tIdx][4], 1e-12)
	}
}

func TestResiduals_UnassignedTickerDropped(t *testing.T) {
	returns := matrix([]string{"A", "X", "B"}, []float64{0.01, 0.5, 0.03})
	clusters := assignment(t, []string{"A", "B"}, []int{0, 0})

	result, err := Build(returns, clusters, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, result.Residuals.Columns)
	assert.InDeltaSlice(t, []float64{-0.01, 0.01}, result.Residuals.Values[0], 1e-15)
}

func TestSpread(t *testing.T) {
	resid := matrix([]string{"A"}, []float64{0.01}, []float64{-0.02}, []float64{0.005})

	spread := Spread(resid)
	assert.InDelta(t, 0.01, spread.Values[0][0], 1e-15)
	assert.InDelta(t, -0.01, spread.Values[1][0], 1e-15)
	assert.InDelta(t, -0.005, spread.Values[2][0], 1e-15)
}

func TestZScore(t *testing.T) {
	m := matrix([]string{"A"}, []float64{1}, []float64{2}, []float64{3}, []float64{4}, []float64{5})

	z, err := ZScore(m, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(z.Values[0][0]))
	assert.True(t, math.IsNaN(z.Values[1][0]))
	for tIdx := 2; tIdx < 5; tIdx++ {
		assert.InDelta(t, 1.0, z.Values[tIdx][0], 1e-12)
	}
}

func TestZScore_SampleStatistics(t *testing.T) {
	xs := []float64{0.013, -0.021, 0.004, 0.030, -0.007, 0.018, -0.012}
	rows := make([][]float64, len(xs))
	for i, x := range xs {
		rows[i] = []float64{x}
	}
	const w = 4

	z, err := ZScore(matrix([]string{"A"}, rows...), w)
	require.NoError(t, err)

	for tIdx := w - 1; tIdx < len(xs); tIdx++ {
		window := xs[tIdx-w+1 : tIdx+1]
		mean := 0.0
		for _, x := range window {
			mean += x
		}
		mean /= w
		ss := 0.0
		for _, x := range window {
			ss += (x - mean) * (x - mean)
		}
		std := math.Sqrt(ss / (w - 1))
		assert.InDelta(t, (xs[tIdx]-mean)/std, z.Values[tIdx][0], 1e-9, "t=%d", tIdx)
	}
}

func TestZScore_EdgeCases(t *testing.T) {
	t.Run("zero std yields zero", func(t *testing.T) {
		m := matrix([]string{"A"}, []float64{0.3}, []float64{0.3}, []float64{0.3})
		z, err := ZScore(m, 2)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(z.Values[0][0]))
		assert.Equal(t, 0.0, z.Values[1][0])
		assert.Equal(t, 0.0, z.Values[2][0])
	})

	t.Run("flat window at an inexact level yields zero", func(t *testing.T) {
		// 0.1+0.1+0.1 over 3 is not 0.1 in float64
		m := matrix([]string{"A"}, []float64{0.1}, []float64{0.1}, []float64{0.1}, []float64{0.1})
		z, err := ZScore(m, 3)
		require.NoError(t, err)
		assert.Equal(t, 0.0, z.Values[2][0])
		assert.Equal(t, 0.0, z.Values[3][0])
	})

	t.Run("NaN inside the window", func(t *testing.T) {
		m := matrix([]string{"A"}, []float64{1}, []float64{math.NaN()}, []float64{3}, []float64{4}, []float64{6})
		z, err := ZScore(m, 2)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(z.Values[1][0]))
		assert.True(t, math.IsNaN(z.Values[2][0]))
		assert.InDelta(t, 1/math.Sqrt(2), z.Values[3][0], 1e-12)
	})

	t.Run("window of one is undefined", func(t *testing.T) {
		m := matrix([]string{"A"}, []float64{1}, []float64{2})
		z, err := ZScore(m, 1)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(z.Values[0][0]))
		assert.True(t, math.IsNaN(z.Values[1][0]))
	})

	t.Run("window longer than series", func(t *testing.T) {
		m := matrix([]string{"A"}, []float64{1}, []float64{2})
		z, err := ZScore(m, 5)
		require.NoError(t, err)
		assert.True(t, z.HasNaN())
	})
}

func TestBuild_IdenticalMembersStayFlat(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		r := 0.001 * float64(i%4-1)
		rows[i] = []float64{r, r, r}
	}
	returns := matrix([]string{"A", "B", "C"}, rows...)
	clusters := assignment(t, returns.Columns, []int{0, 0, 0})

	result, err := Build(returns, clusters, 3)
	require.NoError(t, err)

	for tIdx := range rows {
		for j := range returns.Columns {
			assert.Equal(t, 0.0, result.Residuals.Values[tIdx][j])
			assert.Equal(t, 0.0, result.Spread.Values[tIdx][j])
			if tIdx >= 2 {
				assert.Equal(t, 0.0, result.ZScores.Values[tIdx][j])
			}
		}
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	returns := matrix([]string{"A", "B"}, []float64{0.01, 0.02})
	clusters := assignment(t, returns.Columns, []int{0, 1})

	_, err := Build(returns, clusters, 0)
	assert.True(t, errors.Is(err, contracts.ErrInvalidParameter))

	_, err = Build(returns, nil, 5)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))

	other := assignment(t, []string{"Y", "Z"}, []int{0, 1})
	_, err = Build(returns, other, 5)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
}
