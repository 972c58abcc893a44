package s1_returns

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/clusterarb/internal/contracts"
)

const stageCorrelation = "correlation"

// Correlation computes the full-sample Pearson correlation of every ticker pair
// ⭐ SSOT: 상관행렬 계산은 여기서만
// Every column must be free of missing values. A zero-variance column has no defined
// correlation and is reported as uncorrelated (0) with every other ticker.
func Correlation(returns contracts.Matrix) (*contracts.CorrelationMatrix, error) {
	if err := returns.Validate(); err != nil {
		return nil, contracts.NewInsufficientData(stageCorrelation, 2, returns.Rows(), err.Error())
	}
	n := returns.Cols()
	if n == 0 {
		return nil, contracts.NewInsufficientData(stageCorrelation, 1, 0, "tickers")
	}
	if returns.Rows() < 2 {
		return nil, contracts.NewInsufficientData(stageCorrelation, 2, returns.Rows(), "return rows")
	}

	cols := make([][]float64, n)
	flat := make([]bool, n)
	for j := 0; j < n; j++ {
		cols[j] = returns.Column(j)
		for _, v := range cols[j] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, contracts.NewInsufficientData(stageCorrelation, returns.Rows(), countFinite(cols[j]),
					"missing values in "+returns.Columns[j])
			}
		}
		flat[j] = isConstant(cols[j])
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := 0.0
			if !flat[i] && !flat[j] {
				c = clamp(stat.Correlation(cols[i], cols[j], nil))
			}
			values[i][j] = c
			values[j][i] = c
		}
	}

	return &contracts.CorrelationMatrix{
		Tickers: append([]string(nil), returns.Columns...),
		Values:  values,
	}, nil
}

func clamp(c float64) float64 {
	return math.Max(-1, math.Min(1, c))
}

func isConstant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func countFinite(xs []float64) int {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			n++
		}
	}
	return n
}
