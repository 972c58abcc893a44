package s1_returns

import (
	"math"

	"github.com/wonny/clusterarb/internal/contracts"
)

const stageReturns = "returns"

// LogReturns converts an aligned price matrix into log returns
// ⭐ SSOT: 로그 수익률 계산은 여기서만
// r[t] = ln(p[t]/p[t-1]). The first row is dropped because it has no prior price.
// A missing price on either side yields a missing return.
func LogReturns(prices contracts.Matrix) (contracts.Matrix, error) {
	if err := prices.Validate(); err != nil {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageReturns, 2, prices.Rows(), err.Error())
	}
	if prices.Rows() < 2 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageReturns, 2, prices.Rows(), "price rows")
	}
	if prices.Cols() == 0 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageReturns, 1, 0, "tickers")
	}

	out := contracts.NewMatrix(prices.Dates[1:], prices.Columns)
	for t := 1; t < prices.Rows(); t++ {
		prev := prices.Values[t-1]
		curr := prices.Values[t]
		row := out.Values[t-1]
		for j := range curr {
			row[j] = math.Log(curr[j] / prev[j])
		}
	}
	return out, nil
}
