package s3_residuals

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/clusterarb/internal/contracts"
)

const stageResiduals = "residuals"

// Result bundles every matrix the residual engine derives
type Result struct {
	ClusterReturns contracts.Matrix `json:"cluster_returns"` // columns are cluster ids
	Residuals      contracts.Matrix `json:"residuals"`
	Spread         contracts.Matrix `json:"spread"`
	ZScores        contracts.Matrix `json:"z_scores"`
}

// Build runs cluster returns → residuals → spread → rolling z-score
// ⭐ SSOT: 클러스터 잔차/스프레드/z-score 계산은 여기서만
func Build(returns contracts.Matrix, clusters *contracts.ClusterAssignment, lookback int) (*Result, error) {
	if lookback <= 0 {
		return nil, contracts.NewInvalidParameter("z_lookback", lookback, "must be > 0")
	}

	cr, err := ClusterReturns(returns, clusters)
	if err != nil {
		return nil, err
	}
	resid, err := Residuals(returns, cr, clusters)
	if err != nil {
		return nil, err
	}
	spread := Spread(resid)
	z, err := ZScore(spread, lookback)
	if err != nil {
		return nil, err
	}

	return &Result{
		ClusterReturns: cr,
		Residuals:      resid,
		Spread:         spread,
		ZScores:        z,
	}, nil
}

// ClusterKey is the column name of a cluster in the cluster-returns matrix
func ClusterKey(id int) string {
	return strconv.Itoa(id)
}

// ClusterReturns computes the equal-weight mean return of every cluster at each date.
// Only members present in the returns matrix contribute; clusters with no present member are skipped.
func ClusterReturns(returns contracts.Matrix, clusters *contracts.ClusterAssignment) (contracts.Matrix, error) {
	if err := returns.Validate(); err != nil {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageResiduals, 1, returns.Rows(), err.Error())
	}
	if clusters == nil || clusters.Count() == 0 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageResiduals, 1, 0, "no clusters")
	}

	colIdx := returns.ColumnIndex()
	keys := make([]string, 0, clusters.Count())
	members := make([][]int, 0, clusters.Count())
	for _, c := range clusters.Clusters {
		present := make([]int, 0, len(c.Tickers))
		for _, t := range c.Tickers {
			if j, ok := colIdx[t]; ok {
				present = append(present, j)
			}
		}
		if len(present) == 0 {
			continue
		}
		keys = append(keys, ClusterKey(c.ID))
		members = append(members, present)
	}
	if len(keys) == 0 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageResiduals, 1, 0, "no clustered ticker in returns")
	}

	out := contracts.NewMatrix(returns.Dates, keys)
	for t, row := range returns.Values {
		for c, cols := range members {
			out.Values[t][c] = incrementalMean(row, cols)
		}
	}
	return out, nil
}

// incrementalMean averages row[cols] with a running update, which returns x exactly when
// every value equals x
func incrementalMean(row []float64, cols []int) float64 {
	m := 0.0
	for n, j := range cols {
		m += (row[j] - m) / float64(n+1)
	}
	return m
}

// Residuals subtracts each ticker's cluster return from its own return.
// Columns keep the returns order; unassigned tickers are left out.
func Residuals(returns, clusterReturns contracts.Matrix, clusters *contracts.ClusterAssignment) (contracts.Matrix, error) {
	if clusters == nil {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageResiduals, 1, 0, "no clusters")
	}
	if returns.Rows() != clusterReturns.Rows() {
		return contracts.Matrix{}, contracts.NewInvalidParameter("cluster_returns", clusterReturns.Rows(),
			"row count differs from returns ("+strconv.Itoa(returns.Rows())+")")
	}

	crIdx := clusterReturns.ColumnIndex()
	tickers := make([]string, 0, returns.Cols())
	retCols := make([]int, 0, returns.Cols())
	crCols := make([]int, 0, returns.Cols())
	for j, t := range returns.Columns {
		id, ok := clusters.ClusterOf(t)
		if !ok {
			continue
		}
		ci, ok := crIdx[ClusterKey(id)]
		if !ok {
			continue
		}
		tickers = append(tickers, t)
		retCols = append(retCols, j)
		crCols = append(crCols, ci)
	}

	out := contracts.NewMatrix(returns.Dates, tickers)
	for t := range returns.Values {
		for k := range tickers {
			out.Values[t][k] = returns.Values[t][retCols[k]] - clusterReturns.Values[t][crCols[k]]
		}
	}
	return out, nil
}

// Spread integrates residuals into a level series: the running sum per ticker from the start
func Spread(residuals contracts.Matrix) contracts.Matrix {
	out := contracts.NewMatrix(residuals.Dates, residuals.Columns)
	acc := make([]float64, residuals.Cols())
	for t, row := range residuals.Values {
		for j, v := range row {
			acc[j] += v
			out.Values[t][j] = acc[j]
		}
	}
	return out
}

// ZScore normalises each column over a trailing window of w observations:
// z = (x - mean_w) / std_w with the sample (n-1) standard deviation. Rows before the window
// fills are NaN. A window with zero standard deviation yields z = 0.
func ZScore(m contracts.Matrix, w int) (contracts.Matrix, error) {
	if w <= 0 {
		return contracts.Matrix{}, contracts.NewInvalidParameter("z_lookback", w, "must be > 0")
	}

	out := contracts.NewNaNMatrix(m.Dates, m.Columns)
	for j := 0; j < m.Cols(); j++ {
		col := m.Column(j)
		for t := w - 1; t < len(col); t++ {
			window := col[t-w+1 : t+1]
			mean, std, ok := windowStats(window)
			switch {
			case !ok:
				// NaN inside the window
			case std == 0:
				out.Values[t][j] = 0
			default:
				out.Values[t][j] = (col[t] - mean) / std
			}
		}
	}
	return out, nil
}

// windowStats returns the mean and sample standard deviation of a window.
// A single-observation window has no sample deviation and reports ok=false.
// A window of identical values reports std 0 exactly.
func windowStats(xs []float64) (mean, std float64, ok bool) {
	if len(xs) < 2 {
		return 0, 0, false
	}
	flat := true
	for _, x := range xs {
		if math.IsNaN(x) {
			return 0, 0, false
		}
		if x != xs[0] {
			flat = false
		}
	}
	if flat {
		return xs[0], 0, true
	}
	mean, std = stat.MeanStdDev(xs, nil)
	return mean, std, true
}
