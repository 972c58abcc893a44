package brain

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/s0_data"
	"github.com/wonny/clusterarb/internal/strategyconfig"
	"github.com/wonny/clusterarb/pkg/logger"
)

func testDates(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// identicalPrices: every ticker follows the same price path
func identicalPrices(tickers []string, n int) contracts.Matrix {
	rng := rand.New(rand.NewSource(1))
	m := contracts.NewMatrix(testDates(n), tickers)
	p := 100.0
	for t := 0; t < n; t++ {
		p *= math.Exp(rng.NormFloat64() * 0.01)
		for j := range tickers {
			m.Values[t][j] = p
		}
	}
	return m
}

// constantGrowthPrices: each ticker compounds at its own fixed daily factor.
// Powers of two keep every daily log return exactly constant.
func constantGrowthPrices(factors map[string]float64, tickers []string, n int) contracts.Matrix {
	m := contracts.NewMatrix(testDates(n), tickers)
	for j, ticker := range tickers {
		p := 1.0
		for t := 0; t < n; t++ {
			m.Values[t][j] = p
			p *= factors[ticker]
		}
	}
	return m
}

// factorPrices: two groups driven by separate factors plus idiosyncratic noise
func factorPrices(n int) contracts.Matrix {
	rng := rand.New(rand.NewSource(9))
	tickers := []string{"600000.SH", "600016.SH", "600036.SH", "600519.SH", "600887.SH", "601318.SH"}
	m := contracts.NewMatrix(testDates(n), tickers)
	level := make([]float64, len(tickers))
	for j := range level {
		level[j] = 10 + float64(j)
	}
	for t := 0; t < n; t++ {
		f := []float64{rng.NormFloat64() * 0.01, rng.NormFloat64() * 0.01}
		for j := range tickers {
			level[j] *= math.Exp(f[j%2] + rng.NormFloat64()*0.004)
			m.Values[t][j] = level[j]
		}
	}
	return m
}

func testPipeline() strategyconfig.Pipeline {
	p := strategyconfig.Default().Pipeline
	p.NumClusters = 2
	p.ZLookback = 20
	p.Restarts = 4
	return p
}

func TestRun_IdenticalTickersStayFlat(t *testing.T) {
	prices := identicalPrices([]string{"A", "B", "C", "D"}, 80)
	o := NewOrchestrator(nil, logger.Nop())

	result, err := o.Run(context.Background(), prices, RunConfig{RunID: "identical", Pipeline: testPipeline()})
	require.NoError(t, err)

	assert.Equal(t, []string{StageReturns, StageCorrelation, StageClustering, StageResiduals, StageSignals, StageBacktest},
		result.CompletedStages)

	for t2 := range result.Signals.Values {
		assert.Zero(t, result.Signals.Active(t2), "row %d", t2)
	}
	for _, r := range result.Backtest.PortfolioReturns {
		assert.Equal(t, 0.0, r)
	}
	assert.Equal(t, contracts.Metrics{}, result.Backtest.Metrics)
}

func TestRun_ConstantReturnsStayFlat(t *testing.T) {
	tickers := []string{"A", "B", "C", "D"}
	prices := constantGrowthPrices(map[string]float64{"A": 2, "B": 4, "C": 0.5, "D": 1}, tickers, 80)

	for _, method := range []contracts.ClusterMethod{contracts.MethodHierarchical, contracts.MethodSpectral} {
		t.Run(string(method), func(t *testing.T) {
			p := testPipeline()
			p.Method = method
			o := NewOrchestrator(nil, logger.Nop())

			result, err := o.Run(context.Background(), prices, RunConfig{RunID: "constant", Pipeline: p})
			require.NoError(t, err)

			for j := range tickers {
				col := result.Returns.Column(j)
				for _, r := range col[1:] {
					require.Equal(t, col[0], r, "%s returns are constant", tickers[j])
				}
			}
			for i := range tickers {
				for j := range tickers {
					want := 0.0
					if i == j {
						want = 1
					}
					assert.Equal(t, want, result.Correlation.Values[i][j], "ρ[%d][%d]", i, j)
				}
			}
			assert.LessOrEqual(t, result.Clusters.Count(), p.NumClusters)

			for row := range result.Signals.Values {
				assert.Zero(t, result.Signals.Active(row), "row %d", row)
			}
			for i, r := range result.Backtest.PortfolioReturns {
				assert.Equal(t, 0.0, r, "day %d", i)
				assert.Equal(t, 1.0, result.Backtest.CumulativeReturn[i], "day %d", i)
			}
			assert.Equal(t, contracts.Metrics{}, result.Backtest.Metrics)
		})
	}
}

func TestRun_FactorUniverse(t *testing.T) {
	prices := factorPrices(250)
	o := NewOrchestrator(nil, logger.Nop())

	result, err := o.Run(context.Background(), prices, RunConfig{RunID: "factor", Pipeline: testPipeline()})
	require.NoError(t, err)

	require.Equal(t, 2, result.Clusters.Count())
	even, _ := result.Clusters.ClusterOf("600000.SH")
	odd, _ := result.Clusters.ClusterOf("600016.SH")
	assert.NotEqual(t, even, odd)
	for j, ticker := range prices.Columns {
		id, ok := result.Clusters.ClusterOf(ticker)
		require.True(t, ok)
		if j%2 == 0 {
			assert.Equal(t, even, id, ticker)
		} else {
			assert.Equal(t, odd, id, ticker)
		}
	}

	assert.Equal(t, prices.Rows()-1, result.Returns.Rows())
	assert.Equal(t, result.Returns.Rows(), len(result.Backtest.PortfolioReturns))
	assert.LessOrEqual(t, result.Backtest.Metrics.MaxDrawdown, 0.0)
	assert.Positive(t, result.Duration)
}

func TestRun_InvalidPipeline(t *testing.T) {
	o := NewOrchestrator(nil, logger.Nop())
	p := testPipeline()
	p.EntryThreshold = 0

	_, err := o.Run(context.Background(), factorPrices(40), RunConfig{Pipeline: p})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidParameter), "got %v", err)
}

func TestRun_TooManyClusters(t *testing.T) {
	o := NewOrchestrator(nil, logger.Nop())
	p := testPipeline()
	p.NumClusters = 7

	result, err := o.Run(context.Background(), factorPrices(40), RunConfig{Pipeline: p})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidParameter), "got %v", err)
	assert.Equal(t, []string{StageReturns, StageCorrelation}, result.CompletedStages)
}

func TestRun_Cancelled(t *testing.T) {
	o := NewOrchestrator(nil, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, factorPrices(40), RunConfig{Pipeline: testPipeline()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	o := NewOrchestrator(nil, logger.Nop())

	results, err := o.Compare(context.Background(), factorPrices(250), RunConfig{RunID: "cmp", Pipeline: testPipeline()})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, m := range []contracts.ClusterMethod{contracts.MethodHierarchical, contracts.MethodSpectral} {
		res := results[m]
		require.NotNil(t, res, m)
		assert.Equal(t, m, res.Method)
		assert.Equal(t, m, res.Clusters.Method)
		assert.Equal(t, "cmp_"+string(m), res.RunID)
	}
	assert.Equal(t, results[contracts.MethodHierarchical].Returns, results[contracts.MethodSpectral].Returns)
}

type fakeLoader struct {
	prices contracts.Matrix
	err    error
	got    s0_data.PriceRequest
}

func (f *fakeLoader) LoadPrices(ctx context.Context, req s0_data.PriceRequest) (contracts.Matrix, error) {
	f.got = req
	return f.prices, f.err
}

func TestRunFromStore(t *testing.T) {
	loader := &fakeLoader{prices: factorPrices(120)}
	o := NewOrchestrator(loader, logger.Nop())
	req := s0_data.PriceRequest{
		Exchange: "SSE",
		From:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	result, err := o.RunFromStore(context.Background(), req, RunConfig{Pipeline: testPipeline()})
	require.NoError(t, err)
	assert.Equal(t, req, loader.got)
	assert.Equal(t, StageData, result.CompletedStages[0])
	assert.Len(t, result.CompletedStages, 7)
}

func TestRunFromStore_LoaderError(t *testing.T) {
	loader := &fakeLoader{err: contracts.NewInsufficientData("prices", 2, 0, "no bars")}
	o := NewOrchestrator(loader, logger.Nop())

	_, err := o.RunFromStore(context.Background(), s0_data.PriceRequest{}, RunConfig{Pipeline: testPipeline()})
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestLoadPrices_NoLoader(t *testing.T) {
	_, err := NewOrchestrator(nil, nil).LoadPrices(context.Background(), s0_data.PriceRequest{})
	assert.Error(t, err)
}
