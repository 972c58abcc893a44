package s0_data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/logger"
)

type fakeProvider struct {
	mu     sync.Mutex
	closes map[string][]float64 // closes on days 1..n
	fail   map[string]error
	calls  []string
	lastTo time.Time
}

func (f *fakeProvider) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.lastTo = to
	f.mu.Unlock()

	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	var bars []contracts.Bar
	for i, c := range f.closes[ticker] {
		bars = append(bars, bar(ticker, i+1, c))
	}
	return bars, nil
}

func TestDirectSource_ByExchange(t *testing.T) {
	provider := &fakeProvider{
		closes: map[string][]float64{
			"A": {10, 11, 12, 13},
			"B": {20, 21, 22, 23},
			"C": {30, 31, 32, 33},
		},
		fail: map[string]error{"C": errors.New("404")},
	}
	src := NewDirectSource(provider, "SSE", []string{"A", "B", "C"}, 2, logger.Nop())

	bars, err := src.GetBarsByExchange(context.Background(), "SSE", d(2), d(3))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B", "C"}, provider.calls)
	assert.Equal(t, d(4), provider.lastTo, "inclusive end maps to a half-open provider range")
	require.Len(t, bars, 4, "C skipped, days outside [from, to] dropped")
	assert.Equal(t, []contracts.Bar{bar("A", 2, 11), bar("A", 3, 12), bar("B", 2, 21), bar("B", 3, 22)}, bars)
}

func TestDirectSource_OtherExchange(t *testing.T) {
	src := NewDirectSource(&fakeProvider{}, "SSE", []string{"A"}, 1, logger.Nop())

	_, err := src.GetBarsByExchange(context.Background(), "HKEX", d(1), d(3))
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}

func TestDirectSource_NothingFetched(t *testing.T) {
	provider := &fakeProvider{fail: map[string]error{"A": errors.New("timeout")}}
	src := NewDirectSource(provider, "SSE", []string{"A", "B"}, 1, logger.Nop())

	_, err := src.GetBarsForTickers(context.Background(), []string{"A", "B"}, d(1), d(3))
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestDirectSource_Cancelled(t *testing.T) {
	src := NewDirectSource(&fakeProvider{}, "SSE", []string{"A"}, 1, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.GetBarsForTickers(ctx, []string{"A"}, d(1), d(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_DirectSource(t *testing.T) {
	provider := &fakeProvider{closes: map[string][]float64{
		"A": {10, 11, 12},
		"B": {20, 22, 21},
	}}
	loader := NewLoader(NewDirectSource(provider, "SSE", []string{"A", "B"}, 2, logger.Nop()), logger.Nop())

	prices, err := loader.LoadPrices(context.Background(), PriceRequest{
		Exchange:    "SSE",
		From:        d(1),
		To:          d(3),
		MinCoverage: 0.95,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, prices.Columns)
	assert.Equal(t, [][]float64{{10, 20}, {11, 22}, {12, 21}}, prices.Values)
}
