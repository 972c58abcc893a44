package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/external/hkex"
	"github.com/wonny/clusterarb/pkg/logger"
)

type fakeUniverse struct {
	instruments []contracts.Instrument
	err         error
}

func (f *fakeUniverse) StockConnectSSE(ctx context.Context) ([]contracts.Instrument, error) {
	return f.instruments, f.err
}

type fakeProvider struct {
	fail map[string]error
	from time.Time
	to   time.Time
	mu   sync.Mutex
}

func (f *fakeProvider) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	f.mu.Lock()
	f.from, f.to = from, to
	f.mu.Unlock()
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	return []contracts.Bar{
		{Ticker: ticker, Date: from, Close: 10},
		{Ticker: ticker, Date: from.AddDate(0, 0, 1), Close: 11},
	}, nil
}

type fakeStore struct {
	mu          sync.Mutex
	instruments []contracts.Instrument
	bars        map[string]int
}

func (s *fakeStore) UpsertInstruments(ctx context.Context, instruments []contracts.Instrument) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments = append(s.instruments, instruments...)
	return len(instruments), nil
}

func (s *fakeStore) ListInstruments(ctx context.Context, exchange string, activeOnly bool) ([]contracts.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.Instrument
	for _, inst := range s.instruments {
		if inst.Exchange == exchange && (!activeOnly || inst.IsActive) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertBars(ctx context.Context, bars []contracts.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bars == nil {
		s.bars = make(map[string]int)
	}
	for _, b := range bars {
		s.bars[b.Ticker]++
	}
	return len(bars), nil
}

func TestLoadInstruments_StockConnect(t *testing.T) {
	scraped := []contracts.Instrument{
		{Ticker: "600000.SH", Exchange: "SSE", IsActive: true, Source: hkex.SourceStockConnect},
		{Ticker: "600519.SH", Exchange: "SSE", IsActive: true, Source: hkex.SourceStockConnect},
	}
	store := &fakeStore{}
	c := NewCollector(&fakeUniverse{instruments: scraped}, &fakeProvider{}, store, logger.Nop())

	n, err := c.LoadInstruments(context.Background(), SourceStockConnect)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, scraped, store.instruments)
}

func TestLoadInstruments_FallsBackToSample(t *testing.T) {
	store := &fakeStore{}
	c := NewCollector(&fakeUniverse{err: errors.New("403")}, &fakeProvider{}, store, logger.Nop())

	n, err := c.LoadInstruments(context.Background(), SourceStockConnect)
	require.NoError(t, err)
	assert.Equal(t, len(hkex.SampleSSE), n)
	assert.Equal(t, hkex.SourceSample, store.instruments[0].Source)
}

func TestLoadInstruments_UnknownSource(t *testing.T) {
	c := NewCollector(&fakeUniverse{}, &fakeProvider{}, &fakeStore{}, logger.Nop())

	_, err := c.LoadInstruments(context.Background(), "bloomberg")
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}

func TestBackfillBars(t *testing.T) {
	store := &fakeStore{instruments: []contracts.Instrument{
		{Ticker: "600000.SH", Exchange: "SSE", IsActive: true},
		{Ticker: "600009.SH", Exchange: "SSE", IsActive: true},
		{Ticker: "600010.SH", Exchange: "SSE", IsActive: true},
		{Ticker: "601398.SH", Exchange: "SSE", IsActive: false},
		{Ticker: "0700.HK", Exchange: "HKEX", IsActive: true},
	}}
	provider := &fakeProvider{fail: map[string]error{"600009.SH": errors.New("timeout")}}

	now := time.Date(2024, 6, 28, 10, 0, 0, 0, time.UTC)
	c := NewCollector(&fakeUniverse{}, provider, store, logger.Nop())
	c.now = func() time.Time { return now }

	summary, err := c.BackfillBars(context.Background(), "SSE", 2, Config{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Instruments, "inactive and other-exchange instruments skipped")
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, summary.Bars)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "600009.SH", summary.Results[1].Ticker)
	assert.Error(t, summary.Results[1].Error)

	assert.Equal(t, map[string]int{"600000.SH": 2, "600010.SH": 2}, store.bars)
	assert.Equal(t, now, provider.to)
	assert.Equal(t, now.AddDate(-2, 0, 0), provider.from)
}

func TestBackfillBars_NoInstruments(t *testing.T) {
	c := NewCollector(&fakeUniverse{}, &fakeProvider{}, &fakeStore{}, logger.Nop())

	_, err := c.BackfillBars(context.Background(), "SSE", 1, Config{Workers: 1})
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestBackfillBars_InvalidYears(t *testing.T) {
	c := NewCollector(&fakeUniverse{}, &fakeProvider{}, &fakeStore{}, logger.Nop())

	_, err := c.BackfillBars(context.Background(), "SSE", 0, Config{})
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}

func TestBackfillBars_Cancelled(t *testing.T) {
	store := &fakeStore{instruments: []contracts.Instrument{
		{Ticker: "600000.SH", Exchange: "SSE", IsActive: true},
	}}
	c := NewCollector(&fakeUniverse{}, &fakeProvider{}, store, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.BackfillBars(ctx, "SSE", 1, Config{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackfillRecent(t *testing.T) {
	store := &fakeStore{instruments: []contracts.Instrument{
		{Ticker: "600000.SH", Exchange: "SSE", IsActive: true},
	}}
	provider := &fakeProvider{}
	now := time.Date(2024, 6, 28, 10, 0, 0, 0, time.UTC)
	c := NewCollector(&fakeUniverse{}, provider, store, logger.Nop())
	c.now = func() time.Time { return now }

	summary, err := c.BackfillRecent(context.Background(), "SSE", 10, Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, now.AddDate(0, 0, -10), provider.from)

	_, err = c.BackfillRecent(context.Background(), "SSE", 0, Config{})
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}
