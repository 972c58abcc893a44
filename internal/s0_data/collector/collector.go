package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/external/hkex"
	"github.com/wonny/clusterarb/pkg/logger"
)

// Universe sources accepted by LoadInstruments
const (
	SourceStockConnect = hkex.SourceStockConnect
	SourceSample       = hkex.SourceSample
)

// InstrumentSource lists the tradable universe from an external site
type InstrumentSource interface {
	StockConnectSSE(ctx context.Context) ([]contracts.Instrument, error)
}

// Store is the write side the collector needs
type Store interface {
	UpsertInstruments(ctx context.Context, instruments []contracts.Instrument) (int, error)
	ListInstruments(ctx context.Context, exchange string, activeOnly bool) ([]contracts.Instrument, error)
	UpsertBars(ctx context.Context, bars []contracts.Bar) (int, error)
}

// Collector orchestrates data collection from external sources
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	universe InstrumentSource
	provider contracts.BarProvider
	store    Store
	logger   *logger.Logger
	now      func() time.Time
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
}

// NewCollector creates a new Collector instance
func NewCollector(universe InstrumentSource, provider contracts.BarProvider, store Store, log *logger.Logger) *Collector {
	return &Collector{
		universe: universe,
		provider: provider,
		store:    store,
		logger:   log.WithField("module", "collector"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	Ticker   string
	BarCount int
	Error    error
}

// Summary aggregates a backfill run
type Summary struct {
	Instruments int
	Succeeded   int
	Failed      int
	Bars        int
	Results     []FetchResult
}

// LoadInstruments stores the universe from source.
// A Stock Connect scrape that fails or returns nothing falls back to the built-in sample.
func (c *Collector) LoadInstruments(ctx context.Context, source string) (int, error) {
	var instruments []contracts.Instrument

	switch source {
	case SourceStockConnect:
		scraped, err := c.universe.StockConnectSSE(ctx)
		if err != nil || len(scraped) == 0 {
			c.logger.WithError(err).Warn("Stock Connect scrape failed, using sample universe")
			instruments = hkex.SampleInstruments()
		} else {
			instruments = scraped
		}
	case SourceSample:
		instruments = hkex.SampleInstruments()
	default:
		return 0, contracts.NewInvalidParameter("source", source, "must be hkex_stock_connect or hardcoded_sample")
	}

	n, err := c.store.UpsertInstruments(ctx, instruments)
	if err != nil {
		return 0, fmt.Errorf("upsert instruments: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"source": source,
		"count":  n,
	}).Info("Instruments loaded")
	return n, nil
}

// BackfillBars fetches `years` of daily bars for every active instrument on exchange and upserts them
func (c *Collector) BackfillBars(ctx context.Context, exchange string, years int, cfg Config) (*Summary, error) {
	if years < 1 {
		return nil, contracts.NewInvalidParameter("years", years, "must be at least 1")
	}
	to := c.now()
	return c.BackfillRange(ctx, exchange, to.AddDate(-years, 0, 0), to, cfg)
}

// BackfillRecent refreshes the last `days` calendar days; the nightly job uses it
func (c *Collector) BackfillRecent(ctx context.Context, exchange string, days int, cfg Config) (*Summary, error) {
	if days < 1 {
		return nil, contracts.NewInvalidParameter("days", days, "must be at least 1")
	}
	to := c.now()
	return c.BackfillRange(ctx, exchange, to.AddDate(0, 0, -days), to, cfg)
}

// BackfillRange fetches bars in [from, to] for every active instrument on exchange.
// A failed ticker is recorded in the summary and does not stop the others; only cancellation aborts.
func (c *Collector) BackfillRange(ctx context.Context, exchange string, from, to time.Time, cfg Config) (*Summary, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	instruments, err := c.store.ListInstruments(ctx, exchange, true)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	if len(instruments) == 0 {
		return nil, contracts.NewInsufficientData("backfill", 1, 0, "no active instruments for "+exchange+"; load instruments first")
	}

	c.logger.WithFields(map[string]interface{}{
		"exchange":    exchange,
		"instruments": len(instruments),
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"workers":     workers,
	}).Info("Starting bar backfill")

	results := make([]FetchResult, len(instruments))
	var mu sync.Mutex
	summary := &Summary{Instruments: len(instruments)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, inst := range instruments {
		i, ticker := i, inst.Ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.fetchOne(gctx, ticker, from, to)

			mu.Lock()
			if results[i].Error != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
				summary.Bars += results[i].BarCount
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary.Results = results

	c.logger.WithFields(map[string]interface{}{
		"success": summary.Succeeded,
		"failed":  summary.Failed,
		"bars":    summary.Bars,
	}).Info("Bar backfill completed")

	return summary, nil
}

func (c *Collector) fetchOne(ctx context.Context, ticker string, from, to time.Time) FetchResult {
	bars, err := c.provider.FetchBars(ctx, ticker, from, to)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Error("Failed to fetch bars")
		return FetchResult{Ticker: ticker, Error: err}
	}
	if len(bars) == 0 {
		c.logger.WithField("ticker", ticker).Warn("No bars returned")
		return FetchResult{Ticker: ticker}
	}

	n, err := c.store.UpsertBars(ctx, bars)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Error("Failed to save bars")
		return FetchResult{Ticker: ticker, Error: fmt.Errorf("save bars: %w", err)}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   n,
	}).Debug("Bars upserted")
	return FetchResult{Ticker: ticker, BarCount: n}
}
