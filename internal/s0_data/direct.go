package s0_data

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/logger"
)

// DirectSource serves bars straight from a market data provider when the bar store is unreachable.
// Exchange queries are answered from a fixed ticker sample.
// ⭐ SSOT: DB 없이 시세를 읽는 경로는 여기서만
type DirectSource struct {
	provider contracts.BarProvider
	exchange string
	tickers  []string
	workers  int
	logger   *logger.Logger
}

// NewDirectSource creates a DirectSource answering exchange queries for exchange with tickers
func NewDirectSource(provider contracts.BarProvider, exchange string, tickers []string, workers int, log *logger.Logger) *DirectSource {
	if workers < 1 {
		workers = 1
	}
	return &DirectSource{
		provider: provider,
		exchange: exchange,
		tickers:  append([]string(nil), tickers...),
		workers:  workers,
		logger:   log.WithField("module", "direct_source"),
	}
}

// GetBarsByExchange fetches the sample tickers; only the configured exchange is served
func (s *DirectSource) GetBarsByExchange(ctx context.Context, exchange string, from, to time.Time) ([]contracts.Bar, error) {
	if exchange != s.exchange {
		return nil, contracts.NewInvalidParameter("exchange", exchange, "direct-fetch mode only serves "+s.exchange)
	}
	return s.GetBarsForTickers(ctx, s.tickers, from, to)
}

// GetBarsForTickers fetches bars in [from, to] for every ticker.
// A ticker that fails is logged and skipped; only cancellation aborts.
func (s *DirectSource) GetBarsForTickers(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.Bar, error) {
	perTicker := make([][]contracts.Bar, len(tickers))
	// provider ranges are half-open
	end := to.AddDate(0, 0, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, err := s.provider.FetchBars(gctx, ticker, from, end)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.WithError(err).WithField("ticker", ticker).Warn("Direct fetch failed, ticker skipped")
				return nil
			}
			perTicker[i] = inRange(bars, from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		out     []contracts.Bar
		fetched int
	)
	for _, bars := range perTicker {
		if len(bars) > 0 {
			fetched++
		}
		out = append(out, bars...)
	}
	if fetched == 0 {
		return nil, contracts.NewInsufficientData("direct_fetch", 1, 0, fmt.Sprintf("no bars returned for %d tickers", len(tickers)))
	}

	s.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"fetched": fetched,
		"bars":    len(out),
	}).Info("Bars fetched directly")
	return out, nil
}

func inRange(bars []contracts.Bar, from, to time.Time) []contracts.Bar {
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out
}
