package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/s0_data/quality"
	"github.com/wonny/clusterarb/pkg/logger"
)

// PriceRequest selects the bars that feed one pipeline run
type PriceRequest struct {
	Exchange    string
	Tickers     []string // overrides Exchange when non-empty
	From, To    time.Time
	Field       contracts.PriceField
	MinCoverage float64 // 0 disables the coverage gate
}

// BarSource is the read side of the bar store used for price loading
type BarSource interface {
	GetBarsByExchange(ctx context.Context, exchange string, from, to time.Time) ([]contracts.Bar, error)
	GetBarsForTickers(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.Bar, error)
}

// Loader turns stored bars into an aligned price matrix
type Loader struct {
	bars   BarSource
	logger *logger.Logger
}

// NewLoader creates a Loader
func NewLoader(bars BarSource, log *logger.Logger) *Loader {
	return &Loader{bars: bars, logger: log.WithField("module", "price_loader")}
}

// LoadPrices fetches bars, applies the coverage gate and aligns them
func (l *Loader) LoadPrices(ctx context.Context, req PriceRequest) (contracts.Matrix, error) {
	if !req.From.Before(req.To) {
		return contracts.Matrix{}, contracts.NewInvalidParameter("date_range", req.From.Format("2006-01-02")+".."+req.To.Format("2006-01-02"), "start must be before end")
	}

	var (
		bars []contracts.Bar
		err  error
	)
	if len(req.Tickers) > 0 {
		bars, err = l.bars.GetBarsForTickers(ctx, req.Tickers, req.From, req.To)
	} else {
		bars, err = l.bars.GetBarsByExchange(ctx, req.Exchange, req.From, req.To)
	}
	if err != nil {
		return contracts.Matrix{}, fmt.Errorf("load bars: %w", err)
	}

	if req.MinCoverage > 0 {
		var report *quality.Report
		bars, report = quality.NewGate(req.MinCoverage).Check(bars)
		if len(report.Dropped) > 0 {
			l.logger.WithFields(map[string]interface{}{
				"dropped":      report.Dropped,
				"min_coverage": req.MinCoverage,
				"total_dates":  report.TotalDates,
			}).Warn("Tickers dropped by coverage gate")
		}
	}

	field := req.Field
	if field == "" {
		field = contracts.FieldClose
	}
	prices, err := BuildPriceMatrix(bars, field)
	if err != nil {
		return contracts.Matrix{}, err
	}

	l.logger.WithFields(map[string]interface{}{
		"bars":    len(bars),
		"tickers": prices.Cols(),
		"dates":   prices.Rows(),
	}).Debug("Price matrix built")

	return prices, nil
}
