package quality

import (
	"sort"
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
)

// Report summarises bar coverage of a universe over a date range
type Report struct {
	TotalDates   int                `json:"total_dates"`
	TotalTickers int                `json:"total_tickers"`
	Coverage     map[string]float64 `json:"coverage"` // share of trading dates with a bar, per ticker
	Dropped      []string           `json:"dropped"`
	QualityScore float64            `json:"quality_score"` // mean coverage of the kept tickers
}

// Gate drops thinly traded or suspended tickers before price alignment
// ⭐ SSOT: S0 → S1 품질 검증
type Gate struct {
	MinCoverage float64
}

// NewGate creates a Gate; minCoverage is in (0, 1]
func NewGate(minCoverage float64) *Gate {
	return &Gate{MinCoverage: minCoverage}
}

// Check measures each ticker's coverage against the union of trading dates and returns the bars
// of tickers at or above MinCoverage
func (g *Gate) Check(bars []contracts.Bar) ([]contracts.Bar, *Report) {
	dates := make(map[time.Time]struct{})
	perTicker := make(map[string]map[time.Time]struct{})
	for i := range bars {
		d := bars[i].Date.UTC().Truncate(24 * time.Hour)
		dates[d] = struct{}{}
		if perTicker[bars[i].Ticker] == nil {
			perTicker[bars[i].Ticker] = make(map[time.Time]struct{})
		}
		perTicker[bars[i].Ticker][d] = struct{}{}
	}

	report := &Report{
		TotalDates:   len(dates),
		TotalTickers: len(perTicker),
		Coverage:     make(map[string]float64, len(perTicker)),
		Dropped:      []string{},
	}
	if len(dates) == 0 {
		return nil, report
	}

	keep := make(map[string]bool, len(perTicker))
	sum := 0.0
	for ticker, seen := range perTicker {
		cov := float64(len(seen)) / float64(len(dates))
		report.Coverage[ticker] = cov
		if cov >= g.MinCoverage {
			keep[ticker] = true
			sum += cov
		} else {
			report.Dropped = append(report.Dropped, ticker)
		}
	}
	sort.Strings(report.Dropped)
	if len(keep) > 0 {
		report.QualityScore = sum / float64(len(keep))
	}

	out := make([]contracts.Bar, 0, len(bars))
	for i := range bars {
		if keep[bars[i].Ticker] {
			out = append(out, bars[i])
		}
	}
	return out, report
}
