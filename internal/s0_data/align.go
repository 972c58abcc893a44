package s0_data

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
)

const stageData = "prices"

// BuildPriceMatrix pivots bars into a date × ticker price matrix
// ⭐ SSOT: 일봉 → 가격 행렬 정렬은 여기서만
//
// Dates are sorted ascending and tickers alphabetically. A missing or non-positive price is
// forward-filled from the ticker's previous date; tickers still missing a value afterwards
// (no bar on the first date) are dropped. When a ticker has two bars on one date the later
// one in the input wins.
func BuildPriceMatrix(bars []contracts.Bar, field contracts.PriceField) (contracts.Matrix, error) {
	dateSet := make(map[time.Time]struct{})
	tickerSet := make(map[string]struct{})
	for i := range bars {
		dateSet[day(bars[i].Date)] = struct{}{}
		tickerSet[bars[i].Ticker] = struct{}{}
	}
	if len(dateSet) == 0 || len(tickerSet) == 0 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageData, 1, 0, "no bars")
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	tickers := make([]string, 0, len(tickerSet))
	for t := range tickerSet {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	dateIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}
	full := contracts.NewNaNMatrix(dates, tickers)
	colIdx := full.ColumnIndex()
	for i := range bars {
		p := bars[i].Price(field)
		if p <= 0 || math.IsInf(p, 0) {
			continue
		}
		full.Values[dateIdx[day(bars[i].Date)]][colIdx[bars[i].Ticker]] = p
	}

	forwardFill(full)

	keep := make([]int, 0, len(tickers))
	for j := range tickers {
		if !columnHasNaN(full, j) {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return contracts.Matrix{}, contracts.NewInsufficientData(stageData, 1, 0, "every ticker is missing the first date")
	}

	kept := make([]string, len(keep))
	for k, j := range keep {
		kept[k] = tickers[j]
	}
	out := contracts.NewMatrix(dates, kept)
	for t := range dates {
		for k, j := range keep {
			out.Values[t][k] = full.Values[t][j]
		}
	}
	return out, nil
}

// forwardFill replaces NaN with the last observed value above it, in place
func forwardFill(m contracts.Matrix) {
	for j := 0; j < m.Cols(); j++ {
		last := math.NaN()
		for t := range m.Values {
			if math.IsNaN(m.Values[t][j]) {
				m.Values[t][j] = last
			} else {
				last = m.Values[t][j]
			}
		}
	}
}

func columnHasNaN(m contracts.Matrix, j int) bool {
	for t := range m.Values {
		if math.IsNaN(m.Values[t][j]) {
			return true
		}
	}
	return false
}

// day truncates to the calendar date in UTC so that bars from different sources line up
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
