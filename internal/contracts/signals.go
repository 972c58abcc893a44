package contracts

import "time"

// Signal values
const (
	SignalShort int8 = -1
	SignalFlat  int8 = 0
	SignalLong  int8 = 1
)

// SignalMatrix holds ternary trading signals (or lagged positions) per date and ticker
// ⭐ SSOT: S4(시그널) → 백테스트 전달
type SignalMatrix struct {
	Dates   []time.Time `json:"dates"`
	Tickers []string    `json:"tickers"`
	Values  [][]int8    `json:"values"`
}

// NewSignalMatrix allocates an all-flat signal matrix
func NewSignalMatrix(dates []time.Time, tickers []string) *SignalMatrix {
	values := make([][]int8, len(dates))
	for t := range values {
		values[t] = make([]int8, len(tickers))
	}
	return &SignalMatrix{
		Dates:   append([]time.Time(nil), dates...),
		Tickers: append([]string(nil), tickers...),
		Values:  values,
	}
}

// Rows returns the number of dates
func (s *SignalMatrix) Rows() int {
	return len(s.Values)
}

// Lag shifts every row down by one period; the first row becomes flat
func (s *SignalMatrix) Lag() *SignalMatrix {
	out := NewSignalMatrix(s.Dates, s.Tickers)
	for t := 1; t < len(s.Values); t++ {
		copy(out.Values[t], s.Values[t-1])
	}
	return out
}

// Active returns the number of non-flat entries at row t
func (s *SignalMatrix) Active(t int) int {
	n := 0
	for _, v := range s.Values[t] {
		if v != SignalFlat {
			n++
		}
	}
	return n
}

// Latest returns the last row keyed by ticker, omitting flat tickers
func (s *SignalMatrix) Latest() map[string]int8 {
	out := make(map[string]int8)
	if len(s.Values) == 0 {
		return out
	}
	last := s.Values[len(s.Values)-1]
	for j, v := range last {
		if v != SignalFlat {
			out[s.Tickers[j]] = v
		}
	}
	return out
}
