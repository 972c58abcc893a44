package contracts

import (
	"fmt"
	"math"
	"time"
)

// Matrix is a date × column table of float values
// ⭐ SSOT: 파이프라인 단계 간 전달되는 모든 행렬 (가격, 수익률, 잔차, 스프레드, z-score, 비중)
// Values[t][j] is the value of column j at Dates[t]. NaN marks a missing or undefined entry.
type Matrix struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// NewMatrix allocates a zero-filled matrix with the given index and columns
func NewMatrix(dates []time.Time, columns []string) Matrix {
	values := make([][]float64, len(dates))
	for t := range values {
		values[t] = make([]float64, len(columns))
	}
	return Matrix{
		Dates:   append([]time.Time(nil), dates...),
		Columns: append([]string(nil), columns...),
		Values:  values,
	}
}

// NewNaNMatrix allocates a matrix with every entry set to NaN
func NewNaNMatrix(dates []time.Time, columns []string) Matrix {
	m := NewMatrix(dates, columns)
	for t := range m.Values {
		for j := range m.Values[t] {
			m.Values[t][j] = math.NaN()
		}
	}
	return m
}

// Rows returns the number of dates
func (m Matrix) Rows() int {
	return len(m.Values)
}

// Cols returns the number of columns
func (m Matrix) Cols() int {
	return len(m.Columns)
}

// Validate checks that the value grid matches the index and columns
func (m Matrix) Validate() error {
	if len(m.Dates) != len(m.Values) {
		return fmt.Errorf("matrix has %d dates but %d rows", len(m.Dates), len(m.Values))
	}
	for t, row := range m.Values {
		if len(row) != len(m.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", t, len(row), len(m.Columns))
		}
	}
	return nil
}

// Column returns a copy of column j as a time series
func (m Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Values))
	for t := range m.Values {
		out[t] = m.Values[t][j]
	}
	return out
}

// ColumnIndex maps column name to position
func (m Matrix) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(m.Columns))
	for j, c := range m.Columns {
		idx[c] = j
	}
	return idx
}

// Get returns the value for a named column at row t
func (m Matrix) Get(t int, column string) (float64, bool) {
	for j, c := range m.Columns {
		if c == column {
			return m.Values[t][j], true
		}
	}
	return 0, false
}

// HasNaN reports whether any entry is missing
func (m Matrix) HasNaN() bool {
	for _, row := range m.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy
func (m Matrix) Clone() Matrix {
	out := NewMatrix(m.Dates, m.Columns)
	for t := range m.Values {
		copy(out.Values[t], m.Values[t])
	}
	return out
}
