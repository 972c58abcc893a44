package contracts

import "time"

// Instrument is a tradable security in the universe
type Instrument struct {
	Ticker    string    `json:"ticker"`
	Exchange  string    `json:"exchange"`
	Name      string    `json:"name,omitempty"`
	IsActive  bool      `json:"is_active"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bar is one daily OHLCV record
type Bar struct {
	Ticker    string    `json:"ticker"`
	Exchange  string    `json:"exchange"`
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	AdjClose  *float64  `json:"adj_close,omitempty"`
	Volume    float64   `json:"volume"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ID returns the natural key "ticker:YYYY-MM-DD"
func (b *Bar) ID() string {
	return b.Ticker + ":" + b.Date.Format("2006-01-02")
}

// PriceField selects which bar field feeds the price matrix
type PriceField string

const (
	FieldClose    PriceField = "close"
	FieldAdjClose PriceField = "adj_close"
)

// Price returns the requested field; adj_close falls back to close when absent
func (b *Bar) Price(field PriceField) float64 {
	if field == FieldAdjClose && b.AdjClose != nil {
		return *b.AdjClose
	}
	return b.Close
}

// DateRange is the span of stored bars
type DateRange struct {
	MinDate time.Time `json:"min_date"`
	MaxDate time.Time `json:"max_date"`
}
