package contracts

import (
	"context"
	"time"
)

// InstrumentRepository stores the ticker universe
// ⭐ SSOT: 종목 저장소 인터페이스
type InstrumentRepository interface {
	UpsertInstruments(ctx context.Context, instruments []Instrument) (int, error)
	ListInstruments(ctx context.Context, exchange string, activeOnly bool) ([]Instrument, error)
}

// BarRepository stores daily bars
// ⭐ SSOT: 일봉 저장소 인터페이스
type BarRepository interface {
	UpsertBars(ctx context.Context, bars []Bar) (int, error)
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
	GetBarsByExchange(ctx context.Context, exchange string, from, to time.Time) ([]Bar, error)
	DateRange(ctx context.Context) (*DateRange, error)
}

// BarProvider fetches bars from an external market data source
type BarProvider interface {
	FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}
