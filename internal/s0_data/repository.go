package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/clusterarb/internal/contracts"
)

// batchSize bounds the statements queued per pgx.Batch round trip
const batchSize = 500

// Repository handles instrument and daily bar persistence for S0
// ⭐ SSOT: 종목/일봉 저장소는 여기서만
type Repository struct {
	db *pgxpool.Pool
}

var (
	_ contracts.InstrumentRepository = (*Repository)(nil)
	_ contracts.BarRepository        = (*Repository)(nil)
)

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// UpsertInstruments inserts or updates instruments keyed by ticker
func (r *Repository) UpsertInstruments(ctx context.Context, instruments []contracts.Instrument) (int, error) {
	if len(instruments) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO data.instruments (ticker, exchange, name, is_active, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			exchange = EXCLUDED.exchange,
			name = COALESCE(NULLIF(EXCLUDED.name, ''), data.instruments.name),
			is_active = EXCLUDED.is_active,
			source = EXCLUDED.source,
			updated_at = NOW()
	`

	rows := make([][]interface{}, len(instruments))
	for i, ins := range instruments {
		rows[i] = []interface{}{ins.Ticker, ins.Exchange, ins.Name, ins.IsActive, ins.Source}
	}
	return r.execBatches(ctx, query, rows)
}

// ListInstruments returns instruments ordered by ticker. Empty exchange means all exchanges.
func (r *Repository) ListInstruments(ctx context.Context, exchange string, activeOnly bool) ([]contracts.Instrument, error) {
	query := `
		SELECT ticker, exchange, COALESCE(name, ''), is_active, source, updated_at
		FROM data.instruments
		WHERE ($1 = '' OR exchange = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY ticker ASC
	`

	rows, err := r.db.Query(ctx, query, exchange, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []contracts.Instrument
	for rows.Next() {
		var ins contracts.Instrument
		if err := rows.Scan(&ins.Ticker, &ins.Exchange, &ins.Name, &ins.IsActive, &ins.Source, &ins.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// UpsertBars inserts or updates bars keyed by (ticker, trade_date) in one transaction
func (r *Repository) UpsertBars(ctx context.Context, bars []contracts.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO data.bars_daily (
			ticker, trade_date, exchange, open, high, low, close, adj_close, volume, source, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			exchange = EXCLUDED.exchange,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume,
			source = EXCLUDED.source,
			updated_at = NOW()
	`

	rows := make([][]interface{}, len(bars))
	for i, b := range bars {
		rows[i] = []interface{}{
			b.Ticker, b.Date, b.Exchange, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume, b.Source,
		}
	}
	return r.execBatches(ctx, query, rows)
}

// execBatches runs query once per row inside a transaction, batchSize statements per round trip
func (r *Repository) execBatches(ctx context.Context, query string, rows [][]interface{}) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := &pgx.Batch{}
		for _, args := range rows[start:end] {
			batch.Queue(query, args...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return 0, fmt.Errorf("batch row %d: %w", i, err)
			}
			written += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return written, nil
}

const barColumns = `ticker, trade_date, exchange, open, high, low, close, adj_close, volume, source, updated_at`

// GetBars retrieves bars for a ticker within [from, to], oldest first
func (r *Repository) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.bars_daily
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`
	return r.queryBars(ctx, query, ticker, from, to)
}

// GetBarsByExchange retrieves bars of every active instrument on an exchange within [from, to]
func (r *Repository) GetBarsByExchange(ctx context.Context, exchange string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT b.ticker, b.trade_date, b.exchange, b.open, b.high, b.low, b.close, b.adj_close,
		       b.volume, b.source, b.updated_at
		FROM data.bars_daily b
		JOIN data.instruments i ON i.ticker = b.ticker
		WHERE i.exchange = $1 AND i.is_active AND b.trade_date BETWEEN $2 AND $3
		ORDER BY b.trade_date ASC, b.ticker ASC
	`
	return r.queryBars(ctx, query, exchange, from, to)
}

// GetBarsForTickers retrieves bars for an explicit ticker list within [from, to]
func (r *Repository) GetBarsForTickers(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.bars_daily
		WHERE ticker = ANY($1) AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC, ticker ASC
	`
	return r.queryBars(ctx, query, tickers, from, to)
}

func (r *Repository) queryBars(ctx context.Context, query string, args ...interface{}) ([]contracts.Bar, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(
			&b.Ticker, &b.Date, &b.Exchange, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose,
			&b.Volume, &b.Source, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// DateRange returns the earliest and latest stored trade dates
func (r *Repository) DateRange(ctx context.Context) (*contracts.DateRange, error) {
	var minDate, maxDate *time.Time
	err := r.db.QueryRow(ctx, `SELECT MIN(trade_date), MAX(trade_date) FROM data.bars_daily`).Scan(&minDate, &maxDate)
	if err != nil {
		return nil, fmt.Errorf("query date range: %w", err)
	}
	if minDate == nil || maxDate == nil {
		return nil, ErrNoBars
	}
	return &contracts.DateRange{MinDate: *minDate, MaxDate: *maxDate}, nil
}

// ErrNoBars is returned when the bars table is empty
var ErrNoBars = errors.New("no bars stored")
