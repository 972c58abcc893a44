package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/config"
	"github.com/wonny/clusterarb/pkg/database"
)

func TestRepository_RoundTrip(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.EnsureSchema(ctx))

	repo := NewRepository(db.Pool)
	tickers := []string{"TEST1.SH", "TEST2.SH"}
	defer func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM data.bars_daily WHERE ticker = ANY($1)`, tickers)
		_, _ = db.Pool.Exec(ctx, `DELETE FROM data.instruments WHERE ticker = ANY($1)`, tickers)
	}()

	n, err := repo.UpsertInstruments(ctx, []contracts.Instrument{
		{Ticker: tickers[0], Exchange: "TESTX", IsActive: true, Source: "test"},
		{Ticker: tickers[1], Exchange: "TESTX", IsActive: true, Source: "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	instruments, err := repo.ListInstruments(ctx, "TESTX", true)
	require.NoError(t, err)
	assert.Len(t, instruments, 2)

	var bars []contracts.Bar
	for i := 0; i < 3; i++ {
		for _, tk := range tickers {
			bars = append(bars, contracts.Bar{
				Ticker: tk, Exchange: "TESTX", Date: d(2 + i),
				Open: 1, High: 1, Low: 1, Close: float64(10 + i), Volume: 100, Source: "test",
			})
		}
	}
	_, err = repo.UpsertBars(ctx, bars)
	require.NoError(t, err)

	got, err := repo.GetBars(ctx, tickers[0], d(1), d(10))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 12.0, got[2].Close)
	assert.Nil(t, got[0].AdjClose)

	byExchange, err := repo.GetBarsByExchange(ctx, "TESTX", d(1), d(10))
	require.NoError(t, err)
	assert.Len(t, byExchange, 6)

	rng, err := repo.DateRange(ctx)
	require.NoError(t, err)
	assert.False(t, rng.MaxDate.Before(rng.MinDate))
}
