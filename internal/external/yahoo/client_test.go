package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/pkg/httputil"
	"github.com/wonny/clusterarb/pkg/logger"
)

// 2024-01-02 and 2024-01-03 sessions (01:30 UTC), the middle row is a holiday with null OHLC
const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "600519.SS", "exchangeName": "SHH"},
      "timestamp": [1704159000, 1704245400, 1704331800],
      "indicators": {
        "quote": [{
          "open":   [1700.0, null, 1690.5],
          "high":   [1720.0, null, 1701.0],
          "low":    [1695.0, null, 1680.0],
          "close":  [1710.0, null, 1685.0],
          "volume": [2500000, null, null]
        }],
        "adjclose": [{"adjclose": [1650.2, null, 1626.1]}]
      }
    }],
    "error": null
  }
}`

func TestSymbol(t *testing.T) {
	tests := []struct {
		ticker string
		want   string
	}{
		{"600000.SH", "600000.SS"},
		{"600000.SS", "600000.SS"},
		{"000001.SZ", "000001.SZ"},
		{"AAPL", "AAPL"},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			assert.Equal(t, tt.want, Symbol(tt.ticker))
		})
	}
}

func TestExchange(t *testing.T) {
	assert.Equal(t, "SSE", Exchange("600000.SH"))
	assert.Equal(t, "SSE", Exchange("600000.SS"))
	assert.Equal(t, "SZSE", Exchange("000001.SZ"))
	assert.Equal(t, "HKEX", Exchange("0700.HK"))
	assert.Equal(t, "", Exchange("AAPL"))
}

func TestFetchBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/600519.SS", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	hc := httputil.New(logger.Nop(), 5*time.Second).DisableRetry()
	client := NewWithHTTP(hc, logger.Nop(), server.URL+"/")

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := client.FetchBars(context.Background(), "600519.SH", from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, bars, 2, "null OHLC row skipped")

	first := bars[0]
	assert.Equal(t, "600519.SH", first.Ticker, "stored ticker kept")
	assert.Equal(t, "SSE", first.Exchange)
	assert.Equal(t, Source, first.Source)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 1710.0, first.Close)
	assert.Equal(t, 2500000.0, first.Volume)
	require.NotNil(t, first.AdjClose)
	assert.Equal(t, 1650.2, *first.AdjClose)
	assert.Equal(t, "600519.SH:2024-01-02", first.ID())

	second := bars[1]
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), second.Date)
	assert.Equal(t, 0.0, second.Volume, "null volume reads as zero")
}

func TestParseChart_Error(t *testing.T) {
	resp := &chartResponse{}
	resp.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}

	_, err := parseChart("999999.SH", resp, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestParseChart_Empty(t *testing.T) {
	bars, err := parseChart("600000.SH", &chartResponse{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchBars_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	hc := httputil.New(logger.Nop(), 5*time.Second).DisableRetry()
	client := NewWithHTTP(hc, logger.Nop(), server.URL)

	_, err := client.FetchBars(context.Background(), "600000.SH", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
