package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/config"
	"github.com/wonny/clusterarb/pkg/httputil"
	"github.com/wonny/clusterarb/pkg/logger"
	"github.com/wonny/clusterarb/pkg/redis"
)

// Source is recorded on every bar fetched through this client
const Source = "yahoo"

// Client fetches daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo 시세 조회는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// New creates a Yahoo client paced at cfg.RequestsPerSecond.
// A non-nil limiter additionally shares the redis-backed per-minute budget across processes.
func New(cfg config.YahooConfig, log *logger.Logger, limiter *redis.RateLimiter) *Client {
	hc := httputil.New(log, cfg.Timeout).WithPacing(cfg.RequestsPerSecond)
	if limiter != nil {
		hc = hc.WithRateLimiter(limiter, redis.YahooRateLimit)
	}
	return NewWithHTTP(hc, log, cfg.BaseURL)
}

// NewWithHTTP creates a client on an existing HTTP wrapper
func NewWithHTTP(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Symbol maps a stored ticker to Yahoo's symbol (Shanghai ".SH" is ".SS" on Yahoo)
func Symbol(ticker string) string {
	if strings.HasSuffix(ticker, ".SH") {
		return strings.TrimSuffix(ticker, ".SH") + ".SS"
	}
	return ticker
}

// Exchange derives the listing exchange from the ticker suffix
func Exchange(ticker string) string {
	switch {
	case strings.HasSuffix(ticker, ".SH"), strings.HasSuffix(ticker, ".SS"):
		return "SSE"
	case strings.HasSuffix(ticker, ".SZ"):
		return "SZSE"
	case strings.HasSuffix(ticker, ".HK"):
		return "HKEX"
	default:
		return ""
	}
}

// FetchBars fetches daily bars in [from, to) for ticker
func (c *Client) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(Symbol(ticker)), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}

	bars, err := parseChart(ticker, &resp, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ticker, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   len(bars),
	}).Debug("Fetched bars")

	return bars, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol       string `json:"symbol"`
		ExchangeName string `json:"exchangeName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// parseChart converts a chart response into bars keyed by the stored ticker.
// Rows with any null OHLC field are non-trading days and are skipped.
func parseChart(ticker string, resp *chartResponse, now time.Time) ([]contracts.Bar, error) {
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := r.Indicators.Quote[0]

	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	exchange := Exchange(ticker)
	bars := make([]contracts.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, high, low, cls := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if open == nil || high == nil || low == nil || cls == nil {
			continue
		}

		bar := contracts.Bar{
			Ticker:    ticker,
			Exchange:  exchange,
			Date:      tradeDate(ts),
			Open:      *open,
			High:      *high,
			Low:       *low,
			Close:     *cls,
			Source:    Source,
			UpdatedAt: now,
		}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = *v
		}
		if a := at(adj, i); a != nil {
			v := *a
			bar.AdjClose = &v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func at(xs []*float64, i int) *float64 {
	if i >= len(xs) {
		return nil
	}
	return xs[i]
}

// tradeDate truncates the session timestamp to its UTC calendar day.
// Shanghai sessions open at 01:30 UTC so the day never shifts.
func tradeDate(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
