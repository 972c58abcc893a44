package hkex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/httputil"
	"github.com/wonny/clusterarb/pkg/logger"
)

const (
	// SourceStockConnect marks instruments scraped from the HKEX list
	SourceStockConnect = "hkex_stock_connect"
	// SourceSample marks instruments taken from SampleSSE
	SourceSample = "hardcoded_sample"

	// ExchangeSSE is the exchange code of every Stock Connect SSE instrument
	ExchangeSSE = "SSE"

	// BrowserUserAgent is sent to hkex.com.hk, which rejects non-browser agents
	BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// SSE A-share codes are six digits starting with 6
var sseCode = regexp.MustCompile(`^6\d{5}$`)

// Client scrapes the Stock Connect eligible securities list
// ⭐ SSOT: HKEX Stock Connect 종목 리스트 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	sseListURL string
}

// NewClient creates a new HKEX client
func NewClient(httpClient *httputil.Client, log *logger.Logger, sseListURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		sseListURL: sseListURL,
	}
}

// StockConnectSSE returns the SSE securities currently eligible for northbound trading
func (c *Client) StockConnectSSE(ctx context.Context) ([]contracts.Instrument, error) {
	resp, err := c.httpClient.Get(ctx, c.sseListURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	instruments, err := parseEligibleSSE(resp.Body, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("no SSE securities found on %s", c.sseListURL)
	}

	c.logger.WithField("count", len(instruments)).Info("Scraped Stock Connect SSE list")
	return instruments, nil
}

// parseEligibleSSE reads every table row whose first code-like cell is an SSE code.
// The cell after the code holds the security name.
func parseEligibleSSE(r io.Reader, now time.Time) ([]contracts.Instrument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var out []contracts.Instrument

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i < cells.Length(); i++ {
			code := strings.TrimSpace(cells.Eq(i).Text())
			if !sseCode.MatchString(code) {
				continue
			}
			ticker := code + ".SH"
			if seen[ticker] {
				return
			}
			seen[ticker] = true

			name := ""
			if i+1 < cells.Length() {
				name = strings.Join(strings.Fields(cells.Eq(i+1).Text()), " ")
			}
			out = append(out, contracts.Instrument{
				Ticker:    ticker,
				Exchange:  ExchangeSSE,
				Name:      name,
				IsActive:  true,
				Source:    SourceStockConnect,
				UpdatedAt: now,
			})
			return
		}
	})

	return out, nil
}

// SampleSSE is a fixed set of large Stock Connect SSE names used when the list cannot be scraped
var SampleSSE = []string{
	"600000.SH", "600009.SH", "600010.SH", "600011.SH", "600015.SH",
	"600016.SH", "600018.SH", "600019.SH", "600025.SH", "600028.SH",
	"600029.SH", "600030.SH", "600031.SH", "600036.SH", "600048.SH",
	"600050.SH", "600061.SH", "600085.SH", "600089.SH", "600104.SH",
	"600109.SH", "600111.SH", "600115.SH", "600150.SH", "600161.SH",
	"600176.SH", "600183.SH", "600188.SH", "600196.SH", "600276.SH",
	"600309.SH", "600346.SH", "600362.SH", "600383.SH", "600406.SH",
	"600436.SH", "600438.SH", "600489.SH", "600519.SH", "600547.SH",
	"600570.SH", "600585.SH", "600588.SH", "600600.SH", "600606.SH",
	"600660.SH", "600690.SH", "600703.SH", "600741.SH", "600745.SH",
	"600760.SH", "600809.SH", "600845.SH", "600887.SH",
	"600893.SH", "600900.SH", "600918.SH", "600919.SH", "600926.SH",
	"600958.SH", "600999.SH", "601006.SH", "601009.SH", "601012.SH",
	"601021.SH", "601066.SH", "601088.SH", "601100.SH", "601111.SH",
	"601138.SH", "601155.SH", "601166.SH", "601169.SH", "601186.SH",
	"601211.SH", "601225.SH", "601229.SH", "601288.SH", "601318.SH",
	"601319.SH", "601328.SH", "601336.SH", "601360.SH", "601377.SH",
	"601390.SH", "601398.SH", "601601.SH", "601618.SH", "601628.SH",
	"601633.SH", "601658.SH", "601668.SH", "601669.SH", "601688.SH",
	"601698.SH", "601727.SH", "601766.SH", "601788.SH", "601799.SH",
	"601800.SH", "601808.SH", "601816.SH", "601818.SH", "601838.SH",
	"601857.SH", "601877.SH", "601878.SH", "601881.SH", "601888.SH",
	"601898.SH", "601899.SH", "601901.SH", "601919.SH", "601933.SH",
	"601939.SH", "601985.SH", "601988.SH", "601995.SH",
	"601998.SH",
}

// SampleInstruments returns SampleSSE as active SSE instruments
func SampleInstruments() []contracts.Instrument {
	now := time.Now().UTC()
	out := make([]contracts.Instrument, len(SampleSSE))
	for i, t := range SampleSSE {
		out[i] = contracts.Instrument{
			Ticker:    t,
			Exchange:  ExchangeSSE,
			IsActive:  true,
			Source:    SourceSample,
			UpdatedAt: now,
		}
	}
	return out
}
