package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/clusterarb/internal/brain"
	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/internal/s0_data"
	"github.com/wonny/clusterarb/internal/strategyconfig"
	"github.com/wonny/clusterarb/pkg/logger"
	"github.com/wonny/clusterarb/pkg/redis"
)

// Runner executes the pipeline on stored prices
type Runner interface {
	RunFromStore(ctx context.Context, req s0_data.PriceRequest, cfg brain.RunConfig) (*brain.RunResult, error)
}

// AnalyticsHandler serves clustering and backtest runs
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalyticsHandler struct {
	runner   Runner
	cache    *redis.Cache
	defaults *strategyconfig.Config
	logger   *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler. cache may be nil.
func NewAnalyticsHandler(runner Runner, cache *redis.Cache, defaults *strategyconfig.Config, log *logger.Logger) *AnalyticsHandler {
	if defaults == nil {
		defaults = strategyconfig.Default()
	}
	return &AnalyticsHandler{
		runner:   runner,
		cache:    cache,
		defaults: defaults,
		logger:   log,
	}
}

// AnalyticsRequest is the POST body of both analytics endpoints.
// Omitted fields keep the strategy file defaults; pipeline fields override one by one.
type AnalyticsRequest struct {
	Start       string                  `json:"start"`
	End         string                  `json:"end"`
	Exchange    string                  `json:"exchange"`
	Tickers     []string                `json:"tickers,omitempty"`
	PriceField  contracts.PriceField    `json:"price_field"`
	MinCoverage float64                 `json:"min_coverage"`
	Pipeline    strategyconfig.Pipeline `json:"pipeline"`
}

// ClustersResponse is the body of POST /v1/analytics/clusters
type ClustersResponse struct {
	RunID         string                  `json:"run_id"`
	Start         string                  `json:"start"`
	End           string                  `json:"end"`
	Params        strategyconfig.Pipeline `json:"params"`
	Method        contracts.ClusterMethod `json:"method"`
	Requested     int                     `json:"requested"`
	Clusters      []contracts.Cluster     `json:"clusters"`
	Tickers       []string                `json:"tickers"`
	Correlation   [][]Float               `json:"correlation"`
	LatestDate    string                  `json:"latest_date"`
	LatestZ       map[string]Float        `json:"latest_z"`
	LatestSignals map[string]int8         `json:"latest_signals"`
}

// BacktestPoint is one date of the backtest series
type BacktestPoint struct {
	Date        string `json:"date"`
	DailyReturn Float  `json:"daily_return"`
	Equity      Float  `json:"equity"`
	Drawdown    Float  `json:"drawdown"`
	Turnover    Float  `json:"turnover"`
	Gross       Float  `json:"gross_exposure"`
}

// BacktestResponse is the body of POST /v1/analytics/backtest
type BacktestResponse struct {
	RunID         string                  `json:"run_id"`
	Start         string                  `json:"start"`
	End           string                  `json:"end"`
	Params        strategyconfig.Pipeline `json:"params"`
	Clusters      []contracts.Cluster     `json:"clusters"`
	Metrics       contracts.Metrics       `json:"metrics"`
	Series        []BacktestPoint         `json:"series"`
	LatestSignals map[string]int8         `json:"latest_signals"`
}

// Clusters runs the pipeline and returns the cluster assignment with current z-scores
// POST /v1/analytics/clusters
func (h *AnalyticsHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "clusters", func(req *AnalyticsRequest, res *brain.RunResult) interface{} {
		return newClustersResponse(req, res)
	})
}

// Backtest runs the pipeline and returns the backtest series and metrics
// POST /v1/analytics/backtest
func (h *AnalyticsHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "backtest", func(req *AnalyticsRequest, res *brain.RunResult) interface{} {
		return newBacktestResponse(req, res)
	})
}

func (h *AnalyticsHandler) serve(w http.ResponseWriter, r *http.Request, kind string, build func(*AnalyticsRequest, *brain.RunResult) interface{}) {
	ctx := r.Context()

	req, priceReq, err := h.decodeRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := cacheKey(kind, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash request")
		return
	}
	if h.cache != nil {
		var cached json.RawMessage
		hit, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		} else if hit {
			respondData(w, cached, true)
			return
		}
	}

	res, err := h.runner.RunFromStore(ctx, priceReq, brain.RunConfig{
		RunID:    brain.GenerateRunID(),
		Pipeline: req.Pipeline,
	})
	if err != nil {
		status := errorStatus(err)
		log := h.logger.WithError(err).WithFields(map[string]interface{}{
			"kind":   kind,
			"status": status,
		})
		if status == http.StatusInternalServerError {
			log.Error("Analytics run failed")
			respondError(w, status, "Analytics run failed")
			return
		}
		log.Warn("Analytics request rejected")
		respondError(w, status, err.Error())
		return
	}

	body := build(req, res)
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body, redis.TTLLong); err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	respondData(w, body, false)
}

// Refresh runs the default strategy once and stores both analytics responses in the cache
func (h *AnalyticsHandler) Refresh(ctx context.Context) error {
	req, priceReq, err := h.resolve(h.defaultRequest())
	if err != nil {
		return err
	}

	res, err := h.runner.RunFromStore(ctx, priceReq, brain.RunConfig{
		RunID:    brain.GenerateRunID(),
		Pipeline: req.Pipeline,
	})
	if err != nil {
		return fmt.Errorf("refresh analytics: %w", err)
	}
	if h.cache == nil {
		return nil
	}

	bodies := map[string]interface{}{
		"clusters": newClustersResponse(req, res),
		"backtest": newBacktestResponse(req, res),
	}
	for kind, body := range bodies {
		key, err := cacheKey(kind, req)
		if err != nil {
			return err
		}
		if err := h.cache.Set(ctx, key, body, redis.TTLLong); err != nil {
			return fmt.Errorf("cache %s: %w", kind, err)
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id": res.RunID,
		"start":  req.Start,
		"end":    req.End,
	}).Info("Analytics cache refreshed")
	return nil
}

func (h *AnalyticsHandler) defaultRequest() *AnalyticsRequest {
	d := h.defaults
	return &AnalyticsRequest{
		Exchange:    d.Data.Exchange,
		Tickers:     append([]string(nil), d.Data.Tickers...),
		PriceField:  d.Data.PriceField,
		MinCoverage: d.Data.MinCoverage,
		Pipeline:    d.Pipeline,
	}
}

// decodeRequest overlays the body on the strategy defaults and resolves the date range
func (h *AnalyticsHandler) decodeRequest(r *http.Request) (*AnalyticsRequest, s0_data.PriceRequest, error) {
	req := h.defaultRequest()
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
			return nil, s0_data.PriceRequest{}, contracts.NewInvalidParameter("body", "", err.Error())
		}
	}
	return h.resolve(req)
}

// resolve validates the data selection and fills the default date range
func (h *AnalyticsHandler) resolve(req *AnalyticsRequest) (*AnalyticsRequest, s0_data.PriceRequest, error) {
	switch req.PriceField {
	case contracts.FieldClose, contracts.FieldAdjClose:
	default:
		return nil, s0_data.PriceRequest{}, contracts.NewInvalidParameter("price_field", req.PriceField, "must be close or adj_close")
	}
	if err := strategyconfig.ValidateCoverage(req.MinCoverage); err != nil {
		return nil, s0_data.PriceRequest{}, contracts.NewInvalidParameter("min_coverage", req.MinCoverage, err.Error())
	}

	end, err := parseDate("end", req.End, today())
	if err != nil {
		return nil, s0_data.PriceRequest{}, err
	}
	years := h.defaults.Data.LookbackYears
	if years < 1 {
		years = 1
	}
	start, err := parseDate("start", req.Start, end.AddDate(-years, 0, 0))
	if err != nil {
		return nil, s0_data.PriceRequest{}, err
	}
	if !start.Before(end) {
		return nil, s0_data.PriceRequest{}, contracts.NewInvalidParameter("start", req.Start, "must be before end")
	}
	req.Start, req.End = start.Format(dateLayout), end.Format(dateLayout)

	return req, s0_data.PriceRequest{
		Exchange:    req.Exchange,
		Tickers:     req.Tickers,
		From:        start,
		To:          end,
		Field:       req.PriceField,
		MinCoverage: req.MinCoverage,
	}, nil
}

// cacheKey keys a run by its pipeline hash plus a digest of the price selection
func cacheKey(kind string, req *AnalyticsRequest) (string, error) {
	pipelineHash, err := strategyconfig.PipelineHash(req.Pipeline)
	if err != nil {
		return "", err
	}
	selection, err := json.Marshal(struct {
		Exchange    string               `json:"exchange"`
		Tickers     []string             `json:"tickers"`
		PriceField  contracts.PriceField `json:"price_field"`
		MinCoverage float64              `json:"min_coverage"`
	}{req.Exchange, req.Tickers, req.PriceField, req.MinCoverage})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(selection)
	return redis.AnalyticsKey(kind, pipelineHash+"."+hex.EncodeToString(sum[:4]), req.Start, req.End), nil
}

func newClustersResponse(req *AnalyticsRequest, res *brain.RunResult) *ClustersResponse {
	out := &ClustersResponse{
		RunID:         res.RunID,
		Start:         req.Start,
		End:           req.End,
		Params:        res.Params,
		Method:        res.Clusters.Method,
		Requested:     res.Clusters.Requested,
		Clusters:      res.Clusters.Clusters,
		Tickers:       res.Correlation.Tickers,
		Correlation:   make([][]Float, len(res.Correlation.Values)),
		LatestZ:       make(map[string]Float),
		LatestSignals: res.Signals.Latest(),
	}
	for i, row := range res.Correlation.Values {
		out.Correlation[i] = floats(row)
	}

	z := res.Residuals.ZScores
	if n := z.Rows(); n > 0 {
		out.LatestDate = z.Dates[n-1].Format(dateLayout)
		for j, ticker := range z.Columns {
			out.LatestZ[ticker] = Float(z.Values[n-1][j])
		}
	}
	return out
}

func newBacktestResponse(req *AnalyticsRequest, res *brain.RunResult) *BacktestResponse {
	bt := res.Backtest
	series := make([]BacktestPoint, len(bt.Dates))
	for t, d := range bt.Dates {
		series[t] = BacktestPoint{
			Date:        d.Format(dateLayout),
			DailyReturn: Float(bt.PortfolioReturns[t]),
			Equity:      Float(bt.CumulativeReturn[t]),
			Drawdown:    Float(bt.Drawdown[t]),
			Turnover:    Float(bt.Turnover[t]),
			Gross:       Float(bt.GrossExposure[t]),
		}
	}
	return &BacktestResponse{
		RunID:         res.RunID,
		Start:         req.Start,
		End:           req.End,
		Params:        res.Params,
		Clusters:      res.Clusters.Clusters,
		Metrics:       bt.Metrics,
		Series:        series,
		LatestSignals: res.Signals.Latest(),
	}
}

// requestTimeout bounds one analytics run
const requestTimeout = 2 * time.Minute

// WithTimeout wraps an analytics handler with a per-request deadline
func WithTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
