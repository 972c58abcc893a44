package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/clusterarb/internal/contracts"
	"github.com/wonny/clusterarb/pkg/logger"
	"github.com/wonny/clusterarb/pkg/redis"
)

// DataStore is the read side of the instrument and bar store
type DataStore interface {
	ListInstruments(ctx context.Context, exchange string, activeOnly bool) ([]contracts.Instrument, error)
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error)
	DateRange(ctx context.Context) (*contracts.DateRange, error)
}

// DataHandler handles instrument and bar endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	store  DataStore
	cache  *redis.Cache
	logger *logger.Logger
}

// NewDataHandler creates a new data handler. cache may be nil.
func NewDataHandler(store DataStore, cache *redis.Cache, log *logger.Logger) *DataHandler {
	return &DataHandler{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// GetInstruments returns the instruments listed on an exchange
// GET /v1/instruments?exchange=SSE&active=true
func (h *DataHandler) GetInstruments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exchange := r.URL.Query().Get("exchange")
	if exchange == "" {
		exchange = "SSE"
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	key := redis.InstrumentsKey(exchange + ":" + strconv.FormatBool(activeOnly))
	var instruments []contracts.Instrument
	if h.cacheGet(ctx, key, &instruments) {
		respondData(w, instruments, true)
		return
	}

	instruments, err := h.store.ListInstruments(ctx, exchange, activeOnly)
	if err != nil {
		h.logger.WithError(err).WithField("exchange", exchange).Error("Failed to list instruments")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve instruments")
		return
	}
	if instruments == nil {
		instruments = []contracts.Instrument{}
	}

	h.cacheSet(ctx, key, instruments, redis.TTLMedium)
	respondData(w, instruments, false)
}

// GetBars returns daily bars for a ticker, oldest first, both ends inclusive
// GET /v1/bars?ticker=600519.SH&start=2023-01-01&end=2023-12-31
func (h *DataHandler) GetBars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	ticker := q.Get("ticker")
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	end, err := parseDate("end", q.Get("end"), today())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseDate("start", q.Get("start"), end.AddDate(-1, 0, 0))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if start.After(end) {
		respondError(w, http.StatusBadRequest, "start must not be after end")
		return
	}

	key := redis.BarsKey(ticker, start.Format(dateLayout), end.Format(dateLayout))
	var bars []contracts.Bar
	if h.cacheGet(ctx, key, &bars) {
		respondData(w, bars, true)
		return
	}

	bars, err = h.store.GetBars(ctx, ticker, start, end)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to get bars")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve bars")
		return
	}
	if bars == nil {
		bars = []contracts.Bar{}
	}

	h.cacheSet(ctx, key, bars, redis.TTLDaily)
	respondData(w, bars, false)
}

// GetDateRange returns the span of stored bars
// GET /v1/bars/range
func (h *DataHandler) GetDateRange(w http.ResponseWriter, r *http.Request) {
	rng, err := h.store.DateRange(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("No bar date range")
		respondError(w, http.StatusNotFound, "no bars stored")
		return
	}
	respondData(w, map[string]string{
		"min_date": rng.MinDate.Format(dateLayout),
		"max_date": rng.MaxDate.Format(dateLayout),
	}, false)
}

func (h *DataHandler) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if h.cache == nil {
		return false
	}
	hit, err := h.cache.Get(ctx, key, dest)
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return hit
}

func (h *DataHandler) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, value, ttl); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
