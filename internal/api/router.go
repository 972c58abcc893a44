package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/clusterarb/internal/api/handlers"
	"github.com/wonny/clusterarb/pkg/logger"
	"github.com/wonny/clusterarb/pkg/redis"
)

// Pinger reports backend reachability for /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups every endpoint handler the router mounts
type Handlers struct {
	Data      *handlers.DataHandler // nil in direct-fetch mode; data routes are not mounted
	Analytics *handlers.AnalyticsHandler
	DB        Pinger // optional
	Cache     Pinger // optional; redis.ErrDisabled reports "disabled" without degrading
	Direct    bool   // bars are fetched from Yahoo, not the store
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h)).Methods("GET")

	// API v1
	v1 := r.PathPrefix("/v1").Subrouter()

	// Data endpoints
	if h.Data != nil {
		v1.HandleFunc("/instruments", h.Data.GetInstruments).Methods("GET")
		v1.HandleFunc("/bars", h.Data.GetBars).Methods("GET")
		v1.HandleFunc("/bars/range", h.Data.GetDateRange).Methods("GET")
	}

	// Analytics endpoints
	v1.HandleFunc("/analytics/clusters", handlers.WithTimeout(h.Analytics.Clusters)).Methods("POST")
	v1.HandleFunc("/analytics/backtest", handlers.WithTimeout(h.Analytics.Backtest)).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(h Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]interface{}{
			"status":  "ok",
			"service": "clusterarb-api",
			"mode":    "database",
		}
		if h.Direct {
			body["mode"] = "direct"
		}
		check := func(name string, p Pinger) {
			if p == nil {
				return
			}
			switch err := p.Ping(ctx); {
			case err == nil:
				body[name] = "ok"
			case errors.Is(err, redis.ErrDisabled):
				body[name] = "disabled"
			default:
				body["status"] = "degraded"
				body[name] = "unreachable"
			}
		}
		check("database", h.DB)
		check("cache", h.Cache)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rec, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": rec.status,
			}).WithDuration(time.Since(start)).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
