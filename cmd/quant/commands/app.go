package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/clusterarb/internal/brain"
	"github.com/wonny/clusterarb/internal/external/hkex"
	"github.com/wonny/clusterarb/internal/external/yahoo"
	"github.com/wonny/clusterarb/internal/s0_data"
	"github.com/wonny/clusterarb/internal/strategyconfig"
	"github.com/wonny/clusterarb/pkg/config"
	"github.com/wonny/clusterarb/pkg/database"
	"github.com/wonny/clusterarb/pkg/logger"
	"github.com/wonny/clusterarb/pkg/redis"
)

// directSampleSize caps the sample universe fetched per run in direct-fetch mode
const directSampleSize = 30

// dataMode selects what newApp does when PostgreSQL is unreachable
type dataMode int

const (
	requireDB   dataMode = iota // fail
	allowDirect                 // read bars straight from Yahoo
)

// app bundles the dependencies every command needs
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB        // nil in direct-fetch mode
	repo     *s0_data.Repository // nil in direct-fetch mode
	direct   bool
	redis    *redis.Client
	strategy *strategyconfig.Config
	snapshot *strategyconfig.DecisionSnapshot
	orch     *brain.Orchestrator
}

// newApp loads config, connects to PostgreSQL and Redis, and builds the orchestrator.
// Redis failures degrade to a disabled client. With allowDirect an unreachable
// database switches price loading to direct Yahoo fetches of the sample universe.
func newApp(ctx context.Context, mode dataMode) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if strategyFile != "" {
		cfg.StrategyFile = strategyFile
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Strategy
	strategy, raw := strategyconfig.Default(), []byte(nil)
	if cfg.StrategyFile != "" {
		strategy, raw, err = strategyconfig.Load(cfg.StrategyFile)
		if err != nil {
			return nil, fmt.Errorf("load strategy: %w", err)
		}
	}
	if err := strategyconfig.Validate(strategy); err != nil {
		return nil, fmt.Errorf("invalid strategy: %w", err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	snapshot, err := strategyconfig.NewDecisionSnapshot(strategy, raw)
	if err != nil {
		return nil, fmt.Errorf("strategy snapshot: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"strategy_id": snapshot.StrategyID,
		"config_hash": snapshot.ConfigHash,
		"file":        cfg.StrategyFile,
	}).Info("Strategy loaded")

	// 4. Redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		rc = redis.Disabled()
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		redis:    rc,
		strategy: strategy,
		snapshot: snapshot,
	}

	// 5. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		if mode != allowDirect {
			_ = rc.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.WithError(err).Warn("Database unreachable, direct-fetch mode active")
		a.direct = true
		a.orch = brain.NewOrchestrator(s0_data.NewLoader(a.directSource(), log), log)
		return a, nil
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.EnsureSchema(schemaCtx); err != nil {
		db.Close()
		_ = rc.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	// 6. Repository → loader → orchestrator
	a.db = db
	a.repo = s0_data.NewRepository(db.Pool)
	a.orch = brain.NewOrchestrator(s0_data.NewLoader(a.repo, log), log)

	return a, nil
}

// directSource fetches the first directSampleSize sample tickers from Yahoo
func (a *app) directSource() *s0_data.DirectSource {
	tickers := hkex.SampleSSE
	if len(tickers) > directSampleSize {
		tickers = tickers[:directSampleSize]
	}
	provider := yahoo.New(a.cfg.Yahoo, a.log, redis.NewRateLimiter(a.redis, "clusterarb"))
	return s0_data.NewDirectSource(provider, hkex.ExchangeSSE, tickers, a.cfg.Yahoo.Workers, a.log)
}

// warnDirect tells the user that bars come from Yahoo instead of the store
func (a *app) warnDirect() {
	if a.direct {
		PrintWarning(fmt.Sprintf("Direct-fetch mode: DB에 연결할 수 없어 Yahoo에서 샘플 %d종목을 직접 조회합니다", directSampleSize))
	}
}

// Close releases the database pool and the Redis connection
func (a *app) Close() {
	_ = a.redis.Close()
	if a.db != nil {
		a.db.Close()
	}
}

// priceRequest builds the S0 request for [from, to] from the strategy data section
func (a *app) priceRequest(from, to time.Time) s0_data.PriceRequest {
	d := a.strategy.Data
	return s0_data.PriceRequest{
		Exchange:    d.Exchange,
		Tickers:     d.Tickers,
		From:        from,
		To:          to,
		Field:       d.PriceField,
		MinCoverage: d.MinCoverage,
	}
}

// period parses --from/--to; an empty to means today, an empty from means LookbackYears before to
func (a *app) period(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if toStr != "" {
		t, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		to = t
	}

	from := to.AddDate(-a.strategy.Data.LookbackYears, 0, 0)
	if fromStr != "" {
		f, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		from = f
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s must be before end %s", from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}
