package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/clusterarb/internal/api"
	"github.com/wonny/clusterarb/internal/api/handlers"
	"github.com/wonny/clusterarb/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 저장된 종목/일봉 조회 엔드포인트 제공
- 클러스터링 / 백테스트 실행 엔드포인트 제공
- Redis 캐시 사용 (REDIS_ENABLED=false 이면 캐시 없이 동작)
- DB 연결 실패 시 direct-fetch 모드 (Yahoo 샘플 종목, /v1/instruments·/v1/bars 비활성)

Endpoints:
  GET  /health                  - Health check
  GET  /v1/instruments          - 종목 목록
  GET  /v1/bars                 - 일봉 조회
  GET  /v1/bars/range           - 저장된 일봉 기간
  POST /v1/analytics/clusters   - 클러스터링 실행
  POST /v1/analytics/backtest   - 백테스트 실행

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== clusterarb API Server ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	a, err := newApp(ctx, allowDirect)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":     a.cfg.Port,
		"env":      a.cfg.Env,
		"strategy": a.strategy.Meta.StrategyID,
	}).Info("Initializing API server")

	// 2. Handlers
	cache := redis.NewCache(a.redis, "clusterarb")
	h := api.Handlers{
		Analytics: handlers.NewAnalyticsHandler(a.orch, cache, a.strategy, a.log),
		Cache:     a.redis,
		Direct:    a.direct,
	}
	if !a.direct {
		h.Data = handlers.NewDataHandler(a.repo, cache, a.log)
		h.DB = a.db
	} else {
		a.log.Warn("Data endpoints disabled in direct-fetch mode")
	}

	// 3. Router + server
	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// 4. Serve until signal, then drain
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
