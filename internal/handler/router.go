package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sundial/internal/metrics"
	"github.com/hitoshi/sundial/internal/middleware"
	"github.com/hitoshi/sundial/internal/repository"
	"github.com/hitoshi/sundial/internal/response"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 操作層
	Operations OperationsInterface

	// ヘルスチェック（nilの場合はDB確認を省略）
	HealthChecker repository.HealthChecker

	// ミドルウェア依存
	CORSAllowedOrigin string
	Logger            *slog.Logger
	DebugRequestLog   bool

	// メトリクス（nilの場合は /metrics を公開しない）
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → CORS → SecurityHeaders (→ RequestDump)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.DebugRequestLog {
		r.Use(middleware.NewRequestDumpMiddleware(logger))
	}

	healthHandler := NewHealthHandler(deps.HealthChecker)
	apiHandler := NewAPIHandler(deps.Operations)

	// --- 運用向けルート ---
	r.Get("/", healthHandler.Banner)
	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- API ---
	// 認証はSundial-Tokenヘッダーを使い、操作層で検証する
	r.Post("/login", apiHandler.Login)
	r.Post("/items/get", apiHandler.ListItems)
	r.Route("/item", func(r chi.Router) {
		r.Post("/new", apiHandler.CreateItem)
		r.Post("/edit", apiHandler.UpdateItem)
		r.Post("/delete", apiHandler.DeleteItem)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		env := response.Fail(http.StatusText(http.StatusNotFound), response.KindNotFoundOrForbidden)
		middleware.WriteEnvelope(w, env)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"success":false,"message":"Method Not Allowed"}` + "\n"))
	})

	return r
}
