package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sundial/internal/auth"
	"github.com/hitoshi/sundial/internal/config"
	"github.com/hitoshi/sundial/internal/database"
	"github.com/hitoshi/sundial/internal/handler"
	"github.com/hitoshi/sundial/internal/item"
	"github.com/hitoshi/sundial/internal/logger"
	"github.com/hitoshi/sundial/internal/metrics"
	"github.com/hitoshi/sundial/internal/operation"
	"github.com/hitoshi/sundial/internal/repository"
	"github.com/hitoshi/sundial/internal/security"
	"github.com/hitoshi/sundial/internal/user"
)

// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるか、SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	dsn, err := databaseURL(cfg)
	if err != nil {
		return err
	}
	db, err := database.Open(dsn, database.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 3. IDトークン検証器
	verifier, err := newVerifier(ctx, cfg, collector)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	// 4. ルーターの構築
	router := newHandler(cfg, db, verifier, registry, collector)

	// 5. HTTPサーバーの起動
	server := newServer(cfg, router)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newHandler はリポジトリから操作層までを組み立て、ルーターを返す。
func newHandler(
	cfg *config.Config,
	db *sql.DB,
	verifier auth.Verifier,
	registry *prometheus.Registry,
	collector metrics.MetricsCollector,
) http.Handler {
	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)

	// ドメインサービス
	dirConfig := user.DefaultDirectoryConfig()
	dirConfig.QueryTimeout = cfg.QueryTimeout
	directory := user.NewDirectory(userRepo, dirConfig)

	gate := auth.NewGate(verifier, directory, auth.GateConfig{
		VerifyTimeout: cfg.VerifyTimeout,
	}, collector)

	itemService := item.NewService(itemRepo, security.NewContentSanitizer(), item.ServiceConfig{
		QueryTimeout: cfg.QueryTimeout,
	})

	ops := operation.New(gate, itemService, operation.Config{
		ExposeErrorDetail: cfg.ExposeErrorDetail,
	}, collector)

	return handler.NewRouter(&handler.RouterDeps{
		Operations:        ops,
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		DebugRequestLog:   cfg.DebugRequestLog,
		Collector:         collector,
		Gatherer:          registry,
	})
}

// newVerifier は設定に応じたIDトークン検証器を返す。
// IDENTITY_JWKS_URLが設定されている場合はその鍵セットで、未設定の場合はGoogleの公開鍵で検証する。
func newVerifier(ctx context.Context, cfg *config.Config, collector metrics.MetricsCollector) (auth.Verifier, error) {
	if cfg.UsesJWKS() {
		slog.Info("verifying id tokens with key set",
			slog.String("jwks_url", cfg.IdentityJWKSURL),
		)
		return auth.NewJWKSVerifier(ctx, auth.JWKSConfig{
			KeySetURL:   cfg.IdentityJWKSURL,
			Audience:    cfg.GoogleClientID,
			Issuers:     cfg.IdentityIssuers,
			HTTPTimeout: cfg.VerifyTimeout,
		}, collector)
	}

	return auth.NewGoogleIDTokenVerifier(ctx, cfg.GoogleClientID, &http.Client{
		Timeout: cfg.VerifyTimeout,
	})
}

// newRegistry はアプリケーション用のPrometheusレジストリを生成する。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// newServer はタイムアウトを設定したHTTPサーバーを生成する。
func newServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// runMigrate はデータベーススキーマを適用する。
func runMigrate(cfg *config.Config) error {
	dsn, err := databaseURL(cfg)
	if err != nil {
		return err
	}

	slog.Info("applying database schema",
		slog.String("database_url", maskDatabaseURL(dsn)),
	)

	if err := database.ApplySchema(dsn); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database schema applied successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := resty.New().SetTimeout(5 * time.Second)

	resp, err := client.R().
		SetHeader("Accept", "application/json").
		Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}

	return nil
}

// databaseURL はLOCAL_DATABASE_URLの優先とDATABASE_SSL_DISABLEを反映した接続URLを返す。
func databaseURL(cfg *config.Config) (string, error) {
	dsn := cfg.ConnectionURL()
	if !cfg.DatabaseSSLDisable {
		return dsn, nil
	}
	return database.DisableSSL(dsn)
}

// maskDatabaseURL はデータベースURLのパスワードとクエリを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	u.RawQuery = ""
	return u.String()
}

// healthcheckPort はhealthcheckサブコマンドの既定ポートを返す。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
