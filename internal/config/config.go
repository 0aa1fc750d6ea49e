package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	LocalDatabaseURL   string `envconfig:"LOCAL_DATABASE_URL"`
	DatabaseSSLDisable bool   `envconfig:"DATABASE_SSL_DISABLE" default:"false"`
	DBMaxOpenConns     int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns     int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`

	// Identity
	GoogleClientID  string   `envconfig:"GOOGLE_CLIENT_ID" required:"true"`
	IdentityJWKSURL string   `envconfig:"IDENTITY_JWKS_URL"`
	IdentityIssuers []string `envconfig:"IDENTITY_ISSUER"`

	// Timeouts
	VerifyTimeout time.Duration `envconfig:"VERIFY_TIMEOUT" default:"5s"`
	QueryTimeout  time.Duration `envconfig:"QUERY_TIMEOUT" default:"5s"`

	// Server
	ServerPort        string `envconfig:"SERVER_PORT" default:"8080"`
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"*"`

	// Logging
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	DebugRequestLog   bool   `envconfig:"DEBUG_REQUEST_LOG" default:"false"`
	ExposeErrorDetail bool   `envconfig:"EXPOSE_ERROR_DETAIL" default:"false"`
}

// logLevels はLOG_LEVELに指定できる値。
var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate は必須値と値の範囲を確認する。
// 空文字で設定された必須変数もここで検出する。
func (c *Config) Validate() error {
	var missing []string
	if c.ConnectionURL() == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	var invalid []string

	if c.VerifyTimeout <= 0 {
		invalid = append(invalid, "VERIFY_TIMEOUT")
	}
	if c.QueryTimeout <= 0 {
		invalid = append(invalid, "QUERY_TIMEOUT")
	}
	if c.DBMaxOpenConns <= 0 {
		invalid = append(invalid, "DB_MAX_OPEN_CONNS")
	}
	if c.DBMaxIdleConns < 0 {
		invalid = append(invalid, "DB_MAX_IDLE_CONNS")
	}
	if c.ServerPort == "" {
		invalid = append(invalid, "SERVER_PORT")
	}
	if !logLevels[c.LogLevel] {
		invalid = append(invalid, "LOG_LEVEL")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

// ConnectionURL は接続に使うデータベースURLを返す。
// LOCAL_DATABASE_URLが設定されている場合はDATABASE_URLより優先する。
func (c *Config) ConnectionURL() string {
	if c.LocalDatabaseURL != "" {
		return c.LocalDatabaseURL
	}
	return c.DatabaseURL
}

// UsesJWKS はGoogle以外のIdP（ローカル検証用など）の鍵セットで検証するかを返す。
func (c *Config) UsesJWKS() bool {
	return c.IdentityJWKSURL != ""
}
