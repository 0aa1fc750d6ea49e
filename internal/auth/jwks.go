package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sundial/internal/metrics"
	"github.com/hitoshi/sundial/internal/model"
)

// JWKSConfig はJWKSVerifierの設定。
type JWKSConfig struct {
	// KeySetURL はJSON Web Key Setの取得先。
	KeySetURL string

	// Audience はトークンのaudクレームに含まれるべき値。
	Audience string

	// Issuers は許可するissクレームの値。空の場合はissを検証しない。
	Issuers []string

	// RefreshInterval は鍵セットを定期的に再取得する間隔。
	RefreshInterval time.Duration

	// MinRefreshInterval は未知のkidによる鍵再取得の最小間隔。
	// 定期再取得とは別枠で数える。
	MinRefreshInterval time.Duration

	// HTTPTimeout は鍵取得リクエストのタイムアウト。
	// 未知のkidで再取得枠を待つ上限も兼ねる。
	HTTPTimeout time.Duration
}

// JWKSVerifier はJWKSで公開された鍵を使ってRS256署名のIDトークンを検証する。
// ローカルのIdPエミュレータやテスト環境で使う。
type JWKSVerifier struct {
	keyfunc keyfunc.Keyfunc
	config  JWKSConfig
}

// NewJWKSVerifier はJWKSVerifierを生成する。
// 鍵セットは生成時に一度取得を試み、以降はctxが終了するまでバックグラウンドで更新する。
// 初回取得に失敗してもエラーにはせず、検証時の再取得に任せる。collectorはnilでもよい。
func NewJWKSVerifier(ctx context.Context, config JWKSConfig, collector metrics.MetricsCollector) (*JWKSVerifier, error) {
	if config.KeySetURL == "" {
		return nil, errors.New("key set URL is required")
	}
	if config.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 15 * time.Minute
	}
	if config.MinRefreshInterval <= 0 {
		config.MinRefreshInterval = time.Minute
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = 5 * time.Second
	}

	keySetURL, err := url.Parse(config.KeySetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set URL: %w", err)
	}

	remote, err := jwkset.NewStorageFromHTTP(keySetURL, jwkset.HTTPClientStorageOptions{
		Client: &http.Client{
			Transport: &refreshRecorder{next: http.DefaultTransport, metrics: collector},
		},
		Ctx:                       ctx,
		HTTPTimeout:               config.HTTPTimeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           config.RefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			slog.WarnContext(ctx, "failed to refresh key set",
				slog.String("url", config.KeySetURL),
				slog.String("error", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key set storage: %w", err)
	}

	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{config.KeySetURL: remote},
		RefreshUnknownKID: rate.NewLimiter(rate.Every(config.MinRefreshInterval), 1),
		RateLimitWaitMax:  config.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key set client: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:          ctx,
		Storage:      storage,
		UseWhitelist: []jwkset.USE{jwkset.UseSig},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	return &JWKSVerifier{
		keyfunc: kf,
		config:  config,
	}, nil
}

// Verify はトークンの署名・有効期限・audience・issuerを検証し、subクレームを返す。
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", model.ErrVerificationFailed)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		v.keyfunc.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrVerificationFailed, err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("%w: token is not valid", model.ErrVerificationFailed)
	}

	if len(v.config.Issuers) > 0 && !slices.Contains(v.config.Issuers, claims.Issuer) {
		return "", fmt.Errorf("%w: unexpected issuer %q", model.ErrVerificationFailed, claims.Issuer)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", model.ErrVerificationFailed)
	}

	return claims.Subject, nil
}

// refreshRecorder は鍵セット取得の成否をメトリクスに記録する。
type refreshRecorder struct {
	next    http.RoundTripper
	metrics metrics.MetricsCollector
}

func (r *refreshRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if r.metrics != nil {
		r.metrics.RecordKeySetRefresh(err == nil && resp.StatusCode == http.StatusOK)
	}
	return resp, err
}

// compile-time interface check
var _ Verifier = (*JWKSVerifier)(nil)
