package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sundial/internal/metrics"
	"github.com/hitoshi/sundial/internal/model"
)

// UserResolver はsubject識別子から内部ユーザーを解決する。
// user.Directoryが実装する。
type UserResolver interface {
	Resolve(ctx context.Context, subjectID string, metadata json.RawMessage) (*model.User, error)
}

// GateConfig は認証ゲートの設定。
type GateConfig struct {
	// VerifyTimeout はトークン検証1回に許す時間。0の場合はタイムアウトを設けない。
	VerifyTimeout time.Duration
}

// Gate はトークンの検証とユーザー解決をまとめ、呼び出し元の内部ユーザーIDを確定する。
// 結果はキャッシュせず、呼び出しのたびに検証する。
type Gate struct {
	verifier Verifier
	users    UserResolver
	config   GateConfig
	metrics  metrics.MetricsCollector
}

// NewGate はGateを生成する。collectorはnilでもよい。
func NewGate(verifier Verifier, users UserResolver, config GateConfig, collector metrics.MetricsCollector) *Gate {
	return &Gate{
		verifier: verifier,
		users:    users,
		config:   config,
		metrics:  collector,
	}
}

// Authenticate はトークンを検証し、呼び出し元の内部ユーザーIDを返す。
// 未登録のsubjectの場合はユーザーを作成する。
// 失敗はすべてmodel.ErrUnauthenticatedをラップして返す。
func (g *Gate) Authenticate(ctx context.Context, token string) (int64, error) {
	user, err := g.authenticate(ctx, token, nil)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Login はAuthenticateと同じ手順でユーザーを解決し、ユーザーレコード全体を返す。
// metadataは初回ログイン時のみ保存される。
func (g *Gate) Login(ctx context.Context, token string, metadata json.RawMessage) (*model.User, error) {
	return g.authenticate(ctx, token, metadata)
}

func (g *Gate) authenticate(ctx context.Context, token string, metadata json.RawMessage) (*model.User, error) {
	if token == "" {
		return nil, fmt.Errorf("token is missing: %w", model.ErrUnauthenticated)
	}

	subject, err := g.verify(ctx, token)
	if err != nil {
		slog.Warn("token verification failed",
			slog.String("error", err.Error()),
		)
		g.recordFailure(metrics.AuthStageVerify)
		return nil, fmt.Errorf("%w: %w", model.ErrUnauthenticated, err)
	}

	user, err := g.users.Resolve(ctx, subject, metadata)
	if err != nil {
		slog.Error("failed to resolve user",
			slog.String("error", err.Error()),
		)
		g.recordFailure(metrics.AuthStageResolve)
		return nil, fmt.Errorf("%w: %w", model.ErrUnauthenticated, err)
	}

	if g.metrics != nil {
		g.metrics.RecordAuthSuccess()
	}
	return user, nil
}

func (g *Gate) verify(ctx context.Context, token string) (string, error) {
	if g.config.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.VerifyTimeout)
		defer cancel()
	}

	start := time.Now()
	subject, err := g.verifier.Verify(ctx, token)
	if g.metrics != nil {
		g.metrics.RecordVerifyLatency(time.Since(start))
	}
	return subject, err
}

func (g *Gate) recordFailure(stage string) {
	if g.metrics != nil {
		g.metrics.RecordAuthFailure(stage)
	}
}
