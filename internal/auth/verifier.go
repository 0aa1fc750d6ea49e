// Package auth はIDトークンの検証と、トークンから内部ユーザーを解決する認証ゲートを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/hitoshi/sundial/internal/model"
)

// Verifier はIdPが発行したトークンを検証し、subject識別子を返す。
// 失敗はすべてmodel.ErrVerificationFailedをラップして返す。
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// tokenValidator はidtoken.Validatorのうち利用するメソッドだけを切り出したもの。
type tokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleIDTokenVerifier はGoogleのIDトークンを検証する。
// 署名・有効期限・発行者・audienceの検証はidtokenパッケージに委ねる。
type GoogleIDTokenVerifier struct {
	audience  string
	validator tokenValidator
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
// audienceにはGoogle OAuthクライアントIDを指定する。
// 公開鍵の取得にはhttpClientを使う。
func NewGoogleIDTokenVerifier(ctx context.Context, audience string, httpClient *http.Client) (*GoogleIDTokenVerifier, error) {
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}

	return &GoogleIDTokenVerifier{
		audience:  audience,
		validator: validator,
	}, nil
}

// Verify はトークンを検証し、subクレームを返す。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", model.ErrVerificationFailed)
	}

	payload, err := v.validator.Validate(ctx, token, v.audience)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrVerificationFailed, err)
	}
	if payload.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", model.ErrVerificationFailed)
	}

	return payload.Subject, nil
}

// compile-time interface check
var _ Verifier = (*GoogleIDTokenVerifier)(nil)
