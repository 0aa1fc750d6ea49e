// Package response は全ての外向き結果に共通する成功・失敗エンベロープを提供する。
package response

import (
	"errors"

	"github.com/hitoshi/sundial/internal/model"
)

// Kind は失敗エンベロープの分類を表す。
// JSONには出力せず、境界層がHTTPステータスへのマッピングに使う。
type Kind int

const (
	// KindNone は成功を表す。
	KindNone Kind = iota
	// KindInvalidParameters は入力不備。
	KindInvalidParameters
	// KindUnauthenticated は未認証。
	KindUnauthenticated
	// KindNotFoundOrForbidden は対象が存在しないか所有者でない。
	KindNotFoundOrForbidden
	// KindInternal は内部エラー（ストア障害など）。
	KindInternal
)

// String はKindの名前を返す。メトリクスのラベルに使う。
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindInvalidParameters:
		return "invalid_parameters"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFoundOrForbidden:
		return "not_found_or_forbidden"
	default:
		return "internal"
	}
}

// Envelope は成功・失敗を統一した形で包むレスポンス。
// 成功時は {success:true, message, data}、失敗時は {success:false, message, error} となる。
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`

	Kind Kind `json:"-"`
}

// OK は成功エンベロープを生成する。
func OK(message string, data any) Envelope {
	return Envelope{
		Success: true,
		Message: message,
		Data:    data,
		Kind:    KindNone,
	}
}

// Fail は失敗エンベロープを生成する。
// errorフィールドは常にnullで、診断情報を付ける場合はWithDetailを使う。
func Fail(message string, kind Kind) Envelope {
	return Envelope{
		Success: false,
		Message: message,
		Kind:    kind,
	}
}

// WithDetail は失敗エンベロープのerrorフィールドにerrの文字列を設定したコピーを返す。
// 成功エンベロープまたはerrがnilの場合はそのまま返す。
func (e Envelope) WithDetail(err error) Envelope {
	if e.Success || err == nil {
		return e
	}
	e.Error = err.Error()
	return e
}

// KindOf はエラーチェーンから対応するKindを判定する。
// 認証ゲートの失敗は下位のエラーを含んでいても未認証として扱う。
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, model.ErrUnauthenticated), errors.Is(err, model.ErrVerificationFailed):
		return KindUnauthenticated
	case errors.Is(err, model.ErrInvalidParameters):
		return KindInvalidParameters
	case errors.Is(err, model.ErrNotFoundOrForbidden):
		return KindNotFoundOrForbidden
	default:
		return KindInternal
	}
}
