package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sundial/internal/response"
)

// StatusForKind はエンベロープの種別をHTTPステータスコードに対応付ける。
func StatusForKind(kind response.Kind) int {
	switch kind {
	case response.KindNone:
		return http.StatusOK
	case response.KindInvalidParameters:
		return http.StatusBadRequest
	case response.KindUnauthenticated:
		return http.StatusUnauthorized
	case response.KindNotFoundOrForbidden:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteEnvelope はエンベロープをJSONで書き込む。ステータスコードは種別から決める。
// すべてのAPIエンドポイントで一貫したレスポンス形式を提供する。
func WriteEnvelope(w http.ResponseWriter, env response.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForKind(env.Kind))
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は内部エラーの失敗エンベロープを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteEnvelope(w, response.Fail(response.Messages.Internal, response.KindInternal))
}
