package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/sundial/internal/repository"
)

// banner は GET / が返す生存確認の文字列。
const banner = "🌤"

// defaultHealthTimeout はDB疎通確認のタイムアウト。
const defaultHealthTimeout = 3 * time.Second

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler は生存確認とDB疎通確認のハンドラー。
type HealthHandler struct {
	checker repository.HealthChecker
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerを生成する。checkerがnilの場合はDB確認を省略する。
func NewHealthHandler(checker repository.HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		timeout: defaultHealthTimeout,
	}
}

// Banner は固定の文字列を返す。
// GET /
func (h *HealthHandler) Banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(banner))
}

// Health はDBへの疎通を確認し、成功時は200、失敗時は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "skipped"}
	status := http.StatusOK

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		if err := h.checker.PingContext(ctx); err != nil {
			slog.Warn("health check failed",
				slog.String("error", err.Error()),
			)
			resp = healthResponse{Status: "unavailable", Database: "unreachable"}
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
