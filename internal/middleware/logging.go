package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/sundial/internal/metrics"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id（採番済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				args = append(args, slog.String("request_id", id))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// NewMetricsMiddleware はレスポンスのステータスコードをメトリクスに記録するミドルウェアを返す。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rec, r)
			collector.RecordHTTPStatus(rec.statusCode)
		})
	}
}

// redactedHeaders はリクエストダンプで値を伏せるヘッダー。
var redactedHeaders = []string{TokenHeader, "Authorization", "Cookie"}

// redactedBodyFields はリクエストダンプで値を伏せるJSONボディのフィールド。
var redactedBodyFields = []string{"token"}

// maxDumpBodyBytes はリクエストダンプに含めるボディの最大バイト数。
const maxDumpBodyBytes = 4 << 10

// maxDumpReadBytes はダンプのために先読みするボディの上限。ハンドラーの受付上限に合わせる。
const maxDumpReadBytes = 1 << 20

// NewRequestDumpMiddleware はリクエストのヘッダーとボディをdebugレベルで記録するミドルウェアを返す。
// 認証トークンなどの秘匿ヘッダーとボディのtokenフィールドは値を伏せる。ボディは読み戻して後続に渡す。
// loggerがdebugレベルを出力しない場合はボディを読まずに後続へ渡す。
func NewRequestDumpMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}

			headers := r.Header.Clone()
			for _, h := range redactedHeaders {
				if headers.Get(h) != "" {
					headers.Set(h, "[REDACTED]")
				}
			}

			var body []byte
			if r.Body != nil {
				raw, err := io.ReadAll(io.LimitReader(r.Body, maxDumpReadBytes+1))
				if err != nil {
					slog.Warn("failed to read request body for dump",
						slog.String("error", err.Error()),
					)
				}
				// 読み残しがあれば続けて後続に渡す
				r.Body = readCloser{
					Reader: io.MultiReader(bytes.NewReader(raw), r.Body),
					Closer: r.Body,
				}
				if len(raw) > maxDumpReadBytes {
					// 秘匿フィールドを伏せられないため中身は記録しない
					body = []byte("[TOO LARGE]")
				} else {
					body = redactBody(raw)
				}
				if len(body) > maxDumpBodyBytes {
					body = body[:maxDumpBodyBytes]
				}
			}

			logger.Debug("http_request_dump",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.Any("headers", headers),
				slog.String("body", string(body)),
			)

			next.ServeHTTP(w, r)
		})
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// redactBody はJSONオブジェクトのボディから秘匿フィールドの値を伏せる。
// JSONオブジェクトでない場合はそのまま返す。
func redactBody(raw []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}

	redacted := false
	for _, f := range redactedBodyFields {
		if _, ok := fields[f]; ok {
			fields[f] = json.RawMessage(`"[REDACTED]"`)
			redacted = true
		}
	}
	if !redacted {
		return raw
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}
