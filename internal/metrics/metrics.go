// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証失敗の発生箇所を表すラベル値。
const (
	AuthStageVerify  = "verify"
	AuthStageResolve = "resolve"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証ゲート、操作層、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthSuccess()
	RecordAuthFailure(stage string)
	RecordVerifyLatency(duration time.Duration)
	RecordOperation(operation, outcome string)
	RecordHTTPStatus(statusCode int)
	RecordKeySetRefresh(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authSuccess   prometheus.Counter
	authFail      *prometheus.CounterVec
	verifyLatency prometheus.Histogram
	operations    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	keySetRefresh *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sundial_auth_success_total",
			Help: "トークン認証成功の合計数",
		}),
		authFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundial_auth_fail_total",
			Help: "トークン認証失敗の合計数（発生箇所別）",
		}, []string{"stage"}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sundial_verify_latency_seconds",
			Help:    "IDトークン検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundial_operations_total",
			Help: "操作別・結果別の処理数",
		}, []string{"operation", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundial_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		keySetRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundial_keyset_refresh_total",
			Help: "JWKS再取得の回数（結果別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.authSuccess,
		c.authFail,
		c.verifyLatency,
		c.operations,
		c.httpStatus,
		c.keySetRefresh,
	)

	return c
}

// RecordAuthSuccess は認証成功を記録する。
func (c *Collector) RecordAuthSuccess() {
	c.authSuccess.Inc()
}

// RecordAuthFailure は認証失敗を発生箇所付きで記録する。
func (c *Collector) RecordAuthFailure(stage string) {
	c.authFail.WithLabelValues(stage).Inc()
}

// RecordVerifyLatency はIDトークン検証のレイテンシを記録する。
func (c *Collector) RecordVerifyLatency(duration time.Duration) {
	c.verifyLatency.Observe(duration.Seconds())
}

// RecordOperation は操作の結果を記録する。outcomeにはエラー種別名を渡す。
func (c *Collector) RecordOperation(operation, outcome string) {
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordKeySetRefresh はJWKS再取得の結果を記録する。
func (c *Collector) RecordKeySetRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.keySetRefresh.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
