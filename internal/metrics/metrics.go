// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証・チャット・履歴の各サービス層から利用する。
type MetricsCollector interface {
	RecordAuthAttempt(outcome string)
	RecordChatRequest(outcome string)
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordLedgerFailure(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	chatRequests    *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	ledgerFailures  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naradmuni_auth_attempts_total",
			Help: "IDトークンによるログイン試行数（結果別）",
		}, []string{"outcome"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naradmuni_chat_requests_total",
			Help: "チャットリクエスト数（結果別）",
		}, []string{"outcome"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naradmuni_upstream_status_total",
			Help: "補完APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "naradmuni_upstream_latency_seconds",
			Help:    "補完API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naradmuni_ledger_failures_total",
			Help: "チャット履歴ストレージ操作の失敗数（握りつぶした件数）",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.chatRequests,
		c.upstreamStatus,
		c.upstreamLatency,
		c.ledgerFailures,
	)

	return c
}

// RecordAuthAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(outcome string) {
	c.authAttempts.WithLabelValues(outcome).Inc()
}

// RecordChatRequest はチャットリクエストの結果を記録する。
func (c *Collector) RecordChatRequest(outcome string) {
	c.chatRequests.WithLabelValues(outcome).Inc()
}

// RecordUpstreamStatus は補完APIのHTTPステータスコードを記録する。
// ネットワークエラーでレスポンスが無い場合は0を渡す。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は補完API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordLedgerFailure は履歴ストレージ操作の失敗を記録する。
func (c *Collector) RecordLedgerFailure(operation string) {
	c.ledgerFailures.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordAuthAttempt(string)            {}
func (NopCollector) RecordChatRequest(string)            {}
func (NopCollector) RecordUpstreamStatus(int)            {}
func (NopCollector) RecordUpstreamLatency(time.Duration) {}
func (NopCollector) RecordLedgerFailure(string)          {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
