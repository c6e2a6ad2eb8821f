// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// apiclient.Recorder、session.Recorder、guard.Recorder を満たす。
type Collector struct {
	apiRequests      *prometheus.CounterVec
	apiLatency       *prometheus.HistogramVec
	invalidations    prometheus.Counter
	guardRedirects   prometheus.Counter
	activeSessions   prometheus.Gauge
	authorized       prometheus.Gauge
	credentialsSwept prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultadmin_api_requests_total",
			Help: "バックエンドAPI呼び出しの合計数（メソッド・ステータス別、0はトランスポートエラー）",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resultadmin_api_request_duration_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultadmin_credential_invalidations_total",
			Help: "401応答によるトークン破棄の合計数",
		}),
		guardRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultadmin_guard_redirects_total",
			Help: "未認証による保護領域からのリダイレクトの合計数",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resultadmin_active_sessions",
			Help: "メモリ上に保持しているセッションの数",
		}),
		authorized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resultadmin_authorized_sessions",
			Help: "メモリ上に保持しているセッションのうちトークンを持つものの数",
		}),
		credentialsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultadmin_credentials_swept_total",
			Help: "クリーンアップジョブが削除した古いトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.invalidations,
		c.guardRedirects,
		c.activeSessions,
		c.authorized,
		c.credentialsSwept,
	)

	return c
}

// RecordAPIRequest はAPI呼び出しの件数とレイテンシを記録する。
func (c *Collector) RecordAPIRequest(method string, status int, duration time.Duration) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCredentialInvalidation は401によるトークン破棄を記録する。
func (c *Collector) RecordCredentialInvalidation() {
	c.invalidations.Inc()
}

// RecordGuardRedirect はガードによるリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect() {
	c.guardRedirects.Inc()
}

// SetActiveSessions は保持中のセッション数を設定する。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// SetAuthorizedSessions は認証済みセッション数を設定する。
func (c *Collector) SetAuthorizedSessions(n int) {
	c.authorized.Set(float64(n))
}

// RecordCredentialsSwept はクリーンアップで削除したトークン数を記録する。
func (c *Collector) RecordCredentialsSwept(count int64) {
	c.credentialsSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
