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
// adapter.FetchRecorder、news.Recorder、ミドルウェアの記録先を兼ねる。
type Collector struct {
	newsRequests    *prometheus.CounterVec
	cacheResults    *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		newsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_news_requests_total",
			Help: "カテゴリ・結果別のニュース取得リクエスト数",
		}, []string{"category", "outcome"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_cache_results_total",
			Help: "カテゴリ別のキャッシュヒット・ミス数",
		}, []string{"category", "result"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_upstream_status_total",
			Help: "上流・HTTPステータスコード別のレスポンス数（通信失敗は0）",
		}, []string{"upstream", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_upstream_latency_seconds",
			Help:    "上流フェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_rate_limited_total",
			Help: "レート制限で拒否したリクエストの合計数",
		}),
	}

	reg.MustRegister(
		c.newsRequests,
		c.cacheResults,
		c.upstreamStatus,
		c.upstreamLatency,
		c.httpStatus,
		c.rateLimited,
	)

	return c
}

// RecordNewsRequest はニュース取得の結果を記録する。
func (c *Collector) RecordNewsRequest(category string, outcome string) {
	c.newsRequests.WithLabelValues(category, outcome).Inc()
}

// RecordCacheResult はキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheResult(category string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheResults.WithLabelValues(category, result).Inc()
}

// RecordUpstreamStatus は上流のHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(upstream string, statusCode int) {
	c.upstreamStatus.WithLabelValues(upstream, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流フェッチのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(upstream string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordHTTPStatus はプロキシが返したHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
