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
// サービス層から利用する。
type MetricsCollector interface {
	RecordPostCreated()
	RecordPostDeleted()
	RecordRateLimited()
	RecordFeedQuery(duration time.Duration)
	RecordAuthorJoinFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsCreated      prometheus.Counter
	postsDeleted      prometheus.Counter
	rateLimited       prometheus.Counter
	feedQueryLatency  prometheus.Histogram
	authorJoinFailure prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_posts_deleted_total",
			Help: "削除された投稿の合計数",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_rate_limited_total",
			Help: "レート制限で拒否された書き込みの合計数",
		}),
		feedQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chirp_feed_query_latency_seconds",
			Help:    "フィードページクエリのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authorJoinFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_author_join_failure_total",
			Help: "著者プロフィールの解決に失敗した投稿の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.postsDeleted,
		c.rateLimited,
		c.feedQueryLatency,
		c.authorJoinFailure,
		c.httpStatus,
	)

	return c
}

// RecordPostCreated は投稿の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostDeleted は投稿の削除を記録する。
func (c *Collector) RecordPostDeleted() {
	c.postsDeleted.Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordFeedQuery はフィードページクエリのレイテンシを記録する。
func (c *Collector) RecordFeedQuery(duration time.Duration) {
	c.feedQueryLatency.Observe(duration.Seconds())
}

// RecordAuthorJoinFailure は著者プロフィールの解決失敗を記録する。
func (c *Collector) RecordAuthorJoinFailure() {
	c.authorJoinFailure.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// ルーターが/metricsパスにマウントする。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
