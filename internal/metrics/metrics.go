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
	RecordUserRegistered()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordPostCreated()
	RecordLikeAdded()
	RecordCommentAdded()
	RecordImageUploaded(kind string)
	RecordFriendRequestSent()
	RecordFriendRequestResolved(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	usersRegistered prometheus.Counter
	loginSuccess    prometheus.Counter
	loginFail       prometheus.Counter
	postsCreated    prometheus.Counter
	likesAdded      prometheus.Counter
	commentsAdded   prometheus.Counter
	imagesUploaded  *prometheus.CounterVec
	friendRequests  prometheus.Counter
	friendResolved  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_users_registered_total",
			Help: "ユーザー登録の合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		likesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_likes_added_total",
			Help: "追加されたいいねの合計数",
		}),
		commentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_comments_added_total",
			Help: "追加されたコメントの合計数",
		}),
		imagesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellme_images_uploaded_total",
			Help: "アップロードされた画像の種別ごとの合計数",
		}, []string{"kind"}),
		friendRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tellme_friend_requests_sent_total",
			Help: "送信された友達リクエストの合計数",
		}),
		friendResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellme_friend_requests_resolved_total",
			Help: "承認・拒否された友達リクエストの結果別の合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellme_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tellme_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.usersRegistered,
		c.loginSuccess,
		c.loginFail,
		c.postsCreated,
		c.likesAdded,
		c.commentsAdded,
		c.imagesUploaded,
		c.friendRequests,
		c.friendResolved,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordUserRegistered はユーザー登録を記録する。
func (c *Collector) RecordUserRegistered() {
	c.usersRegistered.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordPostCreated は投稿の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordLikeAdded はいいねの追加を記録する。
func (c *Collector) RecordLikeAdded() {
	c.likesAdded.Inc()
}

// RecordCommentAdded はコメントの追加を記録する。
func (c *Collector) RecordCommentAdded() {
	c.commentsAdded.Inc()
}

// RecordImageUploaded は画像アップロードを種別（post, avatar）つきで記録する。
func (c *Collector) RecordImageUploaded(kind string) {
	c.imagesUploaded.WithLabelValues(kind).Inc()
}

// RecordFriendRequestSent は友達リクエスト送信を記録する。
func (c *Collector) RecordFriendRequestSent() {
	c.friendRequests.Inc()
}

// RecordFriendRequestResolved は友達リクエストの結果（accepted, rejected）を記録する。
func (c *Collector) RecordFriendRequestResolved(outcome string) {
	c.friendResolved.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
