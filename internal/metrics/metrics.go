// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder はアカウント操作のメトリクス記録インターフェース。
// サービス層とミドルウェアから利用する。
type Recorder interface {
	RecordRegistration()
	RecordLogin(result string)
	RecordResetRequest(result string)
	RecordResetCompletion(result string)
	RecordNotificationFailure()
	RecordHTTPStatus(statusCode int)
	RecordPasswordHash(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations     prometheus.Counter
	logins            *prometheus.CounterVec
	resetRequests     *prometheus.CounterVec
	resetCompletions  *prometheus.CounterVec
	notificationsFail prometheus.Counter
	httpStatus        *prometheus.CounterVec
	passwordHash      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_registrations_total",
			Help: "ユーザー登録成功の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_reset_requests_total",
			Help: "結果別のパスワードリセット要求数",
		}, []string{"result"}),
		resetCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_reset_completions_total",
			Help: "結果別のパスワードリセット完了数",
		}, []string{"result"}),
		notificationsFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_notifications_failed_total",
			Help: "リセット通知の送信失敗数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		// bcryptのコスト10前後を想定したバケット
		passwordHash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountd_password_hash_seconds",
			Help:    "パスワードハッシュ計算時間（秒）",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.resetRequests,
		c.resetCompletions,
		c.notificationsFail,
		c.httpStatus,
		c.passwordHash,
	)

	return c
}

// RecordRegistration はユーザー登録の成功を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordResetRequest はリセット要求の結果を記録する。
func (c *Collector) RecordResetRequest(result string) {
	c.resetRequests.WithLabelValues(result).Inc()
}

// RecordResetCompletion はリセット完了の結果を記録する。
func (c *Collector) RecordResetCompletion(result string) {
	c.resetCompletions.WithLabelValues(result).Inc()
}

func (c *Collector) RecordNotificationFailure() {
	c.notificationsFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPasswordHash はパスワードハッシュ計算の所要時間を記録する。
func (c *Collector) RecordPasswordHash(duration time.Duration) {
	c.passwordHash.Observe(duration.Seconds())
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordRegistration() {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordResetRequest(string) {}
func (Nop) RecordResetCompletion(string) {}
func (Nop) RecordNotificationFailure() {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordPasswordHash(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
