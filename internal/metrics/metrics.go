// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// ミドルウェアやサービス層から利用する。
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
	RecordAuthAttempt(method, outcome string)
	RecordEnrollment(action string)
	RecordLessonCompleted()
	RecordCourseCompleted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
	authAttempts    *prometheus.CounterVec
	enrollments     *prometheus.CounterVec
	lessonsDone     prometheus.Counter
	coursesDone     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursehub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_auth_attempts_total",
			Help: "認証方式と結果別の認証試行数",
		}, []string{"method", "outcome"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_enrollment_changes_total",
			Help: "受講登録・解除の合計数",
		}, []string{"action"}),
		lessonsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_lessons_completed_total",
			Help: "新たに完了したレッスンの合計数",
		}),
		coursesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_courses_completed_total",
			Help: "全レッスンを完了した受講の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestDuration,
		c.authAttempts,
		c.enrollments,
		c.lessonsDone,
		c.coursesDone,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行を記録する。
// methodはpassword, oauth, register、outcomeはsuccess, failure, rejectedのいずれか。
func (c *Collector) RecordAuthAttempt(method, outcome string) {
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordEnrollment は受講登録の変更を記録する。actionはenrollまたはunenroll。
func (c *Collector) RecordEnrollment(action string) {
	c.enrollments.WithLabelValues(action).Inc()
}

// RecordLessonCompleted はレッスン完了を記録する。
func (c *Collector) RecordLessonCompleted() {
	c.lessonsDone.Inc()
}

// RecordCourseCompleted はコース修了を記録する。
func (c *Collector) RecordCourseCompleted() {
	c.coursesDone.Inc()
}

var _ Recorder = (*Collector)(nil)

// NopRecorder は何も記録しないRecorder。テストやメトリクス無効時に使う。
type NopRecorder struct{}

func (NopRecorder) RecordHTTPStatus(int)                {}
func (NopRecorder) RecordRequestDuration(time.Duration) {}
func (NopRecorder) RecordAuthAttempt(string, string)    {}
func (NopRecorder) RecordEnrollment(string)             {}
func (NopRecorder) RecordLessonCompleted()              {}
func (NopRecorder) RecordCourseCompleted()              {}

var _ Recorder = NopRecorder{}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
