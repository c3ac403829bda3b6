package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/coursehub/internal/logger"
	"github.com/hitoshi/coursehub/internal/metrics"
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

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力し、
// ステータスコードと処理時間をメトリクスに記録するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user（認証済みの場合）を含む。
// 後続のハンドラーにはrequest_id付きのロガーをコンテキスト経由で渡す。
func NewLoggingMiddleware(base *slog.Logger, recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := base
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				reqLogger = base.With(slog.String("request_id", reqID))
			}
			r = r.WithContext(logger.WithContext(r.Context(), reqLogger))

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			recorder.RecordHTTPStatus(rec.statusCode)
			recorder.RecordRequestDuration(duration)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}

			// 認証済みの場合は主体を追加
			if p := PrincipalFromContext(r.Context()); p.Authenticated() {
				args = append(args, slog.String("user", p.Subject))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			reqLogger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
