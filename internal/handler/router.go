package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/coursehub/internal/metrics"
	"github.com/hitoshi/coursehub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.Recorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// コース・レッスン
	CourseService CourseServiceInterface
	LessonService LessonServiceInterface
	Ownership     OwnershipChecker

	// 受講・進捗
	EnrollmentService EnrollmentServiceInterface
	ProgressService   ProgressServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → RealIP → SecurityHeaders → CORS → Auth → Logging → JSONContentType
//
// /api配下にはAPI全般のレート制限、/api/auth配下にはログイン用のレート制限を追加する。
// 認証不要なのは /api/auth/*、/oauth2/*、GET /api/courses、/health、/metrics のみ。
func NewRouter(deps *RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
	r.Use(middleware.NewLoggingMiddleware(log, deps.Metrics))
	r.Use(middleware.NewJSONContentTypeMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	courseHandler := NewCourseHandler(deps.CourseService, deps.Ownership)
	lessonHandler := NewLessonHandler(deps.LessonService, deps.Ownership)
	enrollHandler := NewEnrollmentHandler(deps.EnrollmentService, deps.ProgressService, deps.Ownership)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- OAuthフロー（認証不要） ---
	r.Route("/oauth2", func(r chi.Router) {
		r.Get("/authorization/google", authHandler.OAuthLogin)
		r.Get("/callback/google", authHandler.OAuthCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.LoginMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.Get("/courses", courseHandler.ListCourses)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthentication())

			// ユーザー
			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userHandler.Me)
				r.Put("/", userHandler.UpdateProfile)
				r.Delete("/", userHandler.Withdraw)
			})
			r.Post("/admin/users/{userId}/roles", userHandler.GrantRole)

			// コース
			r.Post("/courses", courseHandler.CreateCourse)
			r.Route("/courses/{courseId}", func(r chi.Router) {
				r.Get("/", courseHandler.GetCourse)
				r.Put("/", courseHandler.UpdateCourse)
				r.Delete("/", courseHandler.DeleteCourse)
				r.Patch("/publish", courseHandler.PublishCourse)

				// レッスン
				r.Route("/lessons", func(r chi.Router) {
					r.Get("/", lessonHandler.ListLessons)
					r.Post("/", lessonHandler.CreateLesson)
					r.Get("/{lessonId}", lessonHandler.GetLesson)
					r.Put("/{lessonId}", lessonHandler.UpdateLesson)
					r.Delete("/{lessonId}", lessonHandler.DeleteLesson)
				})
			})

			// 受講登録
			r.Route("/enrollment/courses", func(r chi.Router) {
				r.Get("/", enrollHandler.ListMyEnrollments)
				r.Post("/{courseId}", enrollHandler.Enroll)
				r.Delete("/{courseId}", enrollHandler.Unenroll)
				r.Get("/{courseId}/students", enrollHandler.ListCourseStudents)
			})

			// 学習進捗
			r.Route("/progress", func(r chi.Router) {
				r.Get("/", enrollHandler.ListMyProgress)
				r.Patch("/lessons/{lessonId}/complete", enrollHandler.MarkLessonCompleted)
				r.Get("/courses/{courseId}", enrollHandler.ListMyProgressInCourse)
				r.Get("/students/{studentId}/courses/{courseId}", enrollHandler.StudentProgressInCourse)
			})
		})
	})

	return r
}
