package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/coursehub/internal/auth"
	"github.com/hitoshi/coursehub/internal/authz"
	"github.com/hitoshi/coursehub/internal/config"
	"github.com/hitoshi/coursehub/internal/course"
	"github.com/hitoshi/coursehub/internal/database"
	"github.com/hitoshi/coursehub/internal/enrollment"
	"github.com/hitoshi/coursehub/internal/handler"
	"github.com/hitoshi/coursehub/internal/logger"
	"github.com/hitoshi/coursehub/internal/metrics"
	"github.com/hitoshi/coursehub/internal/middleware"
	"github.com/hitoshi/coursehub/internal/repository"
	"github.com/hitoshi/coursehub/internal/security"
	"github.com/hitoshi/coursehub/internal/user"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの猶予時間。
	shutdownTimeout = 30 * time.Second
	// startupPingTimeout は起動時のDB疎通確認のタイムアウト。
	startupPingTimeout = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("oauth_enabled", cfg.OAuthEnabled()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandRollback:
		return runRollback(cfg)
	default:
		return runServe(w, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(w io.Writer, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, startupPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	// 3. 依存関係のワイヤリング
	deps := buildRouterDeps(db, cfg, recorder)
	deps.Logger = logger.Setup(w, logger.ParseLevel(cfg.LogLevel))
	deps.MetricsHandler = metrics.Handler(reg)
	defer deps.RateLimiter.Stop()

	router := handler.NewRouter(deps)

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouterDeps はリポジトリ・サービス・認可をワイヤリングし、ルーターの依存関係を組み立てる。
func buildRouterDeps(db *sql.DB, cfg *config.Config, recorder metrics.Recorder) *handler.RouterDeps {
	// リポジトリ
	txRunner := repository.NewSQLTxRunner(db)
	userRepo := repository.NewPostgresUserRepo(db)
	roleRepo := repository.NewPostgresRoleRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	lessonRepo := repository.NewPostgresLessonRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	progressRepo := repository.NewPostgresProgressRepo(db)

	// 認証
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Expiration: cfg.JWTExpiration,
	})

	var oauthProvider auth.OAuthProvider
	if cfg.OAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	} else {
		slog.Info("google oauth login disabled")
	}

	authService := auth.NewService(auth.ServiceDeps{
		Users:   userRepo,
		Roles:   roleRepo,
		Tx:      txRunner,
		Hasher:  auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens:  tokens,
		OAuth:   oauthProvider,
		Metrics: recorder,
	})

	// ドメインサービス
	userService := user.NewService(userRepo, roleRepo, courseRepo, enrollmentRepo, progressRepo, txRunner)

	courseService := course.NewService(course.ServiceDeps{
		Courses:     courseRepo,
		Lessons:     lessonRepo,
		Enrollments: enrollmentRepo,
		Progress:    progressRepo,
		Users:       userRepo,
		Tx:          txRunner,
		Sanitizer:   security.NewContentSanitizer(),
	})

	enrollmentService := enrollment.NewService(enrollment.ServiceDeps{
		Courses:     courseRepo,
		Lessons:     lessonRepo,
		Enrollments: enrollmentRepo,
		Progress:    progressRepo,
		Users:       userRepo,
		Tx:          txRunner,
		Metrics:     recorder,
	})

	authorizer := authz.NewAuthorizer(courseRepo, userRepo)

	return &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin)),
		Metrics:           recorder,
		HealthChecker:     db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			OAuthRedirectURI: cfg.OAuth2RedirectURI,
			CookieSecure:     cfg.CookieSecure,
		},

		UserService: userService,

		CourseService: courseService,
		LessonService: courseService,
		Ownership:     authorizer,

		EnrollmentService: enrollmentService,
		ProgressService:   enrollmentService,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runRollback は直近のマイグレーションを1つ取り消す。
func runRollback(cfg *config.Config) error {
	slog.Info("rolling back last database migration",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RollbackMigrations(cfg.DatabaseURL, 1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database rollback completed")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
