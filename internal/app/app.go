// Package app はアプリケーションの起動と依存関係のワイヤリングを担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tellme/internal/auth"
	"github.com/hitoshi/tellme/internal/config"
	"github.com/hitoshi/tellme/internal/database"
	"github.com/hitoshi/tellme/internal/friend"
	"github.com/hitoshi/tellme/internal/handler"
	"github.com/hitoshi/tellme/internal/logger"
	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/middleware"
	"github.com/hitoshi/tellme/internal/post"
	"github.com/hitoshi/tellme/internal/repository"
	"github.com/hitoshi/tellme/internal/security"
	"github.com/hitoshi/tellme/internal/upload"
	"github.com/hitoshi/tellme/internal/user"
	"github.com/hitoshi/tellme/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// tokenVerifier はJWT検証を認証ミドルウェアに適合させる。
type tokenVerifier struct {
	secret []byte
}

func (v *tokenVerifier) Verify(tokenString string) (string, error) {
	return auth.VerifyToken(tokenString, v.secret)
}

// userExists はUserRepositoryを認証ミドルウェアのUserFinderに適合させる。
type userExists struct {
	users repository.UserRepository
}

func (f *userExists) Exists(ctx context.Context, userID string) (bool, error) {
	u, err := f.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 3. セキュリティサービスと画像ストアの初期化
	sanitizer := security.NewContentSanitizer()
	ssrfGuard := security.NewSSRFGuard()

	uploads, err := upload.NewStore(cfg.UploadDir, cfg.MaxImageBytes)
	if err != nil {
		return fmt.Errorf("failed to create upload store: %w", err)
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sanitizer, collector, auth.ServiceConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})
	postService := post.NewService(postRepo, userRepo, sanitizer, uploads, collector)
	userService := user.NewService(userRepo, postRepo, sanitizer, ssrfGuard, uploads, collector)

	// 6. 友達エンジンの初期化（永続化はPostgres単一行ストア）
	engine := friend.NewEngine(friend.NewPostgresStore(db))
	unsubscribe := engine.Subscribe(func(ev friend.Event) {
		slog.Info("friend state changed",
			slog.String("event", string(ev.Type)),
			slog.String("request_id", ev.RequestID),
			slog.String("users", strings.Join(ev.UserIDs, ",")),
		)
	})
	defer unsubscribe()

	// 7. レート制限の初期化
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromPerMinute(cfg.RateLimitGeneral, cfg.RateLimitPostCreate),
	)
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		TokenVerifier:     &tokenVerifier{secret: []byte(cfg.JWTSecret)},
		UserFinder:        &userExists{users: userRepo},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:  authService,
		PostService:  postService,
		UserService:  userService,
		FriendEngine: engine,
		UserDir:      userRepo,

		Collector:       collector,
		MetricsGatherer: registry,
		HealthCheck:     db.PingContext,
		UploadDir:       uploads.Dir(),
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
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

	version, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to verify migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runCleanup は孤児化したアップロード画像の削除ジョブを一回実行する。
func runCleanup(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	uploads, err := upload.NewStore(cfg.UploadDir, cfg.MaxImageBytes)
	if err != nil {
		return fmt.Errorf("failed to create upload store: %w", err)
	}

	job := cleanup.NewOrphanJob(cleanup.NewDatabaseReferences(db), uploads.Dir(), slog.Default())
	return job.Run(context.Background())
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
