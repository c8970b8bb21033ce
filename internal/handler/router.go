package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tellme/internal/metrics"
	"github.com/hitoshi/tellme/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService  AuthServiceInterface
	PostService  PostServiceInterface
	UserService  UserServiceInterface
	FriendEngine FriendEngineInterface
	UserDir      UserDirectory

	// 運用系
	Collector       metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
	HealthCheck     func(ctx context.Context) error
	UploadDir       string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → SecurityHeaders → Logging → Metrics
//
// 認証ルート（/api/auth/register, /api/auth/login）、/health、/metrics、
// /uploads/* は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService)
	postHandler := NewPostHandler(deps.PostService)
	userHandler := NewUserHandler(deps.UserService)
	friendHandler := NewFriendHandler(deps.FriendEngine, deps.UserDir, deps.Collector)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Get("/health", newHealthHandler(deps.HealthCheck))

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// 保存済み画像の静的配信
	if deps.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// 投稿
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			// POST /api/posts - 投稿作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.PostCreationMiddleware()).Post("/", postHandler.CreatePost)

			r.Get("/me", postHandler.ListMyPosts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Post("/like", postHandler.LikePost)
				r.Post("/comment", postHandler.CommentPost)
			})
		})

		// プロフィール
		r.Route("/api/users/me", func(r chi.Router) {
			r.Put("/", userHandler.UpdateProfile)
			r.Get("/stats", userHandler.Stats)
			r.Post("/avatar", userHandler.UploadAvatar)
			r.Post("/avatar-base64", userHandler.UploadAvatarBase64)
			r.Post("/avatar-url", userHandler.UploadAvatarFromURL)
		})

		// 友達
		r.Route("/api/friends", func(r chi.Router) {
			r.Get("/", friendHandler.ListFriends)
			r.Get("/requests", friendHandler.ListRequests)
			r.Get("/suggestions", friendHandler.Suggestions)
			r.Post("/request/{userId}", friendHandler.SendRequest)
			r.Post("/accept/{requestId}", friendHandler.AcceptRequest)
			r.Post("/reject/{requestId}", friendHandler.RejectRequest)
			r.Delete("/{friendId}", friendHandler.RemoveFriend)
		})
	})

	return r
}

// newHealthHandler は死活確認エンドポイントのハンドラーを返す。
// checkが設定されている場合はDB接続なども確認する。
func newHealthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
