package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bloghub/internal/metrics"
	"github.com/hitoshi/bloghub/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	Metrics           metrics.MetricsCollector
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 投稿
	PostService PostServiceInterface
	FeedBaseURL string

	// コメント
	CommentService CommentServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging → (Auth)
//
// Authミドルウェアは保護ルートのグループにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	postHandler := NewPostHandler(deps.PostService, deps.FeedBaseURL)
	commentHandler := NewCommentHandler(deps.CommentService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-up", authHandler.SignUp)
		r.Post("/sign-in", authHandler.SignIn)
		r.Post("/sign-out", authHandler.SignOut)

		// 資格情報が設定されている場合はIdPで確認済みのプロフィールのみを受け付け、
		// リクエストボディのプロフィールを信用するルートは公開しない
		if deps.AuthService.OAuthEnabled() {
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		} else {
			r.Post("/google", authHandler.Google)
		}
	})

	r.Get("/api/comment/get/post/comments/{postId}", commentHandler.GetPostComments)
	r.Get("/api/post/feed", postHandler.Feed)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.Metrics))

		r.Route("/api/user", func(r chi.Router) {
			r.Put("/update/{userId}", userHandler.UpdateUser)
			r.Delete("/delete/{userId}", userHandler.DeleteProfile)
			r.Delete("/delete/user/{userId}", userHandler.DeleteUser)
			r.Get("/get/all/users", userHandler.ListUsers)
			r.Get("/get/user/{userId}", userHandler.GetUser)
		})

		r.Route("/api/post", func(r chi.Router) {
			r.Post("/create-post", postHandler.CreatePost)
			r.Get("/get-posts", postHandler.GetPosts)
			r.Delete("/delete-posts/{postId}/{userId}", postHandler.DeletePost)
			r.Put("/update-posts/{postId}/{userId}", postHandler.UpdatePost)
		})

		r.Route("/api/comment", func(r chi.Router) {
			r.Post("/create", commentHandler.CreateComment)
			r.Get("/like/comment/{commentId}", commentHandler.LikeComment)
			r.Put("/edit/comment/{commentId}", commentHandler.EditComment)
			r.Delete("/delete/comment/{commentId}", commentHandler.DeleteComment)
			r.Get("/get/all/comments", commentHandler.GetComments)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合はプロセスの生存のみを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
