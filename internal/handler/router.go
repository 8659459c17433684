package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chirp/internal/identity"
	"github.com/hitoshi/chirp/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// リクエストログ出力先（nilの場合はslog.Default()）
	Logger *slog.Logger

	// ステータスコードメトリクス（nilの場合は記録しない）
	StatusMetrics middleware.HTTPStatusRecorder

	// フィード読み取り
	FeedService FeedServiceInterface

	// 投稿の書き込み
	PostService PostServiceInterface

	// 著者プロフィール
	ProfileFetcher identity.ProfileFetcher

	// ヘルスチェック（nilの場合は200を返す既定ハンドラー）
	Health http.HandlerFunc

	// Prometheusスクレイプ用ハンドラー（nilの場合は公開しない）
	Metrics http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → StatusMetrics → SecurityHeaders → CORS
//	→ (認証ルートのみ) Session → CSRF → RateLimit(General)
//
// フィードの読み取りとプロフィール参照は認証不要。書き込みは認証必須。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	postHandler := NewPostHandler(deps.FeedService, deps.PostService)
	profileHandler := NewProfileHandler(deps.ProfileFetcher)

	// --- 認証不要のルート ---

	health := deps.Health
	if health == nil {
		health = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
	}
	r.Get("/health", health)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// フィード読み取り
	r.Get("/api/posts", postHandler.GetAllPosts)
	r.Get("/api/posts/{id}", postHandler.GetPost)
	r.Get("/api/users/{id}/posts", postHandler.GetPostsByUser)

	// プロフィール参照
	r.Get("/api/profiles/{username}", profileHandler.GetByUsername)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/posts", postHandler.CreatePost)
		r.Patch("/api/posts/{id}", postHandler.UpdatePost)
		r.Delete("/api/posts/{id}", postHandler.DeletePost)
		r.Get("/api/posts/{id}/permissions", postHandler.CheckPermissions)
	})

	return r
}
