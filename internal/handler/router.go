package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/naradmuni/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator      middleware.SessionAuthenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// チャット
	ChatService ChatServiceInterface

	// ヘルスチェック
	Identity   IdentityStatus
	Completion CompletionStatus
	Storage    StorageStatus

	// MetricsHandler がnilなら/metricsを公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
// 保護ルートはRequireAuthenticationで未認証リクエストを401にし、
// ハンドラー本体（ボディ解析、補完API、履歴参照）に到達させない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))
	r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
	r.Use(middleware.NewLoggingMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	chatHandler := NewChatHandler(deps.ChatService)
	healthHandler := NewHealthHandler(deps.Identity, deps.Completion, deps.Storage)

	// --- 運用系ルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/auth/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)

		// 旧フロントエンド互換のエイリアス
		r.Post("/auth/google", authHandler.Callback)
		r.Post("/auth/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// 未認証リクエストはレート制限より先に401で返す
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthentication())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/session", authHandler.Session)
		r.Get("/auth/me", authHandler.Session)

		r.With(deps.RateLimiter.ChatMiddleware()).Post("/chat", chatHandler.Chat)
		r.Get("/history", chatHandler.History)
	})

	return r
}
