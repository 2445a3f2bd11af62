package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unilib/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存関係。
type RouterDeps struct {
	HealthChecker      HealthChecker
	SessionFinder      middleware.SessionFinder
	CORSAllowedOrigin  string
	RateLimiter        *middleware.RateLimiter
	AuthService        AuthServiceInterface
	AuthConfig         AuthHandlerConfig
	SyncService        SyncServiceInterface
	SyncTrigger        SyncTrigger
	DepartmentProvider DepartmentProvider
	UserService        UserServiceInterface
	MetricsHandler     http.Handler
}

// NewRouter はアプリケーションのHTTPルーターを構築する。
//
// ルートは認証の要否で2つに分かれる:
//   - 公開ルート: /auth/*、/health、/metrics
//   - 保護ルート: /api/* （セッション検証＋レート制限）
//
// ログインのみIP単位の厳しいレート制限を個別に適用する。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.SyncTrigger, deps.AuthConfig)
	syncHandler := NewSyncHandler(deps.SyncService)
	registryHandler := NewRegistryHandler(deps.DepartmentProvider)
	userHandler := NewUserHandler(deps.UserService)

	// 認証不要ルート
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/hemis/login", authHandler.HemisLogin)
	r.Post("/auth/logout", authHandler.Logout)
	r.Get("/auth/me", authHandler.Me)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Get("/metrics", deps.MetricsHandler.ServeHTTP)
	}

	// 認証が必要なルート
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/hemis/sync", syncHandler.Sync)
		r.Get("/api/hemis/departments", registryHandler.Departments)
		r.Get("/api/users/me/avatar", userHandler.Avatar)
	})

	return r
}
