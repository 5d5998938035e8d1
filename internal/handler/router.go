package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/accountd/internal/metrics"
	"github.com/hitoshi/accountd/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.StatusRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// アカウント
	AccountService AccountServiceInterface
	AccountConfig  AccountHandlerConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// /users配下にはさらにRateLimit(General)を適用し、リセット要求には専用の制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	accountHandler := NewAccountHandler(deps.AccountService, deps.AccountConfig)
	userHandler := NewUserHandler(deps.UserService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- ユーザー・アカウント ---
	r.Route("/users", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/", userHandler.ListUsers)
		r.Post("/", accountHandler.Register)
		r.Post("/login", accountHandler.Login)
		r.Post("/reset-password", accountHandler.ResetPassword)

		// POST /users/request-password-reset - リセット要求専用のレート制限を追加
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.ResetRequestMiddleware()).Post("/request-password-reset", accountHandler.RequestPasswordReset)
		} else {
			r.Post("/request-password-reset", accountHandler.RequestPasswordReset)
		}

		r.Get("/{id}", userHandler.GetUser)
	})

	return r
}
