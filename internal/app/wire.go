package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/accountd/internal/auth"
	"github.com/hitoshi/accountd/internal/config"
	"github.com/hitoshi/accountd/internal/database"
	"github.com/hitoshi/accountd/internal/handler"
	"github.com/hitoshi/accountd/internal/metrics"
	"github.com/hitoshi/accountd/internal/middleware"
	"github.com/hitoshi/accountd/internal/notify"
	"github.com/hitoshi/accountd/internal/password"
	"github.com/hitoshi/accountd/internal/repository"
	"github.com/hitoshi/accountd/internal/resettoken"
	"github.com/hitoshi/accountd/internal/security"
	"github.com/hitoshi/accountd/internal/user"
)

// 依存サービスへの疎通確認のタイムアウト
const pingTimeout = 3 * time.Second

// server はserveモードで組み立てた依存関係を保持する。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	redis       *redis.Client
}

// Close はserverが保持するリソースを解放する。
func (s *server) Close() {
	s.rateLimiter.Stop()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// buildServer はリポジトリ、ドメインサービス、ルーターを組み立てる。
func buildServer(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (*server, error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ・台帳
	userRepo := repository.NewPostgresUserRepo(db)
	ledger, redisClient, err := newLedger(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	// 3. トークン・通知
	issuer, err := resettoken.NewIssuer([]byte(cfg.ResetTokenSecret), cfg.ResetTokenTTL)
	if err != nil {
		closeRedis(redisClient)
		return nil, fmt.Errorf("failed to create reset token issuer: %w", err)
	}

	ssrfGuard := security.NewSSRFGuard()
	notifier, err := newNotifier(cfg, ssrfGuard, logger)
	if err != nil {
		closeRedis(redisClient)
		return nil, err
	}

	// 4. ドメインサービス
	accountService := auth.NewService(auth.Deps{
		Users:     userRepo,
		Ledger:    ledger,
		Hasher:    password.NewBcryptHasher(cfg.BcryptCost),
		Tokens:    issuer,
		Notifier:  notifier,
		URLs:      ssrfGuard,
		Sanitizer: security.NewTextSanitizer(),
		Metrics:   collector,
		Logger:    logger,
	})
	userService := user.NewService(userRepo)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(newRateLimiterConfig(cfg), logger)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		HealthChecker:     newHealthChecker(db, redisClient),
		MetricsHandler:    metrics.Handler(reg),
		AccountService:    accountService,
		AccountConfig:     handler.AccountHandlerConfig{ExposeResetToken: cfg.ExposeResetToken},
		UserService:       userService,
	})

	return &server{
		handler:     router,
		rateLimiter: rateLimiter,
		redis:       redisClient,
	}, nil
}

// newLedger は設定に応じた使用済みトークン台帳を返す。
// Redisを使用する場合は生成したクライアントも返す。
func newLedger(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.ConsumedTokenStore, *redis.Client, error) {
	switch cfg.TokenLedger {
	case config.LedgerRedis:
		client, err := database.OpenRedis(ctx, cfg.RedisURL, pingTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return repository.NewRedisConsumedTokenStore(client, ""), client, nil
	default:
		return repository.NewPostgresConsumedTokenRepo(db), nil, nil
	}
}

// newNotifier はWebhook URLが設定されていればWebhookSinkを、なければ開発用フラグがある場合に限りLogSinkを返す。
func newNotifier(cfg *config.Config, guard *security.SSRFGuard, logger *slog.Logger) (notify.Sink, error) {
	if cfg.NotifyWebhookURL == "" {
		// ログ出力はトークンを平文で残すため、開発用フラグが明示された場合に限る
		if !cfg.NotifyLogSink && !cfg.ExposeResetToken {
			return nil, fmt.Errorf("NOTIFY_WEBHOOK_URL is required unless NOTIFY_LOG_SINK or EXPOSE_RESET_TOKEN is enabled")
		}
		logger.Warn("NOTIFY_WEBHOOK_URL is not set; reset tokens are written to the log")
		return notify.NewLogSink(logger), nil
	}

	if err := guard.ValidateURL(cfg.NotifyWebhookURL); err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_WEBHOOK_URL: %w", err)
	}
	return notify.NewWebhookSink(guard.NewSafeClient(cfg.NotifyTimeout), cfg.NotifyWebhookURL, logger), nil
}

// newRateLimiterConfig はreq/min単位の設定値をRateLimiterConfigに変換する。
func newRateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = middleware.PerMinute(cfg.RateLimitGeneral)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitReset > 0 {
		rl.ResetRate = middleware.PerMinute(cfg.RateLimitReset)
		rl.ResetBurst = cfg.RateLimitReset
	}
	return rl
}

// newHealthChecker はDBと（使用している場合は）Redisへの疎通を確認するHealthCheckerを返す。
func newHealthChecker(db *sql.DB, redisClient *redis.Client) handler.HealthChecker {
	return handler.HealthCheckerFunc(func(ctx context.Context) error {
		if err := database.Ping(ctx, db, pingTimeout); err != nil {
			return err
		}
		if redisClient != nil {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				return fmt.Errorf("failed to ping redis: %w", err)
			}
		}
		return nil
	})
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}
