package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 使用済みトークン台帳の保存先
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// リセットトークン署名鍵の最小長（バイト）
const minResetTokenSecretLength = 32

// Config はサーバー全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Reset token
	ResetTokenSecret string
	ResetTokenTTL    time.Duration
	ExposeResetToken bool

	// Password
	BcryptCost int

	// Consumed-token ledger
	TokenLedger string
	RedisURL    string

	// Notification
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
	NotifyLogSink    bool

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitReset   int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ResetTokenSecret = os.Getenv("RESET_TOKEN_SECRET")
	if cfg.ResetTokenSecret == "" {
		missing = append(missing, "RESET_TOKEN_SECRET")
	}

	cfg.TokenLedger = strings.ToLower(getEnvString("TOKEN_LEDGER", LedgerPostgres))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.TokenLedger == LedgerRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.ResetTokenSecret) < minResetTokenSecretLength {
		return nil, fmt.Errorf("RESET_TOKEN_SECRET must be at least %d bytes", minResetTokenSecretLength)
	}
	if cfg.TokenLedger != LedgerPostgres && cfg.TokenLedger != LedgerRedis {
		return nil, fmt.Errorf("TOKEN_LEDGER must be %q or %q, got %q", LedgerPostgres, LedgerRedis, cfg.TokenLedger)
	}

	// Optional fields with defaults
	cfg.ResetTokenTTL = getEnvDuration("RESET_TOKEN_TTL", time.Hour)
	cfg.ExposeResetToken = getEnvBool("EXPOSE_RESET_TOKEN", false)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.NotifyWebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)
	cfg.NotifyLogSink = getEnvBool("NOTIFY_LOG_SINK", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitReset = getEnvInt("RATE_LIMIT_RESET", 5)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ClientConfig は対話クライアントの設定を保持する。
type ClientConfig struct {
	APIURL      string
	SessionFile string
	HTTPTimeout time.Duration
}

// LoadClient は環境変数からClientConfigを読み込む。必須項目はない。
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		APIURL:      strings.TrimRight(getEnvString("ACCOUNT_API_URL", "http://localhost:8080"), "/"),
		SessionFile: os.Getenv("ACCOUNT_SESSION_FILE"),
		HTTPTimeout: getEnvDuration("ACCOUNT_HTTP_TIMEOUT", 10*time.Second),
	}

	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		cfg.SessionFile = filepath.Join(dir, "accountctl", "session.json")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
