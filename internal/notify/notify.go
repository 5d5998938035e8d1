// Package notify はパスワードリセットトークンを利用者へ帯域外で届ける通知手段を提供する。
package notify

import (
	"context"
	"log/slog"
	"time"
)

// ResetNotification はリセットトークンの通知内容。
type ResetNotification struct {
	Email     string
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Sink はリセット通知の送信先。送信に失敗した場合はエラーを返す。
type Sink interface {
	SendPasswordReset(ctx context.Context, n ResetNotification) error
}

// LogSink は通知内容を構造化ログに出力する開発用のSink。
// トークンがログに残るため本番環境では使用しない。
// NOTIFY_LOG_SINK または EXPOSE_RESET_TOKEN が有効な場合にのみ組み立てられる。
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink はLogSinkを生成する。
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// SendPasswordReset はトークンをINFOレベルで出力する。
func (s *LogSink) SendPasswordReset(ctx context.Context, n ResetNotification) error {
	s.logger.InfoContext(ctx, "パスワードリセット通知（ログ出力）",
		slog.String("email", n.Email),
		slog.String("reset_token", n.Token),
		slog.Time("expires_at", n.ExpiresAt),
	)
	return nil
}

var _ Sink = (*LogSink)(nil)
