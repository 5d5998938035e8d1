package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// エラーレスポンス本文のうちログに残す最大バイト数
const maxErrorBodyBytes = 512

// webhookPayload はWebhookへ送信するJSON本文。
type webhookPayload struct {
	Event     string    `json:"event"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// WebhookSink は通知内容をHTTP POSTで外部のメール配信基盤などへ渡すSink。
// 2xx以外の応答は送信失敗として扱う。
type WebhookSink struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

// NewWebhookSink はWebhookSinkを生成する。
// httpClientにはSSRF対策済みのクライアントを渡すこと。
func NewWebhookSink(httpClient *http.Client, endpoint string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// SendPasswordReset は通知内容をJSONでPOSTする。
func (s *WebhookSink) SendPasswordReset(ctx context.Context, n ResetNotification) error {
	body, err := json.Marshal(webhookPayload{
		Event:     "password_reset",
		Email:     n.Email,
		Username:  n.Username,
		Token:     n.Token,
		ExpiresAt: n.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("通知本文のエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "accountd/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.ErrorContext(ctx, "通知Webhookの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("通知Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		s.logger.ErrorContext(ctx, "通知Webhookがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return fmt.Errorf("通知Webhookがステータス %d を返しました", resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ Sink = (*WebhookSink)(nil)
