// Package api はaccountdのHTTP APIクライアントを提供する。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/accountd/internal/model"
)

// レスポンスボディの最大読み取りサイズ
const maxResponseBytes = 1 << 20

// User はAPIが返すユーザー情報。パスワードハッシュは含まれない。
type User struct {
	UserID            int64     `json:"userId"`
	CognitoID         string    `json:"cognitoId"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	TeamID            *int      `json:"teamId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// RegisterRequest はユーザー登録のリクエストボディ。
type RegisterRequest struct {
	Username          string `json:"username"`
	CognitoID         string `json:"cognitoId,omitempty"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	TeamID            *int   `json:"teamId,omitempty"`
}

// RegisterResponse はユーザー登録のレスポンス。
type RegisterResponse struct {
	Message string `json:"message"`
	NewUser User   `json:"newUser"`
}

// LoginResponse はログインのレスポンス。
type LoginResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// ResetRequestResponse はパスワードリセット要求のレスポンス。
// ResetTokenはサーバーがトークンを返す設定の場合のみ設定される。
type ResetRequestResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

// MessageResponse はメッセージのみのレスポンス。
type MessageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Client はaccountdのAPIクライアント。
// サーバーが返したエラーは*model.APIErrorとして返す。
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient はClientを生成する。baseURL末尾のスラッシュは取り除く。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Register はユーザーを登録する。
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.post(ctx, "/users", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login はメールアドレスとパスワードで認証する。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var out LoginResponse
	if err := c.post(ctx, "/users/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestReset はパスワードリセットを要求する。
func (c *Client) RequestReset(ctx context.Context, email string) (*ResetRequestResponse, error) {
	in := struct {
		Email string `json:"email"`
	}{Email: email}

	var out ResetRequestResponse
	if err := c.post(ctx, "/users/request-password-reset", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword はリセットトークンを使って新しいパスワードを設定する。
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	in := struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}{Token: token, NewPassword: newPassword}

	var out MessageResponse
	if err := c.post(ctx, "/users/reset-password", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("リクエスト本文のエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "accountctl/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "API呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	c.logger.DebugContext(ctx, "API response",
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// decodeError はエラーレスポンスを*model.APIErrorに変換する。
// 統一フォーマットでない場合はステータスコードから内部エラーを組み立てる。
func decodeError(status int, data []byte) error {
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		return &model.APIError{
			Code:     body.Code,
			Message:  body.Message,
			Category: body.Category,
			Action:   body.Action,
		}
	}

	apiErr := model.NewInternalError()
	apiErr.Message = fmt.Sprintf("サーバーがステータス %d を返しました", status)
	return apiErr
}

// AsAPIError はerrに含まれる*model.APIErrorを取り出す。
func AsAPIError(err error) (*model.APIError, bool) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
