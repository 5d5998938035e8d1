package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/accountd/internal/auth"
	"github.com/hitoshi/accountd/internal/model"
	"github.com/hitoshi/accountd/internal/resettoken"
)

// レスポンスメッセージ
const (
	msgUserCreated   = "User Created Successfully"
	msgLoginSuccess  = "Login successful"
	msgResetSent     = "Password reset email sent"
	msgResetComplete = "Password has been reset successfully"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	RequestReset(ctx context.Context, email string) (*resettoken.Token, error)
	CompleteReset(ctx context.Context, token, newPassword string) error
}

// AccountHandlerConfig はアカウントハンドラーの設定。
type AccountHandlerConfig struct {
	// ExposeResetToken がtrueの場合、リセット要求のレスポンスにトークンを含める（開発用）
	ExposeResetToken bool
}

// AccountHandler は登録・ログイン・パスワードリセットのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	config  AccountHandlerConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, config AccountHandlerConfig) *AccountHandler {
	return &AccountHandler{
		service: service,
		config:  config,
	}
}

type registerRequest struct {
	Username          string `json:"username"`
	CognitoID         string `json:"cognitoId"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	TeamID            *int   `json:"teamId"`
}

type registerResponse struct {
	Message string       `json:"message"`
	NewUser userResponse `json:"newUser"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetRequestResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Register は新規ユーザー登録を処理する。
// POST /users
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	u, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:          req.Username,
		CognitoID:         req.CognitoID,
		Email:             req.Email,
		Password:          req.Password,
		ProfilePictureURL: req.ProfilePictureURL,
		TeamID:            req.TeamID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Message: msgUserCreated,
		NewUser: toUserResponse(u),
	})
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /users/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: msgLoginSuccess,
		User:    toUserResponse(u),
	})
}

// RequestPasswordReset はパスワードリセット要求を処理する。
// トークンは通知手段で届け、ExposeResetTokenが有効な場合のみレスポンスにも含める。
// POST /users/request-password-reset
func (h *AccountHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	token, err := h.service.RequestReset(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := resetRequestResponse{Message: msgResetSent}
	if h.config.ExposeResetToken {
		resp.ResetToken = token.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPassword はリセットトークンによるパスワード再設定を処理する。
// POST /users/reset-password
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetComplete})
}
