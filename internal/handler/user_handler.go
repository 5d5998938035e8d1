package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/accountd/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
	// Get は外部ID（cognitoId）でユーザーを取得する。存在しない場合はUserNotFoundを返す。
	Get(ctx context.Context, id string) (*model.User, error)
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	UserID            int64     `json:"userId"`
	CognitoID         string    `json:"cognitoId"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	TeamID            *int      `json:"teamId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		UserID:            u.UserID,
		CognitoID:         u.ID,
		Email:             u.Email,
		Username:          u.Username,
		ProfilePictureURL: u.ProfilePictureURL,
		TeamID:            u.TeamID,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// ListUsers は全ユーザーの一覧を返す。
// GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser は外部IDでユーザーを返す。
// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}
