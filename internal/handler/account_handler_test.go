package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/accountd/internal/auth"
	"github.com/hitoshi/accountd/internal/model"
	"github.com/hitoshi/accountd/internal/resettoken"
)

// --- モック定義 ---

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	registerFn      func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn         func(ctx context.Context, email, password string) (*model.User, error)
	requestResetFn  func(ctx context.Context, email string) (*resettoken.Token, error)
	completeResetFn func(ctx context.Context, token, newPassword string) error
}

func (m *mockAccountService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) RequestReset(ctx context.Context, email string) (*resettoken.Token, error) {
	if m.requestResetFn != nil {
		return m.requestResetFn(ctx, email)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) CompleteReset(ctx context.Context, token, newPassword string) error {
	if m.completeResetFn != nil {
		return m.completeResetFn(ctx, token, newPassword)
	}
	return errors.New("not implemented")
}

func testUser() *model.User {
	teamID := 1
	return &model.User{
		UserID:            1,
		ID:                "cognito-alice",
		Email:             "alice@example.com",
		Username:          "alice",
		PasswordHash:      "$2a$10$secrethashvalue",
		ProfilePictureURL: "i1.jpg",
		TeamID:            &teamID,
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- POST /users ---

func TestAccountHandler_Register_Success(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAccountService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			got = in
			return testUser(), nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Register(w, postJSON("/users", `{"username":"alice","cognitoId":"cognito-alice","email":"alice@example.com","password":"pw123","teamId":3}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" || got.Password != "pw123" || got.CognitoID != "cognito-alice" {
		t.Errorf("unexpected input: %+v", got)
	}
	if got.TeamID == nil || *got.TeamID != 3 {
		t.Errorf("TeamID = %v, want 3", got.TeamID)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["message"] != msgUserCreated {
		t.Errorf("message = %v, want %q", body["message"], msgUserCreated)
	}
	newUser, ok := body["newUser"].(map[string]any)
	if !ok {
		t.Fatalf("newUser missing: %v", body)
	}
	if newUser["cognitoId"] != "cognito-alice" {
		t.Errorf("cognitoId = %v, want cognito-alice", newUser["cognitoId"])
	}
	if _, ok := newUser["passwordHash"]; ok {
		t.Error("passwordHash must not be serialised")
	}
}

func TestAccountHandler_Register_NeverLeaksHash(t *testing.T) {
	svc := &mockAccountService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			return testUser(), nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Register(w, postJSON("/users", `{"username":"alice","email":"alice@example.com","password":"pw123"}`))

	if strings.Contains(w.Body.String(), "secrethashvalue") {
		t.Errorf("response leaks password hash: %s", w.Body.String())
	}
}

func TestAccountHandler_Register_InvalidJSON(t *testing.T) {
	h := NewAccountHandler(&mockAccountService{}, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Register(w, postJSON("/users", `{invalid`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
}

func TestAccountHandler_Register_DuplicateEmail(t *testing.T) {
	svc := &mockAccountService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			return nil, model.NewDuplicateEmailError()
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Register(w, postJSON("/users", `{"username":"alice","email":"alice@example.com","password":"pw123"}`))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeDuplicateEmail)
	}
}

func TestAccountHandler_Register_InternalError(t *testing.T) {
	svc := &mockAccountService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Register(w, postJSON("/users", `{"username":"alice","email":"alice@example.com","password":"pw123"}`))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if strings.Contains(body.Message, "connection refused") {
		t.Error("internal error detail must not reach the client")
	}
}

// --- POST /users/login ---

func TestAccountHandler_Login_Success(t *testing.T) {
	svc := &mockAccountService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, error) {
			if email != "alice@example.com" || password != "pw123" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return testUser(), nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.Login(w, postJSON("/users/login", `{"email":"alice@example.com","password":"pw123"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body loginResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message != msgLoginSuccess {
		t.Errorf("message = %q, want %q", body.Message, msgLoginSuccess)
	}
	if body.User.Email != "alice@example.com" || body.User.UserID != 1 {
		t.Errorf("unexpected user: %+v", body.User)
	}
}

func TestAccountHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"unknown email", model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
		{"validation", model.NewValidationError("メールアドレスとパスワードは必須です"), http.StatusBadRequest, model.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAccountService{
				loginFn: func(ctx context.Context, email, password string) (*model.User, error) {
					return nil, tt.err
				},
			}
			h := NewAccountHandler(svc, AccountHandlerConfig{})

			w := httptest.NewRecorder()
			h.Login(w, postJSON("/users/login", `{"email":"alice@example.com","password":"wrong"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// --- POST /users/request-password-reset ---

func TestAccountHandler_RequestPasswordReset_HidesTokenByDefault(t *testing.T) {
	svc := &mockAccountService{
		requestResetFn: func(ctx context.Context, email string) (*resettoken.Token, error) {
			return &resettoken.Token{Value: "signed.token.value", ID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.RequestPasswordReset(w, postJSON("/users/request-password-reset", `{"email":"alice@example.com"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), "signed.token.value") || strings.Contains(w.Body.String(), "resetToken") {
		t.Errorf("token must not be echoed: %s", w.Body.String())
	}
	var body resetRequestResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Message != msgResetSent {
		t.Errorf("message = %q, want %q", body.Message, msgResetSent)
	}
}

func TestAccountHandler_RequestPasswordReset_ExposesTokenWhenEnabled(t *testing.T) {
	svc := &mockAccountService{
		requestResetFn: func(ctx context.Context, email string) (*resettoken.Token, error) {
			return &resettoken.Token{Value: "signed.token.value"}, nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{ExposeResetToken: true})

	w := httptest.NewRecorder()
	h.RequestPasswordReset(w, postJSON("/users/request-password-reset", `{"email":"alice@example.com"}`))

	var body resetRequestResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.ResetToken != "signed.token.value" {
		t.Errorf("resetToken = %q, want signed.token.value", body.ResetToken)
	}
}

func TestAccountHandler_RequestPasswordReset_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown email", model.NewUserNotFoundError(), http.StatusNotFound},
		{"delivery failed", model.NewDeliveryFailedError(), http.StatusBadGateway},
		{"infrastructure", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAccountService{
				requestResetFn: func(ctx context.Context, email string) (*resettoken.Token, error) {
					return nil, tt.err
				},
			}
			h := NewAccountHandler(svc, AccountHandlerConfig{ExposeResetToken: true})

			w := httptest.NewRecorder()
			h.RequestPasswordReset(w, postJSON("/users/request-password-reset", `{"email":"ghost@example.com"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- POST /users/reset-password ---

func TestAccountHandler_ResetPassword_Success(t *testing.T) {
	svc := &mockAccountService{
		completeResetFn: func(ctx context.Context, token, newPassword string) error {
			if token != "tok" || newPassword != "newpw456" {
				t.Errorf("CompleteReset(%q, %q)", token, newPassword)
			}
			return nil
		},
	}
	h := NewAccountHandler(svc, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.ResetPassword(w, postJSON("/users/reset-password", `{"token":"tok","newPassword":"newpw456"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body messageResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Message != msgResetComplete {
		t.Errorf("message = %q, want %q", body.Message, msgResetComplete)
	}
}

func TestAccountHandler_ResetPassword_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", model.NewExpiredTokenError(), http.StatusBadRequest, model.ErrCodeExpiredToken},
		{"tampered", model.NewInvalidSignatureError(), http.StatusBadRequest, model.ErrCodeInvalidSignature},
		{"replayed", model.NewTokenAlreadyUsedError(), http.StatusConflict, model.ErrCodeTokenAlreadyUsed},
		{"user deleted", model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAccountService{
				completeResetFn: func(ctx context.Context, token, newPassword string) error {
					return tt.err
				},
			}
			h := NewAccountHandler(svc, AccountHandlerConfig{})

			w := httptest.NewRecorder()
			h.ResetPassword(w, postJSON("/users/reset-password", `{"token":"tok","newPassword":"newpw456"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAccountHandler_ResetPassword_EmptyBody(t *testing.T) {
	h := NewAccountHandler(&mockAccountService{}, AccountHandlerConfig{})

	w := httptest.NewRecorder()
	h.ResetPassword(w, postJSON("/users/reset-password", ``))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
