// Package session はクライアント側のログイン状態を管理する状態機械を提供する。
//
// 状態はAnonymous（表示中のビューを持つ）とAuthenticated（ログイン中のユーザーを持つ）の2種類。
// 同時に処理できる送信は1件だけで、処理中の操作はErrBusyを返す。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/accountd/internal/client/api"
	"github.com/hitoshi/accountd/internal/model"
)

// ユーザー向けメッセージ
const (
	MsgFillAllFields      = "Please fill out all fields."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgInvalidTeamID      = "Team ID must be a number."
	MsgSignupSuccess      = "User created successfully! Please log in."
	MsgGenericError       = "An error occurred. Please try again."
	MsgResetRequestFailed = "Please provide a valid email address. The entered email may not exist in our system."
	MsgResetFailed        = "An error occurred while resetting the password."
	MsgResetSuccess       = "Password reset successfully."
)

var (
	// ErrBusy は別の送信が処理中の場合に返される。
	ErrBusy = errors.New("another submission is in progress")
	// ErrInvalidTransition は現在の状態で許可されない操作の場合に返される。
	ErrInvalidTransition = errors.New("invalid transition")
)

// View は未ログイン時に表示する画面。
type View int

const (
	ViewLogin View = iota
	ViewSignup
	ViewResetRequest
	ViewResetConfirm
)

// String はビュー名を返す。
func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewSignup:
		return "signup"
	case ViewResetRequest:
		return "reset-request"
	case ViewResetConfirm:
		return "reset-confirm"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// State はAnonymousまたはAuthenticatedのいずれか。
type State interface {
	isState()
}

// Anonymous は未ログイン状態。
// ResetTokenはViewResetConfirmでのみ意味を持つ（サーバーが返さなかった場合は空）。
type Anonymous struct {
	View       View
	Message    string
	ResetToken string
}

// Authenticated はログイン済み状態。
type Authenticated struct {
	User api.User
}

func (Anonymous) isState()     {}
func (Authenticated) isState() {}

// AccountClient は状態機械が利用するAPIクライアント。
type AccountClient interface {
	Register(ctx context.Context, in api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	RequestReset(ctx context.Context, email string) (*api.ResetRequestResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*api.MessageResponse, error)
}

// SignupForm はユーザー登録フォームの入力値。
// ProfilePictureURLとTeamIDは任意。
type SignupForm struct {
	Username          string
	Email             string
	Password          string
	ConfirmPassword   string
	ProfilePictureURL string
	TeamID            string
}

// ResetConfirmForm は新しいパスワードの入力値。
// Tokenが空の場合はリセット要求時にサーバーから受け取ったトークンを使う。
type ResetConfirmForm struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// Machine はセッション状態機械。
type Machine struct {
	mu     sync.Mutex
	busy   bool
	state  State
	client AccountClient
	store  Store
	logger *slog.Logger
}

// New はMachineを生成する。
// Storeにユーザーが保存されていればAuthenticated、なければAnonymous(Login)から開始する。
func New(client AccountClient, store Store, logger *slog.Logger) *Machine {
	m := &Machine{
		state:  Anonymous{View: ViewLogin},
		client: client,
		store:  store,
		logger: logger,
	}

	user, err := store.Load()
	if err != nil {
		logger.Warn("failed to restore session", slog.String("error", err.Error()))
		return m
	}
	if user != nil {
		m.state = Authenticated{User: *user}
		logger.Debug("session restored", slog.String("email", user.Email))
	}
	return m
}

// State は現在の状態を返す。
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ClickSignup はLoginからSignupへ遷移する。
func (m *Machine) ClickSignup() error {
	return m.navigate(ViewSignup, ViewLogin)
}

// ClickForgotPassword はLoginからResetRequestへ遷移する。
func (m *Machine) ClickForgotPassword() error {
	return m.navigate(ViewResetRequest, ViewLogin)
}

// ClickBackToLogin はSignup、ResetRequest、ResetConfirmからLoginへ戻る。
func (m *Machine) ClickBackToLogin() error {
	return m.navigate(ViewLogin, ViewSignup, ViewResetRequest, ViewResetConfirm)
}

func (m *Machine) navigate(to View, from ...View) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}
	a, ok := m.state.(Anonymous)
	if !ok || !slices.Contains(from, a.View) {
		return m.invalidTransition("navigate to " + to.String())
	}
	m.state = Anonymous{View: to}
	return nil
}

// SubmitLogin はログインを送信する。
// 成功するとユーザーをStoreに保存してAuthenticatedへ遷移する。
// 失敗した場合はLoginのままエラーメッセージを設定する。
func (m *Machine) SubmitLogin(ctx context.Context, email, password string) error {
	if _, err := m.begin(ViewLogin); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return m.fail(ViewLogin, "", localValidation(MsgFillAllFields))
	}

	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		return m.fail(ViewLogin, "", err)
	}

	if err := m.store.Save(&resp.User); err != nil {
		m.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}
	m.logger.Debug("logged in", slog.String("email", resp.User.Email))
	m.finish(Authenticated{User: resp.User})
	return nil
}

// SubmitSignup はユーザー登録を送信する。
// 成功するとLoginへ戻り、ログインを促すメッセージを設定する。
func (m *Machine) SubmitSignup(ctx context.Context, form SignupForm) error {
	if _, err := m.begin(ViewSignup); err != nil {
		return err
	}

	req, apiErr := buildRegisterRequest(form)
	if apiErr != nil {
		return m.fail(ViewSignup, "", apiErr)
	}

	if _, err := m.client.Register(ctx, req); err != nil {
		return m.fail(ViewSignup, "", err)
	}

	m.logger.Debug("user registered", slog.String("email", req.Email))
	m.finish(Anonymous{View: ViewLogin, Message: MsgSignupSuccess})
	return nil
}

// SubmitResetRequest はパスワードリセットを要求する。
// 成功するとResetConfirmへ遷移する。サーバーがトークンを返した場合はそれを保持する。
func (m *Machine) SubmitResetRequest(ctx context.Context, email string) error {
	if _, err := m.begin(ViewResetRequest); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return m.fail(ViewResetRequest, "", localValidation(MsgFillAllFields))
	}

	resp, err := m.client.RequestReset(ctx, email)
	if err != nil {
		m.logger.Debug("reset request failed", slog.String("error", err.Error()))
		m.finish(Anonymous{View: ViewResetRequest, Message: MsgResetRequestFailed})
		return err
	}

	m.finish(Anonymous{
		View:       ViewResetConfirm,
		Message:    resp.Message,
		ResetToken: resp.ResetToken,
	})
	return nil
}

// SubmitResetConfirm は新しいパスワードを送信する。
// 入力不足とパスワード不一致はネットワークを使わずにResetConfirmのままエラーとする。
// 成功するとLoginへ遷移する。
func (m *Machine) SubmitResetConfirm(ctx context.Context, form ResetConfirmForm) error {
	current, err := m.begin(ViewResetConfirm)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(form.Token)
	if token == "" {
		token = current.ResetToken
	}

	if token == "" || form.NewPassword == "" || form.ConfirmPassword == "" {
		return m.fail(ViewResetConfirm, current.ResetToken, localValidation(MsgFillAllFields))
	}
	if form.NewPassword != form.ConfirmPassword {
		return m.fail(ViewResetConfirm, current.ResetToken, localValidation(MsgPasswordMismatch))
	}

	resp, err := m.client.ResetPassword(ctx, token, form.NewPassword)
	if err != nil {
		m.logger.Debug("password reset failed", slog.String("error", err.Error()))
		m.finish(Anonymous{View: ViewResetConfirm, Message: MsgResetFailed, ResetToken: current.ResetToken})
		return err
	}

	msg := resp.Message
	if msg == "" {
		msg = MsgResetSuccess
	}
	m.finish(Anonymous{View: ViewLogin, Message: msg})
	return nil
}

// Logout はセッションを破棄してLoginへ遷移する。
// セッションファイルの削除に失敗した場合も状態は遷移し、エラーを返す。
func (m *Machine) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}
	if _, ok := m.state.(Authenticated); !ok {
		return m.invalidTransition("logout")
	}

	m.state = Anonymous{View: ViewLogin}
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// begin は送信を開始する。状態がviewでない場合や送信中の場合はエラーを返す。
func (m *Machine) begin(view View) (Anonymous, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return Anonymous{}, ErrBusy
	}
	a, ok := m.state.(Anonymous)
	if !ok || a.View != view {
		return Anonymous{}, m.invalidTransition("submit " + view.String())
	}
	m.busy = true
	return a, nil
}

func (m *Machine) finish(next State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = next
	m.busy = false
}

// fail はviewに留まったまま、errから得たメッセージを設定してerrを返す。
func (m *Machine) fail(view View, resetToken string, err error) error {
	m.finish(Anonymous{View: view, Message: messageFor(err), ResetToken: resetToken})
	return err
}

// invalidTransition はm.muを保持した状態で呼び出すこと。
func (m *Machine) invalidTransition(op string) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, op, describe(m.state))
}

func describe(s State) string {
	switch st := s.(type) {
	case Anonymous:
		return "anonymous/" + st.View.String()
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func buildRegisterRequest(form SignupForm) (api.RegisterRequest, *model.APIError) {
	username := strings.TrimSpace(form.Username)
	email := strings.TrimSpace(form.Email)
	if username == "" || email == "" || form.Password == "" || form.ConfirmPassword == "" {
		return api.RegisterRequest{}, localValidation(MsgFillAllFields)
	}
	if form.Password != form.ConfirmPassword {
		return api.RegisterRequest{}, localValidation(MsgPasswordMismatch)
	}

	req := api.RegisterRequest{
		Username:          username,
		CognitoID:         uuid.NewString(),
		Email:             email,
		Password:          form.Password,
		ProfilePictureURL: strings.TrimSpace(form.ProfilePictureURL),
	}
	if teamID := strings.TrimSpace(form.TeamID); teamID != "" {
		n, err := strconv.Atoi(teamID)
		if err != nil {
			return api.RegisterRequest{}, localValidation(MsgInvalidTeamID)
		}
		req.TeamID = &n
	}
	return req, nil
}

// localValidation はサーバーに送信する前の入力検証エラーを生成する。
func localValidation(msg string) *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  msg,
		Category: "validation",
		Action:   "入力内容を確認してから再度送信してください。",
	}
}

func messageFor(err error) string {
	if apiErr, ok := api.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgGenericError
}

