// Package auth はアカウント登録、パスワード認証、パスワードリセットを提供する。
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/accountd/internal/metrics"
	"github.com/hitoshi/accountd/internal/model"
	"github.com/hitoshi/accountd/internal/notify"
	"github.com/hitoshi/accountd/internal/password"
	"github.com/hitoshi/accountd/internal/repository"
	"github.com/hitoshi/accountd/internal/resettoken"
	"github.com/hitoshi/accountd/internal/security"
)

// TokenIssuer はリセットトークンの発行と検証のインターフェース。
type TokenIssuer interface {
	Issue(email string) (*resettoken.Token, error)
	Verify(token string) (*resettoken.Claims, error)
}

// Sanitizer は表示名からマークアップを除去する。
type Sanitizer interface {
	Sanitize(input string) string
}

// RegisterInput はユーザー登録の入力。
// CognitoID、ProfilePictureURL、TeamIDは省略可能。
type RegisterInput struct {
	Username          string
	CognitoID         string
	Email             string
	Password          string
	ProfilePictureURL string
	TeamID            *int
}

// Deps はServiceの依存関係。
type Deps struct {
	Users     repository.UserRepository
	Ledger    repository.ConsumedTokenStore
	Hasher    password.Hasher
	Tokens    TokenIssuer
	Notifier  notify.Sink
	URLs      security.URLValidator
	Sanitizer Sanitizer
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	ledger    repository.ConsumedTokenStore
	hasher    password.Hasher
	tokens    TokenIssuer
	notifier  notify.Sink
	urls      security.URLValidator
	sanitizer Sanitizer
	metrics   metrics.Recorder
	logger    *slog.Logger
	newID     func() string
}

// NewService はServiceを生成する。MetricsとLoggerは省略可能。
func NewService(deps Deps) *Service {
	s := &Service{
		users:     deps.Users,
		ledger:    deps.Ledger,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		notifier:  deps.Notifier,
		urls:      deps.URLs,
		sanitizer: deps.Sanitizer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		newID:     uuid.NewString,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register は新規ユーザーを登録する。
// 同じメールアドレスまたは外部IDのユーザーが既に存在する場合は重複エラーを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	user, err := s.buildUser(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	existing, err = s.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user ID: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUserIDError()
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegistration()
	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.UserID),
		slog.String("cognito_id", user.ID),
	)
	return user, nil
}

// buildUser は入力を検証・正規化し、保存前のUserを組み立てる。
func (s *Service) buildUser(in RegisterInput) (*model.User, error) {
	username := s.sanitizer.Sanitize(in.Username)
	if username == "" {
		return nil, model.NewValidationError("ユーザー名は必須です")
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	picture := strings.TrimSpace(in.ProfilePictureURL)
	if picture == "" {
		picture = model.DefaultProfilePictureURL
	}
	// 相対パスはクライアント同梱の画像名として扱い、絶対URLのみ検証する
	if strings.Contains(picture, "://") {
		if err := s.urls.ValidateURL(picture); err != nil {
			return nil, model.NewValidationError("プロフィール画像URLが不正です")
		}
	}

	teamID := model.DefaultTeamID
	if in.TeamID != nil {
		teamID = *in.TeamID
	}

	cognitoID := strings.TrimSpace(in.CognitoID)
	if cognitoID == "" {
		cognitoID = s.newID()
	}

	return &model.User{
		ID:                cognitoID,
		Email:             email,
		Username:          username,
		ProfilePictureURL: picture,
		TeamID:            &teamID,
	}, nil
}

// Login はメールアドレスとパスワードでユーザーを認証する。
func (s *Service) Login(ctx context.Context, email, plaintext string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || plaintext == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, model.NewUserNotFoundError()
	}

	ok, err := s.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.metrics.RecordLogin(metrics.ResultFailure)
		s.logger.WarnContext(ctx, "login rejected", slog.Int64("user_id", user.UserID))
		return nil, model.NewInvalidCredentialsError()
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.UserID))
	return user, nil
}

// RequestReset はリセットトークンを発行し、通知手段で利用者へ届ける。
// 発行したトークンを返すが、レスポンスに含めるかは呼び出し側が決める。
func (s *Service) RequestReset(ctx context.Context, email string) (*resettoken.Token, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordResetRequest(metrics.ResultFailure)
		return nil, model.NewUserNotFoundError()
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue reset token: %w", err)
	}

	err = s.notifier.SendPasswordReset(ctx, notify.ResetNotification{
		Email:     user.Email,
		Username:  user.Username,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		s.metrics.RecordNotificationFailure()
		s.metrics.RecordResetRequest(metrics.ResultFailure)
		s.logger.ErrorContext(ctx, "failed to deliver reset token",
			slog.Int64("user_id", user.UserID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDeliveryFailedError()
	}

	s.metrics.RecordResetRequest(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "password reset requested",
		slog.Int64("user_id", user.UserID),
		slog.Time("expires_at", token.ExpiresAt),
	)
	return token, nil
}

// CompleteReset はリセットトークンを検証し、パスワードを置き換える。
// トークンは一度しか使用できない。台帳への記録後に更新が失敗した場合、
// そのトークンは使用済みのまま残る。
func (s *Service) CompleteReset(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return model.NewValidationError("トークンは必須です")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.RecordResetCompletion(metrics.ResultFailure)
		if errors.Is(err, resettoken.ErrExpiredToken) {
			return model.NewExpiredTokenError()
		}
		return model.NewInvalidSignatureError()
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordResetCompletion(metrics.ResultFailure)
		return model.NewUserNotFoundError()
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	fresh, err := s.ledger.Consume(ctx, TokenFingerprint(claims.ID), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !fresh {
		s.metrics.RecordResetCompletion(metrics.ResultFailure)
		s.logger.WarnContext(ctx, "reset token replayed", slog.Int64("user_id", user.UserID))
		return model.NewTokenAlreadyUsedError()
	}

	if err := s.users.UpdatePasswordHash(ctx, user.Email, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.metrics.RecordResetCompletion(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "password reset completed", slog.Int64("user_id", user.UserID))
	return nil
}

// TokenFingerprint は台帳に記録するトークンIDのSHA-256ハッシュを返す。
func TokenFingerprint(tokenID string) string {
	sum := sha256.Sum256([]byte(tokenID))
	return hex.EncodeToString(sum[:])
}

func (s *Service) hash(plaintext string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(plaintext)
	s.metrics.RecordPasswordHash(time.Since(start))
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", passwordValidationError(err)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", model.NewValidationError("メールアドレスは必須です")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	return email, nil
}

func validatePassword(plaintext string) error {
	if err := password.Validate(plaintext); err != nil {
		return passwordValidationError(err)
	}
	return nil
}

func passwordValidationError(err error) *model.APIError {
	if errors.Is(err, password.ErrPasswordTooLong) {
		return model.NewValidationError("パスワードは72バイト以内で入力してください")
	}
	return model.NewValidationError("パスワードは必須です")
}
