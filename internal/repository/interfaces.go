// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/accountd/internal/model"
)

// ErrUserNotFound は更新対象のユーザーが存在しない場合のエラー。
var ErrUserNotFound = errors.New("user not found")

// UserRepository はユーザー認証情報の永続化インターフェース。
// emailと外部ID（cognitoId）はそれぞれ一意である。
type UserRepository interface {
	// List は全ユーザーをuser_id昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// FindByID は外部IDでユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたUserIDとタイムスタンプを設定する。
	// 一意制約違反はDuplicateEmail/DuplicateUserIDのAPIErrorとして返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュを置き換える。
	// 対象が存在しない場合はErrUserNotFoundを返す。
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
}

// ConsumedTokenStore は使用済みリセットトークンの台帳。
// 同一のtokenHashに対してConsumeがtrueを返すのは一度だけ。
type ConsumedTokenStore interface {
	// Consume はtokenHashを使用済みとして記録する。
	// 新たに記録した場合はtrue、既に記録済みの場合はfalseを返す。
	// 記録はexpiresAtまで保持される。
	Consume(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error)
}
