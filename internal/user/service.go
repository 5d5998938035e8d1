// Package user はユーザー一覧と個別取得を提供する。
package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/accountd/internal/model"
)

// Reader はユーザー参照に必要なリポジトリ操作。
type Reader interface {
	List(ctx context.Context) ([]*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Service はユーザー参照のサービス層。
type Service struct {
	users Reader
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users Reader) *Service {
	return &Service{users: users}
}

// List は全ユーザーを返す。ユーザーがいない場合は空スライスを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// Get は外部IDでユーザーを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.NewValidationError("ユーザーIDは必須です")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
