package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/accountd/internal/model"
)

// PostgreSQLの一意制約違反コード
const uniqueViolation = "23505"

// usersテーブルの一意制約名
const (
	constraintUsersEmail     = "users_email_key"
	constraintUsersCognitoID = "users_cognito_id_key"
)

const userColumns = `user_id, cognito_id, email, username, password_hash,
	profile_picture_url, team_id, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var teamID sql.NullInt64
	err := row.Scan(
		&user.UserID, &user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.ProfilePictureURL, &teamID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if teamID.Valid {
		v := int(teamID.Int64)
		user.TeamID = &v
	}
	return user, nil
}

// List は全ユーザーをuser_id昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// FindByID は外部IDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE cognito_id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// 事前チェックをすり抜けた同時登録は一意制約違反としてここで検出される。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	var teamID sql.NullInt64
	if user.TeamID != nil {
		teamID = sql.NullInt64{Int64: int64(*user.TeamID), Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (cognito_id, email, username, password_hash, profile_picture_url, team_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING user_id, created_at, updated_at`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.ProfilePictureURL, teamID,
	).Scan(&user.UserID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if apiErr := mapUniqueViolation(err); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// UpdatePasswordHash はパスワードハッシュを置き換える。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// mapUniqueViolation はusersの一意制約違反を対応するAPIErrorに変換する。
// 該当しない場合はnilを返す。
func mapUniqueViolation(err error) *model.APIError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintUsersEmail:
		return model.NewDuplicateEmailError()
	case constraintUsersCognitoID:
		return model.NewDuplicateUserIDError()
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
