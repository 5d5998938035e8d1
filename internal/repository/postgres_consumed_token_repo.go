package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresConsumedTokenRepo はPostgreSQLを使用した使用済みトークン台帳。
// 期限切れの行はcleanupワーカーが削除する。
type PostgresConsumedTokenRepo struct {
	db *sql.DB
}

// NewPostgresConsumedTokenRepo はPostgresConsumedTokenRepoを生成する。
func NewPostgresConsumedTokenRepo(db *sql.DB) *PostgresConsumedTokenRepo {
	return &PostgresConsumedTokenRepo{db: db}
}

// Consume はtokenHashを記録する。ON CONFLICT DO NOTHINGにより
// 同時に同じトークンが送られても記録に成功するのは一件だけになる。
func (r *PostgresConsumedTokenRepo) Consume(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO consumed_reset_tokens (token_hash, expires_at)
		 VALUES ($1, $2)
		 ON CONFLICT (token_hash) DO NOTHING`,
		tokenHash, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record consumed token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// compile-time interface check
var _ ConsumedTokenStore = (*PostgresConsumedTokenRepo)(nil)
