// Package cleanup は使用済みリセットトークン台帳の定期削除ジョブを提供する。
// 有効期限を過ぎたトークンは署名検証の段階で拒否されるため、
// 台帳の行も期限切れ後は不要になる。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れの使用済みトークンを削除するジョブ。
// 冪等な削除処理のため、複数のワーカーが同時に実行しても問題ない。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
	now    func() time.Time
	Grace  time.Duration // 期限切れ後も保持する猶予期間（デフォルト: 0）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Run はexpires_atが現在時刻（から猶予期間を引いた時刻）より前の行を削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().Add(-j.Grace)

	query := `DELETE FROM consumed_reset_tokens WHERE expires_at < $1`
	result, err := j.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		j.logger.Error("使用済みトークンのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("使用済みトークンの削除に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("使用済みトークンのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップワーカーを開始しました", slog.Duration("interval", interval))

	// Runの失敗はログに記録済みのため、ここでは継続する
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
