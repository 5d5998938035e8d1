package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/hitoshi/accountd/internal/database"
)

// MigrateAction はmigrateサブコマンドの動作を表す。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// ParseMigrateArgs はmigrate以降の引数を解析する。
// 引数なしはup、"down [n]"はn（省略時1）バージョンのロールバック、"version"は現在のバージョン表示。
func ParseMigrateArgs(args []string) (MigrateAction, int, error) {
	if len(args) == 0 {
		return MigrateUp, 0, nil
	}

	switch MigrateAction(args[0]) {
	case MigrateUp:
		return MigrateUp, 0, nil
	case MigrateVersion:
		return MigrateVersion, 0, nil
	case MigrateDown:
		if len(args) < 2 {
			return MigrateDown, 1, nil
		}
		steps, err := strconv.Atoi(args[1])
		if err != nil || steps <= 0 {
			return "", 0, fmt.Errorf("invalid rollback steps: %q", args[1])
		}
		return MigrateDown, steps, nil
	default:
		return "", 0, fmt.Errorf("unknown migrate action: %q", args[0])
	}
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(databaseURL string, args []string) error {
	action, steps, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(databaseURL, steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(databaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(databaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
