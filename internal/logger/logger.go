// Package logger は構造化ログの設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys はログに値を出力しない属性キー。
var redactedKeys = map[string]struct{}{
	"password":      {},
	"new_password":  {},
	"password_hash": {},
	"secret":        {},
	"token":         {},
}

const redacted = "[REDACTED]"

// redactSecrets は秘匿属性の値を置き換えるReplaceAttr関数。
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// ParseLevel はLOG_LEVEL形式の文字列をslog.Levelに変換する。
// 不明な値の場合はINFOを返す。
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New は指定レベルのJSON構造化ログ出力のslog.Loggerを生成して返す。
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := New(w, level)
	slog.SetDefault(logger)
	return logger
}

// NewCLI は対話クライアント用のテキストロガーを返す。
// verboseでない場合はWARN以上のみ出力する。
func NewCLI(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	}))
}
