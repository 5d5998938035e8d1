package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はaccountdのサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合の既定値。
	CommandServe Command = "serve"
	// CommandWorker は使用済みトークンの定期削除を実行する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマのマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを確認する。
	// distrolessイメージのHEALTHCHECKから呼び出す。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// commands はusageの表示順。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the account API server (default)"},
	{CommandWorker, "purge expired consumed reset tokens periodically"},
	{CommandMigrate, "apply schema migrations: migrate [up | down [N] | version]"},
	{CommandHealthcheck, "probe http://localhost:$SERVER_PORT/health"},
	{CommandHelp, "show this message"},
}

// ParseCommand はargs[0]からサブコマンドを判定する。
// 引数が空の場合はCommandServeを返す。
// 未知のコマンドでサーバーが起動しないよう、判定できない場合はエラーを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := args[0]
	if name == "-h" || name == "--help" {
		return CommandHelp, nil
	}
	for _, c := range commands {
		if string(c.cmd) == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (run 'accountd help')", name)
}

// printUsage はサブコマンドの一覧をwに書き込む。
func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("Usage: accountd <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	io.WriteString(w, b.String())
}
