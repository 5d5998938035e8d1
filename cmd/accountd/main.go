// accountd はユーザーアカウントとパスワードリセットを提供するAPIサーバー。
//
// サブコマンド: serve（既定）, worker, migrate [up|down [N]|version], healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/accountd/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "accountd: %v\n", err)
		os.Exit(1)
	}
}
