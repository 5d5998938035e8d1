// accountctl はaccountdに接続する対話型クライアント。
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/hitoshi/accountd/internal/client/api"
	"github.com/hitoshi/accountd/internal/client/cli"
	"github.com/hitoshi/accountd/internal/client/session"
	"github.com/hitoshi/accountd/internal/config"
	"github.com/hitoshi/accountd/internal/logger"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging to stderr")
	flag.Parse()

	if err := run(*verbose); err != nil {
		fmt.Fprintf(os.Stderr, "accountctl: %v\n", err)
		os.Exit(1)
	}
}

func run(verbose bool) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	log := logger.NewCLI(os.Stderr, verbose)
	log.Debug("client configured",
		slog.String("api_url", cfg.APIURL),
		slog.String("session_file", cfg.SessionFile),
	)

	client := api.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.APIURL, log)
	machine := session.New(client, session.NewFileStore(cfg.SessionFile), log)

	return cli.NewApp(machine, os.Stdin, os.Stdout, int(os.Stdin.Fd())).Run(context.Background())
}
