// Package main is the entrypoint for the geometa CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonica-labs/geometa/internal/cli"
)

var (
	version = ""
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New().ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
