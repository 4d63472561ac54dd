package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"screener-web/cmd/screenerctl/commands"
	"screener-web/config"
)

func main() {
	config.LoadEnv(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := commands.NewApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
