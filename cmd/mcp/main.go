package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"screener-web/config"
	"screener-web/internal/mcptools"
	"screener-web/pkg/dependency_injection"
)

func main() {
	config.LoadEnv(
		"../../.env",
		".env",
	)
	cfg := config.Load()

	app := &cli.App{
		Name:  "screener-mcp",
		Usage: "serve the screener backend as MCP tools",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "serve over stdin/stdout instead of SSE",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "SSE listen address",
				Value: cfg.MCPAddr,
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg, c.String("addr"), c.Bool("stdio"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatalf("Failed to start MCP server: %v", err)
	}
}

func serve(ctx context.Context, cfg *config.Config, addr string, stdio bool) error {
	container := dependency_injection.NewContainer(ctx, cfg)
	defer container.Close()

	srv := mcptools.NewMCPServer(mcptools.NewToolset(container.Backend, container.Services.Watchlists))

	if stdio {
		return srv.StartStdio()
	}

	srv.InitSSE(addr)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.StartSSE(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Println("Shutting down MCP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
