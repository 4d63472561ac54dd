package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screener-web/config"
	"screener-web/internal/handlers"
	"screener-web/pkg/dependency_injection"
)

func main() {
	// Load .env file
	config.LoadEnv(
		"../../.env", // From cmd/web/ to the repo root
		".env",       // Current directory
	)

	// Load configuration
	cfg := config.Load()

	// Root context; cancelling it ends every mounted status view
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Initialize backend client, optional redis cache and services
	container := dependency_injection.NewContainer(rootCtx, cfg)
	defer container.Close()

	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	// Setup router
	router := handlers.NewRouter(cfg, container.Services, tmpl)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return rootCtx },
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s:%s (backend %s)", cfg.Server.Host, cfg.Server.Port, container.Backend.BaseURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Hijacked websocket connections are not tracked by Shutdown
	cancelRoot()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
