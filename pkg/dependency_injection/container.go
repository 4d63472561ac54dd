package dependency_injection

import (
	"context"

	"screener-web/config"
	"screener-web/internal/services"
	"screener-web/pkg/backend"
	"screener-web/pkg/memorydb"

	fylogger "github.com/FyersDev/trading-logger-go"
)

// Container wires the shared dependencies of the web and MCP binaries.
type Container struct {
	Config      *config.Config
	Backend     *backend.Client
	RedisClient *memorydb.RedisClient // nil when the watchlist cache is off
	Services    *services.Services
}

// NewContainer builds the backend client and services. Redis is optional:
// a connection failure is logged and the watchlist cache stays disabled.
func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	var redisClient *memorydb.RedisClient
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = memorydb.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			fylogger.ErrorLog(ctx, "Failed to initialize redis client, watchlist cache disabled", err, map[string]interface{}{
				"redis_url": cfg.Redis.URL,
			})
			redisClient = nil
		}
	}

	client := backend.NewClient(cfg.Backend.URL, nil, cfg.Backend.Timeout)
	svcs := services.NewServices(client, redisClient, cfg.Redis.WatchlistTTL, cfg.Backend.PollInterval)

	fylogger.InfoLog(ctx, "dependencies initialized", map[string]interface{}{
		"backend_url":     client.BaseURL(),
		"watchlist_cache": redisClient != nil,
		"poll_interval":   svcs.PollInterval().String(),
	})

	return &Container{
		Config:      cfg,
		Backend:     client,
		RedisClient: redisClient,
		Services:    svcs,
	}
}

func (c *Container) Close() {
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
}
