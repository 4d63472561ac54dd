package services

import (
	"time"

	"screener-web/internal/poller"
	"screener-web/pkg/backend"
	"screener-web/pkg/memorydb"
)

// Services holds all service instances
type Services struct {
	backend      *backend.Client
	pollInterval time.Duration

	Health     *HealthService
	Watchlists *WatchlistService
	Screener   *ScreenerService
	Backtest   *BacktestService
}

// NewServices wires services around one backend client. redis may be nil.
func NewServices(client *backend.Client, redis *memorydb.RedisClient, watchlistTTL, pollInterval time.Duration) *Services {
	var cache WatchlistCache
	var redisPinger Pinger
	if redis != nil {
		cache = redis
		redisPinger = redis
	}

	return &Services{
		backend:      client,
		pollInterval: pollInterval,
		Health:       NewHealthService(client, redisPinger),
		Watchlists:   NewWatchlistService(client, cache, watchlistTTL),
		Screener:     NewScreenerService(client),
		Backtest:     NewBacktestService(client),
	}
}

// Backend returns the shared backend client.
func (s *Services) Backend() *backend.Client {
	return s.backend
}

// NewStatusPoller mounts a fresh status poller against the backend.
func (s *Services) NewStatusPoller(opts ...poller.Option) *poller.Poller {
	opts = append([]poller.Option{poller.WithInterval(s.PollInterval())}, opts...)
	return poller.New(s.backend, opts...)
}

// PollInterval is the cadence used by mounted status views.
func (s *Services) PollInterval() time.Duration {
	if s.pollInterval <= 0 {
		return poller.DefaultInterval
	}
	return s.pollInterval
}
