package services

import (
	"context"
	stderrors "errors"
	"time"

	"screener-web/pkg/backend"
	"screener-web/pkg/memorydb"

	fylogger "github.com/FyersDev/trading-logger-go"
)

const watchlistCacheKey = "screener-web:watchlists"

// WatchlistCache is the slice of the redis client used for watchlist names.
type WatchlistCache interface {
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// WatchlistService lists backend watchlists, optionally through a redis cache.
// Cache failures are logged and fall through to the backend.
type WatchlistService struct {
	client *backend.Client
	cache  WatchlistCache
	ttl    time.Duration
}

func NewWatchlistService(client *backend.Client, cache WatchlistCache, ttl time.Duration) *WatchlistService {
	return &WatchlistService{client: client, cache: cache, ttl: ttl}
}

// List returns the watchlist names in backend order.
func (s *WatchlistService) List(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var cached []string
		err := s.cache.GetJSON(ctx, watchlistCacheKey, &cached)
		switch {
		case err == nil:
			return cached, nil
		case !stderrors.Is(err, memorydb.ErrMiss):
			fylogger.ErrorLog(ctx, "watchlist cache read failed", err, nil)
		}
	}

	names, err := s.client.Watchlists(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, watchlistCacheKey, names, s.ttl); err != nil {
			fylogger.ErrorLog(ctx, "watchlist cache write failed", err, nil)
		}
	}
	return names, nil
}

// Invalidate drops the cached watchlist names.
func (s *WatchlistService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, watchlistCacheKey)
}
