package services

import (
	"context"
	"time"
)

// HealthStatus represents the status of a service
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Pinger is anything with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService handles health check operations
type HealthService struct {
	backend Pinger
	redis   Pinger // nil when the watchlist cache is disabled
}

// NewHealthService creates a new health service
func NewHealthService(backend Pinger, redis Pinger) *HealthService {
	return &HealthService{
		backend: backend,
		redis:   redis,
	}
}

// CheckOverall checks all dependencies
func (s *HealthService) CheckOverall(ctx context.Context) map[string]HealthStatus {
	status := map[string]HealthStatus{
		"backend": check(ctx, s.backend),
	}
	if s.redis != nil {
		status["redis"] = check(ctx, s.redis)
	}
	return status
}

// Healthy reports whether every entry of status is ok.
func Healthy(status map[string]HealthStatus) bool {
	for _, s := range status {
		if s.Status != "ok" {
			return false
		}
	}
	return true
}

func check(ctx context.Context, p Pinger) HealthStatus {
	if err := p.Ping(ctx); err != nil {
		return HealthStatus{
			Status:    "error",
			Timestamp: time.Now(),
			Details:   err.Error(),
		}
	}
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
	}
}
