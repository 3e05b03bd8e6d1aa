package catalog

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per platform (requests per second). Deezer and
// Spotify tolerate short bursts; Discogs enforces a strict per-second cap.
var defaultRateLimits = map[PlatformName]rate.Limit{
	NameDeezer:  5,
	NameSpotify: 5,
	NameDiscogs: 1,
}

// RateLimiterMap holds one rate.Limiter per platform, created once at
// startup and handed to every connector. Connectors own their pacing
// through it; nothing else throttles outbound requests.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[PlatformName]*rate.Limiter
}

// NewRateLimiterMap creates all platform rate limiters with default limits.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[PlatformName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// SetLimit overrides the requests-per-second limit for one platform.
func (m *RateLimiterMap) SetLimit(name PlatformName, rps float64) {
	if rps <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[name]; ok {
		l.SetLimit(rate.Limit(rps))
		return
	}
	m.limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the rate limiter for the given platform allows a
// request, or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name PlatformName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
