package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTimeout is how long a client may stay silent before its limiter
	// is forgotten.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTimeout:       5 * time.Minute,
	}
}

// Limiter is a per-IP token bucket limiter.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a per-IP limiter.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultRateLimitConfig().IdleTimeout
	}
	return &Limiter{
		cfg:       cfg,
		now:       time.Now,
		clients:   make(map[string]*client),
		lastSweep: time.Now(),
	}
}

// Allow reports whether ip may make a request now. Idle clients are swept
// at most once per idle timeout.
func (l *Limiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > l.cfg.IdleTimeout {
		l.sweepLocked(now)
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Sweep forgets clients idle for longer than the idle timeout and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) int {
	l.lastSweep = now
	cutoff := now.Add(-l.cfg.IdleTimeout)
	removed := 0
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Run sweeps idle clients every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Handler returns the gin middleware.
func (l *Limiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return NewLimiter(cfg).Handler()
}
