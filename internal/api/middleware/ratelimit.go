package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"cimars/catalog/internal/config"
)

const (
	limiterIdleTTL         = 30 * time.Minute
	limiterCleanupInterval = 10 * time.Minute
)

// Tier is a token bucket applied per client to a group of routes.
type Tier struct {
	Name       string
	RefillRate int // tokens per second
	BucketSize int
}

// ReadTier and MailTier build the two tiers the public API uses.
func ReadTier(cfg *config.Config) Tier {
	return Tier{Name: "read", RefillRate: cfg.RateLimitReadRefillRate, BucketSize: cfg.RateLimitReadBucketSize}
}

func MailTier(cfg *config.Config) Tier {
	return Tier{Name: "mail", RefillRate: cfg.RateLimitMailRefillRate, BucketSize: cfg.RateLimitMailBucketSize}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one limiter per client and tier.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter starts a janitor that drops idle clients until ctx ends.
func NewRateLimiter(ctx context.Context) *RateLimiter {
	rl := &RateLimiter{clients: make(map[string]*clientLimiter)}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *RateLimiter) limiterFor(key string, tier Tier) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(tier.RefillRate), tier.BucketSize)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.cleanup(time.Now()); n > 0 {
				slog.Debug("rate limiter cleanup", "removed", n)
			}
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Limit rejects requests with 429 once the client's bucket for tier is empty.
func (rl *RateLimiter) Limit(tier Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := tier.Name + "|" + c.ClientIP()
		if !rl.limiterFor(key, tier).Allow() {
			slog.Warn("rate limit exceeded", "tier", tier.Name, "client", c.ClientIP(), "path", c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
