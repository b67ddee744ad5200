package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-client throttle in front of the API.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// StaleAfter is how long an idle client keeps its bucket before it is
	// evicted. Zero means 10 minutes.
	StaleAfter time.Duration
}

// RateLimiter throttles requests with one token bucket per client IP.
// Rejections are counted in cc_rate_limited_total so sustained abuse shows
// up on the dashboard next to the decision counters.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	cfg     RateLimitConfig
	logger  *zap.Logger
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter and starts its eviction loop.
func NewRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	rl := &RateLimiter{
		buckets: make(map[string]*clientBucket),
		cfg:     cfg,
		logger:  logger,
	}
	go rl.evictStale()
	return rl
}

// Middleware returns the Gin middleware backed by this limiter.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.allow(ip) {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordRateLimited(path)
		rl.logger.Debug("request throttled",
			zap.String("client_ip", ip),
			zap.String("path", c.Request.URL.Path),
		)
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst),
		}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()
	return b.limiter.Allow()
}

func (rl *RateLimiter) evictStale() {
	for {
		time.Sleep(rl.cfg.StaleAfter / 2)
		cutoff := time.Now().Add(-rl.cfg.StaleAfter)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
