package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/apierror"
	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides fixed-window request limiting per client key.
// Authenticated requests are keyed by user ID, anonymous ones by IP.
type RateLimiter struct {
	requests map[string]*clientInfo
	mu       sync.Mutex
	rate     int           // requests per window
	window   time.Duration // time window
	name     string        // identifier for logging
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type clientInfo struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Stop to end the loop.
// rate: maximum requests allowed per window
// window: time window for rate limiting
// name: identifier for logging (e.g., "general", "analyze")
func NewRateLimiter(rate int, window time.Duration, name string) *RateLimiter {
	return newRateLimiter(rate, window, name, time.Now)
}

func newRateLimiter(rate int, window time.Duration, name string, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*clientInfo),
		rate:     rate,
		window:   window,
		name:     name,
		now:      now,
		done:     make(chan struct{}),
	}

	go rl.cleanup()

	logger.Default().Debug("rate limiter initialized",
		logger.String("name", name),
		logger.Int("rate", rate),
		logger.Duration("window", window),
	)

	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// cleanup removes stale entries periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := rl.now()
		cleaned := 0
		for key, info := range rl.requests {
			if now.Sub(info.lastSeen) > rl.window*2 {
				delete(rl.requests, key)
				cleaned++
			}
		}
		remaining := len(rl.requests)
		rl.mu.Unlock()

		if cleaned > 0 {
			logger.Default().Debug("rate limiter cleanup completed",
				logger.String("name", rl.name),
				logger.Int("cleaned", cleaned),
				logger.Int("remaining", remaining),
			)
		}
	}
}

// allow records one request for key and reports whether it is within the
// limit, the count so far, and the seconds until the window resets.
func (rl *RateLimiter) allow(key string) (bool, int, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	info, exists := rl.requests[key]

	if !exists || now.Sub(info.windowStart) >= rl.window {
		rl.requests[key] = &clientInfo{count: 1, windowStart: now, lastSeen: now}
		return 1 <= rl.rate, 1, 0
	}

	info.count++
	info.lastSeen = now

	retryAfter := int((rl.window - now.Sub(info.windowStart) + time.Second - 1) / time.Second)
	return info.count <= rl.rate, info.count, retryAfter
}

// RateLimit returns a middleware handler enforcing rate requests per minute
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientKey(c)

		allowed, count, retryAfter := rl.allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		if !allowed {
			log := logger.FromContext(c.Request.Context())
			log.Warn("rate limit exceeded",
				logger.String("limiter", rl.name),
				logger.String("client", key),
				logger.Int("request_count", count),
				logger.Int("limit", rl.rate),
				logger.Duration("window", rl.window),
			)

			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			apierror.WriteProblem(c, apierror.NewRateLimitError(apierror.GetRequestID(c), retryAfter))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.rate-count))
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
