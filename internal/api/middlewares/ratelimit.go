package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/internal/api/models"
)

type RateLimiter struct {
	visitors map[string]*visitor
	mutex    sync.Mutex
	rate     int
	window   time.Duration
	cleanup  time.Duration
}

type visitor struct {
	lastSeen    time.Time
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a fixed-window per-IP limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		cleanup:  10 * time.Minute,
	}

	go rl.cleanupExpiredVisitors()
	return rl
}

// RateLimit applies the global per-IP request limit
func RateLimit(ratePerMinute int) gin.HandlerFunc {
	if ratePerMinute <= 0 {
		ratePerMinute = 100
	}
	limiter := NewRateLimiter(ratePerMinute, time.Minute)
	return limitWith(limiter, "Rate limit exceeded. Please try again later.")
}

// ReceiptLookupLimit throttles the public receipt endpoint much harder than
// the general API. Receipt probing is the only way to fish for ballot
// hashes, so the window here is deliberately tight.
func ReceiptLookupLimit(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	limiter := NewRateLimiter(limit, window)
	return limitWith(limiter, "Too many receipt lookups. Please try again later.")
}

func limitWith(limiter *RateLimiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, models.BaseResponse{
				Success: false,
				Error: &models.ErrorInfo{
					Code:    models.ErrCodeRateLimited,
					Message: message,
				},
				Timestamp: time.Now().Unix(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	v, exists := rl.visitors[ip]

	if !exists {
		rl.visitors[ip] = &visitor{lastSeen: now, count: 1, windowStart: now}
		return true
	}

	v.lastSeen = now

	// Reset counter if window has passed
	if now.Sub(v.windowStart) >= rl.window {
		v.count = 1
		v.windowStart = now
		return true
	}

	if v.count >= rl.rate {
		return false
	}

	v.count++
	return true
}

func (rl *RateLimiter) cleanupExpiredVisitors() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rl.mutex.Lock()
		now := time.Now()
		for ip, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.cleanup {
				delete(rl.visitors, ip)
			}
		}
		rl.mutex.Unlock()
	}
}
