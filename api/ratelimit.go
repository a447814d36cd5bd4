package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a fixed-window request counter keyed by client IP + path.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow

	done      chan struct{}
	closeOnce sync.Once
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
		done:    make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// allow counts one request; the second return is the seconds until the
// window resets, used for Retry-After.
func (rl *rateLimiter) allow(key string) (bool, int) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &rateWindow{count: 1, resetAt: now.Add(rl.window)}
		return true, 0
	}
	w.count++
	if w.count > rl.limit {
		retry := int(time.Until(w.resetAt).Seconds()) + 1
		return false, retry
	}
	return true, 0
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// health stays reachable for load balancers
		if strings.HasSuffix(c.FullPath(), "/health") {
			c.Next()
			return
		}
		ok, retry := rl.allow(c.ClientIP() + " " + c.FullPath())
		if !ok {
			c.Header("Retry-After", fmt.Sprintf("%d", retry))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// janitor drops expired windows so the map does not grow forever
func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, w := range rl.windows {
				if now.After(w.resetAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.closeOnce.Do(func() { close(rl.done) })
}
