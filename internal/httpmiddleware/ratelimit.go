package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIP keys requests by gin's client address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// TokenBucket is an in-memory per-key rate limiter.
type TokenBucket struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	state   map[string]*entry
	lastGC  time.Time
	nowFunc func() time.Time
}

type entry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewTokenBucket allows perMinute requests per key with bursts up to
// capacity. capacity <= 0 uses perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   capacity,
		idle:    10 * time.Minute,
		state:   make(map[string]*entry),
		nowFunc: time.Now,
	}
}

// GinMiddleware returns gin handler enforcing per-key limits.
func (l *TokenBucket) GinMiddleware(key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	return func(c *gin.Context) {
		if !l.Allow(key(c)) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"kind":    "rate_limited",
				"message": "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}

// Allow charges one token to key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	e, ok := l.state[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.state[key] = e
	}
	e.seen = now
	l.gc(now)
	return e.limiter.AllowN(now, 1)
}

// gc drops limiters idle for longer than l.idle. Callers hold l.mu.
func (l *TokenBucket) gc(now time.Time) {
	if now.Sub(l.lastGC) < l.idle {
		return
	}
	l.lastGC = now
	for k, e := range l.state {
		if now.Sub(e.seen) > l.idle {
			delete(l.state, k)
		}
	}
}
