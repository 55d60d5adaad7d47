package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity whose bucket it draws from.
type keyFunc func(*gin.Context) string

// KeyBySubjectOrIP keys buckets by the authenticated subject, falling back
// to the client IP for anonymous callers (the public contact form).
func KeyBySubjectOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := IdentityFrom(c).Subject; s != "" {
			return "sub:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Routes that call a
// paid vendor can be given a higher token cost than plain reads.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	costs map[string]int

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
	now      func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		costs:    map[string]int{},
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// WithCost sets the token cost of a registered route (c.FullPath()). Costs
// above the burst are clamped to it so the route stays reachable.
func (rl *RateLimiter) WithCost(route string, tokens int) *RateLimiter {
	if tokens < 1 {
		tokens = 1
	}
	if tokens > rl.burst {
		tokens = rl.burst
	}
	rl.costs[route] = tokens
	return rl
}

func (rl *RateLimiter) cost(c *gin.Context) int {
	if n, ok := rl.costs[c.FullPath()]; ok {
		return n
	}
	return 1
}

// getVisitor returns the limiter for key. Every 5000 lookups it first evicts
// buckets idle for at least ttl.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged a replay.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds to refill n tokens, at least 1.
func (rl *RateLimiter) retryAfter(n int) string {
	if rl.rps <= 0 {
		return "60"
	}
	secs := int(math.Ceil(float64(n) / float64(rl.rps)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Handler enforces the limits. Replays skip limiting; denied requests get
// 429 with Retry-After and the standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		n := rl.cost(c)
		if rl.getVisitor(rl.keyFn(c)).AllowN(rl.now(), n) {
			c.Next()
			return
		}
		c.Header("Retry-After", rl.retryAfter(n))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
