package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	HeaderUserID = "X-User-ID"

	limiterIdleTTL = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewRateLimiter(cfg config.RateLimitConfig, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(cfg.RPS),
		burst:    cfg.Burst,
		now:      time.Now,
		log:      log,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// callerKey is the X-User-ID header, then the user_id query parameter, then the client IP.
func callerKey(c *gin.Context) string {
	if uid := c.GetHeader(HeaderUserID); uid != "" {
		return "user:" + uid
	}
	if uid := c.Query("user_id"); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}

// Handler rejects callers over their budget with code 42900. A non-positive rate disables it.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}
		key := callerKey(c)
		if !rl.allow(key) {
			logctx.FromGin(c, rl.log).Warnw("rate limit exceeded", "key", key, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeRateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}
