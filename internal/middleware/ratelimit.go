package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sunpeak/console-api/internal/handler"
)

type RateLimiterConfig struct {
	// Requests allowed per window, per user.
	Limit  int
	Window time.Duration
}

// UserRateLimiter enforces a per-user request budget. Limiters are held in
// an expiring cache so idle users do not accumulate.
type UserRateLimiter struct {
	config   RateLimiterConfig
	limiters *gocache.Cache
}

func NewUserRateLimiter(config RateLimiterConfig) *UserRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 120
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &UserRateLimiter{
		config:   config,
		limiters: gocache.New(2*config.Window, config.Window),
	}
}

func (rl *UserRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			// Authenticate runs first; treat a missing user as a bug, not a
			// free pass.
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
			return
		}

		if !rl.limiterFor(user.ID).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

func (rl *UserRateLimiter) limiterFor(userID int64) *rate.Limiter {
	key := fmt.Sprintf("%d", userID)
	if v, ok := rl.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Every(rl.config.Window/time.Duration(rl.config.Limit)), rl.config.Limit)
	rl.limiters.SetDefault(key, limiter)
	return limiter
}
