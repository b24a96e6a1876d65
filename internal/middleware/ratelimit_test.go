package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sunpeak/console-api/internal/model"
)

func rateLimitedRouter(rl *UserRateLimiter, user *model.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", func(c *gin.Context) {
		if user != nil {
			c.Set(ContextUser, user)
		}
		c.Next()
	}, rl.RateLimit(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	rl := NewUserRateLimiter(RateLimiterConfig{Limit: 5, Window: time.Minute})
	r := rateLimitedRouter(rl, &model.User{ID: 1})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitRejectsBeyondBudget(t *testing.T) {
	rl := NewUserRateLimiter(RateLimiterConfig{Limit: 3, Window: time.Minute})
	r := rateLimitedRouter(rl, &model.User{ID: 1})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitIsPerUser(t *testing.T) {
	rl := NewUserRateLimiter(RateLimiterConfig{Limit: 1, Window: time.Minute})

	first := rateLimitedRouter(rl, &model.User{ID: 1})
	second := rateLimitedRouter(rl, &model.User{ID: 2})

	w := httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// User 1 is out of budget; user 2 is untouched.
	w = httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	second.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitRejectsUnauthenticated(t *testing.T) {
	rl := NewUserRateLimiter(RateLimiterConfig{Limit: 5, Window: time.Minute})
	r := rateLimitedRouter(rl, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
