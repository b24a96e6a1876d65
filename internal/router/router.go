package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sunpeak/console-api/internal/handler/auth"
	"github.com/sunpeak/console-api/internal/handler/notification"
	"github.com/sunpeak/console-api/internal/middleware"
)

type Router struct {
	engine        *gin.Engine
	authMW        *middleware.AuthMiddleware
	limiter       *middleware.UserRateLimiter
	authH         *auth.Handler
	notificationH *notification.Handler
}

func NewRouter(
	authMW *middleware.AuthMiddleware,
	limiter *middleware.UserRateLimiter,
	authH *auth.Handler,
	notificationH *notification.Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	return &Router{
		engine:        engine,
		authMW:        authMW,
		limiter:       limiter,
		authH:         authH,
		notificationH: notificationH,
	}
}

func (r *Router) Setup() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	r.authH.RegisterRoutes(api, r.authMW)
	r.notificationH.RegisterRoutes(api, r.authMW, r.limiter)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
