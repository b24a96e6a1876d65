package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sunpeak/console-api/internal/config"
	authHandler "github.com/sunpeak/console-api/internal/handler/auth"
	notificationHandler "github.com/sunpeak/console-api/internal/handler/notification"
	"github.com/sunpeak/console-api/internal/middleware"
	"github.com/sunpeak/console-api/internal/realtime"
	"github.com/sunpeak/console-api/internal/repository/postgres"
	"github.com/sunpeak/console-api/internal/router"
	authService "github.com/sunpeak/console-api/internal/service/auth"
	notificationService "github.com/sunpeak/console-api/internal/service/notification"
	jwtauth "github.com/sunpeak/console-api/pkg/auth"
	redisbroker "github.com/sunpeak/console-api/pkg/messaging/redis"
	"github.com/sunpeak/console-api/pkg/metrics"
	"github.com/sunpeak/console-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	appMetrics := metrics.NewMetrics("console_api")

	broker, err := redisbroker.NewBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	notificationRepo := postgres.NewNotificationRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Services
	jwtSvc := jwtauth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(12)
	authSvc := authService.NewService(userRepo, jwtSvc, hasher)
	notificationSvc := notificationService.NewService(notificationRepo, cfg.Notifications.UnreadCacheTTL, appMetrics)

	// Realtime hub and the broker bridge feeding it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(log.Logger, appMetrics)
	go hub.Run(ctx)

	bridge := realtime.NewBridge(hub, broker, log.Logger, appMetrics)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("realtime bridge stopped")
		}
	}()

	// Middleware and handlers
	authMW := middleware.NewAuthMiddleware(authSvc)
	limiter := middleware.NewUserRateLimiter(middleware.RateLimiterConfig{
		Limit:  cfg.Notifications.RateLimit,
		Window: cfg.Notifications.RateWindow,
	})
	authH := authHandler.NewHandler(authSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc, authSvc, hub)

	r := router.NewRouter(authMW, limiter, authH, notificationH)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
