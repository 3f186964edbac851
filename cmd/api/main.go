package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ajaykrishnavemula/Campus-Pass-sub001/api/swagger"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/handler"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/middleware"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/realtime"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/repository"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/service"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/cache"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/config"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/database"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/jobs"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/logger"
	corsmiddleware "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/middleware/requestid"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/passdoc"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/passtoken"
)

// @title Campus Pass API
// @version 1.0.0
// @description Campus outpass lifecycle with warden approval, gate verification, and live notifications
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	outpassRepo := repository.NewOutpassRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, repository.WithCacheRecorder(metrics))

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-pass",
	})

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry, logr,
		realtime.WithDeliveryRecorder(metrics),
		realtime.WithSendBuffer(cfg.Realtime.SendBuffer))

	notificationOpts := []service.NotificationServiceOption{service.WithNotificationRecorder(metrics)}
	if cfg.Realtime.Enabled {
		notificationOpts = append(notificationOpts, service.WithLiveBroadcaster(hub))
	}
	notificationService := service.NewNotificationService(notificationRepo, userRepo, logr, notificationOpts...)

	dispatcher := service.NewEventDispatcher(notificationService.HandleEvent, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.QueueBuffer,
		MaxRetries: cfg.Notifications.MaxRetries,
		Logger:     logr,
	})

	signer := passtoken.NewSigner(cfg.PassToken.Secret)
	outpassService := service.NewOutpassService(outpassRepo, signer, dispatcher, logr,
		service.WithStatsCache(cacheRepo, cfg.Stats.CacheTTL),
		service.WithTransitionRecorder(metrics))

	sweep := service.NewSweepService(outpassRepo, outpassService, cfg.Sweep.Interval, cfg.Sweep.BatchSize, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	if cfg.Sweep.Enabled {
		sweep.Start(rootCtx)
		defer sweep.Stop()
	}

	authHandler := handler.NewAuthHandler(authService)
	outpassHandler := handler.NewOutpassHandler(outpassService, passdoc.NewRenderer())
	notificationHandler := handler.NewNotificationHandler(notificationService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	outpasses := api.Group("/outpasses", middleware.JWT(authService))
	{
		outpasses.POST("", middleware.RequireRoles(models.RoleStudent), outpassHandler.Create)
		outpasses.GET("", outpassHandler.List)
		outpasses.GET("/stats", middleware.RequireRoles(models.RoleWarden, models.RoleSecurity, models.RoleAdmin), outpassHandler.Stats)
		outpasses.GET("/:id", outpassHandler.Get)
		outpasses.GET("/:id/document", outpassHandler.Document)
		outpasses.POST("/:id/approve", middleware.RequireRoles(models.RoleWarden), outpassHandler.Approve)
		outpasses.POST("/:id/reject", middleware.RequireRoles(models.RoleWarden), outpassHandler.Reject)
		outpasses.POST("/:id/cancel", middleware.RequireRoles(models.RoleStudent), outpassHandler.Cancel)
		outpasses.POST("/:id/check-out", middleware.RequireRoles(models.RoleSecurity), outpassHandler.CheckOut)
		outpasses.POST("/:id/check-in", middleware.RequireRoles(models.RoleSecurity), outpassHandler.CheckIn)
	}

	notifications := api.Group("/notifications", middleware.JWT(authService))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	if cfg.Realtime.Enabled {
		wsHandler := hub.Handler(handler.RealtimeAuthenticator(authService))
		api.GET("/ws", gin.WrapH(wsHandler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
