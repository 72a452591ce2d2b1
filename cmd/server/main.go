package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/cache"
	"github.com/EduBridge-2025/advisory-service/internal/config"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/handlers"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/repositories/postgres"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/EduBridge-2025/advisory-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.AutoMigrate(db); err != nil {
		return err
	}
	repo := postgres.NewRepository(db)

	// Cache degrades to a no-op when redis is unreachable.
	var cacheService cache.CacheService
	if redisClient, err := cache.Connect(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, running without cache", "error", err)
		cacheService = cache.NoopCache{}
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, logger)
	}

	// Event bus; a Kafka mirror is attached when configured.
	busConfig := events.BusConfig{
		Topic:  cfg.EventsTopic,
		Logger: utils.ToSlogLogger(logger),
	}
	if cfg.EventsBroker == "kafka" {
		mirror, err := events.NewKafkaMirror(cfg.KafkaBrokers, utils.ToSlogLogger(logger))
		if err != nil {
			logger.Warn("kafka mirror unavailable, events stay in-process", "error", err)
		} else {
			busConfig.Mirror = mirror
		}
	}
	bus := events.NewBus(busConfig)
	defer bus.Close()

	hub := realtime.NewHub(services.NewRoomAuthorizer(repo), logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	serviceManager, err := services.NewServiceManager(ctx, cfg, repo, bus, hub, cacheService, tokens, logger)
	if err != nil {
		return err
	}

	// Event consumption runs for the life of the process.
	go func() {
		if err := serviceManager.Router().Run(ctx); err != nil {
			logger.Error("event router stopped", "error", err)
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(serviceManager, hub, tokens, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
