package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-resource-core/api/swagger"
	"github.com/noah-isme/sma-resource-core/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-resource-core/internal/middleware"
	"github.com/noah-isme/sma-resource-core/internal/repository"
	"github.com/noah-isme/sma-resource-core/internal/service"
	"github.com/noah-isme/sma-resource-core/pkg/cache"
	"github.com/noah-isme/sma-resource-core/pkg/config"
	"github.com/noah-isme/sma-resource-core/pkg/database"
	"github.com/noah-isme/sma-resource-core/pkg/export"
	"github.com/noah-isme/sma-resource-core/pkg/lock"
	"github.com/noah-isme/sma-resource-core/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-resource-core/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-resource-core/pkg/middleware/requestid"
)

// @title School Resource Core API
// @version 1.0.0
// @description Room booking and daily attendance with consistent conflict detection.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cache.Required(cfg) {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix)
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Booking.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedis(redisClient, "resource-core:lock:", cfg.Booking.LockTTL)
	}

	tx := repository.NewTransactor(db)
	roomRepo := repository.NewRoomRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	validate := validator.New()
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Leeway: 30 * time.Second}, logr)
	bookingSvc := service.NewBookingService(bookingRepo, roomRepo, classRepo, tx, locker, service.BookingConfig{
		Horizon:   cfg.Booking.Horizon,
		PastGrace: cfg.Booking.PastGrace,
	}, validate, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, classRepo, tx, cacheSvc, validate, metricsSvc, logr)
	statsSvc := service.NewStatsService(attendanceRepo, enrollmentRepo, classRepo, cacheSvc, cfg.Stats.CacheTTL, logr)
	exportSvc := service.NewExportService(attendanceRepo, classRepo, logr, export.NewCSVExporter(export.WithExcelBOM()), nil)

	checks := map[string]handler.Pinger{"postgres": database.NewHealthCheck(db)}
	if cacheRepo != nil {
		checks["redis"] = cacheRepo
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.Use(internalmiddleware.JWT(tokenSvc))
	registerRoutes(api, routeHandlers{
		bookings:   handler.NewBookingHandler(bookingSvc),
		rooms:      handler.NewRoomHandler(bookingSvc),
		attendance: handler.NewAttendanceHandler(attendanceSvc, exportSvc, attendanceSvc.Validator()),
		stats:      handler.NewStatsHandler(statsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("lock_backend", cfg.Booking.LockBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
