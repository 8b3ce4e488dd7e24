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
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dclabs/mailadmin-api/api/swagger"
	"github.com/dclabs/mailadmin-api/internal/handler"
	"github.com/dclabs/mailadmin-api/internal/middleware"
	"github.com/dclabs/mailadmin-api/internal/models"
	"github.com/dclabs/mailadmin-api/internal/repository"
	"github.com/dclabs/mailadmin-api/internal/service"
	"github.com/dclabs/mailadmin-api/pkg/cache"
	"github.com/dclabs/mailadmin-api/pkg/config"
	"github.com/dclabs/mailadmin-api/pkg/database"
	"github.com/dclabs/mailadmin-api/pkg/jobs"
	"github.com/dclabs/mailadmin-api/pkg/logger"
	corsmiddleware "github.com/dclabs/mailadmin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dclabs/mailadmin-api/pkg/middleware/requestid"
	"github.com/dclabs/mailadmin-api/pkg/storage"
)

// @title Mail Admin API
// @version 1.0.0
// @description Administrative console API for the mailing list subscriber database
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	// Redis is optional: without it the meta catalog is re-read per request.
	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, meta cache disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Meta.CacheTTL, logr, cfg.Meta.CacheEnabled && cacheRepo != nil)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	metaRepo := repository.NewMetaRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	bulkRepo := repository.NewBulkRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "mailadmin-api",
		Audience:          []string{"mailadmin-console"},
	})
	metaSvc := service.NewMetaService(metaRepo, cacheSvc, logr)
	subscriberSvc := service.NewSubscriberService(subscriberRepo, metaRepo, logr)
	bulkSvc := service.NewBulkService(bulkRepo, subscriberRepo, metaRepo, exportStore, signer,
		service.BulkConfig{APIPrefix: cfg.APIPrefix}, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	metaHandler := handler.NewMetaHandler(metaSvc)
	subscriberHandler := handler.NewSubscriberHandler(subscriberSvc)
	bulkHandler := handler.NewBulkHandler(bulkSvc)
	exportHandler := handler.NewExportHandler(exportStore, signer)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// Export downloads authenticate through the signed token itself.
	api.GET("/export/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/auth/me", authHandler.Me)
	protected.GET("/status", metricsHandler.Snapshot)

	readers := protected.Group("")
	readers.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleViewer))
	readers.GET("/meta", metaHandler.Catalog)
	readers.GET("/subscribers", subscriberHandler.List)

	writers := protected.Group("")
	writers.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	writers.Use(middleware.Audit(auditRepo, models.AuditActionBulkAction, "subscribers"))
	writers.POST("/bulk", bulkHandler.Execute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanupQueue := jobs.NewQueue("export-cleanup", func(ctx context.Context, job jobs.Job) error {
		deleted, err := exportStore.CleanupOlderThan(cfg.Exports.ResultTTL)
		if err != nil {
			return err
		}
		if len(deleted) > 0 {
			logr.Sugar().Infow("expired exports removed", "count", len(deleted))
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "cleanup"}); err != nil {
					logr.Sugar().Warnw("failed to enqueue export cleanup", "error", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
