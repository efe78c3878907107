package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/vtu-tools/college-erp-api/api/swagger"
	"github.com/vtu-tools/college-erp-api/internal/handler"
	"github.com/vtu-tools/college-erp-api/internal/middleware"
	"github.com/vtu-tools/college-erp-api/internal/models"
	"github.com/vtu-tools/college-erp-api/internal/repository"
	"github.com/vtu-tools/college-erp-api/internal/service"
	"github.com/vtu-tools/college-erp-api/pkg/cache"
	"github.com/vtu-tools/college-erp-api/pkg/config"
	"github.com/vtu-tools/college-erp-api/pkg/database"
	"github.com/vtu-tools/college-erp-api/pkg/logger"
	corsmiddleware "github.com/vtu-tools/college-erp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vtu-tools/college-erp-api/pkg/middleware/requestid"
)

// @title College ERP Marks API
// @version 1.0.0
// @description Component marks entry, aggregation and export
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
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		}
	}

	validate := validator.New()

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	subjects := repository.NewSubjectRepository(db)
	configs := repository.NewSubjectComponentRepository(db)
	marks := repository.NewComponentMarkRepository(db)
	internals := repository.NewInternalExamRepository(db)
	totals := repository.NewOverallTotalRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	totalsSvc := service.NewTotalsService(marks, internals, totals, subjects, cacheSvc, logr, cfg.Marks.MaxPageSize)
	componentSvc := service.NewComponentService(configs, marks, students, subjects, totalsSvc, validate, logr, cfg.Marks.MaxPageSize)
	importSvc := service.NewImportService(configs, componentSvc, students, subjects, logr, cfg.Marks.UploadConcurrency)

	authHandler := handler.NewAuthHandler(authSvc)
	componentHandler := handler.NewComponentHandler(componentSvc, importSvc, cfg.Marks.UploadMaxBytes)
	totalsHandler := handler.NewTotalsHandler(totalsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
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

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	graders := authed.Group("/components")
	graders.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty))
	graders.GET("/grid", componentHandler.Grid)
	graders.PATCH("/entry", componentHandler.Entry)
	graders.POST("/upload", componentHandler.Upload)
	graders.GET("/template", componentHandler.Template)

	authed.GET("/totals/grid", totalsHandler.Grid)
	authed.GET("/totals/export",
		middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty),
		totalsHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
