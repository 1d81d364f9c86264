package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/nitro-academy/turma-scheduler/api/swagger"
	"github.com/nitro-academy/turma-scheduler/internal/handler"
	"github.com/nitro-academy/turma-scheduler/internal/integrations/contentstore"
	internalmiddleware "github.com/nitro-academy/turma-scheduler/internal/middleware"
	"github.com/nitro-academy/turma-scheduler/internal/models"
	"github.com/nitro-academy/turma-scheduler/internal/repository"
	"github.com/nitro-academy/turma-scheduler/internal/service"
	"github.com/nitro-academy/turma-scheduler/migrations"
	"github.com/nitro-academy/turma-scheduler/pkg/cache"
	"github.com/nitro-academy/turma-scheduler/pkg/config"
	"github.com/nitro-academy/turma-scheduler/pkg/database"
	"github.com/nitro-academy/turma-scheduler/pkg/jobs"
	"github.com/nitro-academy/turma-scheduler/pkg/lock"
	"github.com/nitro-academy/turma-scheduler/pkg/logger"
	corsmiddleware "github.com/nitro-academy/turma-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/nitro-academy/turma-scheduler/pkg/middleware/requestid"
)

// @title Turma Scheduler API
// @version 1.0.0
// @description Class slot scheduling and capacity for courses
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readiness := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	if cfg.Slots.StoreDriver == config.StoreDriverPostgres || cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()

		migrator, err := database.NewMigrator(db.DB, migrations.FS, logr)
		if err != nil {
			logr.Fatal("failed to prepare migrations", zap.Error(err))
		}
		if err := migrator.Up(ctx); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		readiness["database"] = db.PingContext
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	} else {
		cacheRepo = repository.NewCacheRepository(nil)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Slots.ScheduleOptionsTTL, logr, redisClient != nil)

	var (
		slotStore   service.SlotStore
		timesSource interface {
			ListScheduleTimes(ctx context.Context, courseID string) ([]string, error)
		}
	)
	switch cfg.Slots.StoreDriver {
	case config.StoreDriverContentStore:
		client := contentstore.NewClient(cfg.ContentStore.URL, cfg.ContentStore.Token, cfg.ContentStore.Timeout, logr)
		slotStore = contentstore.NewSlotStore(client)
		timesSource = client
	default:
		repo := repository.NewCourseSlotRepository(db)
		slotStore = repo
		timesSource = repo
	}
	logr.Info("slot store selected", zap.String("driver", cfg.Slots.StoreDriver))

	var locker lock.Locker = lock.NewKeyedMutex()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, cache.Key("lock"), cfg.Slots.LockTTL)
	}

	var auditSvc *service.SlotAuditService
	if cfg.Audit.Enabled {
		auditSvc = service.NewSlotAuditService(repository.NewSlotAuditRepository(db), jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			MaxRetries: cfg.Audit.MaxRetries,
			RetryDelay: cfg.Audit.RetryDelay,
		}, logr)
		auditSvc.Start(ctx)
		defer auditSvc.Stop()
	}

	validate := validator.New()
	optionsSvc := service.NewScheduleOptionsService(timesSource, cacheSvc, cfg.Slots.FallbackTimeLabels, cfg.Slots.ScheduleOptionsTTL, cfg.Slots.StoreTimeout, logr)
	slotSvc := service.NewCourseSlotService(slotStore, optionsSvc, locker, auditSvc, metricsSvc, service.CourseSlotConfig{
		MaxCapacity:          cfg.Slots.MaxCapacity,
		NearlyFullRatio:      cfg.Slots.NearlyFullRatio,
		StoreTimeout:         cfg.Slots.StoreTimeout,
		PromotionalBadgeText: cfg.Slots.PromotionalBadgeText,
	}, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	var history interface {
		History(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error)
	}
	if auditSvc != nil {
		history = auditSvc
	}
	slotHandler := handler.NewCourseSlotHandler(slotSvc, optionsSvc, service.NewSlotExportService(slotSvc, logr), history)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.Use(internalmiddleware.JWT(authSvc))

	courses := api.Group("/courses/:courseId")
	courses.GET("/slots", slotHandler.List)
	courses.GET("/schedule-options", slotHandler.ScheduleOptions)
	courses.GET("/slots/:displayNumber/admission", slotHandler.Admission)

	admin := courses.Group("", internalmiddleware.RBAC(models.RoleAdmin))
	admin.POST("/slots", slotHandler.Add)
	admin.PUT("/slots/order", slotHandler.Reorder)
	admin.DELETE("/slots/:index", slotHandler.Delete)
	admin.GET("/slots/history", slotHandler.History)
	admin.GET("/slots/export", slotHandler.Export)
	admin.POST("/schedule-options/refresh", slotHandler.RefreshScheduleOptions)

	api.GET("/metrics/summary", internalmiddleware.RBAC(models.RoleAdmin), metricsHandler.Summary)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	logr.Info("server stopped")
}
