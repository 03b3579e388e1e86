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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/zafarze/gat-sub000/api/swagger"
	"github.com/zafarze/gat-sub000/internal/handler"
	"github.com/zafarze/gat-sub000/internal/repository"
	"github.com/zafarze/gat-sub000/internal/service"
	"github.com/zafarze/gat-sub000/internal/scoring"
	"github.com/zafarze/gat-sub000/pkg/cache"
	"github.com/zafarze/gat-sub000/pkg/config"
	"github.com/zafarze/gat-sub000/pkg/database"
	"github.com/zafarze/gat-sub000/pkg/export"
	"github.com/zafarze/gat-sub000/pkg/jobs"
	"github.com/zafarze/gat-sub000/pkg/logger"
	"github.com/zafarze/gat-sub000/pkg/storage"
)

// @title GAT Results API
// @version 1.0.0
// @description Ingests GAT answer sheets and serves scored reports per school, class and student.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Reports still work uncached.
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := build(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	defer app.shutdown()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type application struct {
	router   *gin.Engine
	shutdown func()
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	schools := repository.NewSchoolRepository(db)
	academic := repository.NewAcademicRepository(db)
	classes := repository.NewClassRepository(db)
	subjects := repository.NewSubjectRepository(db)
	classSubjects := repository.NewClassSubjectRepository(db)
	students := repository.NewStudentRepository(db)
	tests := repository.NewGatTestRepository(db)
	results := repository.NewResultRepository(db)
	reportJobs := repository.NewReportJobRepository(db)
	users := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Analytics.CacheEnabled && redisClient != nil
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	catalogSvc := service.NewCatalogService(service.CatalogStores{
		Schools:       schools,
		Academic:      academic,
		Classes:       classes,
		Subjects:      subjects,
		ClassSubjects: classSubjects,
		Students:      students,
	}, cacheSvc, validate, logr)
	registrySvc := service.NewTestRegistryService(service.RegistryStores{
		Tests:         tests,
		Results:       results,
		Classes:       classes,
		Subjects:      subjects,
		ClassSubjects: classSubjects,
		Academic:      academic,
	}, cacheSvc, validate, logr)
	ingestSvc := service.NewIngestService(service.IngestDeps{
		Tests:    registrySvc,
		Catalog:  catalogSvc,
		Students: students,
		Results:  results,
		Tx:       repository.NewTransactor(db),
		Cache:    cacheSvc,
		Metrics:  metrics,
	}, cfg.Ingest, logr)
	analyticsSvc := service.NewAnalyticsService(registrySvc, catalogSvc, results, subjects, cacheSvc, service.AnalyticsConfig{
		PercentMode:      scoring.ParsePercentMode(cfg.Scoring.PercentMode),
		AtRiskThreshold:  cfg.Scoring.AtRiskThreshold,
		ProblematicLimit: cfg.Scoring.ProblematicLimit,
	}, logr)

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	exporters := export.NewRegistry()
	exportSvc := service.NewExportService(analyticsSvc, files, storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL), exporters, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	worker := service.NewReportWorker(reportJobs, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 5 * time.Minute,
		OnFailure:  worker.OnFailure,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportJobs, registrySvc, queue, exportSvc, metrics, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupSchedule: cfg.Reports.CleanupSchedule,
	})

	if cfg.Reports.Enabled {
		queue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		if _, err := reportSvc.StartCleanup(ctx); err != nil {
			return nil, fmt.Errorf("schedule export cleanup: %w", err)
		}
	}

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		auth:      handler.NewAuthHandler(authSvc),
		catalog:   handler.NewCatalogHandler(catalogSvc),
		gatTests:  handler.NewGatTestHandler(registrySvc, ingestSvc),
		roster:    handler.NewRosterHandler(ingestSvc),
		analytics: handler.NewAnalyticsHandler(analyticsSvc, exportSvc),
		reports:   handler.NewReportHandler(reportSvc, exporters),
		ops:       handler.NewMetricsHandler(metrics, deps),
	})

	return &application{
		router:   router,
		shutdown: queue.Stop,
	}, nil
}
