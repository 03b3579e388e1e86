package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/handler"
	"github.com/zafarze/gat-sub000/internal/middleware"
	"github.com/zafarze/gat-sub000/pkg/config"
	"github.com/zafarze/gat-sub000/pkg/logger"
	corsmiddleware "github.com/zafarze/gat-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/zafarze/gat-sub000/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth      *handler.AuthHandler
	catalog   *handler.CatalogHandler
	gatTests  *handler.GatTestHandler
	roster    *handler.RosterHandler
	analytics *handler.AnalyticsHandler
	reports   *handler.ReportHandler
	ops       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, observer middleware.RequestObserver, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(observer))

	r.GET("/health", h.ops.Health)
	r.GET("/ready", h.ops.Ready)
	r.GET("/metrics", h.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/" + strings.Trim(cfg.APIPrefix, "/"))
	api.POST("/auth/login", h.auth.Login)
	// Signed tokens authorise downloads on their own.
	api.GET("/export/:token", h.reports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	staff := middleware.RequireRoles(middleware.Staff...)
	admin := middleware.RequireRoles()

	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/summary", admin, h.ops.Snapshot)

	secured.GET("/schools", h.catalog.ListSchools)
	secured.POST("/schools", admin, h.catalog.CreateSchool)
	secured.GET("/academic-years", h.catalog.ListYears)
	secured.POST("/academic-years", admin, h.catalog.CreateYear)
	secured.GET("/academic-years/:id/quarters", h.catalog.ListQuarters)
	secured.POST("/academic-years/:id/quarters", admin, h.catalog.CreateQuarter)
	secured.GET("/schools/:id/classes", h.catalog.ListClasses)
	secured.POST("/schools/:id/classes", staff, h.catalog.CreateClass)
	secured.GET("/schools/:id/subjects", h.catalog.ListSubjects)
	secured.POST("/schools/:id/subjects", staff, h.catalog.CreateSubject)
	secured.GET("/classes/:id/subjects", h.catalog.ClassSubjects)
	secured.PUT("/classes/:id/subjects", staff, h.catalog.UpsertClassSubjects)
	secured.GET("/classes/:id/expected-counts", h.gatTests.ExpectedCounts)
	secured.GET("/students", staff, h.catalog.ListStudents)
	secured.POST("/students", staff, h.catalog.CreateStudent)
	secured.POST("/students/import", staff, h.roster.Import)
	secured.GET("/students/:id", h.catalog.GetStudent)

	tests := secured.Group("/gat-tests")
	tests.GET("", h.gatTests.List)
	tests.GET("/:id", h.gatTests.Get)
	tests.POST("", staff, h.gatTests.Create)
	tests.PUT("/:id", staff, h.gatTests.Update)
	tests.DELETE("/:id", staff, h.gatTests.Delete)
	tests.DELETE("/:id/results", staff, h.gatTests.DeleteResults)
	tests.GET("/:id/question-warnings", staff, h.gatTests.QuestionWarnings)
	tests.POST("/:id/upload", staff, h.gatTests.Upload)

	reports := secured.Group("/reports")
	reports.GET("/tests/:id/results", h.analytics.TestResults)
	reports.GET("/tests/:id/export", h.analytics.ExportTestResults)
	reports.GET("/comparison", h.analytics.Comparison)
	reports.GET("/grade-distribution", h.analytics.GradeDistribution)
	reports.GET("/difficulty", h.analytics.Difficulty)
	reports.GET("/deep-analysis", staff, h.analytics.DeepAnalysis)
	reports.GET("/monitoring", h.analytics.Monitoring)
	reports.GET("/dashboard", h.analytics.Dashboard)
	reports.GET("/students/:id/progress", h.analytics.StudentProgress)
	reports.GET("/export", h.analytics.Export)
	reports.POST("/jobs", h.reports.CreateJob)
	reports.GET("/jobs/:id", h.reports.JobStatus)

	return r
}

