package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mentorlink/mentorlink-api/api/swagger"
	"github.com/mentorlink/mentorlink-api/internal/audit"
	"github.com/mentorlink/mentorlink-api/internal/handler"
	"github.com/mentorlink/mentorlink-api/internal/middleware"
	"github.com/mentorlink/mentorlink-api/internal/models"
	"github.com/mentorlink/mentorlink-api/internal/repository"
	"github.com/mentorlink/mentorlink-api/internal/service"
	"github.com/mentorlink/mentorlink-api/pkg/cache"
	"github.com/mentorlink/mentorlink-api/pkg/config"
	"github.com/mentorlink/mentorlink-api/pkg/database"
	"github.com/mentorlink/mentorlink-api/pkg/logger"
	corsmiddleware "github.com/mentorlink/mentorlink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mentorlink/mentorlink-api/pkg/middleware/requestid"

	"github.com/go-playground/validator/v10"
)

// @title MentorLink API
// @version 1.0.0
// @description Student and teacher mentoring platform API
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	accountRepo := repository.NewAccountRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	auditRecorder := audit.NewRecorder(accountRepo, audit.Config{Workers: 2, Logger: logr})
	defer auditRecorder.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	}

	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "mentorlink-api",
		Audience:           []string{"mentorlink"},
	})
	profileSvc := service.NewProfileService(accountRepo, authSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(accountRepo, assignmentRepo, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(accountRepo, assignmentRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(assignmentRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, exportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

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

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/dashboard", dashboardHandler.Summary)
		authed.GET("/profile", profileHandler.Get)
		authed.PUT("/profile", profileHandler.Update)
	}

	teachers := api.Group("/teachers/me")
	teachers.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleTeacher))
	{
		teachers.GET("/students", assignmentHandler.ListAssignedStudents)
		teachers.GET("/students/unassigned", assignmentHandler.ListUnassignedStudents)
		teachers.POST("/students", assignmentHandler.AssignStudents)
		teachers.DELETE("/students/:studentId", assignmentHandler.UnassignStudent)
		if cfg.Exports.Enabled {
			teachers.GET("/students/export",
				middleware.Audit(auditRecorder, models.AuditActionRosterExport, "roster"),
				assignmentHandler.ExportRoster)
		}
	}

	students := api.Group("/students/me")
	students.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		students.GET("/teachers", assignmentHandler.ListAssignedTeachers)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
