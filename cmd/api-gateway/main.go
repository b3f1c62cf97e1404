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

	_ "github.com/noah-isme/salon-pos-api/api/swagger"
	"github.com/noah-isme/salon-pos-api/internal/handler"
	"github.com/noah-isme/salon-pos-api/internal/middleware"
	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/repository"
	"github.com/noah-isme/salon-pos-api/internal/service"
	"github.com/noah-isme/salon-pos-api/pkg/cache"
	"github.com/noah-isme/salon-pos-api/pkg/config"
	"github.com/noah-isme/salon-pos-api/pkg/database"
	"github.com/noah-isme/salon-pos-api/pkg/export"
	"github.com/noah-isme/salon-pos-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/salon-pos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/salon-pos-api/pkg/middleware/requestid"
	"github.com/noah-isme/salon-pos-api/pkg/storage"
)

// @title Salon POS API
// @version 1.0.0
// @description Approval routing, technician queue and attendance scheduling
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

	loc, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid attendance timezone", "timezone", cfg.Attendance.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Queue.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, queue view cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()

	employeeRepo := repository.NewEmployeeRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	metricsSvc := service.NewMetricsService()
	events := service.NewEvents(logr)

	authSvc := service.NewAuthService(employeeRepo, employeeRepo, cfg.JWT, validate, logr)
	approvalSvc := service.NewApprovalService(ticketRepo, employeeRepo, activityRepo, events, metricsSvc, cfg.Approval.Deadline, logr)
	ticketSvc := service.NewTicketService(ticketRepo, events, validate, logr)
	var queueCache service.QueueViewCache
	if cacheRepo != nil {
		queueCache = cacheRepo
	}
	queueSvc := service.NewQueueService(queueRepo, employeeRepo, attendanceRepo, ticketRepo, storeRepo, queueCache, activityRepo, metricsSvc, loc, cfg.Queue.EarlyJoinWindow, cfg.Queue.ViewCacheTTL, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, employeeRepo, storeRepo, queueSvc, activityRepo, loc, cfg.Queue.EarlyJoinWindow, logr)

	events.OnTicketItemAssigned(queueSvc.HandleTicketItemAssigned)
	events.OnTicketItemCompleted(queueSvc.HandleTicketItemCompleted)
	events.OnTicketClosed(queueSvc.HandleTicketClosed)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewApprovalSweeper(ticketRepo, approvalSvc, cfg.Approval.SweepInterval, cfg.Approval.SweepWorkers, logr)
	sweeper.Start(rootCtx)
	defer sweeper.Stop()

	scheduler := service.NewAttendanceScheduler(storeRepo, attendanceRepo, ticketRepo, queueSvc, activityRepo, metricsSvc, loc,
		cfg.Attendance.ClosingTolerance, cfg.Attendance.InactivityTimeout, cfg.Attendance.SweepInterval, logr)
	scheduler.Start(rootCtx)
	defer scheduler.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	ticketHandler := handler.NewTicketHandler(approvalSvc, ticketSvc)
	queueHandler := handler.NewQueueHandler(queueSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/tickets/:id", ticketHandler.Get)
	authed.POST("/tickets/:id/items", middleware.RequireTier(models.TierReceptionist), ticketHandler.AddItem)
	authed.POST("/tickets/:id/items/:itemId/complete", ticketHandler.CompleteItem)
	authed.POST("/tickets/:id/close", middleware.RequireTier(models.TierReceptionist), ticketHandler.Close)
	authed.POST("/tickets/:id/approve", ticketHandler.Approve)
	authed.POST("/tickets/:id/reject", ticketHandler.Reject)
	authed.GET("/approvals/pending", ticketHandler.PendingApprovals)

	authed.POST("/queue/ready", queueHandler.Join)
	authed.DELETE("/queue/ready", queueHandler.Leave)
	authed.GET("/queue/status", queueHandler.Status)
	authed.GET("/queue/view", queueHandler.View)
	authed.DELETE("/queue", middleware.RequireTier(models.TierAdmin), queueHandler.Clear)

	authed.POST("/attendance/check-in", attendanceHandler.CheckIn)
	authed.POST("/attendance/check-out", attendanceHandler.CheckOut)

	if cfg.Reports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc := service.NewReportService(attendanceRepo, export.NewCSVExporter(), export.NewPDFExporter(), files, signer, loc, logr)
		reportHandler := handler.NewReportHandler(reportSvc)

		authed.POST("/reports/attendance/daily",
			middleware.RequireTier(models.TierAdmin),
			middleware.Audit(activityRepo, "REPORT_GENERATED", "report"),
			reportHandler.GenerateDay)
		api.GET("/reports/download", reportHandler.Download)
	}

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

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
