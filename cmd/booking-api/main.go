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
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tutor-booking-api/api/swagger"
	"github.com/noah-isme/tutor-booking-api/internal/handler"
	"github.com/noah-isme/tutor-booking-api/internal/middleware"
	"github.com/noah-isme/tutor-booking-api/internal/repository"
	"github.com/noah-isme/tutor-booking-api/internal/service"
	"github.com/noah-isme/tutor-booking-api/pkg/cache"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	"github.com/noah-isme/tutor-booking-api/pkg/database"
	"github.com/noah-isme/tutor-booking-api/pkg/export"
	"github.com/noah-isme/tutor-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-booking-api/pkg/middleware/requestid"
)

// @title Tutor Booking API
// @version 1.0.0
// @description Teacher availability resolution and lesson booking engine
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The availability cache is advisory; resolution works without it.
		logr.Sugar().Warnw("redis unavailable, running without availability cache", "error", err)
		redisClient = nil
	}

	availabilityRepo := repository.NewAvailabilityRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	availabilitySvc := service.NewAvailabilityService(
		availabilityRepo, lessonRepo, policyRepo, cacheRepo,
		cfg.Booking.AvailabilityCacheTTL, cfg.Booking.MaxRangeDays, metricsSvc, logr)
	checker := service.NewConflictChecker(lessonRepo)
	syncSvc := service.NewSyncService(nil, nil, metricsSvc, logr, cfg.Sync)
	bookingSvc := service.NewBookingService(
		lessonRepo, availabilityRepo, policyRepo, checker, availabilitySvc, syncSvc,
		validate, metricsSvc, logr, cfg.Booking.MaxSeriesWeeks)
	scheduleSvc := service.NewScheduleService(availabilityRepo, availabilitySvc, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Export.Enabled {
		exportSvc = service.NewExportService(lessonRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	syncSvc.Start(ctx)
	defer syncSvc.Stop()

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	lessonHandler := handler.NewLessonHandler(bookingSvc, exportSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
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
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/teachers/:teacherId/availability", availabilityHandler.Resolve)
		api.GET("/teachers/:teacherId/slots", scheduleHandler.ListSlots)
		api.POST("/teachers/:teacherId/slots", scheduleHandler.CreateSlot)
		api.DELETE("/teachers/:teacherId/slots/:slotId", scheduleHandler.DisableSlot)
		api.GET("/teachers/:teacherId/time-off", scheduleHandler.ListTimeOff)
		api.POST("/teachers/:teacherId/time-off", scheduleHandler.CreateTimeOff)

		api.POST("/bookings", bookingHandler.BookSingle)
		api.POST("/bookings/recurring", bookingHandler.BookRecurring)

		api.GET("/lessons", lessonHandler.List)
		api.GET("/lessons/export", lessonHandler.Export)
		api.GET("/lessons/:id", lessonHandler.Get)
		api.POST("/lessons/:id/cancel", lessonHandler.Cancel)
		api.PUT("/lessons/:id/reschedule", lessonHandler.Reschedule)
		api.POST("/lessons/:id/complete", lessonHandler.Complete)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logr.Sugar().Infow("server stopped")
}
