package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"propspace/space-portal/space-portal-backend/internal/auth"
	"propspace/space-portal/space-portal-backend/internal/config"
	"propspace/space-portal/space-portal-backend/internal/env"
	"propspace/space-portal/space-portal-backend/internal/registry"
	"propspace/space-portal/space-portal-backend/pkg/storage"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, relying on environment")
	}

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()

	// Initialize registry instance
	custodians := make([]registry.AccountID, 0, len(cfg.Registry.Custodians))
	for _, c := range cfg.Registry.Custodians {
		custodians = append(custodians, registry.AccountID(c))
	}
	hostEnv := env.Host{}
	args := registry.InitArgs{Custodians: custodians}
	if cfg.Registry.Name != "" {
		args.Name = &cfg.Registry.Name
	}
	if cfg.Registry.Symbol != "" {
		args.Symbol = &cfg.Registry.Symbol
	}
	service := registry.NewService(ctx, hostEnv, logger, args)

	// Snapshot store
	var snapshots registry.SnapshotStore
	switch cfg.Snapshot.Backend {
	case "s3":
		snapshots, err = storage.NewS3Store(ctx, cfg.Snapshot.S3Bucket, cfg.Snapshot.S3Prefix)
		if err != nil {
			logger.Fatal("Failed to initialize S3 snapshot store", zap.Error(err))
		}
	case "local":
		snapshots, err = storage.NewLocalStore(cfg.Snapshot.LocalDir)
		if err != nil {
			logger.Fatal("Failed to initialize local snapshot store", zap.Error(err))
		}
	default:
		logger.Warn("Snapshot store disabled", zap.String("backend", cfg.Snapshot.Backend))
	}

	handler := registry.NewHandler(service, snapshots, logger)

	// Scheduled stats audit
	scheduler := cron.New()
	if cfg.Audit.CronSpec != "" {
		_, err := scheduler.AddFunc(cfg.Audit.CronSpec, func() {
			report := service.RunScheduledAudit(cfg.Audit.Repair)
			if report.Consistent() {
				logger.Info("Stats audit passed")
				return
			}
			logger.Warn("Stats audit found drift",
				zap.Int("drifted_counters", len(report.Drift)),
				zap.Bool("repaired", report.Repaired))
		})
		if err != nil {
			logger.Fatal("Invalid audit cron spec", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Setup Router
	router := gin.Default()

	api := router.Group("/api/v1")
	{
		handler.RegisterRoutes(api, auth.Middleware(cfg.Security.JWTSecret))
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen: %s\n", zap.Error(err))
		}
	}()

	logger.Info("Registry server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown:", zap.Error(err))
	}

	logger.Info("Server exiting")
}
