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
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"propspace/space-portal/space-portal-backend/internal/auth"
	"propspace/space-portal/space-portal-backend/internal/config"
	"propspace/space-portal/space-portal-backend/internal/dao"
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
	if cfg.Registry.BaseURL == "" {
		logger.Fatal("REGISTRY_BASE_URL is required")
	}

	// Connect to the journal database
	dbURL := cfg.Database.GetDatabaseURL()
	logger.Info("Connecting to database", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	repo, err := dao.NewGormRepository(db)
	if err != nil {
		logger.Fatal("Failed to migrate journal tables", zap.Error(err))
	}

	// Registry client; the custodian token can be supplied directly or minted
	// from the shared secret.
	token := cfg.Registry.CustodianToken
	if token == "" {
		token, err = auth.IssueToken(cfg.Security.JWTSecret, "dao-orchestrator", 365*24*time.Hour)
		if err != nil {
			logger.Fatal("Failed to issue registry token", zap.Error(err))
		}
	}
	registryClient := dao.NewHTTPRegistryClient(cfg.Registry.BaseURL, token, cfg.Registry.CallTimeout)

	service := dao.NewService(repo, registryClient, logger)
	handler := dao.NewHandler(service, logger)

	// Setup Router
	router := gin.Default()

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		handler.RegisterRoutes(api)
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

	logger.Info("DAO server started", zap.Int("port", cfg.Server.Port))

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
