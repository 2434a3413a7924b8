package main

import (
	"fmt"
	"log"

	"telab/internal/api/routes"
	"telab/internal/config"
	"telab/internal/logger"
	"telab/internal/models"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize database
	if err := models.InitDB(cfg); err != nil {
		zlog.Fatalw("failed to initialize database", "error", err)
	}

	// Create the initial super admin if the database is empty
	auditService := services.NewAuditService(zlog)
	authService := services.NewAuthService(cfg, auditService)
	if err := authService.CreateDefaultSuperAdmin(); err != nil {
		zlog.Warnw("failed to create default super admin", "error", err)
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	r := gin.Default()

	// Setup routes
	routes.SetupRoutes(r, cfg, zlog)

	// Run server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	zlog.Infow("starting te-lab server", "addr", addr)
	if err := r.Run(addr); err != nil {
		zlog.Fatalw("server exited", "error", err)
	}
}
