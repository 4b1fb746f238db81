package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ingrescan-health-server/internal/api"
	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/stack"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := stack.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting IngreScan API server")

	// Cancel on SIGINT/SIGTERM for a graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	full, err := stack.NewFull(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize server stack")
	}
	defer full.Close()

	server := api.NewServer(configManager, api.DependenciesFrom(full), logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
