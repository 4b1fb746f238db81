// Package main serves the scan tools over MCP stdio using the full server
// configuration (Postgres, Redis and the configured catalog).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/mcp"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	full, err := stack.NewFull(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize server stack")
	}
	defer full.Close()

	server := mcp.NewServer(mcp.ServerInfo{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}, full.Analyzer, logger, mcp.WithCatalog(full.Catalog))

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("IngreScan MCP server stopped")
}
