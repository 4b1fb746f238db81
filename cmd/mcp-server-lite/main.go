// Package main provides the lightweight entry point for the IngreScan MCP server.
// This version requires no external databases: it uses an in-memory cache and SQLite.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/mcp"
	"github.com/ingrescan-health-server/internal/stack"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := stack.NewLogger(cfg.LogLevel, cfg.LogFormat)

	logger.WithField("data_dir", cfg.DataDir).Info("Starting IngreScan MCP server (lite)")

	s, err := stack.NewLite(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize lite stack")
		os.Exit(1)
	}
	defer s.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.ServerInfo{Name: "ingrescan-lite"}, s.Analyzer, logger, mcp.WithCatalog(s.Catalog))
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("IngreScan MCP server (lite) stopped")
}
