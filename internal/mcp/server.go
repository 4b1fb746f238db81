// Package mcp exposes the scan engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/catalog"
	"github.com/ingrescan-health-server/internal/service"
)

// ServerInfo contains MCP server metadata
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server wraps an MCP SDK server with the scan tools registered.
type Server struct {
	analyzer  *service.Analyzer
	catalog   catalog.Store
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server)

// WithCatalog enables the catalog lookup tool.
func WithCatalog(store catalog.Store) ServerOption {
	return func(s *Server) { s.catalog = store }
}

// NewServer creates an MCP server over an analyzer.
func NewServer(info ServerInfo, analyzer *service.Analyzer, logger *logrus.Logger, opts ...ServerOption) *Server {
	if info.Name == "" {
		info.Name = "ingrescan"
	}
	if info.Version == "" {
		info.Version = "v1.0.0"
	}

	s := &Server{
		analyzer: analyzer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: info.Name, Version: info.Version}, nil)
	s.registerTools()

	return s
}

// registerTools registers every scan tool with the SDK server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolAnalyzeProduct,
		Description: "Look up a product by barcode (Open Food Facts, then the local catalog) and return its health score, " +
			"tier, rating and warnings for the given allergens and health conditions.",
	}, s.handleAnalyzeProduct)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolAnalyzeIngredients,
		Description: "Analyze a hand-entered product: ingredient text plus optional nutrients per 100 g/ml " +
			"(sugars, saturated_fat, salt, fiber, proteins, energy_kcal, ...).",
	}, s.handleAnalyzeIngredients)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolClassifyIngredient,
		Description: "Classify ingredients as SAFE, MODERATE, HARMFUL or UNKNOWN with a short description of each.",
	}, s.handleClassifyIngredient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolMatchAllergens,
		Description: "Report which of the declared allergens appear in an ingredient list, including synonyms.",
	}, s.handleMatchAllergens)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListConditions,
		Description: "List the health conditions that have nutrient rules.",
	}, s.handleListConditions)

	registered := 5
	if s.catalog != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        ToolCatalogProduct,
			Description: "Return the locally stored catalog record for a barcode.",
		}, s.handleCatalogProduct)
		registered++
	}

	s.logger.WithField("tool_count", registered).Info("Registered MCP tools")
}

// Run serves the tools over the given transport until ctx is cancelled or
// the client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Start serves the tools over stdin/stdout.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting IngreScan MCP server on stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}
