// Package api exposes the scan engine over a gin REST API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/catalog"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/middleware"
	"github.com/ingrescan-health-server/internal/service"
	"github.com/ingrescan-health-server/internal/stack"
)

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

// NameCache is the memo of ingredient name resolutions, flushed after an
// ingredient import.
type NameCache interface {
	Invalidate()
}

// Dependencies are the collaborators the handlers call into.
// Catalog and Names may be nil.
type Dependencies struct {
	Analyzer *service.Analyzer
	Catalog  catalog.Store
	Names    NameCache
	Checks   map[string]HealthCheck
}

// DependenciesFrom exposes an assembled server stack to the handlers.
func DependenciesFrom(full *stack.Full) Dependencies {
	checks := make(map[string]HealthCheck, len(full.Checks))
	for name, check := range full.Checks {
		checks[name] = check
	}
	deps := Dependencies{
		Analyzer: full.Analyzer,
		Catalog:  full.Catalog,
		Checks:   checks,
	}
	if full.Names != nil {
		deps.Names = full.Names
	}
	return deps
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	importer      *catalog.Importer
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AccessLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(middleware.NewClientRateLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateBurst)))
	}
	if cfg.Server.RequestTimeout > 0 {
		router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	}

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
	}
	if deps.Catalog != nil {
		server.importer = catalog.NewImporter(deps.Catalog, logger)
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/scan/:barcode", s.handleScanBarcode)
		v1.POST("/scan/manual", s.handleScanManual)
		v1.POST("/ingredients/classify", s.handleClassifyIngredients)
		v1.POST("/allergens/match", s.handleMatchAllergens)
		v1.GET("/conditions", s.handleListConditions)

		cat := v1.Group("/catalog")
		{
			cat.GET("/products", s.handleListProducts)
			cat.GET("/products/:barcode", s.handleGetProduct)
			cat.DELETE("/products/:barcode", s.handleDeleteProduct)
			cat.POST("/import", s.handleImportProducts)
			cat.POST("/ingredients/import", s.handleImportIngredients)
		}
	}
}
