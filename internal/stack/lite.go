// Package stack assembles the scan engine and its adapters for the
// standalone binaries. The lite stack needs no Postgres or Redis: it uses
// the SQLite catalog, an in-memory product cache and the public APIs.
package stack

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/catalog"
	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
	"github.com/ingrescan-health-server/internal/service"
	"github.com/ingrescan-health-server/pkg/external"
)

// Stack is a ready-to-use analyzer with the resources it owns.
type Stack struct {
	Analyzer *service.Analyzer
	Catalog  catalog.Store
	Names    *service.CatalogNameResolver
	Tables   *rules.Tables
	Logger   *logrus.Logger
}

// ImportIngredients loads ingredient reference rows into the catalog and
// drops the resolver's memo so the new names resolve right away.
func (s *Stack) ImportIngredients(ctx context.Context, r io.Reader) (*catalog.ImportResult, error) {
	result, err := catalog.NewImporter(s.Catalog, s.Logger).ImportIngredients(ctx, r)
	if err != nil {
		return nil, err
	}
	if result.Imported > 0 && s.Names != nil {
		s.Names.Invalidate()
	}
	return result, nil
}

// Close releases the catalog.
func (s *Stack) Close() error {
	if s.Catalog == nil {
		return nil
	}
	return s.Catalog.Close()
}

// NewLogger builds a logrus logger. Output goes to stderr so stdio
// transports and piped CLI output stay clean.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// LoadTables reads the rule tables from path, or the built-in tables when
// path is empty. A table load failure is the one fatal startup error.
func LoadTables(path string) (*rules.Tables, error) {
	if path == "" {
		return rules.Default()
	}
	tables, err := rules.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain.ErrRulesLoad, err)
	}
	return tables, nil
}

// NewLite builds the standalone stack from a LiteConfig. When cfg.Offline is
// set, barcodes resolve only against the local catalog and ingredient
// descriptions come only from the built-in tables and the catalog.
func NewLite(cfg *config.LiteConfig, logger *logrus.Logger) (*Stack, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tables, err := LoadTables(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	store, err := catalog.NewSQLiteStore(cfg.CatalogDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	mode, err := domain.ParseScoringMode(cfg.ScoringMode)
	if err != nil {
		store.Close()
		return nil, err
	}

	names, err := service.NewCatalogNameResolver(store, tables, service.NameResolverConfig{
		MinScore:  cfg.FuzzyScore,
		CacheSize: cfg.CacheMaxItems,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	analyzer, err := newAnalyzer(tables, mode, 5, store, names, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"mode":     mode,
		"offline":  cfg.Offline,
	}).Info("Lite stack initialized")

	return &Stack{Analyzer: analyzer, Catalog: store, Names: names, Tables: tables, Logger: logger}, nil
}

func newAnalyzer(tables *rules.Tables, mode domain.ScoringModeName, staleYears int, store catalog.Store, names domain.NameResolver, cfg *config.LiteConfig, logger *logrus.Logger) (*service.Analyzer, error) {
	local := external.NamedSource{Name: domain.OriginLocalCatalog, Source: catalog.NewProductSource(store)}
	opts := []service.AnalyzerOption{service.WithNameResolver(names)}

	if cfg.Offline {
		opts = append(opts, service.WithProductSource(external.NewProductLookupChain(nil, logger, local)))
	} else {
		breaker := external.DefaultCircuitBreakerConfig()
		off := external.NewOpenFoodFactsClient(cfg.OpenFoodFacts(), logger)
		wiki := external.NewWikipediaClient(cfg.Wikipedia(), logger)

		chain := external.NewProductLookupChain(
			external.NewMemoryProductCache(cfg.CacheMaxItems, cfg.CacheTTL),
			logger,
			external.NamedSource{
				Name:   domain.OriginOpenFoodFacts,
				Source: external.NewResilientProductSource("OpenFoodFacts", off, breaker, logger),
			},
			local,
		)
		descriptions := external.NewDescriptionService(wiki, off, external.DescriptionServiceConfig{
			CacheSize:      cfg.CacheMaxItems,
			CacheTTL:       24 * time.Hour,
			CircuitBreaker: breaker,
		}, logger)

		opts = append(opts, service.WithProductSource(chain), service.WithDescriptionLookup(descriptions))
	}

	return service.NewAnalyzer(tables, service.AnalyzerConfig{Mode: mode, StaleYears: staleYears}, logger, opts...)
}
