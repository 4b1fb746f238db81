package stack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/catalog"
	"github.com/ingrescan-health-server/internal/database"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/repository"
	"github.com/ingrescan-health-server/internal/service"
	"github.com/ingrescan-health-server/pkg/external"
)

// descriptionMaxAge is how long a persisted ingredient description is
// served before it is refetched.
const descriptionMaxAge = 30 * 24 * time.Hour

// Full is the server stack: the analyzer plus optional Postgres, Redis and
// the dependency checks reported by the health endpoint.
type Full struct {
	Stack
	Checks map[string]func(ctx context.Context) error

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (f *Full) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *Full) onClose(fn func() error) {
	f.closers = append(f.closers, fn)
}

// NewFull builds the server stack from the viper configuration. On error,
// everything opened so far is closed again.
func NewFull(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (_ *Full, err error) {
	full := &Full{
		Stack:  Stack{Logger: logger},
		Checks: make(map[string]func(ctx context.Context) error),
	}
	defer func() {
		if err != nil {
			full.Close()
		}
	}()

	full.Tables, err = LoadTables(cfg.Scoring.RulesFile)
	if err != nil {
		return nil, err
	}
	mode, err := domain.ParseScoringMode(cfg.Scoring.Mode)
	if err != nil {
		return nil, err
	}

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		full.onClose(func() error { db.Close(); return nil })
		full.Checks["postgres"] = db.Health
	}

	store, err := openCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}
	full.Catalog = store
	full.onClose(store.Close)
	full.Checks["catalog"] = store.Ping

	if err := seedCatalog(ctx, store, cfg.Catalog.SeedCSV, logger); err != nil {
		return nil, err
	}

	cache, err := openProductCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if redisCache, ok := cache.(*external.RedisProductCache); ok {
		full.onClose(redisCache.Close)
		full.Checks["redis"] = redisCache.Ping
	}

	breaker := external.DefaultCircuitBreakerConfig()
	off := external.NewOpenFoodFactsClient(cfg.ExternalAPI.OpenFoodFacts, logger)
	wiki := external.NewWikipediaClient(cfg.ExternalAPI.Wikipedia, logger)

	products := external.NewProductLookupChain(cache, logger,
		external.NamedSource{
			Name:   domain.OriginOpenFoodFacts,
			Source: external.NewResilientProductSource("OpenFoodFacts", off, breaker, logger),
		},
		external.NamedSource{Name: domain.OriginLocalCatalog, Source: catalog.NewProductSource(store)},
	)

	var descriptions domain.DescriptionLookup = external.NewDescriptionService(wiki, off, external.DescriptionServiceConfig{
		CacheSize:      cfg.Cache.MaxItems,
		CacheTTL:       24 * time.Hour,
		CircuitBreaker: breaker,
	}, logger)
	if db != nil {
		repo := repository.NewDescriptionRepository(db.Pool, logger)
		descriptions = repository.NewPersistentDescriptionLookup(repo, descriptions, "wikipedia", descriptionMaxAge, logger)
	}

	names, err := service.NewCatalogNameResolver(store, full.Tables, service.NameResolverConfig{
		MinScore:  cfg.Catalog.FuzzyScore,
		CacheSize: cfg.Cache.MaxItems,
	}, logger)
	if err != nil {
		return nil, err
	}
	full.Names = names

	full.Analyzer, err = service.NewAnalyzer(full.Tables, service.AnalyzerConfig{
		Mode:       mode,
		StaleYears: cfg.Scoring.StaleYears,
	}, logger,
		service.WithProductSource(products),
		service.WithDescriptionLookup(descriptions),
		service.WithNameResolver(names),
	)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"catalog":  cfg.Catalog.Driver,
		"cache":    cfg.Cache.Backend,
		"database": cfg.Database.Enabled,
		"mode":     mode,
	}).Info("Server stack initialized")

	return full, nil
}

func openDatabase(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (*database.DB, error) {
	dbCfg := database.ConfigFrom(cfg)

	if cfg.RunMigrations {
		runner, err := database.NewMigrationRunner(dbCfg.URL(), logger)
		if err != nil {
			return nil, err
		}
		err = runner.Up(ctx)
		runner.Close()
		if err != nil {
			return nil, err
		}
	}

	return database.NewConnection(ctx, dbCfg, logger)
}

func openCatalog(cfg *domain.Config, logger *logrus.Logger) (catalog.Store, error) {
	switch cfg.Catalog.Driver {
	case "postgres":
		store, err := catalog.NewPostgresStoreFromURL(database.ConfigFrom(cfg.Database).URL())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres catalog: %w", err)
		}
		return store, nil
	default:
		if dir := filepath.Dir(cfg.Catalog.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create catalog directory: %w", err)
			}
		}
		store, err := catalog.NewSQLiteStore(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite catalog: %w", err)
		}
		logger.WithField("path", cfg.Catalog.SQLitePath).Debug("SQLite catalog opened")
		return store, nil
	}
}

// seedCatalog imports a product CSV into an empty catalog.
func seedCatalog(ctx context.Context, store catalog.Store, path string, logger *logrus.Logger) error {
	if path == "" {
		return nil
	}
	count, err := store.CountProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count catalog products: %w", err)
	}
	if count > 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	result, err := catalog.NewImporter(store, logger).ImportProducts(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"file":     path,
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Catalog seeded")
	return nil
}

func openProductCache(cfg domain.CacheConfig, logger *logrus.Logger) (domain.ProductCache, error) {
	if cfg.Backend == "redis" {
		cache, err := external.NewRedisProductCache(cfg, logger)
		if err != nil {
			return nil, err
		}
		return cache, nil
	}
	return external.NewMemoryProductCache(cfg.MaxItems, cfg.DefaultTTL), nil
}
