// Package config provides configuration management for the scan server.
// This file contains the lightweight configuration for the CLI and the
// stdio MCP server, which run without Postgres or Redis.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ingrescan-health-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir     string // Base directory for the catalog database and exports
	CatalogPath string // Overrides the catalog location inside DataDir

	// Cache settings
	CacheMaxItems int           // Maximum products in the memory cache
	CacheTTL      time.Duration // Product cache TTL

	// Engine settings
	ScoringMode string // simple or weighted
	RulesFile   string // Optional rule table override
	FuzzyScore  float64

	// API settings
	OFFBaseURL       string
	WikipediaBaseURL string
	Offline          bool // Skip Open Food Facts and Wikipedia entirely

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ingrescan")

	return &LiteConfig{
		DataDir:          dataDir,
		CacheMaxItems:    1000,
		CacheTTL:         time.Hour,
		ScoringMode:      string(domain.SIMPLE_MODE),
		FuzzyScore:       85,
		OFFBaseURL:       "https://world.openfoodfacts.org",
		WikipediaBaseURL: "https://en.wikipedia.org",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("INGRESCAN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	cfg.CatalogPath = os.Getenv("INGRESCAN_CATALOG_PATH")

	if v := os.Getenv("INGRESCAN_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("INGRESCAN_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("INGRESCAN_SCORING_MODE"); v != "" {
		cfg.ScoringMode = v
	}
	cfg.RulesFile = os.Getenv("INGRESCAN_RULES_FILE")
	if v := os.Getenv("INGRESCAN_FUZZY_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 100 {
			cfg.FuzzyScore = f
		}
	}

	if v := os.Getenv("INGRESCAN_OFF_BASE_URL"); v != "" {
		cfg.OFFBaseURL = v
	}
	if v := os.Getenv("INGRESCAN_WIKIPEDIA_BASE_URL"); v != "" {
		cfg.WikipediaBaseURL = v
	}
	if v := os.Getenv("INGRESCAN_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Offline = b
		}
	}

	if v := os.Getenv("INGRESCAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INGRESCAN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CatalogDBPath returns the path to the catalog SQLite database.
func (c *LiteConfig) CatalogDBPath() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.CatalogDBPath()), 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// OpenFoodFacts returns the client configuration for Open Food Facts.
func (c *LiteConfig) OpenFoodFacts() domain.OpenFoodFactsConfig {
	return domain.OpenFoodFactsConfig{
		BaseURL:    c.OFFBaseURL,
		UserAgent:  "IngreScan/1.0 (health scan)",
		Timeout:    10 * time.Second,
		RateLimit:  10,
		RetryCount: 2,
	}
}

// Wikipedia returns the client configuration for the Wikipedia summary API.
func (c *LiteConfig) Wikipedia() domain.WikipediaConfig {
	return domain.WikipediaConfig{
		BaseURL:    c.WikipediaBaseURL,
		Language:   "en",
		Timeout:    5 * time.Second,
		RateLimit:  5,
		RetryCount: 1,
	}
}
