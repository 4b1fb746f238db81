package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "simple", cfg.ScoringMode)
	assert.Equal(t, 85.0, cfg.FuzzyScore)
	assert.False(t, cfg.Offline)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "simple", cfg.ScoringMode)
	assert.Empty(t, cfg.RulesFile)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("INGRESCAN_DATA_DIR", "/tmp/test-ingrescan")
	t.Setenv("INGRESCAN_CACHE_MAX_ITEMS", "500")
	t.Setenv("INGRESCAN_CACHE_TTL", "12h")
	t.Setenv("INGRESCAN_SCORING_MODE", "weighted")
	t.Setenv("INGRESCAN_FUZZY_SCORE", "90")
	t.Setenv("INGRESCAN_OFFLINE", "true")
	t.Setenv("INGRESCAN_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-ingrescan", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "weighted", cfg.ScoringMode)
	assert.Equal(t, 90.0, cfg.FuzzyScore)
	assert.True(t, cfg.Offline)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresInvalidValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("INGRESCAN_CACHE_MAX_ITEMS", "-3")
	t.Setenv("INGRESCAN_FUZZY_SCORE", "150")
	t.Setenv("INGRESCAN_OFFLINE", "maybe")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 85.0, cfg.FuzzyScore)
	assert.False(t, cfg.Offline)
}

func TestLiteConfig_CatalogDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.ingrescan"}

	assert.Equal(t, "/home/user/.ingrescan/catalog.db", cfg.CatalogDBPath())

	cfg.CatalogPath = "/srv/scan/products.db"
	assert.Equal(t, "/srv/scan/products.db", cfg.CatalogDBPath())
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.ingrescan"}

	assert.Equal(t, "/home/user/.ingrescan/exports", cfg.ExportDir())
}

func TestLiteConfig_ClientConfigs(t *testing.T) {
	cfg := DefaultLiteConfig()

	off := cfg.OpenFoodFacts()
	assert.Equal(t, "https://world.openfoodfacts.org", off.BaseURL)
	assert.Equal(t, 10*time.Second, off.Timeout)

	wiki := cfg.Wikipedia()
	assert.Equal(t, "https://en.wikipedia.org", wiki.BaseURL)
	assert.Equal(t, "en", wiki.Language)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "ingrescan")}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"INGRESCAN_DATA_DIR",
		"INGRESCAN_CATALOG_PATH",
		"INGRESCAN_CACHE_MAX_ITEMS",
		"INGRESCAN_CACHE_TTL",
		"INGRESCAN_SCORING_MODE",
		"INGRESCAN_RULES_FILE",
		"INGRESCAN_FUZZY_SCORE",
		"INGRESCAN_OFF_BASE_URL",
		"INGRESCAN_WIKIPEDIA_BASE_URL",
		"INGRESCAN_OFFLINE",
		"INGRESCAN_LOG_LEVEL",
		"INGRESCAN_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
