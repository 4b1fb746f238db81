package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ingrescan-health-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	path   string
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a configuration manager that reads an explicit
// config file instead of searching the default paths. The file must exist.
// An empty path behaves like NewManager.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New(), path: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	// An explicit file wins over the search paths
	if m.path != "" {
		v.SetConfigFile(m.path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ingrescan/")
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix("INGRESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// The searched file is optional; defaults and env vars apply without it.
	// An explicit file that cannot be read is an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "ingrescan")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.run_migrations", true)

	// Catalog defaults
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.sqlite_path", "./data/catalog.db")
	v.SetDefault("catalog.seed_csv", "")
	v.SetDefault("catalog.fuzzy_score", 85)

	// External API defaults
	v.SetDefault("external_api.openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("external_api.openfoodfacts.user_agent", "IngreScan/1.0 (health scan)")
	v.SetDefault("external_api.openfoodfacts.timeout", "10s")
	v.SetDefault("external_api.openfoodfacts.rate_limit", 10)
	v.SetDefault("external_api.openfoodfacts.retry_count", 2)

	v.SetDefault("external_api.wikipedia.base_url", "https://en.wikipedia.org")
	v.SetDefault("external_api.wikipedia.language", "en")
	v.SetDefault("external_api.wikipedia.timeout", "5s")
	v.SetDefault("external_api.wikipedia.rate_limit", 5)
	v.SetDefault("external_api.wikipedia.retry_count", 1)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Scoring defaults
	v.SetDefault("scoring.mode", string(domain.SIMPLE_MODE))
	v.SetDefault("scoring.rules_file", "")
	v.SetDefault("scoring.stale_years", 5)

	// MCP defaults
	v.SetDefault("mcp.server_name", "ingrescan")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetExternalAPIConfig returns external API configuration
func (m *Manager) GetExternalAPIConfig() *domain.ExternalAPIConfig {
	return &m.config.ExternalAPI
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	switch config.Catalog.Driver {
	case "sqlite":
		if config.Catalog.SQLitePath == "" {
			return fmt.Errorf("catalog sqlite path is required")
		}
	case "postgres":
		if !config.Database.Enabled {
			return fmt.Errorf("postgres catalog requires database.enabled")
		}
	default:
		return fmt.Errorf("invalid catalog driver: %s", config.Catalog.Driver)
	}
	if config.Catalog.FuzzyScore < 0 || config.Catalog.FuzzyScore > 100 {
		return fmt.Errorf("invalid fuzzy score: %v", config.Catalog.FuzzyScore)
	}

	if config.ExternalAPI.OpenFoodFacts.BaseURL == "" {
		return fmt.Errorf("Open Food Facts base URL is required")
	}
	if config.ExternalAPI.Wikipedia.BaseURL == "" {
		return fmt.Errorf("Wikipedia base URL is required")
	}

	switch config.Cache.Backend {
	case "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", config.Cache.Backend)
	}

	if _, err := domain.ParseScoringMode(config.Scoring.Mode); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
