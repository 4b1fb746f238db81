package domain

import (
	"context"
)

// ProductSource returns a normalized product record for a barcode.
// A (nil, nil) result means the source has no record for it.
type ProductSource interface {
	FetchProduct(ctx context.Context, barcode string) (*ProductRecord, error)
}

// DescriptionLookup returns a short descriptive text for an ingredient.
type DescriptionLookup interface {
	LookupDescription(ctx context.Context, name string) (string, bool)
}

// NameResolver maps a raw ingredient token onto a canonical catalog record.
type NameResolver interface {
	ResolveName(ctx context.Context, token string) (*IngredientRecord, bool)
}

// IngredientCatalog is the read side of the local ingredient reference data.
type IngredientCatalog interface {
	ListIngredientNames(ctx context.Context) ([]string, error)
	GetIngredient(ctx context.Context, name string) (*IngredientRecord, error)
}

// ProductCache caches fetched product records by barcode.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*ProductRecord, bool)
	Set(ctx context.Context, barcode string, product *ProductRecord) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetExternalAPIConfig() *ExternalAPIConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
