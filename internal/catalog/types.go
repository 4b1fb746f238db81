// Package catalog stores the local product and ingredient reference data.
// Products imported here answer barcode lookups that Open Food Facts misses,
// and the ingredient table backs fuzzy name resolution.
package catalog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/ingrescan-health-server/internal/domain"
)

// Product is one locally stored product record.
type Product struct {
	ID              string                 `json:"id"`
	Barcode         string                 `json:"barcode"`
	Name            string                 `json:"product_name"`
	Brand           string                 `json:"brand,omitempty"`
	IngredientsText string                 `json:"ingredients_text,omitempty"`
	Allergens       []string               `json:"allergens,omitempty"`
	Nutrients       domain.NutrientProfile `json:"nutrients"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Record converts the stored product into the analyzer's input record.
func (p *Product) Record() *domain.ProductRecord {
	return &domain.ProductRecord{
		Barcode:        p.Barcode,
		Name:           p.Name,
		Brand:          p.Brand,
		Nutrients:      p.Nutrients,
		IngredientText: p.IngredientsText,
		AllergenTags:   append([]string(nil), p.Allergens...),
		LastModified:   p.UpdatedAt,
		Source:         domain.OriginLocalCatalog,
	}
}

// Store defines the interface for catalog storage operations.
type Store interface {
	// UpsertProduct stores a product, replacing any record with the same barcode.
	UpsertProduct(ctx context.Context, product *Product) error

	// GetProduct returns (nil, nil) when the barcode is unknown.
	GetProduct(ctx context.Context, barcode string) (*Product, error)

	// ListProducts returns products ordered by barcode with pagination.
	ListProducts(ctx context.Context, limit, offset int) ([]*Product, error)

	// CountProducts returns the number of stored products.
	CountProducts(ctx context.Context) (int64, error)

	// DeleteProduct removes a product by barcode.
	DeleteProduct(ctx context.Context, barcode string) error

	// UpsertIngredient stores an ingredient reference record keyed by name.
	UpsertIngredient(ctx context.Context, ingredient *domain.IngredientRecord) error

	// GetIngredient returns domain.ErrNotFound when the name is unknown.
	GetIngredient(ctx context.Context, name string) (*domain.IngredientRecord, error)

	// ListIngredientNames returns every stored ingredient name.
	ListIngredientNames(ctx context.Context) ([]string, error)

	// ExportJSON writes every product to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Ping checks the underlying connection.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// CatalogExport represents the JSON export format.
type CatalogExport struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Products   []*Product `json:"products"`
}

// maxExportLimit is the maximum number of products exported at once.
const maxExportLimit = 1000000

// ingredientKey is the lookup key for ingredient names.
func ingredientKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func joinAllergens(allergens []string) string {
	cleaned := make([]string, 0, len(allergens))
	for _, a := range allergens {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitAllergens(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
