package catalog

import (
	"context"
	"fmt"

	"github.com/ingrescan-health-server/internal/domain"
)

// ProductSource adapts a Store to domain.ProductSource so the local catalog
// can answer barcodes Open Food Facts does not know.
type ProductSource struct {
	store Store
}

// NewProductSource creates a product source over store.
func NewProductSource(store Store) *ProductSource {
	return &ProductSource{store: store}
}

// FetchProduct implements domain.ProductSource
func (s *ProductSource) FetchProduct(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	product, err := s.store.GetProduct(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup for %s: %w", barcode, err)
	}
	if product == nil {
		return nil, nil
	}
	return product.Record(), nil
}
