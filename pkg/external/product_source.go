package external

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
)

// NamedSource pairs a product source with a name for logging.
type NamedSource struct {
	Name   string
	Source domain.ProductSource
}

// ProductLookupChain resolves a barcode through a cache and then each source
// in order. Only Open Food Facts records are cached; local catalog records
// are read fresh so imports show up immediately.
type ProductLookupChain struct {
	cache   domain.ProductCache
	sources []NamedSource
	logger  *logrus.Logger
}

// NewProductLookupChain builds a chain. cache may be nil.
func NewProductLookupChain(cache domain.ProductCache, logger *logrus.Logger, sources ...NamedSource) *ProductLookupChain {
	return &ProductLookupChain{
		cache:   cache,
		sources: sources,
		logger:  logger,
	}
}

// FetchProduct implements domain.ProductSource. It fails only when every
// source failed; any clean miss makes the result (nil, nil).
func (p *ProductLookupChain) FetchProduct(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	if p.cache != nil {
		if product, ok := p.cache.Get(ctx, barcode); ok {
			p.logger.WithField("barcode", barcode).Debug("Product cache hit")
			return product, nil
		}
	}

	var lastErr error
	answered := false
	for _, src := range p.sources {
		product, err := src.Source.FetchProduct(ctx, barcode)
		if err != nil {
			lastErr = err
			p.logger.WithFields(logrus.Fields{
				"barcode": barcode,
				"source":  src.Name,
				"error":   err,
			}).Warn("Product source failed")
			continue
		}
		answered = true
		if product == nil {
			continue
		}

		if p.cache != nil && product.Source == domain.OriginOpenFoodFacts {
			if cacheErr := p.cache.Set(ctx, barcode, product); cacheErr != nil {
				p.logger.WithFields(logrus.Fields{"barcode": barcode, "error": cacheErr}).Warn("Failed to cache product")
			}
		}
		return product, nil
	}

	if !answered && lastErr != nil {
		return nil, fmt.Errorf("all product sources failed: %w", lastErr)
	}
	return nil, nil
}
