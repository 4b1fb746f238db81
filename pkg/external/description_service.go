package external

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// SummaryFetcher returns an encyclopedic summary for a term.
type SummaryFetcher interface {
	Summary(ctx context.Context, query string) (string, error)
}

// ProductNameSearcher returns the name of a product matching a search.
type ProductNameSearcher interface {
	SearchProductName(ctx context.Context, terms string) (string, error)
}

// DescriptionService implements domain.DescriptionLookup over Wikipedia with
// an Open Food Facts product search as the second source. Both sources sit
// behind their own breaker; results and misses are memoized for a TTL.
type DescriptionService struct {
	summaries   SummaryFetcher
	products    ProductNameSearcher
	wikiBreaker *gobreaker.CircuitBreaker
	offBreaker  *gobreaker.CircuitBreaker
	memo        *expirable.LRU[string, string]
	logger      *logrus.Logger
}

// DescriptionServiceConfig holds memo sizing and breaker settings.
type DescriptionServiceConfig struct {
	CacheSize      int
	CacheTTL       time.Duration
	CircuitBreaker CircuitBreakerConfig
}

// NewDescriptionService creates a description lookup. Either source may be nil.
func NewDescriptionService(summaries SummaryFetcher, products ProductNameSearcher, config DescriptionServiceConfig, logger *logrus.Logger) *DescriptionService {
	if config.CacheSize <= 0 {
		config.CacheSize = 512
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 24 * time.Hour
	}

	return &DescriptionService{
		summaries:   summaries,
		products:    products,
		wikiBreaker: NewCircuitBreaker("Wikipedia", config.CircuitBreaker, logger),
		offBreaker:  NewCircuitBreaker("OpenFoodFactsSearch", config.CircuitBreaker, logger),
		memo:        expirable.NewLRU[string, string](config.CacheSize, nil, config.CacheTTL),
		logger:      logger,
	}
}

// LookupDescription implements domain.DescriptionLookup
func (d *DescriptionService) LookupDescription(ctx context.Context, name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if desc, ok := d.memo.Get(key); ok {
		return desc, desc != ""
	}

	desc := d.lookup(ctx, key)
	// Cancelled lookups are not memoized
	if ctx.Err() == nil {
		d.memo.Add(key, desc)
	}
	return desc, desc != ""
}

func (d *DescriptionService) lookup(ctx context.Context, name string) string {
	if d.summaries != nil {
		result, err := d.wikiBreaker.Execute(func() (interface{}, error) {
			return d.summaries.Summary(ctx, name)
		})
		if err != nil {
			d.logger.WithFields(logrus.Fields{"ingredient": name, "error": err}).Warn("Wikipedia lookup failed")
		} else if summary, _ := result.(string); summary != "" {
			return summary
		}
	}

	if d.products != nil {
		result, err := d.offBreaker.Execute(func() (interface{}, error) {
			return d.products.SearchProductName(ctx, name)
		})
		if err != nil {
			d.logger.WithFields(logrus.Fields{"ingredient": name, "error": err}).Warn("Open Food Facts search failed")
		} else if product, _ := result.(string); product != "" {
			return fmt.Sprintf("Found in products like: %s.", product)
		}
	}

	return ""
}
