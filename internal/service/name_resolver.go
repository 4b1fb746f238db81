package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// DefaultFuzzyScore is the minimum similarity (0-100) for a fuzzy match.
const DefaultFuzzyScore = 85.0

// NameResolverConfig configures the catalog-backed name resolver.
type NameResolverConfig struct {
	MinScore  float64
	CacheSize int
}

type resolution struct {
	record *domain.IngredientRecord
	found  bool
}

// CatalogNameResolver maps raw ingredient tokens onto catalog entries:
// synonym table first, then exact catalog name, then the best fuzzy match.
// Results, including misses, are memoized in an LRU.
type CatalogNameResolver struct {
	catalog  domain.IngredientCatalog
	tables   *rules.Tables
	minScore float64
	memo     *lru.Cache
	logger   *logrus.Logger

	namesMu sync.RWMutex
	names   []string
}

// NewCatalogNameResolver creates a resolver over an ingredient catalog.
func NewCatalogNameResolver(catalog domain.IngredientCatalog, tables *rules.Tables, config NameResolverConfig, logger *logrus.Logger) (*CatalogNameResolver, error) {
	if config.MinScore <= 0 {
		config.MinScore = DefaultFuzzyScore
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1000
	}
	memo, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}
	return &CatalogNameResolver{
		catalog:  catalog,
		tables:   tables,
		minScore: config.MinScore,
		memo:     memo,
		logger:   logger,
	}, nil
}

// ResolveName implements domain.NameResolver.
func (r *CatalogNameResolver) ResolveName(ctx context.Context, token string) (*domain.IngredientRecord, bool) {
	key := normalizeToken(token)
	if key == "" {
		return nil, false
	}
	if cached, ok := r.memo.Get(key); ok {
		res := cached.(resolution)
		return res.record, res.found
	}

	record, found := r.resolve(ctx, key)
	r.memo.Add(key, resolution{record: record, found: found})
	return record, found
}

func (r *CatalogNameResolver) resolve(ctx context.Context, key string) (*domain.IngredientRecord, bool) {
	if syn, ok := r.tables.IngredientSynonyms[key]; ok {
		return &domain.IngredientRecord{
			Name:          key,
			CanonicalName: syn.Canonical,
			Description:   syn.Description,
			MatchScore:    100,
		}, true
	}

	if rec := r.lookup(ctx, key); rec != nil {
		rec.MatchScore = 100
		return rec, true
	}

	names, err := r.catalogNames(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Ingredient catalog unavailable for fuzzy matching")
		return nil, false
	}

	best, score := BestMatch(key, names)
	if best == "" || score < r.minScore {
		return nil, false
	}

	rec := r.lookup(ctx, best)
	if rec == nil {
		rec = &domain.IngredientRecord{Name: best, CanonicalName: best}
	}
	rec.MatchScore = score

	r.logger.WithFields(logrus.Fields{
		"token": key,
		"match": best,
		"score": score,
	}).Debug("Fuzzy ingredient match")
	return rec, true
}

func (r *CatalogNameResolver) lookup(ctx context.Context, name string) *domain.IngredientRecord {
	rec, err := r.catalog.GetIngredient(ctx, name)
	if err != nil || rec == nil {
		return nil
	}
	return rec
}

func (r *CatalogNameResolver) catalogNames(ctx context.Context) ([]string, error) {
	r.namesMu.RLock()
	names := r.names
	r.namesMu.RUnlock()
	if names != nil {
		return names, nil
	}

	names, err := r.catalog.ListIngredientNames(ctx)
	if err != nil {
		return nil, err
	}
	r.namesMu.Lock()
	r.names = names
	r.namesMu.Unlock()
	return names, nil
}

// Invalidate drops the memoized resolutions and the cached catalog names.
func (r *CatalogNameResolver) Invalidate() {
	r.memo.Purge()
	r.namesMu.Lock()
	r.names = nil
	r.namesMu.Unlock()
}

// BestMatch returns the candidate most similar to token and its similarity
// on a 0-100 scale.
func BestMatch(token string, candidates []string) (string, float64) {
	var (
		best      string
		bestScore float64
	)
	for _, c := range candidates {
		if s := Similarity(token, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// Similarity is the character-level sequence match ratio of a and b scaled
// to 0-100, case-insensitive.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 100
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return roundTo(m.Ratio()*100, 1)
}
