package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ingrescan-health-server/internal/domain"
)

func newTestResolver(t *testing.T, catalog domain.IngredientCatalog) *CatalogNameResolver {
	t.Helper()
	resolver, err := NewCatalogNameResolver(catalog, testTables(), NameResolverConfig{}, testLogger())
	require.NoError(t, err)
	return resolver
}

func TestCatalogNameResolver_ResolveName(t *testing.T) {
	ctx := context.Background()

	t.Run("Synonym_Table", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		resolver := newTestResolver(t, catalog)

		rec, ok := resolver.ResolveName(ctx, "Sodium Chloride")
		require.True(t, ok)
		assert.Equal(t, "Salt", rec.CanonicalName)
		assert.Equal(t, 100.0, rec.MatchScore)
		catalog.AssertNotCalled(t, "GetIngredient", mock.Anything, mock.Anything)
	})

	t.Run("Exact_Catalog_Name", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		catalog.On("GetIngredient", ctx, "turmeric").Return(&domain.IngredientRecord{
			Name: "turmeric", CanonicalName: "Turmeric", Description: "A yellow spice.",
		}, nil)
		resolver := newTestResolver(t, catalog)

		rec, ok := resolver.ResolveName(ctx, "Turmeric")
		require.True(t, ok)
		assert.Equal(t, "Turmeric", rec.CanonicalName)
		assert.Equal(t, 100.0, rec.MatchScore)
		catalog.AssertNotCalled(t, "ListIngredientNames", mock.Anything)
	})

	t.Run("Fuzzy_Match_Above_Threshold", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		catalog.On("GetIngredient", ctx, "tumeric").Return(nil, domain.ErrNotFound)
		catalog.On("ListIngredientNames", ctx).Return([]string{"sugar", "turmeric", "salt"}, nil)
		catalog.On("GetIngredient", ctx, "turmeric").Return(&domain.IngredientRecord{
			Name: "turmeric", CanonicalName: "Turmeric",
		}, nil)
		resolver := newTestResolver(t, catalog)

		rec, ok := resolver.ResolveName(ctx, "tumeric")
		require.True(t, ok)
		assert.Equal(t, "Turmeric", rec.CanonicalName)
		assert.InDelta(t, 93.3, rec.MatchScore, 0.05)

		// Second call hits the memo
		_, ok = resolver.ResolveName(ctx, "tumeric")
		assert.True(t, ok)
		catalog.AssertNumberOfCalls(t, "ListIngredientNames", 1)
		catalog.AssertNumberOfCalls(t, "GetIngredient", 2)
	})

	t.Run("Below_Threshold", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		catalog.On("GetIngredient", ctx, "xylitol").Return(nil, domain.ErrNotFound)
		catalog.On("ListIngredientNames", ctx).Return([]string{"sugar", "turmeric", "salt"}, nil)
		resolver := newTestResolver(t, catalog)

		rec, ok := resolver.ResolveName(ctx, "xylitol")
		assert.False(t, ok)
		assert.Nil(t, rec)

		// Misses are memoized too
		resolver.ResolveName(ctx, "xylitol")
		catalog.AssertNumberOfCalls(t, "GetIngredient", 1)
	})

	t.Run("Catalog_Failure_Degrades", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		catalog.On("GetIngredient", ctx, "quinoa").Return(nil, errors.New("connection refused"))
		catalog.On("ListIngredientNames", ctx).Return(nil, errors.New("connection refused"))
		resolver := newTestResolver(t, catalog)

		_, ok := resolver.ResolveName(ctx, "quinoa")
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		catalog := new(MockIngredientCatalog)
		catalog.On("GetIngredient", ctx, "xylitol").Return(nil, domain.ErrNotFound)
		catalog.On("ListIngredientNames", ctx).Return([]string{"salt"}, nil)
		resolver := newTestResolver(t, catalog)

		resolver.ResolveName(ctx, "xylitol")
		resolver.Invalidate()
		resolver.ResolveName(ctx, "xylitol")
		catalog.AssertNumberOfCalls(t, "ListIngredientNames", 2)
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"sugar", "Sugar", 100, 100},
		{"abc", "xyz", 0, 0},
		{"tumeric", "turmeric", 93, 94},
		{"salt", "malt", 74, 76},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			s := Similarity(tt.a, tt.b)
			if s < tt.min || s > tt.max {
				t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, s, tt.min, tt.max)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	best, score := BestMatch("mozarella", []string{"ricotta", "mozzarella", "parmesan"})
	assert.Equal(t, "mozzarella", best)
	assert.GreaterOrEqual(t, score, DefaultFuzzyScore)

	best, score = BestMatch("anything", nil)
	assert.Empty(t, best)
	assert.Zero(t, score)
}
