package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ingrescan-health-server/internal/domain"
)

type AnalyzerTestSuite struct {
	suite.Suite
	ctx      context.Context
	source   *MockProductSource
	lookup   *MockDescriptionLookup
	analyzer *Analyzer
}

func (s *AnalyzerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.source = new(MockProductSource)
	s.lookup = new(MockDescriptionLookup)

	analyzer, err := NewAnalyzer(testTables(), AnalyzerConfig{Mode: domain.SIMPLE_MODE}, testLogger(),
		WithProductSource(s.source),
		WithDescriptionLookup(s.lookup),
	)
	s.Require().NoError(err)
	s.analyzer = analyzer
}

func TestAnalyzerTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerTestSuite))
}

func (s *AnalyzerTestSuite) TestHighSugarDiabetesScenario() {
	product := &domain.ProductRecord{
		Name:           "Choco Crunch",
		Nutrients:      domain.NutrientProfile{Sugars: 45, SaturatedFat: 12},
		IngredientText: "sugar, wheat flour",
		Source:         domain.OriginOpenFoodFacts,
	}

	result := s.analyzer.Analyze(product, domain.UserProfile{Conditions: []string{"diabetes"}}, AnalyzeOptions{})

	for _, w := range result.Warnings {
		s.NotContains(w.Message, "negative", "unexpected negative-value warning")
	}
	s.Contains(result.WarningStrings(), "[HIGH] diabetes: High sugar content may spike blood glucose levels.")
	s.Less(result.Score, 8.0)
	s.Equal(0.0, result.Score)
	s.Equal(domain.AVOID, result.Tier)
	s.Equal(domain.RATING_HARMFUL, result.Rating)
	s.Equal(domain.STATUS_FOUND_OFF, result.Status)
	s.Equal(domain.SIMPLE_MODE, result.ScoringMode)
	s.Len(result.Ingredients, 2)
	s.NotNil(result.NutriScore)
	s.Equal("E", result.NutriScore.Grade)
}

func (s *AnalyzerTestSuite) TestEmptyProductBaseline() {
	result := s.analyzer.Analyze(&domain.ProductRecord{}, domain.UserProfile{}, AnalyzeOptions{})

	s.Equal(10.0, result.Score)
	s.Equal(domain.DAILY, result.Tier)
	s.Equal(domain.RATING_SAFE, result.Rating)
	s.Empty(result.Warnings)
	s.Empty(result.MatchedAllergens)
	s.Empty(result.SuggestedAlternatives)
	s.Nil(result.NutriScore)
	s.Nil(result.Diet)
	s.Equal(unknownProductName, result.ProductName)

	weighted := s.analyzer.Analyze(&domain.ProductRecord{}, domain.UserProfile{}, AnalyzeOptions{Mode: domain.WEIGHTED_MODE})
	s.Equal(5.0, weighted.Score)
	s.Equal(domain.WEIGHTED_MODE, weighted.ScoringMode)
	s.Empty(weighted.Warnings)
}

func (s *AnalyzerTestSuite) TestNilProduct() {
	result := s.analyzer.Analyze(nil, domain.UserProfile{}, AnalyzeOptions{})
	s.Equal(10.0, result.Score)
}

func (s *AnalyzerTestSuite) TestAllergenMatchFromTextAndTags() {
	product := &domain.ProductRecord{
		Name:           "Cookies",
		IngredientText: "wheat flour, sugar, butter",
		AllergenTags:   []string{"en:nuts", "en:soybeans"},
		Source:         domain.OriginOpenFoodFacts,
	}

	result := s.analyzer.Analyze(product, domain.UserProfile{Allergens: []string{"soy", "gluten", "fish"}}, AnalyzeOptions{})

	s.Equal([]string{"soy", "gluten"}, result.MatchedAllergens)
	s.Contains(result.WarningStrings(), "[HIGH] Contains allergen: soy")
	s.Contains(result.WarningStrings(), "[HIGH] Contains allergen: gluten")
	s.Equal(domain.STATUS_PARTIAL_OFF, result.Status)
}

func (s *AnalyzerTestSuite) TestOccasionalFlagOverridesTier() {
	product := &domain.ProductRecord{
		Name:           "Butter Cookies",
		IngredientText: "sugar, partially hydrogenated oil",
	}

	result := s.analyzer.Analyze(product, domain.UserProfile{}, AnalyzeOptions{})

	s.Equal(9.0, result.Score)
	s.Equal(domain.AVOID, result.Tier)
	s.Equal([]string{"Amul Lite Butter", "Nutralite Table Spread", "Ghee"}, result.SuggestedAlternatives)
	s.Require().NotEmpty(result.IngredientFlags)
	s.Equal("Trans fats", result.IngredientFlags[0].Label)
}

func (s *AnalyzerTestSuite) TestDerivedSaltFeedsScoring() {
	product := &domain.ProductRecord{Nutrients: domain.NutrientProfile{Sodium: 1, Fiber: 5, Proteins: 10}}

	result := s.analyzer.Analyze(product, domain.UserProfile{}, AnalyzeOptions{})

	// salt derived as 2.5 g costs 3 points
	s.Equal(7.0, result.Score)
	s.Contains(result.WarningStrings()[0], "[CHECK] Sodium present")
	s.Equal(0.0, product.Nutrients.Salt)
}

func (s *AnalyzerTestSuite) TestStaleRecordLowersConfidence() {
	product := &domain.ProductRecord{
		Name:         "Old Soda",
		Nutrients:    domain.NutrientProfile{Sugars: 8},
		LastModified: time.Now().AddDate(-6, 0, 0),
		Source:       domain.OriginOpenFoodFacts,
	}

	result := s.analyzer.Analyze(product, domain.UserProfile{}, AnalyzeOptions{})
	s.Equal(domain.MEDIUM, result.DataConfidence)
}

func (s *AnalyzerTestSuite) TestAnalyzeManual() {
	product := &domain.ProductRecord{Name: "Homemade", IngredientText: "oats, milk"}

	result := s.analyzer.AnalyzeManual(product, domain.UserProfile{}, AnalyzeOptions{})

	s.Equal(domain.STATUS_MANUAL_ENTRY, result.Status)
	s.Equal(domain.LOW, result.DataConfidence)
	last := result.Warnings[len(result.Warnings)-1]
	s.Equal("[CHECK] No OFF data available, fully manual input.", last.String())
	s.Empty(product.Source)
	s.Require().NotNil(result.Diet)
	s.False(result.Diet.Vegan)
	s.True(result.Diet.Vegetarian)
}

func (s *AnalyzerTestSuite) TestStructuredIngredientsWithoutText() {
	product := &domain.ProductRecord{Ingredients: []string{"Water", "Milk"}}

	result := s.analyzer.Analyze(product, domain.UserProfile{Allergens: []string{"lactose"}}, AnalyzeOptions{})

	s.Equal([]string{"lactose"}, result.MatchedAllergens)
	// both safe, allergen -2
	s.Equal(8.0, result.Score)
}

func (s *AnalyzerTestSuite) TestAnalyzeBarcode() {
	s.Run("found", func() {
		s.SetupTest()
		s.source.On("FetchProduct", s.ctx, "3017620422003").Return(&domain.ProductRecord{
			Name:           "Nutella",
			IngredientText: "sugar, palm oil, hazelnuts, skimmed milk powder",
			Nutrients:      domain.NutrientProfile{Sugars: 56.3, SaturatedFat: 10.6, Fat: 30.9, Carbohydrates: 57.5, Proteins: 6.3},
			Source:         domain.OriginOpenFoodFacts,
		}, nil)

		result, err := s.analyzer.AnalyzeBarcode(s.ctx, "3017620422003", domain.UserProfile{}, AnalyzeOptions{})
		s.Require().NoError(err)
		s.Equal(domain.STATUS_FOUND_OFF, result.Status)
		s.Equal("3017620422003", result.Barcode)
		s.Equal(domain.AVOID, result.Tier)
		s.Equal([]string{"Peanut butter without added sugar", "Almond butter", "Fruit spread"}, result.SuggestedAlternatives)
	})

	s.Run("not found", func() {
		s.SetupTest()
		s.source.On("FetchProduct", s.ctx, "0000000000000").Return(nil, nil)

		result, err := s.analyzer.AnalyzeBarcode(s.ctx, "0000000000000", domain.UserProfile{}, AnalyzeOptions{})
		s.Require().NoError(err)
		s.Equal(domain.STATUS_NOT_FOUND, result.Status)
		s.Equal(domain.LOW, result.DataConfidence)
	})

	s.Run("source failure is treated as not found", func() {
		s.SetupTest()
		s.source.On("FetchProduct", s.ctx, "1234567890123").Return(nil, errors.New("timeout"))

		result, err := s.analyzer.AnalyzeBarcode(s.ctx, "1234567890123", domain.UserProfile{}, AnalyzeOptions{})
		s.Require().NoError(err)
		s.Equal(domain.STATUS_NOT_FOUND, result.Status)
	})

	s.Run("invalid barcode", func() {
		s.SetupTest()
		_, err := s.analyzer.AnalyzeBarcode(s.ctx, "abc", domain.UserProfile{}, AnalyzeOptions{})
		s.ErrorIs(err, domain.ErrInvalidBarcode)
		s.source.AssertNotCalled(s.T(), "FetchProduct", mock.Anything, mock.Anything)
	})
}

func (s *AnalyzerTestSuite) TestClassifyIngredientsDescriptionChain() {
	s.lookup.On("LookupDescription", s.ctx, "quinoa").Return("Quinoa is a flowering plant grown for its seeds.", true)
	s.lookup.On("LookupDescription", s.ctx, "zzz").Return("", false)

	out := s.analyzer.ClassifyIngredients(s.ctx, []string{"sodium chloride", "salt", "quinoa", "zzz", ""})

	s.Require().Len(out, 5)
	s.Equal("Table salt.", out[0].Description)
	s.Contains(out[1].Description, "sodium chloride")
	s.Equal("Quinoa is a flowering plant grown for its seeds.", out[2].Description)
	s.Equal("No information available for this ingredient.", out[3].Description)
	s.Equal(domain.UNKNOWN, out[4].Safety)
	s.lookup.AssertNumberOfCalls(s.T(), "LookupDescription", 2)
}

func TestAnalyzer_ClassifyIngredientsWithNameResolver(t *testing.T) {
	ctx := context.Background()
	names := new(MockNameResolver)
	names.On("ResolveName", ctx, "tumeric").Return(&domain.IngredientRecord{
		Name: "turmeric", CanonicalName: "Turmeric", Description: "A yellow spice.", MatchScore: 93.3,
	}, true)
	names.On("ResolveName", ctx, "zzz").Return(nil, false)

	analyzer, err := NewAnalyzer(testTables(), AnalyzerConfig{}, testLogger(), WithNameResolver(names))
	require.NoError(t, err)

	out := analyzer.ClassifyIngredients(ctx, []string{"tumeric", "zzz"})
	require.Len(t, out, 2)
	assert.Equal(t, "Turmeric", out[0].CanonicalName)
	assert.Equal(t, "A yellow spice.", out[0].Description)
	assert.Equal(t, "No information available for this ingredient.", out[1].Description)
}

func TestNewAnalyzer_InvalidMode(t *testing.T) {
	_, err := NewAnalyzer(testTables(), AnalyzerConfig{Mode: "bogus"}, testLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidScoringMode)
}

func TestValidBarcode(t *testing.T) {
	tests := map[string]bool{
		"3017620422003":   true,
		"012345":          true,
		"12345":           false,
		"123456789012345": false,
		"30176204220a3":   false,
		"":                false,
	}
	for code, want := range tests {
		if got := ValidBarcode(code); got != want {
			t.Errorf("ValidBarcode(%q) = %v, want %v", code, got, want)
		}
	}
}
