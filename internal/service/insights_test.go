package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingrescan-health-server/internal/domain"
)

func TestComputeNutriScore(t *testing.T) {
	tests := []struct {
		name      string
		nutrients domain.NutrientProfile
		wantScore int
		wantGrade string
	}{
		{"Empty profile", domain.NutrientProfile{}, 0, "B"},
		{"Worst negatives", domain.NutrientProfile{EnergyKJ: 3400, Sugars: 50, SaturatedFat: 11, Sodium: 1}, 40, "E"},
		{"Best positives", domain.NutrientProfile{FruitVegNuts: 80, Fiber: 5, Proteins: 9}, -15, "A"},
		{"Mixed", domain.NutrientProfile{EnergyKcal: 250, Sugars: 10, SaturatedFat: 2.5, Salt: 0.5, Fiber: 2, Proteins: 4}, 5, "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := ComputeNutriScore(tt.nutrients)
			assert.Equal(t, tt.wantScore, ns.Score)
			assert.Equal(t, tt.wantGrade, ns.Grade)
			assert.Equal(t, ns.Negative.Total-ns.Positive.Total, ns.Score)
		})
	}
}

func TestNutriGrade(t *testing.T) {
	tests := map[int]string{-5: "A", -1: "A", 0: "B", 2: "B", 3: "C", 10: "C", 11: "D", 18: "D", 19: "E"}
	for score, want := range tests {
		if got := NutriGrade(score); got != want {
			t.Errorf("NutriGrade(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestFruitPoints(t *testing.T) {
	assert.Equal(t, 0, fruitPoints(39.9))
	assert.Equal(t, 1, fruitPoints(40))
	assert.Equal(t, 2, fruitPoints(60))
	assert.Equal(t, 5, fruitPoints(80))
}

func TestMacroDistributionOf(t *testing.T) {
	got := MacroDistributionOf(domain.NutrientProfile{Sugars: 10, Proteins: 5, SaturatedFat: 5})
	assert.Equal(t, domain.MacroDistribution{SugarPct: 50, ProteinPct: 25, SatFatPct: 25}, got)

	got = MacroDistributionOf(domain.NutrientProfile{Sugars: 1, Proteins: 1, SaturatedFat: 1})
	assert.Equal(t, 33.3, got.SugarPct)

	assert.Equal(t, domain.MacroDistribution{}, MacroDistributionOf(domain.NutrientProfile{Fat: 20}))
}

func TestSuggestions(t *testing.T) {
	t.Run("all advice", func(t *testing.T) {
		got := Suggestions(domain.NutrientProfile{Sugars: 30, SaturatedFat: 9}, 0)
		assert.Equal(t, []string{
			"Consider a lower-sugar alternative or reduce portion size.",
			"High saturated fat: choose options with more unsaturated fats.",
			"Increase fiber intake: prefer whole grain / higher fiber products.",
			"Add a protein source to balance this product.",
		}, got)
	})

	t.Run("no concerns", func(t *testing.T) {
		got := Suggestions(domain.NutrientProfile{Fiber: 5, Proteins: 10}, 0)
		assert.Equal(t, []string{noConcernsSuggestion}, got)
	})

	t.Run("no concerns suppressed by warnings", func(t *testing.T) {
		assert.Empty(t, Suggestions(domain.NutrientProfile{Fiber: 5, Proteins: 10}, 2))
	})
}

func TestDietOf(t *testing.T) {
	tables := testTables()

	tests := []struct {
		name           string
		text           string
		wantVegan      bool
		wantVegetarian bool
		wantEvidence   []string
	}{
		{"Gelatin", "water, sugar, gelatin", false, false, []string{"gelatin"}},
		{"Dairy", "Milk, sugar", false, true, []string{"milk"}},
		{"Plant based", "water, oat flakes", true, true, []string{"oat"}},
		{"No markers", "water, salt", true, true, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diet := DietOf(tables, tt.text)
			assert.Equal(t, tt.wantVegan, diet.Vegan)
			assert.Equal(t, tt.wantVegetarian, diet.Vegetarian)
			assert.Equal(t, tt.wantEvidence, diet.Evidence)
		})
	}
}

func TestIngredientFlagger_Flag(t *testing.T) {
	flagger := NewIngredientFlagger(testTables())

	flags := flagger.Flag("Partially hydrogenated palm oil, E211, MSG, flavoring")
	require.Len(t, flags, 4)

	labels := make([]string, 0, len(flags))
	for _, f := range flags {
		labels = append(labels, f.Label)
	}
	assert.Equal(t, []string{"Trans fats", "Palm oil", "Benzoates (preservatives)", "MSG"}, labels)
	assert.Equal(t, domain.FREQ_OCCASIONAL, flags[0].Consumption)
	assert.Equal(t, domain.HIGH, flags[0].Confidence)
	assert.Equal(t, domain.FREQ_WEEKLY, flags[1].Consumption)

	assert.Empty(t, flagger.Flag(""))
	assert.Empty(t, flagger.Flag("water, salt, sugar"))
}

func TestIngredientFlagger_OneFlagPerLabel(t *testing.T) {
	flagger := NewIngredientFlagger(testTables())

	flags := flagger.Flag("aspartame, sucralose, acesulfame k")
	require.Len(t, flags, 1)
	assert.Equal(t, "Artificial sweeteners", flags[0].Label)
}
