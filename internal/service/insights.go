package service

import (
	"strings"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

const noConcernsSuggestion = "No major concerns detected. Suitable within a balanced diet."

// MacroDistributionOf returns the share of sugar, protein and saturated fat
// grams in their sum. All shares are zero when the sum is zero.
func MacroDistributionOf(n domain.NutrientProfile) domain.MacroDistribution {
	total := n.Sugars + n.Proteins + n.SaturatedFat
	if total <= 0 {
		return domain.MacroDistribution{}
	}
	return domain.MacroDistribution{
		SugarPct:   roundTo(n.Sugars/total*100, 1),
		ProteinPct: roundTo(n.Proteins/total*100, 1),
		SatFatPct:  roundTo(n.SaturatedFat/total*100, 1),
	}
}

// Suggestions returns nutrition advice for a profile. The no-concerns line
// is only returned when nothing else applies and there are no warnings.
func Suggestions(n domain.NutrientProfile, warningCount int) []string {
	var out []string
	if n.Sugars > 20 {
		out = append(out, "Consider a lower-sugar alternative or reduce portion size.")
	}
	if n.SaturatedFat > 8 {
		out = append(out, "High saturated fat: choose options with more unsaturated fats.")
	}
	if n.Fiber < 3 {
		out = append(out, "Increase fiber intake: prefer whole grain / higher fiber products.")
	}
	if n.Proteins < 5 {
		out = append(out, "Add a protein source to balance this product.")
	}
	if len(out) == 0 && warningCount == 0 {
		out = append(out, noConcernsSuggestion)
	}
	return out
}

// DietOf applies the vegan/vegetarian heuristic to ingredient text.
func DietOf(tables *rules.Tables, ingredientText string) domain.DietInfo {
	lower := strings.ToLower(ingredientText)

	animal := termsIn(lower, tables.Diet.AnimalTerms)
	if len(animal) > 0 {
		return domain.DietInfo{
			Vegan:      false,
			Vegetarian: len(termsIn(lower, tables.Diet.NonVegetarianTerms)) == 0,
			Evidence:   animal,
		}
	}

	plant := termsIn(lower, tables.Diet.PlantMarkers)
	if plant == nil {
		plant = []string{}
	}
	return domain.DietInfo{Vegan: true, Vegetarian: true, Evidence: plant}
}

func termsIn(lower string, terms []string) []string {
	var hits []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits = append(hits, t)
		}
	}
	return hits
}
