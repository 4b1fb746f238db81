package service

import (
	"math"
	"strings"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

const (
	maxScore = 10.0
	minScore = 0.0
)

// ScoreInput is everything a scoring strategy may look at.
type ScoreInput struct {
	Ingredients []domain.Ingredient
	HasAllergen bool
	Nutrients   domain.NutrientProfile
	RuleDelta   float64
	IsLiquid    bool
}

// ScoringMode is a health score strategy. Scores are bounded to [0, 10].
type ScoringMode interface {
	Name() domain.ScoringModeName
	Score(in ScoreInput) (float64, domain.Tier)
}

// NewScoringMode returns the strategy for a mode name.
func NewScoringMode(name domain.ScoringModeName) (ScoringMode, error) {
	switch name {
	case domain.SIMPLE_MODE, "":
		return SimpleMode{}, nil
	case domain.WEIGHTED_MODE:
		return WeightedMode{}, nil
	default:
		return nil, domain.ErrInvalidScoringMode
	}
}

// band is one "value > above costs points" step; bands are checked from the
// highest threshold down and only the first hit applies.
type band struct {
	above  float64
	points float64
}

func bandPoints(v float64, bands []band) float64 {
	for _, b := range bands {
		if v > b.above {
			return b.points
		}
	}
	return 0
}

var (
	simpleSugarBands  = []band{{40, 5}, {20, 3}, {10, 1}}
	simpleSatFatBands = []band{{10, 3}, {5, 2}}
	simpleFatBands    = []band{{15, 2}}
	simpleSaltBands   = []band{{2, 3}, {1.5, 2}}
)

// SimpleMode starts at 10 and subtracts fixed penalties per harmful or
// moderate ingredient, for any allergen hit and for nutrient bands.
type SimpleMode struct{}

func (SimpleMode) Name() domain.ScoringModeName { return domain.SIMPLE_MODE }

func (SimpleMode) Score(in ScoreInput) (float64, domain.Tier) {
	score := maxScore
	for _, ing := range in.Ingredients {
		switch ing.Safety {
		case domain.HARMFUL:
			score -= 3
		case domain.MODERATE:
			score -= 1
		}
	}
	if in.HasAllergen {
		score -= 2
	}

	n := in.Nutrients
	score -= bandPoints(n.Sugars, simpleSugarBands)
	score -= bandPoints(n.SaturatedFat, simpleSatFatBands)
	score -= bandPoints(n.Fat, simpleFatBands)
	score -= bandPoints(n.SaltOrDerived(), simpleSaltBands)
	score += in.RuleDelta

	score = clamp(math.Round(score), minScore, maxScore)
	return score, TierFor(score)
}

var (
	weightedSolidSugar  = []band{{20, 3}, {10, 1}, {5, 0.5}}
	weightedLiquidSugar = []band{{15, 3}, {10, 2}, {5, 1}}
	weightedSatFat      = []band{{20, 3}, {10, 1.5}, {5, 0.5}}
	weightedSodiumMg    = []band{{1500, 3}, {800, 1.5}, {400, 0.5}}
)

// WeightedMode starts from a neutral 5 and adds bonuses for protein, fiber
// and fruit content and penalties for sugar, saturated fat, sodium and
// empty calories. Products high in sugar or saturated fat are capped at 8.
type WeightedMode struct{}

func (WeightedMode) Name() domain.ScoringModeName { return domain.WEIGHTED_MODE }

func (WeightedMode) Score(in ScoreInput) (float64, domain.Tier) {
	n := in.Nutrients
	score := 5.0

	score += math.Min(n.Proteins, 20) / 20 * 2.5
	score += math.Min(n.Fiber, 10) / 10 * 3
	score += math.Min(n.FruitVegNuts, 60) / 60 * 2

	if in.IsLiquid {
		score -= bandPoints(n.Sugars, weightedLiquidSugar)
	} else {
		score -= bandPoints(n.Sugars, weightedSolidSugar)
	}
	score -= bandPoints(n.SaturatedFat, weightedSatFat)
	score -= bandPoints(n.SodiumMg(), weightedSodiumMg)
	if n.Kcal() > 450 && n.Proteins+n.Fiber < 5 {
		score -= 1.5
	}

	score += in.RuleDelta
	if n.Sugars > 20 || n.SaturatedFat > 10 {
		score = math.Min(score, 8)
	}

	score = roundTo(clamp(score, minScore, maxScore), 1)
	return score, TierFor(score)
}

// TierFor maps a bounded score onto a consumption tier.
func TierFor(score float64) domain.Tier {
	switch {
	case score >= 8:
		return domain.DAILY
	case score >= 5:
		return domain.WEEKLY
	case score >= 3:
		return domain.OCCASIONAL
	default:
		return domain.AVOID
	}
}

// RatingFor maps a bounded score onto the verdict label.
func RatingFor(score float64) domain.Rating {
	switch {
	case score >= 8:
		return domain.RATING_SAFE
	case score >= 5:
		return domain.RATING_MODERATE
	default:
		return domain.RATING_HARMFUL
	}
}

// ApplyFlagOverride drops the tier to Avoid when any HIGH-confidence flag
// recommends occasional consumption only.
func ApplyFlagOverride(tier domain.Tier, flags []domain.IngredientFlag) domain.Tier {
	for _, f := range flags {
		if f.Confidence == domain.HIGH && f.Consumption == domain.FREQ_OCCASIONAL {
			return domain.AVOID
		}
	}
	return tier
}

// SuggestAlternatives returns the suggestions of the first alternatives
// entry whose keyword occurs in the product name or ingredient text.
func SuggestAlternatives(tables *rules.Tables, productName, ingredientText string) []string {
	haystack := strings.ToLower(productName + " " + ingredientText)
	for _, alt := range tables.Alternatives {
		for _, kw := range alt.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return append([]string(nil), alt.Suggestions...)
			}
		}
	}
	return nil
}

// clamp bounds v to [lo, hi]; NaN counts as the floor.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
