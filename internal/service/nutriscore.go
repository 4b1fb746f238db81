package service

import (
	"github.com/ingrescan-health-server/internal/domain"
)

var (
	energyThresholdsKJ = []float64{335, 670, 1005, 1340, 1675, 2010, 2345, 2680, 3015, 3350}
	sugarThresholds    = []float64{4.5, 9, 13.5, 18, 22.5, 27, 31, 36, 40, 45}
	satFatThresholds   = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	sodiumThresholdsMg = []float64{90, 180, 270, 360, 450, 540, 630, 720, 810, 900}
	fiberThresholds    = []float64{0.9, 1.9, 2.8, 3.7, 4.7}
	proteinThresholds  = []float64{1.6, 3.2, 4.8, 6.4, 8}
)

// pointsAbove counts the thresholds strictly below value.
func pointsAbove(value float64, thresholds []float64) int {
	points := 0
	for _, t := range thresholds {
		if value > t {
			points++
		}
	}
	return points
}

func fruitPoints(pct float64) int {
	switch {
	case pct < 40:
		return 0
	case pct < 60:
		return 1
	case pct < 80:
		return 2
	default:
		return 5
	}
}

// ComputeNutriScore returns the Nutri-Score points and grade for a profile.
func ComputeNutriScore(n domain.NutrientProfile) domain.NutriScore {
	neg := domain.NutriScorePoints{
		Energy: pointsAbove(n.KJ(), energyThresholdsKJ),
		Sugars: pointsAbove(n.Sugars, sugarThresholds),
		SatFat: pointsAbove(n.SaturatedFat, satFatThresholds),
		Sodium: pointsAbove(n.SodiumMg(), sodiumThresholdsMg),
	}
	neg.Total = neg.Energy + neg.Sugars + neg.SatFat + neg.Sodium

	pos := domain.NutriScorePoints{
		Fruit:   fruitPoints(n.FruitVegNuts),
		Fiber:   pointsAbove(n.Fiber, fiberThresholds),
		Protein: pointsAbove(n.Proteins, proteinThresholds),
	}
	pos.Total = pos.Fruit + pos.Fiber + pos.Protein

	score := neg.Total - pos.Total
	return domain.NutriScore{
		Score:    score,
		Grade:    NutriGrade(score),
		Negative: neg,
		Positive: pos,
	}
}

// NutriGrade maps Nutri-Score points onto the A to E letter grade.
func NutriGrade(score int) string {
	switch {
	case score <= -1:
		return "A"
	case score <= 2:
		return "B"
	case score <= 10:
		return "C"
	case score <= 18:
		return "D"
	default:
		return "E"
	}
}
