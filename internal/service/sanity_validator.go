package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// DefaultStaleYears is the record age past which data confidence drops.
const DefaultStaleYears = 5

const (
	sugarTermThreshold    = 5.0
	unrealisticSalt       = 10.0
	unusualCaffeine       = 10.0
	additiveRatioConcern  = 0.5
	macroSumLimit         = 100.0
	sodiumToSaltFactor    = 2.5
	secondsPerYearAverage = 60 * 60 * 24 * 365
)

// SanityValidator flags implausible or stale nutrient records. It never
// mutates its input; a derived salt value is reported, not written back.
type SanityValidator struct {
	tables     *rules.Tables
	staleYears int
	now        func() time.Time
}

// NewSanityValidator creates a validator. staleYears <= 0 selects DefaultStaleYears.
func NewSanityValidator(tables *rules.Tables, staleYears int) *SanityValidator {
	if staleYears <= 0 {
		staleYears = DefaultStaleYears
	}
	return &SanityValidator{tables: tables, staleYears: staleYears, now: time.Now}
}

// Validate runs every sanity check over one product record.
func (v *SanityValidator) Validate(n domain.NutrientProfile, ingredientText string, lastModified time.Time) domain.SanityReport {
	report := domain.SanityReport{Confidence: domain.HIGH, Warnings: []domain.Warning{}}
	lower := strings.ToLower(ingredientText)

	flag := func(level domain.ConfidenceLevel, suspicious bool, format string, args ...interface{}) {
		report.Warnings = append(report.Warnings, domain.Warning{
			Message:    fmt.Sprintf(format, args...),
			Confidence: level,
			Source:     domain.SourceSanity,
		})
		if suspicious {
			report.Suspicious = true
		}
	}

	for _, key := range domain.NutrientKeys() {
		if val := n.Value(key); val < 0 {
			flag(domain.HIGH, true, "%s is negative (%s), data invalid", key, formatNumber(val))
		}
	}

	if n.Carbohydrates > 0 && n.Sugars > n.Carbohydrates {
		flag(domain.HIGH, true, "Sugars (%sg) > Carbohydrates (%sg), possible mislabeling",
			formatNumber(n.Sugars), formatNumber(n.Carbohydrates))
	}

	if n.Sugars >= sugarTermThreshold && !containsAny(lower, v.tables.SugarTerms) {
		flag(domain.MEDIUM, true, "significant sugar but ingredient list lacks sugar terms, verify")
	}

	if sum := n.Proteins + n.Fat + n.Carbohydrates; sum > macroSumLimit {
		flag(domain.HIGH, true, "Sum of protein+fat+carbs = %sg/100g (impossible), data error", formatNumber(roundTo(sum, 1)))
	}

	if n.Salt == 0 && n.Sodium > 0 {
		report.DerivedSalt = roundTo(n.Sodium*sodiumToSaltFactor, 3)
		flag(domain.CHECK, false, "Sodium present (%sg) but salt field empty, using sodium to compute salt", formatNumber(n.Sodium))
	}

	if n.Salt > unrealisticSalt {
		flag(domain.HIGH, true, "Salt = %sg/100g looks unrealistic", formatNumber(n.Salt))
	}

	if n.Caffeine > unusualCaffeine && !containsAny(lower, v.tables.CaffeineTerms) {
		flag(domain.MEDIUM, true, "Caffeine %s mg unusual for this product, verify", formatNumber(n.Caffeine))
	}

	if ratio := v.additiveRatio(lower); ratio > additiveRatioConcern {
		flag(domain.MEDIUM, false, "Additives are %d%% of listed ingredients, medium concern", int(ratio*100))
	}

	if !lastModified.IsZero() {
		years := v.now().Sub(lastModified).Seconds() / secondsPerYearAverage
		if years > float64(v.staleYears) {
			flag(domain.CHECK, false, "Data may be outdated (last updated %d years ago)", int(years))
			if report.Confidence == domain.HIGH {
				report.Confidence = domain.MEDIUM
			}
		}
	}

	return report
}

// additiveRatio is the share of comma-separated tokens that mention an
// additive keyword.
func (v *SanityValidator) additiveRatio(lower string) float64 {
	tokens := 0
	for _, t := range strings.Split(lower, ",") {
		if strings.TrimSpace(t) != "" {
			tokens++
		}
	}
	if tokens == 0 {
		return 0
	}
	hits := 0
	for _, p := range v.tables.Preservatives {
		if strings.Contains(lower, p) {
			hits++
		}
	}
	return float64(hits) / float64(tokens)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
