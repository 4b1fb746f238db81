package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// RuleOutcome is the aggregate result of evaluating the health rules.
type RuleOutcome struct {
	Delta    float64          `json:"delta"`
	Warnings []domain.Warning `json:"warnings"`
}

// NutrientRuleEngine evaluates the per-condition health rules and the
// cross-nutrient synergy rules against one nutrient profile.
type NutrientRuleEngine struct {
	logger *logrus.Logger
	tables *rules.Tables
}

// NewNutrientRuleEngine creates a rule engine over the given tables.
func NewNutrientRuleEngine(tables *rules.Tables, logger *logrus.Logger) *NutrientRuleEngine {
	return &NutrientRuleEngine{logger: logger, tables: tables}
}

// ApplyRules returns the summed score delta and the deduplicated warnings for
// the active conditions. Unknown conditions are skipped. Synergy rules are
// evaluated once regardless of conditions.
func (e *NutrientRuleEngine) ApplyRules(nutrients domain.NutrientProfile, ingredientText string, conditions []string) RuleOutcome {
	var (
		delta    float64
		warnings []domain.Warning
	)
	lowerText := strings.ToLower(ingredientText)
	evaluated := make(map[string]struct{})

	for _, condition := range conditions {
		rule, ok := e.tables.Rule(condition)
		if !ok {
			e.logger.WithField("condition", condition).Debug("Skipping unknown health condition")
			continue
		}
		if _, dup := evaluated[rule.Condition]; dup {
			continue
		}
		evaluated[rule.Condition] = struct{}{}

		d, w := e.evaluateRule(rule, nutrients, lowerText)
		delta += d
		warnings = append(warnings, w...)
	}

	for _, s := range e.tables.SynergyRules {
		a := nutrients.Value(s.NutrientA)
		b := nutrients.Value(s.NutrientB)
		if a > s.ThresholdA && b > s.ThresholdB {
			delta -= s.Penalty
			warnings = append(warnings, domain.Warning{
				Message:    synergyMessage(s),
				Confidence: domain.HIGH,
				Source:     domain.SourceSynergy,
			})
		}
	}

	warnings = dedupeWarnings(warnings)

	e.logger.WithFields(logrus.Fields{
		"conditions": len(evaluated),
		"delta":      delta,
		"warnings":   len(warnings),
	}).Debug("Health rules evaluated")

	return RuleOutcome{Delta: delta, Warnings: warnings}
}

func (e *NutrientRuleEngine) evaluateRule(rule domain.HealthRule, nutrients domain.NutrientProfile, lowerText string) (float64, []domain.Warning) {
	var (
		delta    float64
		warnings []domain.Warning
	)

	for _, l := range rule.Direct {
		if v := nutrients.Value(l.Nutrient); v > l.Max {
			delta -= l.Penalty
			warnings = append(warnings, domain.Warning{
				Message:    limitMessage(rule, l, v),
				Confidence: domain.HIGH,
				Source:     domain.SourceCondition,
			})
		}
	}

	for _, l := range rule.Indirect {
		if v := nutrients.Value(l.Nutrient); v > l.Max {
			delta -= l.Penalty
			warnings = append(warnings, domain.Warning{
				Message:    limitMessage(rule, l, v),
				Confidence: domain.MEDIUM,
				Source:     domain.SourceCondition,
			})
		}
	}

	for _, p := range rule.Protective {
		if v := nutrients.Value(p.Nutrient); v >= p.Min {
			delta += p.Bonus
			warnings = append(warnings, domain.Warning{
				Message:    fmt.Sprintf("%s: protective factor %s=%s (bonus)", rule.Condition, p.Nutrient, formatNumber(v)),
				Confidence: domain.LOW,
				Source:     domain.SourceCondition,
			})
		}
	}

	if lowerText != "" {
		for _, trigger := range rule.IngredientTriggers {
			if !strings.Contains(lowerText, trigger) {
				continue
			}
			delta -= rule.TriggerPenalty()
			messages := rule.WarningMessages
			if len(messages) == 0 {
				messages = []string{fmt.Sprintf("%s: contains %s", rule.Condition, trigger)}
			}
			for _, msg := range messages {
				warnings = append(warnings, domain.Warning{
					Message:    msg,
					Confidence: domain.HIGH,
					Source:     domain.SourceCondition,
				})
			}
		}
	}

	return delta, warnings
}

func limitMessage(rule domain.HealthRule, l domain.NutrientLimit, value float64) string {
	if l.Message != "" {
		return fmt.Sprintf("%s: %s", rule.Condition, l.Message)
	}
	if msg := rule.PrimaryWarning(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s: %s=%s exceeds %s", rule.Condition, l.Nutrient, formatNumber(value), formatNumber(l.Max))
}

func synergyMessage(s domain.SynergyRule) string {
	if s.Message != "" {
		return s.Message
	}
	return fmt.Sprintf("%s: %s and %s both elevated", s.Name, s.NutrientA, s.NutrientB)
}

// dedupeWarnings drops warnings whose rendered text was already seen,
// keeping first-seen order.
func dedupeWarnings(in []domain.Warning) []domain.Warning {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Warning, 0, len(in))
	for _, w := range in {
		key := w.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
