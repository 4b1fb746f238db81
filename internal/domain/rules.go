package domain

// NutrientLimit is a direct or indirect rule: it fires when the nutrient
// value is strictly above Max.
type NutrientLimit struct {
	Nutrient string  `json:"nutrient" yaml:"nutrient"`
	Max      float64 `json:"max" yaml:"max"`
	Penalty  float64 `json:"penalty" yaml:"penalty"`
	Message  string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// ProtectiveLimit fires when the nutrient value is at least Min.
type ProtectiveLimit struct {
	Nutrient string  `json:"nutrient" yaml:"nutrient"`
	Min      float64 `json:"min" yaml:"min"`
	Bonus    float64 `json:"bonus" yaml:"bonus"`
}

// DefaultTriggerPenalty is subtracted for an ingredient trigger when the
// rule does not set its own penalty_points.
const DefaultTriggerPenalty = 3.0

// HealthRule is the rule set for one health condition.
type HealthRule struct {
	Condition          string            `json:"condition" yaml:"condition"`
	Direct             []NutrientLimit   `json:"direct,omitempty" yaml:"direct"`
	Indirect           []NutrientLimit   `json:"indirect,omitempty" yaml:"indirect"`
	Protective         []ProtectiveLimit `json:"protective,omitempty" yaml:"protective"`
	IngredientTriggers []string          `json:"ingredient_triggers,omitempty" yaml:"ingredient_triggers"`
	PenaltyPoints      float64           `json:"penalty_points,omitempty" yaml:"penalty_points"`
	WarningMessages    []string          `json:"warning_messages,omitempty" yaml:"warning_messages"`
}

// TriggerPenalty returns the penalty applied per matched ingredient trigger.
func (r HealthRule) TriggerPenalty() float64 {
	if r.PenaltyPoints > 0 {
		return r.PenaltyPoints
	}
	return DefaultTriggerPenalty
}

// PrimaryWarning returns the first configured warning message, if any.
func (r HealthRule) PrimaryWarning() string {
	if len(r.WarningMessages) == 0 {
		return ""
	}
	return r.WarningMessages[0]
}

// SynergyRule fires only when both nutrients exceed their thresholds.
type SynergyRule struct {
	Name       string  `json:"name" yaml:"name"`
	NutrientA  string  `json:"nutrient_a" yaml:"nutrient_a"`
	ThresholdA float64 `json:"threshold_a" yaml:"threshold_a"`
	NutrientB  string  `json:"nutrient_b" yaml:"nutrient_b"`
	ThresholdB float64 `json:"threshold_b" yaml:"threshold_b"`
	Penalty    float64 `json:"penalty" yaml:"penalty"`
	Message    string  `json:"warning_message" yaml:"warning_message"`
}
