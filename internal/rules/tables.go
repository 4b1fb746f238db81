// Package rules loads the static lookup and rule tables used by the scan
// engine. Tables are read once at startup and never mutated afterwards.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ingrescan-health-server/internal/domain"
)

//go:embed tables.yaml
var defaultTables []byte

// HarmfulEntry is one ordered row of the harmful-ingredient table.
type HarmfulEntry struct {
	Fragment string `yaml:"fragment"`
	Reason   string `yaml:"reason"`
}

// Synonym maps an ingredient spelling onto its canonical display name.
type Synonym struct {
	Canonical   string `yaml:"canonical"`
	Description string `yaml:"description"`
}

// AllergenNote is the static allergen reference for an ingredient name.
type AllergenNote struct {
	Allergen string `yaml:"allergen"`
	Info     string `yaml:"info"`
}

// AdditiveRange assigns a category to a numeric band of E numbers.
type AdditiveRange struct {
	Min         int    `yaml:"min"`
	Max         int    `yaml:"max"`
	Category    string `yaml:"category"`
	Purpose     string `yaml:"purpose"`
	Description string `yaml:"description"`
}

// FlagPattern is a seed regex over the ingredient text.
type FlagPattern struct {
	Pattern     string                      `yaml:"pattern"`
	Label       string                      `yaml:"label"`
	Consumption domain.ConsumptionFrequency `yaml:"consumption"`
	Reason      string                      `yaml:"reason"`
	Confidence  domain.ConfidenceLevel      `yaml:"confidence"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. It is nil until the tables are loaded.
func (f *FlagPattern) Regexp() *regexp.Regexp {
	return f.re
}

// Alternative lists healthier suggestions for products matching a keyword.
type Alternative struct {
	Keywords    []string `yaml:"keywords"`
	Suggestions []string `yaml:"suggestions"`
}

// DietTerms drives the vegan/vegetarian heuristic.
type DietTerms struct {
	AnimalTerms        []string `yaml:"animal_terms"`
	NonVegetarianTerms []string `yaml:"non_vegetarian_terms"`
	PlantMarkers       []string `yaml:"plant_markers"`
}

// Tables is the full set of static tables.
type Tables struct {
	HarmfulIngredients []HarmfulEntry                 `yaml:"harmful_ingredients"`
	SafeIngredients    []string                       `yaml:"safe_ingredients"`
	IngredientSynonyms map[string]Synonym             `yaml:"ingredient_synonyms"`
	AllergenSynonyms   map[string][]string            `yaml:"allergen_synonyms"`
	AllergenInfo       map[string]AllergenNote        `yaml:"allergen_info"`
	DefaultAllergens   []string                       `yaml:"default_allergens"`
	Preservatives      []string                       `yaml:"preservatives"`
	SugarTerms         []string                       `yaml:"sugar_terms"`
	CaffeineTerms      []string                       `yaml:"caffeine_terms"`
	Additives          map[string]domain.AdditiveInfo `yaml:"additives"`
	AdditiveRanges     []AdditiveRange                `yaml:"additive_ranges"`
	AdditiveDefault    AdditiveRange                  `yaml:"additive_default"`
	IngredientFlags    []FlagPattern                  `yaml:"ingredient_flags"`
	HealthRules        map[string]domain.HealthRule   `yaml:"health_rules"`
	SynergyRules       []domain.SynergyRule           `yaml:"synergy_rules"`
	Alternatives       []Alternative                  `yaml:"alternatives"`
	Explanations       map[string]string              `yaml:"explanations"`
	Diet               DietTerms                      `yaml:"diet"`
	DefaultDescription string                         `yaml:"default_description"`
}

// Default returns the tables embedded in the binary.
func Default() (*Tables, error) {
	return Load(defaultTables)
}

// MustDefault is Default for process start-up, where a broken embedded
// table is a build defect.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads tables from path. An empty path selects the embedded tables.
func LoadFile(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule tables %s: %w", path, err)
	}
	return Load(data)
}

// Load parses, normalizes and validates a YAML table document.
func Load(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rule tables: %w", err)
	}
	if err := t.prepare(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) prepare() error {
	for i := range t.IngredientFlags {
		f := &t.IngredientFlags[i]
		re, err := regexp.Compile("(?i)" + f.Pattern)
		if err != nil {
			return fmt.Errorf("ingredient flag %q: invalid pattern: %w", f.Label, err)
		}
		f.re = re
		if !f.Consumption.IsValid() {
			return fmt.Errorf("ingredient flag %q: invalid consumption %q", f.Label, f.Consumption)
		}
		if f.Confidence == "" {
			f.Confidence = domain.MEDIUM
		}
		if !f.Confidence.IsValid() {
			return fmt.Errorf("ingredient flag %q: %w: %s", f.Label, domain.ErrInvalidConfidence, f.Confidence)
		}
	}

	rules := make(map[string]domain.HealthRule, len(t.HealthRules))
	for name, rule := range t.HealthRules {
		key := NormalizeCondition(name)
		rule.Condition = key
		for _, l := range append(append([]domain.NutrientLimit{}, rule.Direct...), rule.Indirect...) {
			if l.Nutrient == "" {
				return fmt.Errorf("health rule %q: limit without nutrient", name)
			}
		}
		for i := range rule.IngredientTriggers {
			rule.IngredientTriggers[i] = strings.ToLower(rule.IngredientTriggers[i])
		}
		rules[key] = rule
	}
	t.HealthRules = rules

	for _, s := range t.SynergyRules {
		if s.NutrientA == "" || s.NutrientB == "" {
			return fmt.Errorf("synergy rule %q: both nutrients are required", s.Name)
		}
	}

	for _, r := range t.AdditiveRanges {
		if r.Min > r.Max {
			return fmt.Errorf("additive range %d-%d is inverted", r.Min, r.Max)
		}
	}

	synonyms := make(map[string][]string, len(t.AllergenSynonyms))
	for k, v := range t.AllergenSynonyms {
		terms := make([]string, 0, len(v))
		for _, term := range v {
			terms = append(terms, strings.ToLower(term))
		}
		synonyms[strings.ToLower(k)] = terms
	}
	t.AllergenSynonyms = synonyms

	for code, info := range t.Additives {
		info.Code = code
		t.Additives[code] = info
	}

	if t.DefaultDescription == "" {
		t.DefaultDescription = "No information available for this ingredient."
	}
	return nil
}

// Rule returns the health rule for a condition name.
func (t *Tables) Rule(condition string) (domain.HealthRule, bool) {
	r, ok := t.HealthRules[NormalizeCondition(condition)]
	return r, ok
}

// Conditions lists the known condition names.
func (t *Tables) Conditions() []string {
	out := make([]string, 0, len(t.HealthRules))
	for name := range t.HealthRules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var conditionAliases = map[string]string{
	"hypertension":        "high_bp",
	"high_blood_pressure": "high_bp",
	"pregnancy":           "pregnant",
	"cholesterol":         "high_cholesterol",
	"kidney_disease":      "kidney",
	"diabetic":            "diabetes",
}

// NormalizeCondition lowercases a condition name, joins words with "_" and
// resolves common aliases ("high blood pressure" becomes "high_bp").
func NormalizeCondition(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	key := strings.Join(fields, "_")
	if alias, ok := conditionAliases[key]; ok {
		return alias
	}
	return key
}
