package domain

import (
	"sort"
	"strings"
	"time"
)

// Canonical nutrient keys, per 100 g or 100 ml of product.
const (
	NutrientSugars        = "sugars_100g"
	NutrientCarbohydrates = "carbohydrates_100g"
	NutrientFat           = "fat_100g"
	NutrientSaturatedFat  = "saturated_fat_100g"
	NutrientSalt          = "salt_100g"
	NutrientSodium        = "sodium_100g"
	NutrientProteins      = "proteins_100g"
	NutrientFiber         = "fiber_100g"
	NutrientEnergyKJ      = "energy_kj_100g"
	NutrientEnergyKcal    = "energy_kcal_100g"
	NutrientCaffeine      = "caffeine_100g"
	NutrientCholesterol   = "cholesterol_100g"
	NutrientFruitVegNuts  = "fruits_vegetables_nuts_100g"
)

// nutrientAliases maps the spellings used by Open Food Facts and manual entry
// onto the canonical keys above.
var nutrientAliases = map[string]string{
	"saturated-fat_100g":                   NutrientSaturatedFat,
	"energy-kj_100g":                       NutrientEnergyKJ,
	"energy_100g":                          NutrientEnergyKJ,
	"energy-kcal_100g":                     NutrientEnergyKcal,
	"fruits-vegetables-nuts_100g":          NutrientFruitVegNuts,
	"fruits-vegetables-nuts-estimate_100g": NutrientFruitVegNuts,
	"fruit_pct":                            NutrientFruitVegNuts,
	"fiber":                                NutrientFiber,
	"sugars":                               NutrientSugars,
	"sugar":                                NutrientSugars,
	"fat":                                  NutrientFat,
	"saturated_fat":                        NutrientSaturatedFat,
	"salt":                                 NutrientSalt,
	"sodium":                               NutrientSodium,
	"protein":                              NutrientProteins,
	"proteins":                             NutrientProteins,
	"carbohydrates":                        NutrientCarbohydrates,
	"carbs":                                NutrientCarbohydrates,
	"caffeine":                             NutrientCaffeine,
	"cholesterol":                          NutrientCholesterol,
	"energy_kcal":                          NutrientEnergyKcal,
	"energy_kj":                            NutrientEnergyKJ,
}

// CanonicalNutrientKey normalizes a nutrient key. Unknown keys are returned
// lowercased with dashes replaced by underscores.
func CanonicalNutrientKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := nutrientAliases[k]; ok {
		return canonical
	}
	return strings.ReplaceAll(k, "-", "_")
}

// NutrientProfile holds the nutrient values of a product per 100 g/ml.
// A zero value means "absent"; missing fields never fail an analysis.
type NutrientProfile struct {
	Sugars        float64 `json:"sugars_100g"`
	Carbohydrates float64 `json:"carbohydrates_100g"`
	Fat           float64 `json:"fat_100g"`
	SaturatedFat  float64 `json:"saturated_fat_100g"`
	Salt          float64 `json:"salt_100g"`
	Sodium        float64 `json:"sodium_100g"`
	Proteins      float64 `json:"proteins_100g"`
	Fiber         float64 `json:"fiber_100g"`
	EnergyKJ      float64 `json:"energy_kj_100g"`
	EnergyKcal    float64 `json:"energy_kcal_100g"`
	Caffeine      float64 `json:"caffeine_100g"`
	Cholesterol   float64 `json:"cholesterol_100g"`
	FruitVegNuts  float64 `json:"fruits_vegetables_nuts_100g"`
}

// weakNutrientAliases are spellings that lose to any other key for the same
// nutrient: OFF estimates and the unit-less energy value.
var weakNutrientAliases = map[string]bool{
	"fruits-vegetables-nuts-estimate_100g": true,
	"energy_100g":                          true,
}

// nutrientKeyRank orders keys that feed the same field: weak aliases first,
// then other aliases, then the canonical key, so the last write wins.
func nutrientKeyRank(key string) int {
	k := strings.ToLower(strings.TrimSpace(key))
	switch {
	case weakNutrientAliases[k]:
		return 0
	case k == CanonicalNutrientKey(k):
		return 2
	default:
		return 1
	}
}

// NutrientsFromMap builds a profile from a key/value map, accepting the
// aliases known to CanonicalNutrientKey. Unknown keys are ignored. When
// several keys name the same nutrient the canonical key wins over aliases
// and measured values win over estimates, independent of map order.
func NutrientsFromMap(values map[string]float64) NutrientProfile {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := nutrientKeyRank(keys[i]), nutrientKeyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	var p NutrientProfile
	for _, k := range keys {
		p.Set(k, values[k])
	}
	return p
}

// Set assigns a value by nutrient key. It reports false for unknown keys.
func (p *NutrientProfile) Set(key string, value float64) bool {
	if field := p.field(CanonicalNutrientKey(key)); field != nil {
		*field = value
		return true
	}
	return false
}

// Value returns the nutrient value for key, or 0 if the key is unknown.
func (p NutrientProfile) Value(key string) float64 {
	if field := p.field(CanonicalNutrientKey(key)); field != nil {
		return *field
	}
	return 0
}

// Map returns the non-zero nutrients keyed by canonical name.
func (p NutrientProfile) Map() map[string]float64 {
	out := make(map[string]float64)
	for _, key := range NutrientKeys() {
		if v := p.Value(key); v != 0 {
			out[key] = v
		}
	}
	return out
}

// IsEmpty reports whether no nutrient is set.
func (p NutrientProfile) IsEmpty() bool {
	return p == NutrientProfile{}
}

// SodiumMg returns sodium in milligrams, derived from salt when sodium is absent.
func (p NutrientProfile) SodiumMg() float64 {
	if p.Sodium > 0 {
		return p.Sodium * 1000
	}
	return p.Salt * 0.393 * 1000
}

// SaltOrDerived returns salt, back-derived from sodium when salt is absent.
func (p NutrientProfile) SaltOrDerived() float64 {
	if p.Salt == 0 && p.Sodium > 0 {
		return p.Sodium * 2.5
	}
	return p.Salt
}

// Kcal returns energy in kilocalories, converted from kJ when needed.
func (p NutrientProfile) Kcal() float64 {
	if p.EnergyKcal > 0 {
		return p.EnergyKcal
	}
	return p.EnergyKJ / 4.184
}

// KJ returns energy in kilojoules, converted from kcal when needed.
func (p NutrientProfile) KJ() float64 {
	if p.EnergyKJ > 0 {
		return p.EnergyKJ
	}
	return p.EnergyKcal * 4.184
}

// NutrientKeys lists the canonical nutrient keys in display order.
func NutrientKeys() []string {
	return []string{
		NutrientEnergyKJ, NutrientEnergyKcal, NutrientFat, NutrientSaturatedFat,
		NutrientCarbohydrates, NutrientSugars, NutrientFiber, NutrientProteins,
		NutrientSalt, NutrientSodium, NutrientCaffeine, NutrientCholesterol,
		NutrientFruitVegNuts,
	}
}

func (p *NutrientProfile) field(key string) *float64 {
	switch key {
	case NutrientSugars:
		return &p.Sugars
	case NutrientCarbohydrates:
		return &p.Carbohydrates
	case NutrientFat:
		return &p.Fat
	case NutrientSaturatedFat:
		return &p.SaturatedFat
	case NutrientSalt:
		return &p.Salt
	case NutrientSodium:
		return &p.Sodium
	case NutrientProteins:
		return &p.Proteins
	case NutrientFiber:
		return &p.Fiber
	case NutrientEnergyKJ:
		return &p.EnergyKJ
	case NutrientEnergyKcal:
		return &p.EnergyKcal
	case NutrientCaffeine:
		return &p.Caffeine
	case NutrientCholesterol:
		return &p.Cholesterol
	case NutrientFruitVegNuts:
		return &p.FruitVegNuts
	default:
		return nil
	}
}

// AdditiveInfo describes a food additive identified by its E/INS number.
type AdditiveInfo struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name,omitempty" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Purpose     string `json:"purpose" yaml:"purpose"`
	Description string `json:"description" yaml:"description"`
	Risk        string `json:"risk" yaml:"risk"`
}

// Ingredient is one classified ingredient token.
type Ingredient struct {
	RawName       string        `json:"raw_name"`
	CanonicalName string        `json:"canonical_name"`
	Safety        SafetyTag     `json:"safety"`
	Reason        string        `json:"reason,omitempty"`
	Description   string        `json:"description,omitempty"`
	Additive      *AdditiveInfo `json:"additive,omitempty"`
	Allergen      string        `json:"allergen,omitempty"`
	AllergenInfo  string        `json:"allergen_info,omitempty"`
}

// IngredientRecord is a reference entry from the local ingredient catalog.
type IngredientRecord struct {
	Name          string    `json:"name"`
	CanonicalName string    `json:"canonical_name"`
	Description   string    `json:"description,omitempty"`
	Safety        SafetyTag `json:"safety,omitempty"`
	Category      string    `json:"category,omitempty"`
	MatchScore    float64   `json:"match_score,omitempty"`
}

// Warning is one human-readable finding with its confidence level.
type Warning struct {
	Message    string          `json:"message"`
	Confidence ConfidenceLevel `json:"confidence"`
	Source     string          `json:"source,omitempty"`
}

// Warning sources.
const (
	SourceSanity    = "sanity"
	SourceCondition = "condition"
	SourceSynergy   = "synergy"
	SourceAllergen  = "allergen"
	SourceAdditive  = "additive"
	SourceFlag      = "ingredient_flag"
)

// String renders the warning as "[LEVEL] message".
func (w Warning) String() string {
	return w.Confidence.Prefix(w.Message)
}

// IngredientFlag is a pattern hit on the ingredient text.
type IngredientFlag struct {
	Label       string               `json:"label"`
	Consumption ConsumptionFrequency `json:"consumption"`
	Reason      string               `json:"reason"`
	Confidence  ConfidenceLevel      `json:"confidence"`
}

// ProductRecord is the normalized product handed to the engine, either
// fetched from a data source or entered by hand.
type ProductRecord struct {
	Barcode        string          `json:"barcode,omitempty"`
	Name           string          `json:"product_name"`
	Brand          string          `json:"brand,omitempty"`
	Nutrients      NutrientProfile `json:"nutrients"`
	IngredientText string          `json:"ingredients_text"`
	Ingredients    []string        `json:"ingredients,omitempty"`
	AllergenTags   []string        `json:"allergen_tags,omitempty"`
	AdditiveTags   []string        `json:"additive_tags,omitempty"`
	IsLiquid       bool            `json:"is_liquid,omitempty"`
	LastModified   time.Time       `json:"last_modified,omitempty"`
	Source         string          `json:"source,omitempty"`
}

// Product record origins.
const (
	OriginOpenFoodFacts = "openfoodfacts"
	OriginLocalCatalog  = "local_catalog"
	OriginManual        = "manual"
)

// HasIngredients reports whether the record carries any ingredient data.
func (p *ProductRecord) HasIngredients() bool {
	return strings.TrimSpace(p.IngredientText) != "" || len(p.Ingredients) > 0
}

// UserProfile holds the user's declared allergens and health conditions.
type UserProfile struct {
	Allergens  []string `json:"allergens"`
	Conditions []string `json:"conditions"`
}

// NutriScorePoints is the per-component breakdown of a Nutri-Score.
type NutriScorePoints struct {
	Energy  int `json:"energy,omitempty"`
	Sugars  int `json:"sugars,omitempty"`
	SatFat  int `json:"sat_fat,omitempty"`
	Sodium  int `json:"sodium,omitempty"`
	Fruit   int `json:"fruit_pct,omitempty"`
	Fiber   int `json:"fiber,omitempty"`
	Protein int `json:"protein,omitempty"`
	Total   int `json:"total"`
}

// NutriScore is the computed Nutri-Score with grade A to E.
type NutriScore struct {
	Score    int              `json:"score"`
	Grade    string           `json:"grade"`
	Negative NutriScorePoints `json:"negative"`
	Positive NutriScorePoints `json:"positive"`
}

// MacroDistribution is the share of sugar, protein and saturated fat grams.
type MacroDistribution struct {
	SugarPct   float64 `json:"sugar_pct"`
	ProteinPct float64 `json:"protein_pct"`
	SatFatPct  float64 `json:"sat_fat_pct"`
}

// DietInfo is the vegan/vegetarian heuristic over the ingredient list.
type DietInfo struct {
	Vegan      bool     `json:"vegan"`
	Vegetarian bool     `json:"vegetarian"`
	Evidence   []string `json:"evidence"`
}

// SanityReport is the outcome of the data sanity checks.
type SanityReport struct {
	Suspicious  bool            `json:"suspicious"`
	Warnings    []Warning       `json:"warnings"`
	Confidence  ConfidenceLevel `json:"confidence"`
	DerivedSalt float64         `json:"derived_salt,omitempty"`
}

// AnalysisResult is the engine output for one product.
type AnalysisResult struct {
	ProductName           string             `json:"product_name"`
	Barcode               string             `json:"barcode,omitempty"`
	Status                ProductStatus      `json:"status"`
	Score                 float64            `json:"score"`
	Tier                  Tier               `json:"tier"`
	Rating                Rating             `json:"rating"`
	ScoringMode           ScoringModeName    `json:"scoring_mode"`
	Warnings              []Warning          `json:"warnings"`
	MatchedAllergens      []string           `json:"matched_allergens"`
	SuggestedAlternatives []string           `json:"suggested_alternatives,omitempty"`
	Ingredients           []Ingredient       `json:"ingredients,omitempty"`
	IngredientFlags       []IngredientFlag   `json:"ingredient_flags,omitempty"`
	NutriScore            *NutriScore        `json:"nutri_score,omitempty"`
	MacroDistribution     *MacroDistribution `json:"macro_distribution,omitempty"`
	Diet                  *DietInfo          `json:"diet,omitempty"`
	Suggestions           []string           `json:"suggestions,omitempty"`
	Suspicious            bool               `json:"suspicious"`
	DataConfidence        ConfidenceLevel    `json:"data_confidence"`
	AnalyzedAt            time.Time          `json:"analyzed_at"`
}

// WarningStrings renders every warning as "[LEVEL] message".
func (r *AnalysisResult) WarningStrings() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.String())
	}
	return out
}
