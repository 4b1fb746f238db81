package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

const (
	unknownProductName = "Unknown"
	manualInputWarning = "No OFF data available, fully manual input."
)

// AnalyzerConfig holds the analyzer defaults.
type AnalyzerConfig struct {
	Mode       domain.ScoringModeName
	StaleYears int
}

// Analyzer runs the full scan pipeline: sanity checks, ingredient
// classification, health rules, scoring and the derived insights.
// Analyze itself performs no I/O; the barcode and description entry points
// go through the injected collaborators.
type Analyzer struct {
	logger      *logrus.Logger
	tables      *rules.Tables
	classifier  *IngredientClassifier
	allergens   *AllergenResolver
	ruleEngine  *NutrientRuleEngine
	flagger     *IngredientFlagger
	sanity      *SanityValidator
	defaultMode ScoringMode

	products     domain.ProductSource
	descriptions domain.DescriptionLookup
	names        domain.NameResolver
	now          func() time.Time
}

// AnalyzerOption configures optional collaborators.
type AnalyzerOption func(*Analyzer)

// WithProductSource sets the barcode lookup used by AnalyzeBarcode.
func WithProductSource(src domain.ProductSource) AnalyzerOption {
	return func(a *Analyzer) { a.products = src }
}

// WithDescriptionLookup sets the text lookup used by ClassifyIngredients.
func WithDescriptionLookup(d domain.DescriptionLookup) AnalyzerOption {
	return func(a *Analyzer) { a.descriptions = d }
}

// WithNameResolver sets the catalog name resolver used by ClassifyIngredients.
func WithNameResolver(r domain.NameResolver) AnalyzerOption {
	return func(a *Analyzer) { a.names = r }
}

// NewAnalyzer wires the engine components over one set of tables.
func NewAnalyzer(tables *rules.Tables, config AnalyzerConfig, logger *logrus.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	mode, err := NewScoringMode(config.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to select scoring mode %q: %w", config.Mode, err)
	}

	a := &Analyzer{
		logger:      logger,
		tables:      tables,
		classifier:  NewIngredientClassifier(tables),
		allergens:   NewAllergenResolver(tables),
		ruleEngine:  NewNutrientRuleEngine(tables, logger),
		flagger:     NewIngredientFlagger(tables),
		sanity:      NewSanityValidator(tables, config.StaleYears),
		defaultMode: mode,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Classifier exposes the ingredient classifier.
func (a *Analyzer) Classifier() *IngredientClassifier { return a.classifier }

// Allergens exposes the allergen resolver.
func (a *Analyzer) Allergens() *AllergenResolver { return a.allergens }

// Conditions lists the health conditions the rule tables know about.
func (a *Analyzer) Conditions() []string { return a.tables.Conditions() }

// DefaultMode is the scoring mode used when a call does not pick one.
func (a *Analyzer) DefaultMode() domain.ScoringModeName { return a.defaultMode.Name() }

// AnalyzeOptions are per-call overrides.
type AnalyzeOptions struct {
	Mode domain.ScoringModeName
}

// Analyze scores one product record for a user profile. It never fails:
// missing fields count as zero and suspicious data only adds warnings.
func (a *Analyzer) Analyze(product *domain.ProductRecord, profile domain.UserProfile, opts AnalyzeOptions) *domain.AnalysisResult {
	if product == nil {
		product = &domain.ProductRecord{}
	}
	mode := a.modeFor(opts.Mode)

	text := product.IngredientText
	tokens := ParseIngredients(text)
	if len(product.Ingredients) > 0 {
		tokens = make([]string, 0, len(product.Ingredients))
		for _, ing := range product.Ingredients {
			if t := normalizeToken(ing); t != "" {
				tokens = append(tokens, t)
			}
		}
		if strings.TrimSpace(text) == "" {
			text = strings.Join(tokens, ", ")
		}
	}

	sanity := a.sanity.Validate(product.Nutrients, text, product.LastModified)
	nutrients := product.Nutrients
	if sanity.DerivedSalt > 0 {
		nutrients.Salt = sanity.DerivedSalt
	}

	ingredients := a.classifier.ClassifyAll(tokens)

	matchInput := append(append([]string{}, tokens...), cleanTags(product.AllergenTags)...)
	matched := a.allergens.Match(matchInput, profile.Allergens)

	outcome := a.ruleEngine.ApplyRules(nutrients, text, profile.Conditions)
	flags := a.flagger.Flag(text)

	score, tier := mode.Score(ScoreInput{
		Ingredients: ingredients,
		HasAllergen: len(matched) > 0,
		Nutrients:   nutrients,
		RuleDelta:   outcome.Delta,
		IsLiquid:    product.IsLiquid,
	})
	tier = ApplyFlagOverride(tier, flags)

	warnings := make([]domain.Warning, 0, len(sanity.Warnings)+len(outcome.Warnings))
	warnings = append(warnings, sanity.Warnings...)
	warnings = append(warnings, a.allergenWarnings(matched, profile, text)...)
	warnings = append(warnings, outcome.Warnings...)
	warnings = append(warnings, a.allergens.PreservativeWarnings(text)...)
	warnings = dedupeWarnings(warnings)

	name := strings.TrimSpace(product.Name)
	if name == "" {
		name = unknownProductName
	}

	result := &domain.AnalysisResult{
		ProductName:      name,
		Barcode:          product.Barcode,
		Status:           statusFor(product),
		Score:            score,
		Tier:             tier,
		Rating:           RatingFor(score),
		ScoringMode:      mode.Name(),
		Warnings:         warnings,
		MatchedAllergens: matched,
		Ingredients:      ingredients,
		IngredientFlags:  flags,
		Suspicious:       sanity.Suspicious,
		DataConfidence:   sanity.Confidence,
		AnalyzedAt:       a.now().UTC(),
	}
	if tier.IsWorst() {
		result.SuggestedAlternatives = SuggestAlternatives(a.tables, product.Name, text)
	}
	if result.Status == domain.STATUS_MANUAL_ENTRY {
		result.DataConfidence = domain.LOW
	}

	if !nutrients.IsEmpty() {
		ns := ComputeNutriScore(nutrients)
		macro := MacroDistributionOf(nutrients)
		result.NutriScore = &ns
		result.MacroDistribution = &macro
		result.Suggestions = Suggestions(nutrients, len(warnings))
	}
	if text != "" {
		diet := DietOf(a.tables, text)
		result.Diet = &diet
	}

	a.logger.WithFields(logrus.Fields{
		"product":    name,
		"barcode":    product.Barcode,
		"mode":       mode.Name(),
		"score":      score,
		"tier":       tier,
		"warnings":   len(warnings),
		"suspicious": sanity.Suspicious,
	}).Info("Product analyzed")

	return result
}

// AnalyzeBarcode fetches a product and analyzes it. A lookup failure is
// treated as "not found"; the returned result then carries STATUS_NOT_FOUND
// and the caller is expected to fall back to manual entry.
func (a *Analyzer) AnalyzeBarcode(ctx context.Context, barcode string, profile domain.UserProfile, opts AnalyzeOptions) (*domain.AnalysisResult, error) {
	barcode = strings.TrimSpace(barcode)
	if !ValidBarcode(barcode) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidBarcode, barcode)
	}
	if a.products == nil {
		return a.notFound(barcode), nil
	}

	product, err := a.products.FetchProduct(ctx, barcode)
	if err != nil {
		a.logger.WithError(err).WithField("barcode", barcode).Warn("Product lookup failed, treating as not found")
		return a.notFound(barcode), nil
	}
	if product == nil {
		return a.notFound(barcode), nil
	}
	if product.Barcode == "" {
		product.Barcode = barcode
	}
	return a.Analyze(product, profile, opts), nil
}

// AnalyzeManual analyzes a hand-entered record.
func (a *Analyzer) AnalyzeManual(product *domain.ProductRecord, profile domain.UserProfile, opts AnalyzeOptions) *domain.AnalysisResult {
	if product == nil {
		product = &domain.ProductRecord{}
	}
	manual := *product
	manual.Source = domain.OriginManual
	result := a.Analyze(&manual, profile, opts)
	result.Warnings = append(result.Warnings, domain.Warning{
		Message:    manualInputWarning,
		Confidence: domain.CHECK,
		Source:     domain.SourceSanity,
	})
	return result
}

// ClassifyIngredients tags each ingredient and fills its description from
// the synonym table, the catalog, the built-in explanations and finally the
// description lookup.
func (a *Analyzer) ClassifyIngredients(ctx context.Context, names []string) []domain.Ingredient {
	out := make([]domain.Ingredient, 0, len(names))
	for _, raw := range names {
		ing := a.classifier.Classify(raw)
		if ing.Safety == domain.UNKNOWN {
			out = append(out, ing)
			continue
		}

		if a.names != nil && ing.Description == "" {
			if rec, ok := a.names.ResolveName(ctx, raw); ok {
				if rec.CanonicalName != "" && strings.EqualFold(ing.CanonicalName, strings.TrimSpace(raw)) {
					ing.CanonicalName = rec.CanonicalName
				}
				ing.Description = rec.Description
			}
		}

		if ing.Description == "" {
			ing.Description = a.explanation(raw, ing.CanonicalName)
		}
		if ing.Description == "" && a.descriptions != nil {
			if desc, ok := a.descriptions.LookupDescription(ctx, Singularize(normalizeToken(raw))); ok {
				ing.Description = desc
			}
		}
		if ing.Description == "" {
			ing.Description = a.tables.DefaultDescription
		}
		out = append(out, ing)
	}
	return out
}

func (a *Analyzer) explanation(raw, canonical string) string {
	if text, ok := a.tables.Explanations[normalizeToken(raw)]; ok {
		return text
	}
	if text, ok := a.tables.Explanations[normalizeToken(canonical)]; ok {
		return text
	}
	return ""
}

// allergenWarnings reports declared allergens that matched. Without any
// declared allergens the text is scanned for the default allergen keywords.
func (a *Analyzer) allergenWarnings(matched []string, profile domain.UserProfile, text string) []domain.Warning {
	if len(profile.Allergens) == 0 {
		return a.allergens.TextWarnings(text)
	}
	out := make([]domain.Warning, 0, len(matched))
	for _, m := range matched {
		out = append(out, domain.Warning{
			Message:    fmt.Sprintf("Contains allergen: %s", m),
			Confidence: domain.HIGH,
			Source:     domain.SourceAllergen,
		})
	}
	return out
}

func (a *Analyzer) notFound(barcode string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ProductName: unknownProductName,
		Barcode:     barcode,
		Status:      domain.STATUS_NOT_FOUND,
		ScoringMode: a.defaultMode.Name(),
		Warnings: []domain.Warning{{
			Message:    manualInputWarning,
			Confidence: domain.CHECK,
			Source:     domain.SourceSanity,
		}},
		MatchedAllergens: []string{},
		DataConfidence:   domain.LOW,
		AnalyzedAt:       a.now().UTC(),
	}
}

func (a *Analyzer) modeFor(name domain.ScoringModeName) ScoringMode {
	if name == "" {
		return a.defaultMode
	}
	mode, err := NewScoringMode(name)
	if err != nil {
		a.logger.WithField("mode", name).Warn("Unknown scoring mode, using default")
		return a.defaultMode
	}
	return mode
}

func statusFor(p *domain.ProductRecord) domain.ProductStatus {
	switch p.Source {
	case domain.OriginOpenFoodFacts:
		if !p.HasIngredients() || p.Nutrients.IsEmpty() {
			return domain.STATUS_PARTIAL_OFF
		}
		return domain.STATUS_FOUND_OFF
	case domain.OriginLocalCatalog:
		return domain.STATUS_FOUND_LOCAL
	default:
		return domain.STATUS_MANUAL_ENTRY
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if c := CleanTag(t); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// ValidBarcode accepts 6 to 14 digit EAN/UPC style codes.
func ValidBarcode(code string) bool {
	if len(code) < 6 || len(code) > 14 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
