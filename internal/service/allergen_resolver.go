package service

import (
	"fmt"
	"strings"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// AllergenResolver matches declared allergens against ingredient names and
// product allergen tags.
type AllergenResolver struct {
	tables *rules.Tables
}

// NewAllergenResolver creates a resolver over the given tables.
func NewAllergenResolver(tables *rules.Tables) *AllergenResolver {
	return &AllergenResolver{tables: tables}
}

// Triggers returns the lowercase trigger terms of an allergen. An allergen
// missing from the synonym table triggers only on its own name.
func (r *AllergenResolver) Triggers(allergen string) []string {
	key := normalizeToken(allergen)
	if terms, ok := r.tables.AllergenSynonyms[key]; ok {
		return terms
	}
	return []string{key}
}

// Match returns the declared allergens present in the ingredient list, in
// declared order, each at most once. A trigger matches when it equals an
// ingredient or occurs inside one.
func (r *AllergenResolver) Match(ingredients []string, declared []string) []string {
	set := ingredientSet(ingredients)
	matched := make([]string, 0)
	seen := make(map[string]struct{})

	for _, allergen := range declared {
		key := normalizeToken(allergen)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if r.anyTrigger(key, set) {
			matched = append(matched, allergen)
			seen[key] = struct{}{}
		}
	}
	return matched
}

func (r *AllergenResolver) anyTrigger(allergen string, set map[string]struct{}) bool {
	for _, term := range r.Triggers(allergen) {
		if _, ok := set[term]; ok {
			return true
		}
		for ing := range set {
			if strings.Contains(ing, term) {
				return true
			}
		}
	}
	return false
}

// MatchTags intersects declared allergens with namespaced product tags such
// as "en:milk" or "en:tree-nuts". Synonyms are expanded on both sides.
func (r *AllergenResolver) MatchTags(tags []string, declared []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := CleanTag(tag); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return r.Match(cleaned, declared)
}

// CleanTag strips the language namespace and turns separators into spaces.
func CleanTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.Index(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.NewReplacer("_", " ", "-", " ").Replace(t)
	return strings.TrimSpace(t)
}

// AllergenInfo returns the static allergen note for an ingredient name.
func (r *AllergenResolver) AllergenInfo(name string) (allergen, info string, ok bool) {
	note, ok := r.tables.AllergenInfo[normalizeToken(name)]
	if !ok {
		return "", "", false
	}
	return note.Allergen, note.Info, true
}

// TextWarnings scans free ingredient text for the default allergen keywords.
func (r *AllergenResolver) TextWarnings(text string) []domain.Warning {
	lower := strings.ToLower(text)
	var out []domain.Warning
	for _, a := range r.tables.DefaultAllergens {
		if strings.Contains(lower, a) {
			out = append(out, domain.Warning{
				Message:    fmt.Sprintf("Contains allergen: %s", a),
				Confidence: domain.HIGH,
				Source:     domain.SourceAllergen,
			})
		}
	}
	return out
}

// PreservativeWarnings scans free ingredient text for additive keywords.
func (r *AllergenResolver) PreservativeWarnings(text string) []domain.Warning {
	lower := strings.ToLower(text)
	var out []domain.Warning
	for _, p := range r.tables.Preservatives {
		if strings.Contains(lower, p) {
			out = append(out, domain.Warning{
				Message:    fmt.Sprintf("Contains additive/preservative: %s", p),
				Confidence: domain.MEDIUM,
				Source:     domain.SourceAdditive,
			})
		}
	}
	return out
}
