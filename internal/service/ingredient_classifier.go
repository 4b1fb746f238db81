package service

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

var (
	eNumberPattern   = regexp.MustCompile(`^e-?\s?(\d{3,4}[a-z]?)$`)
	insNumberPattern = regexp.MustCompile(`^(?:ins\s*)?(\d{3,4}[a-z]?)$`)
	leadingDigits    = regexp.MustCompile(`^\d+`)
)

const (
	reasonSafe    = "Common food ingredient."
	reasonUnknown = "No specific safety info."
)

// IngredientClassifier tags single ingredient tokens with a safety class and
// a canonical identity. It is pure: it only reads the injected tables.
type IngredientClassifier struct {
	tables *rules.Tables
	safe   map[string]struct{}
}

// NewIngredientClassifier creates a classifier over the given tables.
func NewIngredientClassifier(tables *rules.Tables) *IngredientClassifier {
	safe := make(map[string]struct{}, len(tables.SafeIngredients))
	for _, s := range tables.SafeIngredients {
		safe[strings.ToLower(s)] = struct{}{}
	}
	return &IngredientClassifier{tables: tables, safe: safe}
}

// Classify tags a raw ingredient token.
func (c *IngredientClassifier) Classify(raw string) domain.Ingredient {
	name := normalizeToken(raw)
	if name == "" {
		return domain.Ingredient{RawName: raw, Safety: domain.UNKNOWN}
	}

	ing := domain.Ingredient{RawName: raw, CanonicalName: strings.TrimSpace(raw)}
	ing.Safety, ing.Reason = c.Safety(name)

	syn, hasSynonym := lookup(c.tables.IngredientSynonyms, name)
	if hasSynonym {
		ing.CanonicalName = syn.Canonical
		ing.Description = syn.Description
	}

	if code, ok := NormalizeENumber(name); ok {
		info := c.AdditiveInfo(code)
		ing.Additive = &info
		if !hasSynonym {
			ing.CanonicalName = additiveDisplayName(info)
		}
		if ing.Description == "" {
			ing.Description = info.Description
		}
	}

	if note, ok := lookup(c.tables.AllergenInfo, name); ok {
		ing.Allergen = note.Allergen
		ing.AllergenInfo = note.Info
	}

	return ing
}

// ClassifyAll tags every token in order.
func (c *IngredientClassifier) ClassifyAll(tokens []string) []domain.Ingredient {
	out := make([]domain.Ingredient, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, c.Classify(t))
	}
	return out
}

// Safety returns the safety tag and reason for a normalized name. The first
// harmful fragment found wins, then safe-list membership of the name or its
// singular form.
func (c *IngredientClassifier) Safety(name string) (domain.SafetyTag, string) {
	for _, h := range c.tables.HarmfulIngredients {
		if strings.Contains(name, h.Fragment) {
			return domain.HARMFUL, h.Reason
		}
	}
	if _, ok := lookup(c.safe, name); ok {
		return domain.SAFE, reasonSafe
	}
	return domain.MODERATE, reasonUnknown
}

// lookup finds name in a table keyed by normalized ingredient names, retrying
// with singular forms when the name itself is missing.
func lookup[V any](table map[string]V, name string) (V, bool) {
	for _, key := range lookupKeys(name) {
		if v, ok := table[key]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// lookupKeys returns name followed by its distinct singular candidates,
// so both "tomatoes" and "grapes" reach their singular entries.
func lookupKeys(name string) []string {
	keys := []string{name}
	for _, k := range []string{Singularize(name), strings.TrimSuffix(name, "s")} {
		if k != "" && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// AdditiveInfo resolves a normalized code such as "e211" through the known
// additive table, falling back to the numeric range category.
func (c *IngredientClassifier) AdditiveInfo(code string) domain.AdditiveInfo {
	if info, ok := c.tables.Additives[code]; ok {
		if info.Risk == "" {
			info.Risk = "low"
		}
		return info
	}

	band := c.tables.AdditiveDefault
	if n, err := strconv.Atoi(leadingDigits.FindString(strings.TrimPrefix(code, "e"))); err == nil {
		for _, r := range c.tables.AdditiveRanges {
			if n >= r.Min && n <= r.Max {
				band = r
				break
			}
		}
	}

	return domain.AdditiveInfo{
		Code:        code,
		Category:    band.Category,
		Purpose:     band.Purpose,
		Description: band.Description,
		Risk:        "low",
	}
}

// NormalizeENumber recognizes "E211", "e-211", "INS 211" and a bare "211"
// and returns the "e211" form.
func NormalizeENumber(token string) (string, bool) {
	t := normalizeToken(token)
	if m := eNumberPattern.FindStringSubmatch(t); m != nil {
		return "e" + m[1], true
	}
	if m := insNumberPattern.FindStringSubmatch(t); m != nil {
		return "e" + m[1], true
	}
	return "", false
}

func additiveDisplayName(info domain.AdditiveInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("%s (%s)", strings.ToUpper(info.Code), info.Category)
}
