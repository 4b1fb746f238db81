package service

import (
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// IngredientFlagger runs the seed patterns over free ingredient text.
type IngredientFlagger struct {
	tables *rules.Tables
}

// NewIngredientFlagger creates a flagger over the given tables.
func NewIngredientFlagger(tables *rules.Tables) *IngredientFlagger {
	return &IngredientFlagger{tables: tables}
}

// Flag returns one flag per matching pattern label, in table order.
func (f *IngredientFlagger) Flag(text string) []domain.IngredientFlag {
	if text == "" {
		return nil
	}
	var (
		out  []domain.IngredientFlag
		seen = make(map[string]struct{})
	)
	for i := range f.tables.IngredientFlags {
		p := &f.tables.IngredientFlags[i]
		re := p.Regexp()
		if re == nil || !re.MatchString(text) {
			continue
		}
		if _, dup := seen[p.Label]; dup {
			continue
		}
		seen[p.Label] = struct{}{}
		out = append(out, domain.IngredientFlag{
			Label:       p.Label,
			Consumption: p.Consumption,
			Reason:      p.Reason,
			Confidence:  p.Confidence,
		})
	}
	return out
}
