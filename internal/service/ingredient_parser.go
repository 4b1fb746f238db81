package service

import (
	"regexp"
	"strings"
)

var (
	bracketedPattern  = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	separatorPattern  = regexp.MustCompile(`[;,]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ParseIngredients splits a free-text ingredient list into normalized tokens.
// Bracketed content is dropped, tokens are lowercased and empties removed.
func ParseIngredients(text string) []string {
	cleaned := bracketedPattern.ReplaceAllString(text, "")
	parts := separatorPattern.Split(cleaned, -1)

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := normalizeToken(part)
		token = strings.Trim(token, ".:*")
		token = strings.TrimSpace(token)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// normalizeToken lowercases and collapses inner whitespace.
func normalizeToken(s string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Singularize strips a trailing plural suffix for lookups against
// external sources: "tomatoes" becomes "tomato", "eggs" becomes "egg".
// Words ending in "ss" are left alone and "ses" loses only the final "s".
func Singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "es") && !strings.HasSuffix(word, "ses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	default:
		return word
	}
}

// ingredientSet returns the lowercase token set of an ingredient list.
func ingredientSet(ingredients []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ingredients))
	for _, ing := range ingredients {
		set[normalizeToken(ing)] = struct{}{}
	}
	return set
}
