// Package domain contains the core entities of the food health-scan engine:
// product records, nutrient profiles, rule tables, warnings and analysis results.
//
// Everything in this package is plain data. The decision logic lives in
// internal/service and operates on these types through injected tables.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SafetyTag is the safety classification attached to a single ingredient.
type SafetyTag string

const (
	SAFE     SafetyTag = "safe"
	MODERATE SafetyTag = "moderate"
	HARMFUL  SafetyTag = "harmful"
	UNKNOWN  SafetyTag = "unknown"
)

// ConfidenceLevel qualifies how certain the engine is that a flagged
// condition is real rather than merely possible.
type ConfidenceLevel string

const (
	HIGH   ConfidenceLevel = "HIGH"
	MEDIUM ConfidenceLevel = "MEDIUM"
	LOW    ConfidenceLevel = "LOW"
	CHECK  ConfidenceLevel = "CHECK"
)

// Tier is the recommended consumption frequency derived from a score.
type Tier string

const (
	DAILY      Tier = "Daily"
	WEEKLY     Tier = "Weekly"
	OCCASIONAL Tier = "Occasional"
	AVOID      Tier = "Avoid"
)

// Rating is the three-level verdict label shown next to the tier.
type Rating string

const (
	RATING_SAFE     Rating = "Safe"
	RATING_MODERATE Rating = "Moderate"
	RATING_HARMFUL  Rating = "Harmful"
)

// ScoringModeName selects one of the score strategies.
type ScoringModeName string

const (
	SIMPLE_MODE   ScoringModeName = "simple"
	WEIGHTED_MODE ScoringModeName = "weighted"
)

// ConsumptionFrequency is the advice attached to a flagged ingredient pattern.
type ConsumptionFrequency string

const (
	FREQ_DAILY      ConsumptionFrequency = "daily"
	FREQ_WEEKLY     ConsumptionFrequency = "weekly"
	FREQ_OCCASIONAL ConsumptionFrequency = "occasional"
)

// ProductStatus describes where the analysed product data came from.
type ProductStatus string

const (
	STATUS_FOUND_OFF    ProductStatus = "found_off"
	STATUS_PARTIAL_OFF  ProductStatus = "partial_off"
	STATUS_FOUND_LOCAL  ProductStatus = "found_local"
	STATUS_NOT_FOUND    ProductStatus = "not_found"
	STATUS_MANUAL_ENTRY ProductStatus = "manual_entry"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidSafetyTag   = errors.New("invalid safety tag")
	ErrInvalidConfidence  = errors.New("invalid confidence level")
	ErrInvalidTier        = errors.New("invalid tier")
	ErrInvalidScoringMode = errors.New("invalid scoring mode")
	ErrInvalidBarcode     = errors.New("invalid barcode")
)

// IsValid reports whether the tag is one of the known safety tags.
func (s SafetyTag) IsValid() bool {
	switch s {
	case SAFE, MODERATE, HARMFUL, UNKNOWN:
		return true
	default:
		return false
	}
}

func (s SafetyTag) String() string {
	return string(s)
}

// IsValid validates the confidence level.
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case HIGH, MEDIUM, LOW, CHECK:
		return true
	default:
		return false
	}
}

func (c ConfidenceLevel) String() string {
	return string(c)
}

// Prefix renders a message in the "[LEVEL] message" form used in reports.
func (c ConfidenceLevel) Prefix(message string) string {
	return fmt.Sprintf("[%s] %s", c, message)
}

// IsValid validates the tier.
func (t Tier) IsValid() bool {
	switch t {
	case DAILY, WEEKLY, OCCASIONAL, AVOID:
		return true
	default:
		return false
	}
}

func (t Tier) String() string {
	return string(t)
}

// IsWorst reports whether t is the lowest consumption tier.
func (t Tier) IsWorst() bool {
	return t == AVOID
}

// IsValid validates the rating.
func (r Rating) IsValid() bool {
	switch r {
	case RATING_SAFE, RATING_MODERATE, RATING_HARMFUL:
		return true
	default:
		return false
	}
}

func (r Rating) String() string {
	return string(r)
}

// ParseScoringMode maps a configuration string onto a scoring mode name.
// Empty input selects the simple mode.
func ParseScoringMode(s string) (ScoringModeName, error) {
	switch ScoringModeName(strings.ToLower(strings.TrimSpace(s))) {
	case "", SIMPLE_MODE:
		return SIMPLE_MODE, nil
	case WEIGHTED_MODE:
		return WEIGHTED_MODE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScoringMode, s)
	}
}

func (m ScoringModeName) String() string {
	return string(m)
}

// IsValid validates the consumption frequency.
func (f ConsumptionFrequency) IsValid() bool {
	switch f {
	case FREQ_DAILY, FREQ_WEEKLY, FREQ_OCCASIONAL:
		return true
	default:
		return false
	}
}

// IsValid validates the product status.
func (s ProductStatus) IsValid() bool {
	switch s {
	case STATUS_FOUND_OFF, STATUS_PARTIAL_OFF, STATUS_FOUND_LOCAL, STATUS_NOT_FOUND, STATUS_MANUAL_ENTRY:
		return true
	default:
		return false
	}
}
