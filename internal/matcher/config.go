// Package matcher joins per-customer due totals against aggregated terminal
// collections and classifies every customer into a reconciliation state.
//
// The engine runs a two-stage match per customer:
//  1. Exact-reference lookup, classified by amount agreement within the
//     monetary tolerance.
//  2. Amount-fallback over collections no customer matched exactly, using a
//     positional reference-similarity score to separate likely typos from
//     mere coincidences. Two or more candidates tying on amount are flagged
//     ambiguous rather than picked arbitrarily.
//
// Collections consumed by neither stage are reported separately as orphans.
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultMatchingConfig())
//	result, err := engine.Reconcile(dues, aggregated)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary tolerances observed across statement variants. Expose both rather
// than hiding a literal in the comparison code; the active one is chosen by
// configuration.
var (
	// Epsilon is the standard monetary tolerance.
	Epsilon = decimal.NewFromFloat(0.01)

	// EpsilonLoose is the relaxed tolerance some statement variants need.
	EpsilonLoose = decimal.NewFromFloat(0.02)
)

// DefaultSimilarityThreshold is the positional-similarity score at or above
// which an amount-fallback candidate is treated as a likely miskeyed
// reference rather than a coincidental amount match.
const DefaultSimilarityThreshold = 0.6

// MatchingConfig holds the tolerances of the matching engine.
type MatchingConfig struct {
	// Tolerance is the active monetary tolerance: amounts closer than this
	// are equal.
	Tolerance decimal.Decimal `json:"tolerance"`

	// SimilarityThreshold separates COLLECTED_WRONG_REFERENCE from
	// COLLECTED_DIFFERENT_REFERENCE in the amount-fallback stage.
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultMatchingConfig returns the standard configuration.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Tolerance:           Epsilon,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// LooseMatchingConfig returns a configuration with the relaxed monetary
// tolerance.
func LooseMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Tolerance:           EpsilonLoose,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Validate checks if the matching configuration is valid.
func (mc *MatchingConfig) Validate() error {
	if mc.Tolerance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tolerance must be positive: %s", mc.Tolerance.String())
	}
	if mc.SimilarityThreshold < 0.0 || mc.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity threshold must be between 0.0 and 1.0: %f", mc.SimilarityThreshold)
	}
	return nil
}

// Clone creates a copy of the matching configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// WithinTolerance reports whether two amounts are equal under the active
// tolerance.
func (mc *MatchingConfig) WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(mc.Tolerance)
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Tolerance: %s, SimilarityThreshold: %.2f}",
		mc.Tolerance.String(), mc.SimilarityThreshold)
}
