// Package aggregator rolls parsed transaction records up into one row per
// reference, producing the totals and duplicate-suspect signal the matching
// engine joins against.
package aggregator

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/pkg/logger"
)

// Aggregator groups TransactionRecords by reference. Grouping is a contract
// over the multiset of records, not their sequence: any permutation of the
// input yields identical output.
type Aggregator struct {
	tolerance decimal.Decimal
	logger    logger.Logger
}

// DefaultTolerance is the monetary tolerance used to decide whether two
// amounts under one reference are distinct.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// New creates an Aggregator with the given monetary tolerance. A zero or
// negative tolerance falls back to DefaultTolerance.
func New(tolerance decimal.Decimal) *Aggregator {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = DefaultTolerance
	}
	return &Aggregator{
		tolerance: tolerance,
		logger:    logger.GetGlobalLogger().WithComponent("aggregator"),
	}
}

// Aggregate produces one AggregatedTransaction per distinct reference, in
// reference order. References are compared after trimming and case folding.
// HasMultipleDistinctAmounts is set when the group's amounts, rounded to the
// tolerance's precision, hold more than one distinct value.
func (a *Aggregator) Aggregate(records []*models.TransactionRecord) []*models.AggregatedTransaction {
	type group struct {
		total   decimal.Decimal
		count   int
		amounts map[string]struct{}
	}

	places := int32(-a.tolerance.Exponent())
	groups := make(map[string]*group)

	for _, record := range records {
		if record == nil {
			continue
		}
		key := normalizeReference(record.Reference)
		if key == "" {
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &group{total: decimal.Zero, amounts: make(map[string]struct{})}
			groups[key] = g
		}
		g.total = g.total.Add(record.Amount)
		g.count++
		g.amounts[record.Amount.Round(places).String()] = struct{}{}
	}

	references := make([]string, 0, len(groups))
	for reference := range groups {
		references = append(references, reference)
	}
	sort.Strings(references)

	aggregated := make([]*models.AggregatedTransaction, 0, len(groups))
	for _, reference := range references {
		g := groups[reference]
		aggregated = append(aggregated, &models.AggregatedTransaction{
			Reference:                  reference,
			TotalAmount:                g.total,
			OccurrenceCount:            g.count,
			HasMultipleDistinctAmounts: len(g.amounts) > 1,
		})
	}

	a.logger.WithFields(logger.Fields{
		"records":    len(records),
		"references": len(aggregated),
	}).Debug("Aggregated transaction records")

	return aggregated
}

func normalizeReference(reference string) string {
	return strings.ToUpper(strings.TrimSpace(reference))
}
