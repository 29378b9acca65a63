package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/pkg/errors"
	"tpv-reconciliation-service/pkg/logger"
)

// Observation texts emitted by the engine. They are part of the engine's
// contract: the reporting layer displays them verbatim and callers may match
// on them.
const (
	ObservationCollected    = "collected exactly, matches total due"
	ObservationNotCollected = "no terminal collection found"

	// DuplicateSuspectSuffix is appended to any observation whose resolved
	// collection was charged with differing amounts under one reference.
	DuplicateSuspectSuffix = "; reference charged with differing amounts, possible duplicate collection"
)

// Engine is the reconciliation matching engine. It is a pure computation
// over its two inputs; nothing is retained between Reconcile calls.
type Engine struct {
	config *MatchingConfig
	logger logger.Logger
}

// NewEngine creates a matching engine with the given configuration.
func NewEngine(config *MatchingConfig) *Engine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Engine{
		config: config.Clone(),
		logger: logger.GetGlobalLogger().WithComponent("matching_engine"),
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *MatchingConfig {
	return e.config.Clone()
}

// Result is the complete output of one reconciliation pass: one
// ReconciliationResult per customer in due-record order, plus the orphan
// collections no customer consumed, in reference order.
type Result struct {
	Results []*models.ReconciliationResult  `json:"results"`
	Orphans []*models.AggregatedTransaction `json:"orphans"`
	Summary Summary                         `json:"summary"`
}

// Summary provides aggregate statistics about one reconciliation pass.
type Summary struct {
	TotalCustomers int                                 `json:"total_customers"`
	TotalDueLines  int                                 `json:"total_due_lines"`
	ByStatus       map[models.ReconciliationStatus]int `json:"by_status"`
	TotalDue       decimal.Decimal                     `json:"total_due"`
	TotalCollected decimal.Decimal                     `json:"total_collected"`
	OrphanCount    int                                 `json:"orphan_count"`
	OrphanAmount   decimal.Decimal                     `json:"orphan_amount"`
}

// customerDue is the per-customer pre-aggregation of due records.
type customerDue struct {
	reference string
	totalDue  decimal.Decimal
	lineCount int
}

// Reconcile joins due records against aggregated collections and classifies
// every customer. Re-running recomputes everything from scratch: results are
// never partially updated.
func (e *Engine) Reconcile(dues []*models.DueRecord, transactions []*models.AggregatedTransaction) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching_config", e.config, err)
	}

	customers := aggregateDues(dues)

	index := make(map[string]*models.AggregatedTransaction, len(transactions))
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		key := normalizeReference(tx.Reference)
		if _, exists := index[key]; exists {
			return nil, errors.ReconciliationError(
				errors.CodeProcessingError, "transaction_indexing",
				fmt.Errorf("duplicate aggregated reference %q: input is not aggregated", tx.Reference),
			)
		}
		index[key] = tx
	}

	consumed := make(map[string]bool, len(index))

	// Stage 1: exact-reference matches. Every hit removes that collection
	// from the fallback pool before stage 2 runs for anyone.
	exact := make(map[string]*models.AggregatedTransaction, len(customers))
	for _, customer := range customers {
		if tx, ok := index[customer.reference]; ok {
			exact[customer.reference] = tx
			consumed[normalizeReference(tx.Reference)] = true
		}
	}

	// The fallback pool is every collection no customer matched exactly,
	// sorted by reference so candidate scanning is deterministic.
	var pool []*models.AggregatedTransaction
	for _, tx := range transactions {
		if tx != nil && !consumed[normalizeReference(tx.Reference)] {
			pool = append(pool, tx)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Reference < pool[j].Reference })

	results := make([]*models.ReconciliationResult, 0, len(customers))
	for _, customer := range customers {
		var result *models.ReconciliationResult
		if tx, ok := exact[customer.reference]; ok {
			result = e.classifyExact(customer, tx)
		} else {
			result = e.classifyFallback(customer, pool, consumed)
		}
		results = append(results, result)
	}

	orphans := make([]*models.AggregatedTransaction, 0)
	for _, tx := range transactions {
		if tx != nil && !consumed[normalizeReference(tx.Reference)] {
			orphans = append(orphans, tx)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Reference < orphans[j].Reference })

	summary := e.summarize(results, orphans, customers)

	e.logger.WithFields(logger.Fields{
		"customers": summary.TotalCustomers,
		"orphans":   summary.OrphanCount,
		"by_status": summary.ByStatus,
	}).Info("Reconciliation completed")

	return &Result{Results: results, Orphans: orphans, Summary: summary}, nil
}

// classifyExact resolves a customer whose own reference appears in the
// collections: the amount relation alone decides the state.
func (e *Engine) classifyExact(customer *customerDue, tx *models.AggregatedTransaction) *models.ReconciliationResult {
	result := &models.ReconciliationResult{
		CustomerReference: customer.reference,
		TotalDue:          customer.totalDue,
		DueLineCount:      customer.lineCount,
		MatchedReference:  tx.Reference,
	}
	collected := tx.TotalAmount
	result.TotalCollected = &collected

	diff := tx.TotalAmount.Sub(customer.totalDue)
	switch {
	case diff.Abs().LessThan(e.config.Tolerance):
		result.Status = models.StatusCollected
		result.Observation = ObservationCollected
	case diff.GreaterThan(decimal.Zero):
		result.Status = models.StatusCollectedOver
		result.Observation = fmt.Sprintf(
			"collected %s over total due; possible early or back-dated collection",
			diff.StringFixed(2))
	default:
		result.Status = models.StatusCollectedUnder
		result.Observation = fmt.Sprintf(
			"collected %s under total due; possible partial payment or pending credit",
			diff.Neg().StringFixed(2))
	}

	if tx.HasMultipleDistinctAmounts {
		result.Observation += DuplicateSuspectSuffix
	}
	return result
}

// classifyFallback resolves a customer with no exact-reference collection by
// scanning the fallback pool for collections matching the due amount.
func (e *Engine) classifyFallback(customer *customerDue, pool []*models.AggregatedTransaction, consumed map[string]bool) *models.ReconciliationResult {
	result := &models.ReconciliationResult{
		CustomerReference: customer.reference,
		TotalDue:          customer.totalDue,
		DueLineCount:      customer.lineCount,
	}

	// Collections claimed by an earlier fallback customer are out of play;
	// one collection settles at most one customer.
	var candidates []*models.AggregatedTransaction
	for _, tx := range pool {
		if consumed[normalizeReference(tx.Reference)] {
			continue
		}
		if e.config.WithinTolerance(tx.TotalAmount, customer.totalDue) {
			candidates = append(candidates, tx)
		}
	}

	switch len(candidates) {
	case 0:
		result.Status = models.StatusNotCollected
		result.Observation = ObservationNotCollected
		return result

	case 1:
		candidate := candidates[0]
		consumed[normalizeReference(candidate.Reference)] = true
		collected := candidate.TotalAmount
		result.TotalCollected = &collected
		result.MatchedReference = candidate.Reference

		score := SimilarityScore(customer.reference, candidate.Reference)
		if score >= e.config.SimilarityThreshold {
			result.Status = models.StatusCollectedWrongReference
			result.Observation = fmt.Sprintf(
				"likely miskeyed reference (terminal ref %s, similarity %d%%)",
				candidate.Reference, int(math.Round(score*100)))
		} else {
			result.Status = models.StatusCollectedDifferentReference
			result.Observation = fmt.Sprintf(
				"terminal collection for same amount under reference %s",
				candidate.Reference)
		}

		if candidate.HasMultipleDistinctAmounts {
			result.Observation += DuplicateSuspectSuffix
		}
		return result

	default:
		// Several collections tie on this amount. Picking the first would be
		// arbitrary; flag for manual review and assign no reference.
		result.Status = models.StatusAmbiguousAmountMatch
		result.Observation = fmt.Sprintf(
			"%d terminal collections match this amount; manual review required",
			len(candidates))
		return result
	}
}

// aggregateDues pre-aggregates due records per customer reference, keeping
// first-appearance order for the output.
func aggregateDues(dues []*models.DueRecord) []*customerDue {
	byReference := make(map[string]*customerDue)
	var ordered []*customerDue

	for _, due := range dues {
		if due == nil {
			continue
		}
		key := normalizeReference(due.CustomerReference)
		if key == "" {
			continue
		}

		customer, ok := byReference[key]
		if !ok {
			customer = &customerDue{reference: key, totalDue: decimal.Zero}
			byReference[key] = customer
			ordered = append(ordered, customer)
		}
		customer.totalDue = customer.totalDue.Add(due.AmountDue)
		customer.lineCount++
	}

	return ordered
}

func (e *Engine) summarize(results []*models.ReconciliationResult, orphans []*models.AggregatedTransaction, customers []*customerDue) Summary {
	summary := Summary{
		TotalCustomers: len(results),
		ByStatus:       make(map[models.ReconciliationStatus]int),
		TotalDue:       decimal.Zero,
		TotalCollected: decimal.Zero,
		OrphanAmount:   decimal.Zero,
	}

	for _, customer := range customers {
		summary.TotalDueLines += customer.lineCount
	}
	for _, result := range results {
		summary.ByStatus[result.Status]++
		summary.TotalDue = summary.TotalDue.Add(result.TotalDue)
		if result.TotalCollected != nil {
			summary.TotalCollected = summary.TotalCollected.Add(*result.TotalCollected)
		}
	}
	for _, orphan := range orphans {
		summary.OrphanAmount = summary.OrphanAmount.Add(orphan.TotalAmount)
	}
	summary.OrphanCount = len(orphans)

	return summary
}

func normalizeReference(reference string) string {
	return strings.ToUpper(strings.TrimSpace(reference))
}
