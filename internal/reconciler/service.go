// Package reconciler orchestrates a full reconciliation run: parse one or
// more settlement statements, accumulate the transactions in a ledger,
// aggregate them per reference and match the result against the
// delivery-note dues.
//
// The Ledger is the session boundary. A caller that receives statements one
// at a time (several uploads for the same day, say) appends each batch and
// reconciles the accumulated whole; a one-shot CLI run builds the ledger
// once and discards it.
package reconciler

import (
	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/internal/aggregator"
	"tpv-reconciliation-service/internal/matcher"
	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/statement"
	"tpv-reconciliation-service/pkg/errors"
	"tpv-reconciliation-service/pkg/logger"
)

// Config carries the component configurations for a reconciliation run.
type Config struct {
	Format   *statement.StatementFormat `json:"format"`
	Matching *matcher.MatchingConfig    `json:"matching"`
}

// DefaultConfig returns a run configuration with the standard statement
// format and strict matching tolerance.
func DefaultConfig() *Config {
	return &Config{
		Format:   statement.DefaultRedsysFormat(),
		Matching: matcher.DefaultMatchingConfig(),
	}
}

// Validate checks the run configuration.
func (c *Config) Validate() error {
	if c.Format == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "format", nil, nil)
	}
	if err := c.Format.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "format", c.Format, err)
	}
	if c.Matching == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "matching", nil, nil)
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching", c.Matching, err)
	}
	return nil
}

// Clone creates a deep copy of the run configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Format:   c.Format.Clone(),
		Matching: c.Matching.Clone(),
	}
}

// Ledger accumulates parsed transactions across statement batches. It is
// append-only; parsing a second statement never clears what the first one
// contributed.
type Ledger struct {
	transactions []*models.TransactionRecord
	stats        statement.ParseStats
	batches      int
}

// NewLedger creates an empty transaction ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a batch of parsed transactions and folds the batch's parse
// statistics into the ledger totals.
func (l *Ledger) Append(records []*models.TransactionRecord, stats *statement.ParseStats) {
	l.transactions = append(l.transactions, records...)
	if stats != nil {
		l.stats.LinesScanned += stats.LinesScanned
		l.stats.RecordsEmitted += stats.RecordsEmitted
		l.stats.AmountAnchors += stats.AmountAnchors
		l.stats.UnresolvedAnchors += stats.UnresolvedAnchors
		l.stats.DeniedDiscarded += stats.DeniedDiscarded
		l.stats.OutcomeUnresolved += stats.OutcomeUnresolved
		l.stats.MalformedAmounts += stats.MalformedAmounts
		l.stats.HeaderUpdates += stats.HeaderUpdates
	}
	l.batches++
}

// Transactions returns the accumulated transactions. The slice is shared;
// callers must not mutate it.
func (l *Ledger) Transactions() []*models.TransactionRecord {
	return l.transactions
}

// Stats returns the parse statistics accumulated over all appended batches.
func (l *Ledger) Stats() statement.ParseStats {
	return l.stats
}

// Batches returns how many statement batches have been appended.
func (l *Ledger) Batches() int {
	return l.batches
}

// Len returns the number of accumulated transactions.
func (l *Ledger) Len() int {
	return len(l.transactions)
}

// RunStats summarizes one reconciliation run end to end: how much input was
// read, how much of it survived parsing and normalization, and what the
// matcher produced.
type RunStats struct {
	StatementBatches int                  `json:"statement_batches"`
	Parse            statement.ParseStats `json:"parse"`

	DueRowsLoaded int `json:"due_rows_loaded"`
	DueRowsFailed int `json:"due_rows_failed"`

	AggregatedReferences int `json:"aggregated_references"`

	Matching matcher.Summary `json:"matching"`
}

// Report is the complete output of a reconciliation run.
type Report struct {
	Results []*models.ReconciliationResult  `json:"results"`
	Orphans []*models.AggregatedTransaction `json:"orphans"`
	Stats   RunStats                        `json:"stats"`
}

// TotalDue returns the sum of dues across all results.
func (r *Report) TotalDue() decimal.Decimal {
	return r.Stats.Matching.TotalDue
}

// TotalCollected returns the sum collected across all matched results.
func (r *Report) TotalCollected() decimal.Decimal {
	return r.Stats.Matching.TotalCollected
}

// Service runs reconciliations. It owns a parser, an aggregator and a
// matching engine built from one validated configuration; the same service
// can run any number of independent reconciliations.
type Service struct {
	config     *Config
	parser     *statement.Parser
	aggregator *aggregator.Aggregator
	engine     *matcher.Engine
	logger     logger.Logger
}

// NewService creates a reconciliation service from the given configuration.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.Clone()

	parser, err := statement.NewParser(config.Format)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     config,
		parser:     parser,
		aggregator: aggregator.New(config.Matching.Tolerance),
		engine:     matcher.NewEngine(config.Matching),
		logger:     logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Config returns a copy of the service configuration.
func (s *Service) Config() *Config {
	return s.config.Clone()
}

// ParseStatement parses one statement document into a fresh batch of
// transaction records. The returned stats describe only this batch.
func (s *Service) ParseStatement(doc *statement.Document) ([]*models.TransactionRecord, *statement.ParseStats) {
	return s.parser.Parse(doc)
}

// Run reconciles the accumulated ledger against the loaded dues. The dues
// slice holds the rows that normalized cleanly; failedRows is the count of
// rows the loader rejected, carried through to the report statistics.
func (s *Service) Run(ledger *Ledger, dues []*models.DueRecord, failedRows int) (*Report, error) {
	if ledger == nil {
		ledger = NewLedger()
	}

	aggregated := s.aggregator.Aggregate(ledger.Transactions())

	result, err := s.engine.Reconcile(dues, aggregated)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results: result.Results,
		Orphans: result.Orphans,
		Stats: RunStats{
			StatementBatches:     ledger.Batches(),
			Parse:                ledger.Stats(),
			DueRowsLoaded:        len(dues),
			DueRowsFailed:        failedRows,
			AggregatedReferences: len(aggregated),
			Matching:             result.Summary,
		},
	}

	s.logger.WithFields(logger.Fields{
		"batches":      report.Stats.StatementBatches,
		"transactions": ledger.Len(),
		"references":   report.Stats.AggregatedReferences,
		"customers":    report.Stats.Matching.TotalCustomers,
		"orphans":      report.Stats.Matching.OrphanCount,
	}).Info("Reconciliation run complete")

	return report, nil
}

// RunDocuments is the one-shot path: parse every document into a new ledger
// and reconcile immediately.
func (s *Service) RunDocuments(docs []*statement.Document, dues []*models.DueRecord, failedRows int) (*Report, error) {
	ledger := NewLedger()
	for _, doc := range docs {
		records, stats := s.parser.Parse(doc)
		ledger.Append(records, stats)
	}
	return s.Run(ledger, dues, failedRows)
}
