// Package models defines the data types exchanged between the statement
// parser, the aggregator and the matching engine, together with the amount
// normalization rules shared by every input source.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AuthorizationStatus represents the outcome a terminal statement reports for
// a collection attempt. Sources that do not encode an outcome leave it
// AuthorizationUnknown.
type AuthorizationStatus string

const (
	AuthorizationAuthorized AuthorizationStatus = "AUTHORIZED"
	AuthorizationDenied     AuthorizationStatus = "DENIED"
	AuthorizationUnknown    AuthorizationStatus = "UNKNOWN"
)

// String returns the string representation of AuthorizationStatus.
func (s AuthorizationStatus) String() string {
	return string(s)
}

// IsValid checks if the authorization status is a known value.
func (s AuthorizationStatus) IsValid() bool {
	return s == AuthorizationAuthorized || s == AuthorizationDenied || s == AuthorizationUnknown
}

// TransactionRecord is one collection event recovered from a terminal
// settlement statement. Records are created once by the statement parser and
// never mutated afterwards.
type TransactionRecord struct {
	// Reference is the customer reference the terminal operator keyed in.
	// It is a short digit string and is not guaranteed unique.
	Reference string `json:"reference"`

	// Amount is the collected amount. Non-negative in every source observed.
	Amount decimal.Decimal `json:"amount"`

	// TerminalID identifies the merchant/terminal header that was active
	// when the record was parsed. Empty when no header preceded the record.
	TerminalID string `json:"terminalId,omitempty"`

	// Authorization is the reported outcome, AuthorizationUnknown for
	// sources without an outcome field.
	Authorization AuthorizationStatus `json:"authorizationStatus,omitempty"`
}

// NewTransactionRecord creates a new TransactionRecord.
func NewTransactionRecord(reference string, amount decimal.Decimal) *TransactionRecord {
	return &TransactionRecord{
		Reference:     strings.TrimSpace(reference),
		Amount:        amount,
		Authorization: AuthorizationUnknown,
	}
}

// Validate performs basic validation on the TransactionRecord.
func (t *TransactionRecord) Validate() error {
	if strings.TrimSpace(t.Reference) == "" {
		return fmt.Errorf("transaction reference cannot be empty")
	}
	if !isDigits(strings.TrimSpace(t.Reference)) {
		return fmt.Errorf("transaction reference must be digits: %q", t.Reference)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount cannot be negative: %s", t.Amount.String())
	}
	if !t.Authorization.IsValid() {
		return fmt.Errorf("invalid authorization status: %s", t.Authorization)
	}
	return nil
}

// String returns a string representation of the TransactionRecord.
func (t *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{Ref: %s, Amount: %s, Terminal: %s, Auth: %s}",
		t.Reference, t.Amount.String(), t.TerminalID, t.Authorization)
}

// DueRecord is one expected-payment line from the delivery-note source. Many
// DueRecords may share a customer reference; their amounts sum to the
// customer's total due.
type DueRecord struct {
	CustomerReference string          `json:"customerReference"`
	AmountDue         decimal.Decimal `json:"amountDue"`

	// SourceLineID is an opaque identifier of the originating row, kept only
	// so discrepancies can be traced back to the source. The core never
	// interprets it.
	SourceLineID string `json:"sourceLineId,omitempty"`
}

// NewDueRecord creates a new DueRecord.
func NewDueRecord(customerReference string, amountDue decimal.Decimal, sourceLineID string) *DueRecord {
	return &DueRecord{
		CustomerReference: strings.TrimSpace(customerReference),
		AmountDue:         amountDue,
		SourceLineID:      sourceLineID,
	}
}

// Validate performs basic validation on the DueRecord.
func (d *DueRecord) Validate() error {
	if strings.TrimSpace(d.CustomerReference) == "" {
		return fmt.Errorf("due record customer reference cannot be empty")
	}
	return nil
}

// String returns a string representation of the DueRecord.
func (d *DueRecord) String() string {
	return fmt.Sprintf("DueRecord{Customer: %s, Due: %s, Line: %s}",
		d.CustomerReference, d.AmountDue.String(), d.SourceLineID)
}

// AggregatedTransaction is the per-reference rollup of TransactionRecords.
type AggregatedTransaction struct {
	Reference       string          `json:"reference"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	OccurrenceCount int             `json:"occurrenceCount"`

	// HasMultipleDistinctAmounts is the duplicate-suspect signal: true when
	// the reference was charged two or more amounts that differ beyond the
	// monetary tolerance.
	HasMultipleDistinctAmounts bool `json:"hasMultipleDistinctAmounts"`
}

// String returns a string representation of the AggregatedTransaction.
func (a *AggregatedTransaction) String() string {
	return fmt.Sprintf("AggregatedTransaction{Ref: %s, Total: %s, Count: %d, MultiAmount: %t}",
		a.Reference, a.TotalAmount.String(), a.OccurrenceCount, a.HasMultipleDistinctAmounts)
}

// ReconciliationStatus classifies one customer's collection state.
type ReconciliationStatus string

const (
	// StatusCollected means the terminal total matches the total due within
	// tolerance under the customer's own reference.
	StatusCollected ReconciliationStatus = "COLLECTED"

	// StatusCollectedOver means more was collected than due.
	StatusCollectedOver ReconciliationStatus = "COLLECTED_OVER"

	// StatusCollectedUnder means less was collected than due.
	StatusCollectedUnder ReconciliationStatus = "COLLECTED_UNDER"

	// StatusNotCollected means no collection was found by reference or by
	// amount fallback.
	StatusNotCollected ReconciliationStatus = "NOT_COLLECTED"

	// StatusCollectedWrongReference means a single amount-matching collection
	// exists under a reference similar enough to suggest a typo.
	StatusCollectedWrongReference ReconciliationStatus = "COLLECTED_WRONG_REFERENCE"

	// StatusCollectedDifferentReference means a single amount-matching
	// collection exists under a dissimilar reference; a weaker but still
	// actionable signal.
	StatusCollectedDifferentReference ReconciliationStatus = "COLLECTED_DIFFERENT_REFERENCE"

	// StatusAmbiguousAmountMatch means two or more unmatched collections tie
	// on the due amount; no reference is assigned automatically.
	StatusAmbiguousAmountMatch ReconciliationStatus = "AMBIGUOUS_AMOUNT_MATCH"
)

// String returns the string representation of ReconciliationStatus.
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case StatusCollected, StatusCollectedOver, StatusCollectedUnder,
		StatusNotCollected, StatusCollectedWrongReference,
		StatusCollectedDifferentReference, StatusAmbiguousAmountMatch:
		return true
	default:
		return false
	}
}

// IsCollected reports whether the status resolved an actual collection.
func (s ReconciliationStatus) IsCollected() bool {
	switch s {
	case StatusCollected, StatusCollectedOver, StatusCollectedUnder,
		StatusCollectedWrongReference, StatusCollectedDifferentReference:
		return true
	default:
		return false
	}
}

// ReconciliationResult is the per-customer outcome of a reconciliation run.
// Results are created by the matching engine and never mutated after
// emission; re-running the engine recomputes everything from scratch.
type ReconciliationResult struct {
	CustomerReference string               `json:"customerReference"`
	TotalDue          decimal.Decimal      `json:"totalDue"`
	DueLineCount      int                  `json:"dueLineCount"`
	Status            ReconciliationStatus `json:"status"`

	// TotalCollected is set exactly when a collection was resolved, which is
	// every collected status. NotCollected and AmbiguousAmountMatch leave it
	// nil.
	TotalCollected *decimal.Decimal `json:"totalCollected,omitempty"`

	// MatchedReference is the reference of the resolved collection. It may
	// differ from CustomerReference for the wrong/different-reference
	// statuses. Empty when no collection was resolved.
	MatchedReference string `json:"matchedReference,omitempty"`

	// Observation is the engine-owned verbatim message for this result. The
	// reporting layer formats it but never rewrites it.
	Observation string `json:"observation"`
}

// Validate checks the result's internal consistency.
func (r *ReconciliationResult) Validate() error {
	if strings.TrimSpace(r.CustomerReference) == "" {
		return fmt.Errorf("result customer reference cannot be empty")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid reconciliation status: %s", r.Status)
	}
	if r.Status.IsCollected() && r.TotalCollected == nil {
		return fmt.Errorf("collected status %s requires a total collected amount", r.Status)
	}
	if !r.Status.IsCollected() && r.TotalCollected != nil {
		return fmt.Errorf("status %s must not carry a total collected amount", r.Status)
	}
	return nil
}

// String returns a string representation of the ReconciliationResult.
func (r *ReconciliationResult) String() string {
	collected := "-"
	if r.TotalCollected != nil {
		collected = r.TotalCollected.String()
	}
	return fmt.Sprintf("ReconciliationResult{Customer: %s, Due: %s, Collected: %s, Status: %s}",
		r.CustomerReference, r.TotalDue.String(), collected, r.Status)
}

// MarshalJSON renders monetary fields as fixed two-decimal strings so the
// output is stable regardless of how the decimals were constructed.
func (r *ReconciliationResult) MarshalJSON() ([]byte, error) {
	type Alias ReconciliationResult
	out := &struct {
		TotalDue       string  `json:"totalDue"`
		TotalCollected *string `json:"totalCollected,omitempty"`
		*Alias
	}{
		TotalDue: r.TotalDue.StringFixed(2),
		Alias:    (*Alias)(r),
	}
	if r.TotalCollected != nil {
		s := r.TotalCollected.StringFixed(2)
		out.TotalCollected = &s
	}
	return json.Marshal(out)
}

// isDigits reports whether s is non-empty and consists only of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsValidReference checks a candidate customer reference: digits only, with
// length inside the configured bounds.
func IsValidReference(s string, minDigits, maxDigits int) bool {
	s = strings.TrimSpace(s)
	return isDigits(s) && len(s) >= minDigits && len(s) <= maxDigits
}
