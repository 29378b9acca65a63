// Package statement recovers transaction records from terminal settlement
// text. The input is free-form text extracted from a settlement document:
// there is no reliable grammar, so the parser works as a tolerant state
// machine over loosely positioned anchors (merchant/terminal headers, amount
// lines, reference lines) with bounded lookahead.
//
// Statement layouts vary between acquirers. A layout is described by a
// StatementFormat; new layouts are configuration, not new code.
//
// Example usage:
//
//	format := statement.DefaultRedsysFormat()
//	parser, err := statement.NewParser(format)
//	records, stats := parser.Parse(doc)
package statement

import (
	"fmt"
	"regexp"
	"strings"

	"tpv-reconciliation-service/internal/models"
)

// StatementFormat describes one settlement-statement layout: the anchor
// patterns, the lookahead window and the amount convention. All patterns are
// applied to single whitespace-trimmed lines.
type StatementFormat struct {
	// HeaderPattern matches a merchant/terminal header on one line, with two
	// capture groups: merchant then terminal. Optional.
	HeaderPattern string `json:"header_pattern"`

	// MerchantPattern and TerminalPattern together match a header split
	// across two consecutive lines: a line matching MerchantPattern followed
	// by a line matching TerminalPattern. Each has one capture group.
	// Optional; both must be set or both empty.
	MerchantPattern string `json:"merchant_pattern"`
	TerminalPattern string `json:"terminal_pattern"`

	// AmountPattern matches a monetary numeral with exactly two fractional
	// digits anywhere in a line, with one capture group for the numeral.
	AmountPattern string `json:"amount_pattern"`

	// ReferenceMinDigits and ReferenceMaxDigits bound the customer-reference
	// digit run expected at the start of a line in the lookahead window.
	ReferenceMinDigits int `json:"reference_min_digits"`
	ReferenceMaxDigits int `json:"reference_max_digits"`

	// LookaheadLines is how many lines after an amount anchor are searched
	// for the reference and authorization anchors. The window never crosses
	// the end of the line buffer.
	LookaheadLines int `json:"lookahead_lines"`

	// AuthorizationVocabulary maps outcome tokens (matched case-insensitively
	// as whole words) to authorization statuses. Empty means the source does
	// not encode an outcome and records are not gated on it.
	AuthorizationVocabulary map[string]models.AuthorizationStatus `json:"authorization_vocabulary,omitempty"`

	// AmountConvention is the decimal-separator convention of amounts in
	// this layout.
	AmountConvention models.DecimalConvention `json:"amount_convention"`
}

// DefaultRedsysFormat returns the format for Redsys-style settlement reports
// from Spanish acquirers: dot-decimal amounts, a 3-6 digit customer reference
// within a few lines below each amount, a nine-digit merchant code (FUC) with
// a short terminal number, and Spanish outcome wording.
func DefaultRedsysFormat() *StatementFormat {
	return &StatementFormat{
		HeaderPattern:      `^(\d{9})\s+(\d{1,3})$`,
		MerchantPattern:    `^(\d{9})$`,
		TerminalPattern:    `^(\d{1,3})$`,
		AmountPattern:      `(?:^|\s)(\d+\.\d{2})(?:\s|$)`,
		ReferenceMinDigits: 3,
		ReferenceMaxDigits: 6,
		LookaheadLines:     8,
		AuthorizationVocabulary: map[string]models.AuthorizationStatus{
			"AUTORIZADA": models.AuthorizationAuthorized,
			"DENEGADA":   models.AuthorizationDenied,
		},
		AmountConvention: models.DotDecimal,
	}
}

// PlainFormat returns a minimal format with no header or authorization
// anchors: dot-decimal amounts and a reference somewhere below each amount.
// Useful for sources that only list amount/reference pairs.
func PlainFormat() *StatementFormat {
	return &StatementFormat{
		AmountPattern:      `(?:^|\s)(\d+\.\d{2})(?:\s|$)`,
		ReferenceMinDigits: 3,
		ReferenceMaxDigits: 6,
		LookaheadLines:     6,
		AmountConvention:   models.DotDecimal,
	}
}

// Validate checks the format for internal consistency.
func (f *StatementFormat) Validate() error {
	if strings.TrimSpace(f.AmountPattern) == "" {
		return fmt.Errorf("amount pattern is required")
	}
	if f.ReferenceMinDigits <= 0 {
		return fmt.Errorf("reference min digits must be positive: %d", f.ReferenceMinDigits)
	}
	if f.ReferenceMaxDigits < f.ReferenceMinDigits {
		return fmt.Errorf("reference max digits %d must be >= min digits %d",
			f.ReferenceMaxDigits, f.ReferenceMinDigits)
	}
	if f.LookaheadLines <= 0 {
		return fmt.Errorf("lookahead lines must be positive: %d", f.LookaheadLines)
	}
	if (f.MerchantPattern == "") != (f.TerminalPattern == "") {
		return fmt.Errorf("merchant and terminal patterns must be set together")
	}
	if !f.AmountConvention.IsValid() {
		return fmt.Errorf("invalid amount convention: %s", f.AmountConvention)
	}
	for token, status := range f.AuthorizationVocabulary {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("authorization vocabulary contains an empty token")
		}
		if !status.IsValid() {
			return fmt.Errorf("authorization vocabulary maps %q to invalid status %s", token, status)
		}
	}
	return nil
}

// Clone creates a deep copy of the format.
func (f *StatementFormat) Clone() *StatementFormat {
	if f == nil {
		return nil
	}
	clone := *f
	if f.AuthorizationVocabulary != nil {
		clone.AuthorizationVocabulary = make(map[string]models.AuthorizationStatus, len(f.AuthorizationVocabulary))
		for token, status := range f.AuthorizationVocabulary {
			clone.AuthorizationVocabulary[token] = status
		}
	}
	return &clone
}

// compiledFormat is a StatementFormat with its patterns compiled. Built once
// per Parser; the reference pattern anchors a digit run of the configured
// length at the start of a line.
type compiledFormat struct {
	header    *regexp.Regexp
	merchant  *regexp.Regexp
	terminal  *regexp.Regexp
	amount    *regexp.Regexp
	reference *regexp.Regexp
	vocab     map[string]models.AuthorizationStatus
	lookahead int
	conv      models.DecimalConvention
}

func (f *StatementFormat) compile() (*compiledFormat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	cf := &compiledFormat{
		lookahead: f.LookaheadLines,
		conv:      f.AmountConvention,
	}

	var err error
	if f.HeaderPattern != "" {
		if cf.header, err = regexp.Compile(f.HeaderPattern); err != nil {
			return nil, fmt.Errorf("invalid header pattern: %w", err)
		}
		if cf.header.NumSubexp() < 2 {
			return nil, fmt.Errorf("header pattern needs merchant and terminal capture groups")
		}
	}
	if f.MerchantPattern != "" {
		if cf.merchant, err = regexp.Compile(f.MerchantPattern); err != nil {
			return nil, fmt.Errorf("invalid merchant pattern: %w", err)
		}
		if cf.terminal, err = regexp.Compile(f.TerminalPattern); err != nil {
			return nil, fmt.Errorf("invalid terminal pattern: %w", err)
		}
	}
	if cf.amount, err = regexp.Compile(f.AmountPattern); err != nil {
		return nil, fmt.Errorf("invalid amount pattern: %w", err)
	}
	if cf.amount.NumSubexp() < 1 {
		return nil, fmt.Errorf("amount pattern needs a capture group for the numeral")
	}

	refPattern := fmt.Sprintf(`^(\d{%d,%d})(?:\s|$)`, f.ReferenceMinDigits, f.ReferenceMaxDigits)
	if cf.reference, err = regexp.Compile(refPattern); err != nil {
		return nil, fmt.Errorf("invalid reference pattern: %w", err)
	}

	if len(f.AuthorizationVocabulary) > 0 {
		cf.vocab = make(map[string]models.AuthorizationStatus, len(f.AuthorizationVocabulary))
		for token, status := range f.AuthorizationVocabulary {
			cf.vocab[strings.ToUpper(strings.TrimSpace(token))] = status
		}
	}

	return cf, nil
}
