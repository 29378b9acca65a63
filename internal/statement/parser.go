package statement

import (
	"fmt"
	"strings"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/pkg/logger"
)

// Document is the parser input: ordered pages of ordered, whitespace-trimmed,
// non-empty text lines, as delivered by the upstream text-extraction step.
// Pages are processed as one continuous stream; a merchant/terminal header
// found on one page stays active across page boundaries until replaced.
type Document struct {
	Pages [][]string
}

// Lines flattens the document into its continuous line stream.
func (d *Document) Lines() []string {
	var lines []string
	for _, page := range d.Pages {
		lines = append(lines, page...)
	}
	return lines
}

// LineCount returns the total number of lines across all pages.
func (d *Document) LineCount() int {
	count := 0
	for _, page := range d.Pages {
		count += len(page)
	}
	return count
}

// ParseStats holds per-run diagnostics. Skipped lines never surface as
// errors; they are only counted here so a run can report "M text lines
// yielded no transaction" without stopping.
type ParseStats struct {
	// LinesScanned is the total number of input lines.
	LinesScanned int `json:"lines_scanned"`

	// RecordsEmitted is the number of TransactionRecords produced.
	RecordsEmitted int `json:"records_emitted"`

	// AmountAnchors is the number of lines that opened a lookahead window.
	AmountAnchors int `json:"amount_anchors"`

	// UnresolvedAnchors counts amount anchors whose window contained no
	// reference line: candidate amounts that yielded no transaction.
	UnresolvedAnchors int `json:"unresolved_anchors"`

	// DeniedDiscarded counts records dropped because the source reported a
	// denied outcome.
	DeniedDiscarded int `json:"denied_discarded"`

	// OutcomeUnresolved counts records dropped because the format expects an
	// outcome token and none was found in the window.
	OutcomeUnresolved int `json:"outcome_unresolved"`

	// MalformedAmounts counts amount anchors whose numeral failed
	// normalization and were dropped.
	MalformedAmounts int `json:"malformed_amounts"`

	// HeaderUpdates counts merchant/terminal header replacements.
	HeaderUpdates int `json:"header_updates"`
}

// String returns a human-readable summary of the parse statistics.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("scanned %d lines, emitted %d records (%d anchors, %d unresolved, %d denied)",
		ps.LinesScanned, ps.RecordsEmitted, ps.AmountAnchors, ps.UnresolvedAnchors, ps.DeniedDiscarded)
}

// Parser recovers TransactionRecords from settlement text under one
// StatementFormat. A Parser is stateless across Parse calls: the persistent
// merchant/terminal header context lives in the loop state of a single call
// and is never shared between documents.
type Parser struct {
	format   *StatementFormat
	compiled *compiledFormat
	logger   logger.Logger
}

// NewParser creates a Parser for the given format. The format's patterns are
// compiled once here; an invalid format is a configuration error.
func NewParser(format *StatementFormat) (*Parser, error) {
	if format == nil {
		format = DefaultRedsysFormat()
	}

	compiled, err := format.compile()
	if err != nil {
		return nil, fmt.Errorf("invalid statement format: %w", err)
	}

	log := logger.GetGlobalLogger().WithComponent("statement_parser")
	log.WithFields(logger.Fields{
		"lookahead_lines": format.LookaheadLines,
		"reference_min":   format.ReferenceMinDigits,
		"reference_max":   format.ReferenceMaxDigits,
		"gated_outcome":   len(format.AuthorizationVocabulary) > 0,
	}).Debug("Created statement parser")

	return &Parser{
		format:   format.Clone(),
		compiled: compiled,
		logger:   log,
	}, nil
}

// Format returns a copy of the parser's format.
func (p *Parser) Format() *StatementFormat {
	return p.format.Clone()
}

// headerContext is the persistent parser context: the merchant/terminal pair
// most recently captured from a header anchor. It survives ordinary
// transaction lines and page boundaries, and is replaced only by the next
// header anchor.
type headerContext struct {
	merchant string
	terminal string
}

func (hc *headerContext) terminalID() string {
	if hc.merchant == "" && hc.terminal == "" {
		return ""
	}
	if hc.terminal == "" {
		return hc.merchant
	}
	return hc.merchant + "/" + hc.terminal
}

// Parse scans the document and returns every transaction it can resolve,
// together with the run diagnostics. Malformed lines are skipped, never
// reported as errors: per-line trouble only moves counters in ParseStats.
func (p *Parser) Parse(doc *Document) ([]*models.TransactionRecord, *ParseStats) {
	stats := &ParseStats{}
	if doc == nil {
		return nil, stats
	}

	lines := doc.Lines()
	stats.LinesScanned = len(lines)

	var records []*models.TransactionRecord
	var context headerContext

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// Header anchor: replaces the persistent context and consumes one or
		// two lines depending on where the terminal number sits. Anchors are
		// independent tests, so the same line is still offered to the amount
		// anchor below; a custom format may put both on one line.
		if consumed := p.matchHeader(lines, i, &context); consumed > 0 {
			stats.HeaderUpdates++
			i += consumed - 1
		}

		// Amount anchor: opens an independent bounded lookahead window.
		// Consecutive amount lines open overlapping windows and may resolve
		// to the same reference line; each amount occurrence is a separate
		// candidate by design.
		numeral, ok := p.matchAmount(line)
		if !ok {
			continue
		}
		stats.AmountAnchors++

		amount, err := models.NormalizeAmount(numeral, p.compiled.conv)
		if err != nil {
			stats.MalformedAmounts++
			p.logger.WithField("numeral", numeral).Debug("Dropped unparseable amount candidate")
			continue
		}

		reference, outcome := p.scanWindow(lines, i)
		if reference == "" {
			stats.UnresolvedAnchors++
			continue
		}

		if len(p.compiled.vocab) > 0 {
			switch outcome {
			case models.AuthorizationDenied:
				stats.DeniedDiscarded++
				continue
			case models.AuthorizationUnknown:
				stats.OutcomeUnresolved++
				continue
			}
		}

		record := models.NewTransactionRecord(reference, amount)
		record.TerminalID = context.terminalID()
		record.Authorization = outcome
		records = append(records, record)
		stats.RecordsEmitted++
	}

	p.logger.WithFields(logger.Fields{
		"lines":   stats.LinesScanned,
		"records": stats.RecordsEmitted,
		"skipped": stats.UnresolvedAnchors,
		"denied":  stats.DeniedDiscarded,
	}).Info("Statement parsed")

	return records, stats
}

// matchHeader tests the one-line and two-line header anchors at position i.
// It returns the number of lines consumed, or zero if neither form matches.
func (p *Parser) matchHeader(lines []string, i int, context *headerContext) int {
	if p.compiled.header != nil {
		if m := p.compiled.header.FindStringSubmatch(lines[i]); m != nil {
			context.merchant, context.terminal = m[1], m[2]
			return 1
		}
	}

	if p.compiled.merchant != nil && i+1 < len(lines) {
		m := p.compiled.merchant.FindStringSubmatch(lines[i])
		if m == nil {
			return 0
		}
		t := p.compiled.terminal.FindStringSubmatch(lines[i+1])
		if t == nil {
			return 0
		}
		context.merchant, context.terminal = m[1], t[1]
		return 2
	}

	return 0
}

// matchAmount tests the amount anchor and returns the captured numeral.
func (p *Parser) matchAmount(line string) (string, bool) {
	m := p.compiled.amount.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// scanWindow resolves the reference and authorization anchors in the bounded
// window after an amount anchor at position i. The first matching line wins
// for each anchor independently; the window never crosses the end of the
// buffer.
func (p *Parser) scanWindow(lines []string, i int) (string, models.AuthorizationStatus) {
	reference := ""
	outcome := models.AuthorizationUnknown

	end := i + p.compiled.lookahead
	if end >= len(lines) {
		end = len(lines) - 1
	}

	for j := i + 1; j <= end; j++ {
		if reference == "" {
			if m := p.compiled.reference.FindStringSubmatch(lines[j]); m != nil {
				reference = m[1]
			}
		}
		if outcome == models.AuthorizationUnknown && len(p.compiled.vocab) > 0 {
			outcome = p.matchOutcome(lines[j])
		}
		if reference != "" && (len(p.compiled.vocab) == 0 || outcome != models.AuthorizationUnknown) {
			break
		}
	}

	return reference, outcome
}

// matchOutcome looks for a vocabulary token among the line's fields.
func (p *Parser) matchOutcome(line string) models.AuthorizationStatus {
	for _, field := range strings.Fields(line) {
		if status, ok := p.compiled.vocab[strings.ToUpper(field)]; ok {
			return status
		}
	}
	return models.AuthorizationUnknown
}
