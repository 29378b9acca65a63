// Package reporter renders reconciliation reports. Console output is for a
// person scanning the day's settlement; JSON and CSV feed downstream
// tooling; the Excel writer in excel.go produces the workbook the back
// office archives.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/reconciler"
	"tpv-reconciliation-service/pkg/errors"
	"tpv-reconciliation-service/pkg/logger"
)

// Format identifies an output rendering.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
)

// IsValid checks whether the format is one of the supported renderings.
func (f Format) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// Config controls report rendering.
type Config struct {
	// Format selects the rendering.
	Format Format `json:"format"`

	// OutputPath writes the report to a file instead of stdout when set.
	OutputPath string `json:"output_path,omitempty"`

	// IncludeOrphans adds the orphan-collection section to the output.
	IncludeOrphans bool `json:"include_orphans"`

	// OnlyProblems drops fully collected customers from the detail rows,
	// leaving the exceptions a reviewer actually needs to look at.
	OnlyProblems bool `json:"only_problems"`
}

// DefaultConfig returns a console report with orphans included.
func DefaultConfig() *Config {
	return &Config{
		Format:         FormatConsole,
		IncludeOrphans: true,
	}
}

// Validate checks the reporter configuration.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid report format: %s", c.Format)
	}
	return nil
}

// Reporter renders reconciliation reports in the configured format.
type Reporter struct {
	config *Config
	logger logger.Logger
}

// New creates a Reporter with the given configuration.
func New(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reporter", config, err)
	}
	return &Reporter{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// Write renders the report to the configured destination.
func (r *Reporter) Write(report *reconciler.Report) error {
	out := os.Stdout
	if r.config.OutputPath != "" {
		file, err := os.Create(r.config.OutputPath)
		if err != nil {
			return errors.InputError(errors.CodeFileUnreadable, r.config.OutputPath, err)
		}
		defer file.Close()
		out = file
	}
	return r.WriteTo(out, report)
}

// WriteTo renders the report to the given writer.
func (r *Reporter) WriteTo(w io.Writer, report *reconciler.Report) error {
	switch r.config.Format {
	case FormatJSON:
		return r.writeJSON(w, report)
	case FormatCSV:
		return r.writeCSV(w, report)
	default:
		return r.writeConsole(w, report)
	}
}

// visibleResults applies the OnlyProblems filter.
func (r *Reporter) visibleResults(report *reconciler.Report) []*models.ReconciliationResult {
	if !r.config.OnlyProblems {
		return report.Results
	}
	filtered := make([]*models.ReconciliationResult, 0, len(report.Results))
	for _, res := range report.Results {
		if res.Status != models.StatusCollected {
			filtered = append(filtered, res)
		}
	}
	return filtered
}

func (r *Reporter) writeJSON(w io.Writer, report *reconciler.Report) error {
	out := struct {
		Results []*models.ReconciliationResult  `json:"results"`
		Orphans []*models.AggregatedTransaction `json:"orphans,omitempty"`
		Stats   reconciler.RunStats             `json:"stats"`
	}{
		Results: r.visibleResults(report),
		Stats:   report.Stats,
	}
	if r.config.IncludeOrphans {
		out.Orphans = report.Orphans
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (r *Reporter) writeCSV(w io.Writer, report *reconciler.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"customer_reference", "total_due", "due_lines", "status", "total_collected", "matched_reference", "observation"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, res := range r.visibleResults(report) {
		collected := ""
		if res.TotalCollected != nil {
			collected = res.TotalCollected.StringFixed(2)
		}
		row := []string{
			res.CustomerReference,
			res.TotalDue.StringFixed(2),
			fmt.Sprintf("%d", res.DueLineCount),
			string(res.Status),
			collected,
			res.MatchedReference,
			res.Observation,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	if r.config.IncludeOrphans {
		for _, orphan := range report.Orphans {
			row := []string{
				orphan.Reference,
				"",
				"",
				"ORPHAN_COLLECTION",
				orphan.TotalAmount.StringFixed(2),
				"",
				fmt.Sprintf("%d terminal collection(s) with no matching delivery note", orphan.OccurrenceCount),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (r *Reporter) writeConsole(w io.Writer, report *reconciler.Report) error {
	stats := report.Stats

	fmt.Fprintln(w, "Reconciliation Report")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Statement batches:   %d\n", stats.StatementBatches)
	fmt.Fprintf(w, "Lines scanned:       %d\n", stats.Parse.LinesScanned)
	fmt.Fprintf(w, "Collections parsed:  %d\n", stats.Parse.RecordsEmitted)
	if stats.Parse.DeniedDiscarded > 0 {
		fmt.Fprintf(w, "Denied (discarded):  %d\n", stats.Parse.DeniedDiscarded)
	}
	if stats.Parse.UnresolvedAnchors > 0 {
		fmt.Fprintf(w, "Unresolved anchors:  %d\n", stats.Parse.UnresolvedAnchors)
	}
	fmt.Fprintf(w, "Due rows loaded:     %d", stats.DueRowsLoaded)
	if stats.DueRowsFailed > 0 {
		fmt.Fprintf(w, " (%d failed normalization)", stats.DueRowsFailed)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Customers:           %d\n", stats.Matching.TotalCustomers)
	fmt.Fprintf(w, "Total due:           %s\n", stats.Matching.TotalDue.StringFixed(2))
	fmt.Fprintf(w, "Total collected:     %s\n", stats.Matching.TotalCollected.StringFixed(2))
	fmt.Fprintln(w)

	r.writeStatusBreakdown(w, report)

	results := r.visibleResults(report)
	if len(results) > 0 {
		fmt.Fprintln(w, "Detail")
		fmt.Fprintln(w, "------")
		for _, res := range results {
			collected := "-"
			if res.TotalCollected != nil {
				collected = res.TotalCollected.StringFixed(2)
			}
			fmt.Fprintf(w, "%-12s due %10s  collected %10s  %-30s %s\n",
				res.CustomerReference,
				res.TotalDue.StringFixed(2),
				collected,
				res.Status,
				res.Observation,
			)
		}
		fmt.Fprintln(w)
	}

	if r.config.IncludeOrphans && len(report.Orphans) > 0 {
		fmt.Fprintln(w, "Orphan Collections")
		fmt.Fprintln(w, "------------------")
		for _, orphan := range report.Orphans {
			suffix := ""
			if orphan.OccurrenceCount > 1 {
				suffix = fmt.Sprintf(" (%d collections)", orphan.OccurrenceCount)
			}
			fmt.Fprintf(w, "%-12s collected %10s%s\n",
				orphan.Reference, orphan.TotalAmount.StringFixed(2), suffix)
		}
		fmt.Fprintf(w, "Orphan total: %s\n\n", stats.Matching.OrphanAmount.StringFixed(2))
	}

	return nil
}

func (r *Reporter) writeStatusBreakdown(w io.Writer, report *reconciler.Report) {
	byStatus := report.Stats.Matching.ByStatus
	if len(byStatus) == 0 {
		return
	}

	statuses := make([]string, 0, len(byStatus))
	for status := range byStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	fmt.Fprintln(w, "Status Breakdown")
	fmt.Fprintln(w, "----------------")
	for _, status := range statuses {
		count := byStatus[models.ReconciliationStatus(status)]
		label := strings.ReplaceAll(strings.ToLower(status), "_", " ")
		fmt.Fprintf(w, "%-32s %d\n", label, count)
	}
	fmt.Fprintln(w)
}
