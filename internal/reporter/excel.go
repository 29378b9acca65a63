package reporter

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/reconciler"
	"tpv-reconciliation-service/pkg/errors"
)

const (
	resultsSheet = "Reconciliation"
	orphansSheet = "Orphan Collections"
	summarySheet = "Summary"
)

// WriteWorkbook writes the report as an Excel workbook at path. The layout
// mirrors what reviewers work through by hand: one row per customer on the
// first sheet, orphan collections on the second, run totals on the third.
func WriteWorkbook(path string, report *reconciler.Report) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := writeResultsSheet(file, report.Results); err != nil {
		return err
	}
	if err := writeOrphansSheet(file, report.Orphans); err != nil {
		return err
	}
	if err := writeSummarySheet(file, report); err != nil {
		return err
	}

	// excelize names the initial sheet "Sheet1"; rename it instead of
	// leaving an empty tab behind.
	if err := file.SetSheetName("Sheet1", resultsSheet); err != nil {
		return errors.InternalError("rename sheet", err)
	}
	if index, err := file.GetSheetIndex(resultsSheet); err == nil {
		file.SetActiveSheet(index)
	}

	if err := file.SaveAs(path); err != nil {
		return errors.InputError(errors.CodeFileUnreadable, path, err)
	}
	return nil
}

func writeResultsSheet(file *excelize.File, results []*models.ReconciliationResult) error {
	header := []interface{}{
		"Customer Reference", "Total Due", "Due Lines", "Status",
		"Total Collected", "Matched Reference", "Observation",
	}
	if err := file.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return errors.InternalError("write results header", err)
	}

	for i, res := range results {
		collected := ""
		if res.TotalCollected != nil {
			collected = res.TotalCollected.StringFixed(2)
		}
		row := []interface{}{
			res.CustomerReference,
			res.TotalDue.StringFixed(2),
			res.DueLineCount,
			string(res.Status),
			collected,
			res.MatchedReference,
			res.Observation,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow("Sheet1", cell, &row); err != nil {
			return errors.InternalError("write results row", err)
		}
	}
	return nil
}

func writeOrphansSheet(file *excelize.File, orphans []*models.AggregatedTransaction) error {
	if _, err := file.NewSheet(orphansSheet); err != nil {
		return errors.InternalError("create orphans sheet", err)
	}

	header := []interface{}{"Reference", "Total Collected", "Collections", "Differing Amounts"}
	if err := file.SetSheetRow(orphansSheet, "A1", &header); err != nil {
		return errors.InternalError("write orphans header", err)
	}

	for i, orphan := range orphans {
		differing := ""
		if orphan.HasMultipleDistinctAmounts {
			differing = "yes"
		}
		row := []interface{}{
			orphan.Reference,
			orphan.TotalAmount.StringFixed(2),
			orphan.OccurrenceCount,
			differing,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(orphansSheet, cell, &row); err != nil {
			return errors.InternalError("write orphans row", err)
		}
	}
	return nil
}

func writeSummarySheet(file *excelize.File, report *reconciler.Report) error {
	if _, err := file.NewSheet(summarySheet); err != nil {
		return errors.InternalError("create summary sheet", err)
	}

	stats := report.Stats
	rows := [][]interface{}{
		{"Statement batches", stats.StatementBatches},
		{"Lines scanned", stats.Parse.LinesScanned},
		{"Collections parsed", stats.Parse.RecordsEmitted},
		{"Denied collections discarded", stats.Parse.DeniedDiscarded},
		{"Unresolved amount anchors", stats.Parse.UnresolvedAnchors},
		{"Due rows loaded", stats.DueRowsLoaded},
		{"Due rows failed", stats.DueRowsFailed},
		{"Customers", stats.Matching.TotalCustomers},
		{"Total due", stats.Matching.TotalDue.StringFixed(2)},
		{"Total collected", stats.Matching.TotalCollected.StringFixed(2)},
		{"Orphan collections", stats.Matching.OrphanCount},
		{"Orphan amount", stats.Matching.OrphanAmount.StringFixed(2)},
	}

	statuses := make([]string, 0, len(stats.Matching.ByStatus))
	for status := range stats.Matching.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		rows = append(rows, []interface{}{status, stats.Matching.ByStatus[models.ReconciliationStatus(status)]})
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		r := row
		if err := file.SetSheetRow(summarySheet, cell, &r); err != nil {
			return errors.InternalError("write summary row", err)
		}
	}
	return nil
}
