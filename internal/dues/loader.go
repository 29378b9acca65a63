// Package dues loads expected-payment records from the delivery-note source:
// an Excel workbook (the usual case) or a CSV export. Column names are
// configuration; nothing about the source layout is hardcoded.
//
// Loading is best-effort per row: a cell that fails amount normalization
// does not abort the load. The bad row is returned as a typed RowError next
// to the good rows, and the caller decides whether to drop it or halt the
// run.
package dues

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/pkg/errors"
	"tpv-reconciliation-service/pkg/logger"
)

// LoaderConfig describes how to read the delivery-note source.
type LoaderConfig struct {
	// CustomerColumn is the header of the customer-reference column.
	CustomerColumn string `json:"customer_column"`

	// AmountColumn is the header of the amount-due column.
	AmountColumn string `json:"amount_column"`

	// SheetName selects the worksheet; empty means the workbook's first
	// sheet. Ignored for CSV.
	SheetName string `json:"sheet_name,omitempty"`

	// HasHeader is true when the first row holds column names. Without a
	// header the customer and amount columns are taken positionally from
	// CustomerIndex and AmountIndex.
	HasHeader     bool `json:"has_header"`
	CustomerIndex int  `json:"customer_index"`
	AmountIndex   int  `json:"amount_index"`

	// Convention is the decimal-separator convention of the amount cells.
	Convention models.DecimalConvention `json:"convention"`

	// Delimiter is the CSV field separator. Ignored for workbooks.
	Delimiter rune `json:"delimiter"`
}

// DefaultLoaderConfig returns the configuration matching the standard
// delivery-note workbook: Spanish headers and comma-decimal amounts.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		CustomerColumn: "Venta a-Nº cliente",
		AmountColumn:   "Importe envío IVA incluido",
		HasHeader:      true,
		Convention:     models.CommaDecimal,
		Delimiter:      ',',
	}
}

// Validate checks the loader configuration.
func (c *LoaderConfig) Validate() error {
	if c.HasHeader {
		if strings.TrimSpace(c.CustomerColumn) == "" {
			return fmt.Errorf("customer column name is required")
		}
		if strings.TrimSpace(c.AmountColumn) == "" {
			return fmt.Errorf("amount column name is required")
		}
	} else {
		if c.CustomerIndex < 0 || c.AmountIndex < 0 {
			return fmt.Errorf("column indices cannot be negative")
		}
		if c.CustomerIndex == c.AmountIndex {
			return fmt.Errorf("customer and amount columns cannot share index %d", c.CustomerIndex)
		}
	}
	if !c.Convention.IsValid() {
		return fmt.Errorf("invalid decimal convention: %s", c.Convention)
	}
	return nil
}

// Clone creates a copy of the loader configuration.
func (c *LoaderConfig) Clone() *LoaderConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// RowError is one recoverable per-row failure from a load: the row is
// identified by its source line and the failure by a normalization-category
// error.
type RowError struct {
	SourceLineID string        `json:"source_line_id"`
	Err          *errors.Error `json:"error"`
}

func (r *RowError) Error() string {
	return fmt.Sprintf("row %s: %v", r.SourceLineID, r.Err)
}

// Loader reads DueRecords from delivery-note sources.
type Loader struct {
	config *LoaderConfig
	logger logger.Logger
}

// NewLoader creates a Loader with the given configuration.
func NewLoader(config *LoaderConfig) (*Loader, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "dues_loader", config, err)
	}
	return &Loader{
		config: config.Clone(),
		logger: logger.GetGlobalLogger().WithComponent("dues_loader"),
	}, nil
}

// LoadWorkbook reads due records from an Excel workbook. Open/read failures
// are fatal input errors; per-row normalization failures come back as
// RowErrors alongside the successfully loaded records.
func (l *Loader) LoadWorkbook(path string) ([]*models.DueRecord, []*RowError, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.InputError(errors.CodeFileNotFound, path, err)
		}
		return nil, nil, errors.InputError(errors.CodeFileUnreadable, path, err)
	}
	defer file.Close()

	sheet := l.config.SheetName
	if sheet == "" {
		sheet = file.GetSheetName(0)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.InputError(errors.CodeSheetNotFound, path, err).
			WithContext("sheet", sheet)
	}

	records, rowErrs, err := l.loadRows(rows)
	if err != nil {
		return nil, nil, err
	}

	l.logger.WithFields(logger.Fields{
		"path":    path,
		"sheet":   sheet,
		"records": len(records),
		"errors":  len(rowErrs),
	}).Info("Loaded delivery-note workbook")

	return records, rowErrs, nil
}

// LoadCSV reads due records from a CSV export of the delivery-note source.
func (l *Loader) LoadCSV(path string) ([]*models.DueRecord, []*RowError, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.InputError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.InputError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.InputError(errors.CodeFileUnreadable, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = l.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.InputError(errors.CodeFileUnreadable, path, err)
		}
		rows = append(rows, record)
	}

	records, rowErrs, err := l.loadRows(rows)
	if err != nil {
		return nil, nil, err
	}

	l.logger.WithFields(logger.Fields{
		"path":    path,
		"records": len(records),
		"errors":  len(rowErrs),
	}).Info("Loaded delivery-note CSV")

	return records, rowErrs, nil
}

// loadRows converts raw rows into DueRecords. Row numbering is 1-based over
// the source including the header, so SourceLineID traces straight back to
// the spreadsheet.
func (l *Loader) loadRows(rows [][]string) ([]*models.DueRecord, []*RowError, error) {
	customerIdx, amountIdx := l.config.CustomerIndex, l.config.AmountIndex
	start := 0

	if l.config.HasHeader {
		if len(rows) == 0 {
			return nil, nil, errors.NormalizationError(
				errors.CodeMissingColumn, l.config.CustomerColumn, nil,
				fmt.Errorf("source is empty"),
			)
		}
		var err error
		customerIdx, err = findColumn(rows[0], l.config.CustomerColumn)
		if err != nil {
			return nil, nil, err
		}
		amountIdx, err = findColumn(rows[0], l.config.AmountColumn)
		if err != nil {
			return nil, nil, err
		}
		start = 1
	}

	var records []*models.DueRecord
	var rowErrs []*RowError

	for i := start; i < len(rows); i++ {
		row := rows[i]
		lineID := strconv.Itoa(i + 1)

		if isEmptyRow(row) {
			continue
		}

		customer := cellAt(row, customerIdx)
		if customer == "" {
			rowErrs = append(rowErrs, &RowError{
				SourceLineID: lineID,
				Err: errors.NormalizationError(
					errors.CodeMissingField, l.config.CustomerColumn, "", nil),
			})
			continue
		}

		rawAmount := cellAt(row, amountIdx)
		amount, err := models.NormalizeAmount(rawAmount, l.config.Convention)
		if err != nil {
			typed := errors.WrapIfNeeded(err, errors.CategoryNormalization, errors.CodeInvalidAmount,
				fmt.Sprintf("amount %q could not be normalized", rawAmount))
			rowErrs = append(rowErrs, &RowError{SourceLineID: lineID, Err: typed})
			continue
		}

		records = append(records, models.NewDueRecord(customer, amount, lineID))
	}

	return records, rowErrs, nil
}

func findColumn(header []string, name string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, cell := range header {
		if strings.ToLower(strings.TrimSpace(cell)) == want {
			return i, nil
		}
	}
	return -1, errors.NormalizationError(
		errors.CodeMissingColumn, name, header,
		fmt.Errorf("column %q not found in header", name),
	)
}

func cellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
