package dues

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/pkg/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dues.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	file := excelize.NewFile()
	for i, row := range rows {
		r := row
		require.NoError(t, file.SetSheetRow("Sheet1", cellRef(i), &r))
	}
	path := filepath.Join(t.TempDir(), "dues.xlsx")
	require.NoError(t, file.SaveAs(path))
	require.NoError(t, file.Close())
	return path
}

func cellRef(row int) string {
	cell, _ := excelize.CoordinatesToCellName(1, row+1)
	return cell
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "Venta a-Nº cliente,Importe envío IVA incluido\n4532,\"56,40\"\n4540,\"102,00\"\n")

	loader, err := NewLoader(nil)
	require.NoError(t, err)

	records, rowErrs, err := loader.LoadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, records, 2)

	assert.Equal(t, "4532", records[0].CustomerReference)
	assert.True(t, records[0].AmountDue.Equal(decimal.NewFromFloat(56.40)),
		"amount = %s", records[0].AmountDue)
	assert.Equal(t, "2", records[0].SourceLineID)
	assert.Equal(t, "3", records[1].SourceLineID)
}

func TestLoadCSVBadRowsAreReturnedNotFatal(t *testing.T) {
	path := writeCSV(t, "Venta a-Nº cliente,Importe envío IVA incluido\n4532,\"56,40\"\n4540,not-a-number\n,\"10,00\"\n")

	loader, err := NewLoader(nil)
	require.NoError(t, err)

	records, rowErrs, err := loader.LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, rowErrs, 2)

	assert.Equal(t, "3", rowErrs[0].SourceLineID)
	assert.Equal(t, errors.CategoryNormalization, rowErrs[0].Err.Category)
	assert.Equal(t, "4", rowErrs[1].SourceLineID)
}

func TestLoadCSVMissingColumnIsFatal(t *testing.T) {
	path := writeCSV(t, "cliente,importe\n4532,\"56,40\"\n")

	loader, err := NewLoader(nil)
	require.NoError(t, err)

	_, _, err = loader.LoadCSV(path)
	require.Error(t, err)

	typed, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeMissingColumn, typed.Code)
}

func TestLoadCSVWithoutHeader(t *testing.T) {
	path := writeCSV(t, "4532;56.40\n4540;102.00\n")

	config := DefaultLoaderConfig()
	config.HasHeader = false
	config.CustomerIndex = 0
	config.AmountIndex = 1
	config.Convention = models.DotDecimal
	config.Delimiter = ';'

	loader, err := NewLoader(config)
	require.NoError(t, err)

	records, rowErrs, err := loader.LoadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].SourceLineID)
}

func TestLoadCSVSkipsEmptyRows(t *testing.T) {
	path := writeCSV(t, "Venta a-Nº cliente,Importe envío IVA incluido\n4532,\"56,40\"\n,\n")

	loader, err := NewLoader(nil)
	require.NoError(t, err)

	records, rowErrs, err := loader.LoadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Len(t, records, 1)
}

func TestLoadCSVFileNotFound(t *testing.T) {
	loader, err := NewLoader(nil)
	require.NoError(t, err)

	_, _, err = loader.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	typed, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryInput, typed.Category)
	assert.True(t, typed.IsFatal())
}

func TestLoadWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Venta a-Nº cliente", "Importe envío IVA incluido"},
		{"4532", "56,40"},
		{"4540", "102,00"},
	})

	loader, err := NewLoader(nil)
	require.NoError(t, err)

	records, rowErrs, err := loader.LoadWorkbook(path)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, records, 2)
	assert.Equal(t, "4532", records[0].CustomerReference)
	assert.True(t, records[0].AmountDue.Equal(decimal.NewFromFloat(56.40)))
}

func TestLoadWorkbookMissingSheet(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Venta a-Nº cliente", "Importe envío IVA incluido"},
	})

	config := DefaultLoaderConfig()
	config.SheetName = "NoSuchSheet"
	loader, err := NewLoader(config)
	require.NoError(t, err)

	_, _, err = loader.LoadWorkbook(path)
	require.Error(t, err)

	typed, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSheetNotFound, typed.Code)
}

func TestLoaderConfigValidate(t *testing.T) {
	config := DefaultLoaderConfig()
	config.CustomerColumn = ""
	assert.Error(t, config.Validate())

	config = DefaultLoaderConfig()
	config.HasHeader = false
	config.CustomerIndex = 1
	config.AmountIndex = 1
	assert.Error(t, config.Validate())

	config = DefaultLoaderConfig()
	config.Convention = "bogus"
	assert.Error(t, config.Validate())
}
