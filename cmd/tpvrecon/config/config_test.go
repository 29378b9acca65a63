package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv-reconciliation-service/internal/matcher"
	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/reporter"
)

func TestCreateStatementFormat(t *testing.T) {
	format, err := CreateStatementFormat(StatementOptions{
		ReferenceMinDigits: 4,
		ReferenceMaxDigits: 5,
		LookaheadLines:     10,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, format.ReferenceMinDigits)
	assert.Equal(t, 5, format.ReferenceMaxDigits)
	assert.Equal(t, 10, format.LookaheadLines)
	assert.NotEmpty(t, format.AuthorizationVocabulary, "default format keeps the outcome vocabulary")
}

func TestCreateStatementFormatPlain(t *testing.T) {
	format, err := CreateStatementFormat(StatementOptions{Plain: true})
	require.NoError(t, err)

	assert.Empty(t, format.AuthorizationVocabulary)
	assert.Empty(t, format.HeaderPattern)
}

func TestCreateStatementFormatInvalid(t *testing.T) {
	_, err := CreateStatementFormat(StatementOptions{
		ReferenceMinDigits: 6,
		ReferenceMaxDigits: 3,
	})
	assert.Error(t, err)
}

func TestCreateMatchingConfig(t *testing.T) {
	config, err := CreateMatchingConfig(0, false, 0.6)
	require.NoError(t, err)
	assert.True(t, config.Tolerance.Equal(matcher.Epsilon))

	config, err = CreateMatchingConfig(0, true, 0.6)
	require.NoError(t, err)
	assert.True(t, config.Tolerance.Equal(matcher.EpsilonLoose))

	config, err = CreateMatchingConfig(0.05, false, 0.8)
	require.NoError(t, err)
	assert.True(t, config.Tolerance.Equal(decimal.NewFromFloat(0.05)))
	assert.Equal(t, 0.8, config.SimilarityThreshold)
}

func TestCreateMatchingConfigInvalidThreshold(t *testing.T) {
	_, err := CreateMatchingConfig(0, false, 1.5)
	assert.Error(t, err)
}

func TestCreateLoaderConfig(t *testing.T) {
	config, err := CreateLoaderConfig(LoaderOptions{
		SheetName:      "Hoja1",
		CustomerColumn: "Cliente",
		AmountColumn:   "Importe",
		Convention:     "dot",
		Delimiter:      ';',
	})
	require.NoError(t, err)

	assert.Equal(t, "Hoja1", config.SheetName)
	assert.Equal(t, "Cliente", config.CustomerColumn)
	assert.Equal(t, models.DotDecimal, config.Convention)
	assert.Equal(t, ';', config.Delimiter)
}

func TestCreateLoaderConfigDefaults(t *testing.T) {
	config, err := CreateLoaderConfig(LoaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Venta a-Nº cliente", config.CustomerColumn)
	assert.Equal(t, "Importe envío IVA incluido", config.AmountColumn)
	assert.Equal(t, models.CommaDecimal, config.Convention)
}

func TestParseConvention(t *testing.T) {
	convention, err := ParseConvention("comma")
	require.NoError(t, err)
	assert.Equal(t, models.CommaDecimal, convention)

	_, err = ParseConvention("semicolon")
	assert.Error(t, err)
}

func TestCreateReportConfig(t *testing.T) {
	config := CreateReportConfig("json", "out.json", true)
	assert.Equal(t, reporter.FormatJSON, config.Format)
	assert.Equal(t, "out.json", config.OutputPath)
	assert.True(t, config.OnlyProblems)

	config = CreateReportConfig("bogus", "", false)
	assert.Equal(t, reporter.FormatConsole, config.Format)
}
