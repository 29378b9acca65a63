package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/statement"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(nil)
	require.NoError(t, err)
	return service
}

func TestServiceRunEndToEnd(t *testing.T) {
	service := newTestService(t)

	doc := statement.NewDocumentFromText(`
327912345 12
56.40
4532
AUTORIZADA
102.00
4540
AUTORIZADA
33.00
9999
DENEGADA
`)

	dues := []*models.DueRecord{
		models.NewDueRecord("4532", decimal.NewFromFloat(56.40), "2"),
		models.NewDueRecord("4540", decimal.NewFromFloat(100.00), "3"),
		models.NewDueRecord("4550", decimal.NewFromFloat(12.00), "4"),
	}

	report, err := service.RunDocuments([]*statement.Document{doc}, dues, 1)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, models.StatusCollected, report.Results[0].Status)
	assert.Equal(t, models.StatusCollectedOver, report.Results[1].Status)
	assert.Equal(t, models.StatusNotCollected, report.Results[2].Status)

	assert.Equal(t, 1, report.Stats.StatementBatches)
	assert.Equal(t, 2, report.Stats.Parse.RecordsEmitted)
	assert.Equal(t, 1, report.Stats.Parse.DeniedDiscarded)
	assert.Equal(t, 3, report.Stats.DueRowsLoaded)
	assert.Equal(t, 1, report.Stats.DueRowsFailed)
	assert.Equal(t, 2, report.Stats.AggregatedReferences)
	assert.True(t, report.TotalDue().Equal(decimal.NewFromFloat(168.40)))
	assert.True(t, report.TotalCollected().Equal(decimal.NewFromFloat(158.40)))
}

func TestLedgerAccumulatesAcrossBatches(t *testing.T) {
	service := newTestService(t)
	ledger := NewLedger()

	morning := statement.NewDocumentFromText("56.40\n4532\nAUTORIZADA\n")
	evening := statement.NewDocumentFromText("10.00\n4532\nAUTORIZADA\n")

	records, stats := service.ParseStatement(morning)
	ledger.Append(records, stats)
	records, stats = service.ParseStatement(evening)
	ledger.Append(records, stats)

	assert.Equal(t, 2, ledger.Batches())
	assert.Equal(t, 2, ledger.Len())
	assert.Equal(t, 2, ledger.Stats().RecordsEmitted)

	dues := []*models.DueRecord{
		models.NewDueRecord("4532", decimal.NewFromFloat(66.40), ""),
	}
	report, err := service.Run(ledger, dues, 0)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	// Collections from both uploads sum under the shared reference.
	assert.Equal(t, models.StatusCollected, report.Results[0].Status)
	assert.Equal(t, 2, report.Stats.StatementBatches)
}

func TestServiceRunWithEmptyLedger(t *testing.T) {
	service := newTestService(t)

	dues := []*models.DueRecord{
		models.NewDueRecord("4532", decimal.NewFromFloat(56.40), ""),
	}
	report, err := service.Run(nil, dues, 0)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusNotCollected, report.Results[0].Status)
	assert.Zero(t, report.Stats.StatementBatches)
}

func TestServiceConfigValidation(t *testing.T) {
	_, err := NewService(&Config{})
	assert.Error(t, err, "missing component configs must be rejected")

	config := DefaultConfig()
	config.Matching.Tolerance = decimal.Zero
	_, err = NewService(config)
	assert.Error(t, err)
}

func TestConfigClone(t *testing.T) {
	config := DefaultConfig()
	clone := config.Clone()

	clone.Format.LookaheadLines = 99
	clone.Matching.SimilarityThreshold = 0.9

	assert.NotEqual(t, 99, config.Format.LookaheadLines)
	assert.NotEqual(t, 0.9, config.Matching.SimilarityThreshold)
}
