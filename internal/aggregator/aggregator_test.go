package aggregator

import (
	"testing"

	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/internal/models"
)

func record(reference string, amount float64) *models.TransactionRecord {
	return models.NewTransactionRecord(reference, decimal.NewFromFloat(amount))
}

func TestAggregateGroupsByReference(t *testing.T) {
	records := []*models.TransactionRecord{
		record("4532", 56.40),
		record("4532", 10.00),
		record("777", 33.00),
	}

	aggregated := New(decimal.Decimal{}).Aggregate(records)

	if len(aggregated) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(aggregated))
	}

	// Output is in reference order.
	first := aggregated[0]
	if first.Reference != "4532" {
		t.Fatalf("first group = %s, want 4532", first.Reference)
	}
	if !first.TotalAmount.Equal(decimal.NewFromFloat(66.40)) {
		t.Errorf("total = %s, want 66.40", first.TotalAmount)
	}
	if first.OccurrenceCount != 2 {
		t.Errorf("count = %d, want 2", first.OccurrenceCount)
	}
	if !first.HasMultipleDistinctAmounts {
		t.Error("expected distinct-amount flag for 56.40 and 10.00")
	}

	second := aggregated[1]
	if second.Reference != "777" || second.OccurrenceCount != 1 {
		t.Errorf("second group = %+v", second)
	}
	if second.HasMultipleDistinctAmounts {
		t.Error("single amount must not set the distinct-amount flag")
	}
}

func TestAggregateEqualAmountsAreNotDistinct(t *testing.T) {
	records := []*models.TransactionRecord{
		record("4532", 56.40),
		record("4532", 56.40),
	}

	aggregated := New(decimal.NewFromFloat(0.01)).Aggregate(records)

	if len(aggregated) != 1 {
		t.Fatalf("expected 1 group, got %d", len(aggregated))
	}
	if aggregated[0].HasMultipleDistinctAmounts {
		t.Error("repeated identical amounts must not set the distinct-amount flag")
	}
	if !aggregated[0].TotalAmount.Equal(decimal.NewFromFloat(112.80)) {
		t.Errorf("total = %s, want 112.80", aggregated[0].TotalAmount)
	}
}

func TestAggregateAmountsWithinToleranceAreNotDistinct(t *testing.T) {
	// 56.401 and 56.399 round to the same value at the tolerance precision.
	records := []*models.TransactionRecord{
		record("4532", 56.401),
		record("4532", 56.399),
	}

	aggregated := New(decimal.NewFromFloat(0.01)).Aggregate(records)

	if aggregated[0].HasMultipleDistinctAmounts {
		t.Error("amounts equal at tolerance precision must not be distinct")
	}
}

func TestAggregateOrderIndependence(t *testing.T) {
	forward := []*models.TransactionRecord{
		record("4532", 56.40),
		record("777", 33.00),
		record("4532", 10.00),
	}
	reversed := []*models.TransactionRecord{
		record("4532", 10.00),
		record("777", 33.00),
		record("4532", 56.40),
	}

	a := New(decimal.Decimal{})
	left := a.Aggregate(forward)
	right := a.Aggregate(reversed)

	if len(left) != len(right) {
		t.Fatalf("group counts differ: %d vs %d", len(left), len(right))
	}
	for i := range left {
		if left[i].Reference != right[i].Reference ||
			!left[i].TotalAmount.Equal(right[i].TotalAmount) ||
			left[i].OccurrenceCount != right[i].OccurrenceCount ||
			left[i].HasMultipleDistinctAmounts != right[i].HasMultipleDistinctAmounts {
			t.Errorf("group %d differs: %v vs %v", i, left[i], right[i])
		}
	}
}

func TestAggregateNormalizesReferenceKeys(t *testing.T) {
	records := []*models.TransactionRecord{
		{Reference: " 4532 ", Amount: decimal.NewFromFloat(10)},
		{Reference: "4532", Amount: decimal.NewFromFloat(20)},
	}

	aggregated := New(decimal.Decimal{}).Aggregate(records)

	if len(aggregated) != 1 {
		t.Fatalf("expected whitespace-folded grouping, got %d groups", len(aggregated))
	}
	if aggregated[0].OccurrenceCount != 2 {
		t.Errorf("count = %d, want 2", aggregated[0].OccurrenceCount)
	}
}

func TestAggregateSkipsNilAndEmpty(t *testing.T) {
	records := []*models.TransactionRecord{
		nil,
		{Reference: "   ", Amount: decimal.NewFromFloat(10)},
		record("4532", 56.40),
	}

	aggregated := New(decimal.Decimal{}).Aggregate(records)

	if len(aggregated) != 1 {
		t.Fatalf("expected 1 group, got %d", len(aggregated))
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	// Re-aggregating an aggregated result, each group fed back as one record
	// carrying its total, must reproduce the same references and totals.
	records := []*models.TransactionRecord{
		record("4532", 56.40),
		record("4532", 10.00),
		record("777", 33.00),
		record("9001", 12.50),
	}

	a := New(decimal.NewFromFloat(0.01))
	first := a.Aggregate(records)

	rolled := make([]*models.TransactionRecord, 0, len(first))
	for _, group := range first {
		rolled = append(rolled, models.NewTransactionRecord(group.Reference, group.TotalAmount))
	}
	second := a.Aggregate(rolled)

	if len(second) != len(first) {
		t.Fatalf("group counts differ: %d vs %d", len(second), len(first))
	}
	for i := range first {
		if second[i].Reference != first[i].Reference {
			t.Errorf("group %d reference = %s, want %s", i, second[i].Reference, first[i].Reference)
		}
		if !second[i].TotalAmount.Equal(first[i].TotalAmount) {
			t.Errorf("group %d total = %s, want %s", i, second[i].TotalAmount, first[i].TotalAmount)
		}
		if second[i].OccurrenceCount != 1 {
			t.Errorf("group %d count = %d, want 1 for a rolled-up record", i, second[i].OccurrenceCount)
		}
		if second[i].HasMultipleDistinctAmounts {
			t.Errorf("group %d must not flag distinct amounts for a single record", i)
		}
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if got := New(decimal.Decimal{}).Aggregate(nil); len(got) != 0 {
		t.Errorf("expected empty output, got %d groups", len(got))
	}
}
