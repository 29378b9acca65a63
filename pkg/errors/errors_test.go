package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestCategoryExitCodes(t *testing.T) {
	tests := []struct {
		category Category
		expected int
	}{
		{CategoryInput, 2},
		{CategoryNormalization, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
		{Category("unknown"), 1},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.ExitCode(); got != tt.expected {
			t.Errorf("ExitCode for %s = %d, want %d", tt.category, got, tt.expected)
		}
	}
}

func TestOnlyInputErrorsAreFatal(t *testing.T) {
	if !InputError(CodeFileNotFound, "/tmp/x", nil).IsFatal() {
		t.Error("input errors must be fatal")
	}
	if NormalizationError(CodeInvalidAmount, "amount", "abc", nil).IsFatal() {
		t.Error("normalization errors must not be fatal")
	}
	if ConfigurationError(CodeInvalidConfig, "tolerance", 0, nil).IsFatal() {
		t.Error("configuration errors must not be fatal")
	}
}

func TestErrorMessageIncludesSuggestion(t *testing.T) {
	err := New(CategoryInput, CodeFileNotFound, "file not found").
		WithSuggestion("check the path")

	if !strings.Contains(err.Error(), "file not found") {
		t.Errorf("message missing: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "check the path") {
		t.Errorf("suggestion missing: %s", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryReconciliation, CodeProcessingError, "operation failed")

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if err.StackTrace == nil {
		t.Error("wrapped error should carry a stack trace")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, CategoryInput, CodeFileNotFound, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestAs(t *testing.T) {
	typed := InputError(CodeFileNotFound, "/tmp/x", nil)
	wrapped := fmt.Errorf("outer: %w", typed)

	extracted, ok := As(wrapped)
	if !ok {
		t.Fatal("As should find the typed error in the chain")
	}
	if extracted.Code != CodeFileNotFound {
		t.Errorf("code = %s, want %s", extracted.Code, CodeFileNotFound)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As should not match untyped errors")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	typed := NormalizationError(CodeInvalidAmount, "amount", "abc", nil)
	if got := WrapIfNeeded(typed, CategoryInternal, CodeUnexpectedError, "x"); got != typed {
		t.Error("already-typed errors pass through unchanged")
	}

	plain := fmt.Errorf("plain")
	got := WrapIfNeeded(plain, CategoryNormalization, CodeInvalidAmount, "wrapped")
	if got.Category != CategoryNormalization || got.Cause != plain {
		t.Errorf("unexpected wrap result: %+v", got)
	}

	if WrapIfNeeded(nil, CategoryInput, CodeFileNotFound, "x") != nil {
		t.Error("nil passes through as nil")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryInput, CodeFileNotFound, "not found").
		WithContext("path", "/tmp/x").
		WithContext("attempt", 2)

	if err.Context["path"] != "/tmp/x" || err.Context["attempt"] != 2 {
		t.Errorf("context = %v", err.Context)
	}
}

func TestSummary(t *testing.T) {
	errs := []*Error{
		NormalizationError(CodeInvalidAmount, "amount", "abc", nil),
		NormalizationError(CodeMissingField, "customer", "", nil),
		InputError(CodeFileNotFound, "/tmp/x", nil),
	}

	summary := NewSummary(errs)
	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
	if summary.ByCategory[CategoryNormalization] != 2 {
		t.Errorf("normalization count = %d, want 2", summary.ByCategory[CategoryNormalization])
	}
	if !summary.HasCategory(CategoryInput) {
		t.Error("summary should report the input category")
	}
	if summary.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3 (highest-priority among collected)", summary.ExitCode())
	}
	if !strings.Contains(summary.Error(), "3 errors occurred") {
		t.Errorf("summary message = %s", summary.Error())
	}
}

func TestEmptySummary(t *testing.T) {
	summary := NewSummary(nil)
	if summary.ExitCode() != 0 {
		t.Errorf("empty summary exit code = %d, want 0", summary.ExitCode())
	}
	if summary.Error() != "no errors" {
		t.Errorf("empty summary message = %s", summary.Error())
	}
}
